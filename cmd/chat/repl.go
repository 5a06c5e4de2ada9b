package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const replHelp = `commands:
  /image PATH   attach an image to the next message
  /thread       print the thread id
  /quit         leave`

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive chat in one thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(v, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer s.log.Sync()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "thread %s (type /help for commands)\n", s.conv.State().ThreadID)

			var pending []string
			in := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !in.Scan() {
					fmt.Fprintln(out)
					return in.Err()
				}
				line := strings.TrimSpace(in.Text())

				switch {
				case line == "":
					continue
				case line == "/quit" || line == "/exit":
					return nil
				case line == "/help":
					fmt.Fprintln(out, replHelp)
					continue
				case line == "/thread":
					fmt.Fprintln(out, s.conv.State().ThreadID)
					continue
				case strings.HasPrefix(line, "/image "):
					pending = append(pending, strings.TrimSpace(strings.TrimPrefix(line, "/image ")))
					fmt.Fprintf(out, "%d image(s) attached\n", len(pending))
					continue
				}

				if err := s.turn(cmd.Context(), out, line, pending); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
				}
				pending = nil
			}
		},
	}
}
