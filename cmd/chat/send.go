package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lk2023060901/agent-chat/internal/chat/transcript"
)

func newSendCmd() *cobra.Command {
	var images []string

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send one message and stream the answer",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(v, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer s.log.Sync()

			text := strings.Join(args, " ")
			return s.turn(cmd.Context(), cmd.OutOrStdout(), text, images)
		},
	}
	cmd.Flags().StringArrayVarP(&images, "image", "i", nil, "image to attach (repeatable)")
	return cmd
}

// turn 跑一轮对话，Ctrl-C 只取消这一轮
func (s *session) turn(parent context.Context, out io.Writer, text string, images []string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	state, err := s.conv.Send(ctx, text, images)
	fmt.Fprintln(out)

	if errors.Is(err, transcript.ErrEmptyMessage) {
		return errors.New("nothing to send: give a message or --image")
	}
	if f, ok := transcript.AsFailure(err); ok {
		if f.Kind == transcript.FailureCanceled {
			fmt.Fprintln(out, "(canceled)")
			return nil
		}
		return fmt.Errorf("turn failed in thread %s", state.ThreadID)
	}
	return err
}
