// Command chat talks to the relay from a terminal: one-shot `send` or an
// interactive `repl`, printing the answer as it streams.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lk2023060901/agent-chat/internal/chat/client"
	"github.com/lk2023060901/agent-chat/internal/conf"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
)

var (
	cfgFile string
	v       = conf.New()
)

var rootCmd = &cobra.Command{
	Use:           "chat",
	Short:         "Streaming chat client for the agent relay",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return conf.ReadInto(v, cfgFile)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (optional)")

	flags.String("server", "", "relay base URL")
	flags.String("thread", "", "thread id (default: a new one)")
	flags.String("mode", "", "agent mode: auto | detection | planning")
	flags.String("work-mode", "", "work_mode passed through to the agent")
	flags.Duration("timeout", 0, "give up on a turn after this long")
	flags.String("log-level", "", "log level for diagnostics on stderr")

	_ = v.BindPFlag("client.server_url", flags.Lookup("server"))
	_ = v.BindPFlag("client.thread_id", flags.Lookup("thread"))
	_ = v.BindPFlag("client.mode", flags.Lookup("mode"))
	_ = v.BindPFlag("client.work_mode", flags.Lookup("work-mode"))
	_ = v.BindPFlag("client.timeout", flags.Lookup("timeout"))
	_ = v.BindPFlag("client.log_level", flags.Lookup("log-level"))

	rootCmd.AddCommand(newSendCmd(), newReplCmd())
}

// session 命令运行所需的一切
type session struct {
	cfg     conf.ClientConfig
	conv    *client.Conversation
	printer *printer
	log     *logger.Logger
}

func newSession(v *viper.Viper, out io.Writer) (*session, error) {
	var cfg conf.ClientConfig
	if err := v.UnmarshalKey("client", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read client config: %w", err)
	}

	log, err := logger.CLI(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	p := newPrinter(out, cfg.ServerURL)
	c := client.New(client.Config{ServerURL: cfg.ServerURL}, log)
	conv := client.NewConversation(c,
		client.WithThreadID(cfg.ThreadID),
		client.WithMode(cfg.Mode, cfg.WorkMode),
		client.WithLogger(log),
		client.WithObserver(p.Observe),
	)
	return &session{cfg: cfg, conv: conv, printer: p, log: log}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
