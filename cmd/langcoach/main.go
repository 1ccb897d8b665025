// Package main is the entrypoint of the LangCoach bot.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edgard/langcoach/internal/errs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	os.Exit(exitCode)
}

// run executes the CLI and returns the process exit code: 0 on success or
// graceful shutdown, 1 on any failure.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) int {
	root := newRootCmd(stdin, stdout)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("LangCoach stopped", "error", err, "code", errs.Code(err))
		return 1
	}
	return 0
}

type rootFlags struct {
	configPath string
	logLevel   string
	logJSON    bool
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	flags := &rootFlags{}

	serve := newServeCmd(flags)
	cmd := &cobra.Command{
		Use:           "langcoach",
		Short:         "LangCoach, a language coach bot for Telegram and the web",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to configuration file (optional, defaults to ./config.yaml if present)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override logger.level: debug|info|warn|error")
	cmd.PersistentFlags().BoolVar(&flags.logJSON, "log-json", false, "Log in JSON format")

	cmd.AddCommand(serve)
	cmd.AddCommand(newReplCmd(flags, stdin, stdout))
	return cmd
}
