package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/edgard/langcoach/internal/assembly"
	"github.com/edgard/langcoach/internal/config"
	"github.com/edgard/langcoach/internal/llm"
	"github.com/edgard/langcoach/internal/persona"
	"github.com/edgard/langcoach/internal/repl"
)

func newReplCmd(flags *rootFlags, stdin io.Reader, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Chat with the coach in the terminal, without Telegram or the widget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(flags.configPath, config.WithBotToken(config.PlaceholderBotToken))
			if err != nil {
				return err
			}
			if flags.logLevel == "" {
				// Keep the terminal for the conversation.
				cfg.Logger.Level = "warn"
			}
			log := newLogger(cmd, flags, cfg)

			client, err := llm.NewClient(ctx, cfg.LLM, log)
			if err != nil {
				return err
			}

			app := assembly.New(assembly.Options{
				Logger: log,
				LLM:    client,
				Local:  true,
			})
			if err := app.Initialize(ctx, cfg); err != nil {
				return err
			}

			return repl.Run(ctx, stdin, stdout, app.Agent(), "Hi, I'm "+persona.BotName+". Let's practise!")
		},
	}
}
