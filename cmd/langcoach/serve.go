package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/edgard/langcoach/internal/assembly"
	"github.com/edgard/langcoach/internal/config"
	"github.com/edgard/langcoach/internal/database"
	"github.com/edgard/langcoach/internal/llm"
	"github.com/edgard/langcoach/internal/logger"
	"github.com/edgard/langcoach/internal/metrics"
	"github.com/edgard/langcoach/internal/scheduler"
	"github.com/edgard/langcoach/internal/scheduler/tasks"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot on Telegram and the web widget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			log := newLogger(cmd, flags, cfg)
			log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

			db, err := database.Open(cfg.Database.Path, log)
			if err != nil {
				return err
			}
			defer database.Close(db, log)
			store := database.NewStore(db, log)

			client, err := llm.NewClient(ctx, cfg.LLM, log)
			if err != nil {
				return fmt.Errorf("create llm client: %w", err)
			}

			sched, err := scheduler.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
				Logger: log,
				Store:  store,
				Config: cfg,
			}))
			if err != nil {
				return err
			}

			app := assembly.New(assembly.Options{
				Logger:    log,
				LLM:       client,
				History:   store,
				Metrics:   metrics.New(),
				Scheduler: sched,
			})
			if err := app.Initialize(ctx, cfg); err != nil {
				return err
			}

			log.Info("Starting LangCoach", "adapters", len(app.Adapters()))
			if err := app.Run(ctx); err != nil {
				return err
			}
			log.Info("LangCoach stopped gracefully")
			return nil
		},
	}
}

// newLogger builds the process logger from cfg, letting flags override it.
func newLogger(cmd *cobra.Command, flags *rootFlags, cfg *config.Config) *slog.Logger {
	if flags.logLevel != "" {
		cfg.Logger.Level = flags.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Logger.JSON = flags.logJSON
	}
	return logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
}
