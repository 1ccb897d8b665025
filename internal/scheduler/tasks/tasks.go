// Package tasks implements the scheduled maintenance tasks.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/langcoach/internal/config"
)

// ScheduledTaskFunc is the signature of every scheduled task. Tasks should
// honor ctx cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// Store is the part of the history store the tasks need.
type Store interface {
	DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	RunSQLMaintenance(ctx context.Context) error
}

// TaskDeps contains the dependencies of scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  Store
	Config *config.Config
	// Now defaults to time.Now.
	Now func() time.Time
}

// Task names, matching the keys under scheduler.tasks in the configuration.
const (
	HistoryRetention = "history_retention"
	SQLMaintenance   = "sql_maintenance"
)

// RegisterAllTasks returns every task keyed by its configuration name.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return map[string]ScheduledTaskFunc{
		HistoryRetention: newHistoryRetentionTask(deps),
		SQLMaintenance:   newSQLMaintenanceTask(deps),
	}
}
