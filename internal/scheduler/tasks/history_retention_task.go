package tasks

import (
	"context"
	"fmt"
	"time"
)

// newHistoryRetentionTask deletes conversation turns older than
// database.retention. A zero retention keeps everything.
func newHistoryRetentionTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", HistoryRetention)

	return func(ctx context.Context) error {
		retention := deps.Config.Database.Retention
		if retention <= 0 {
			log.DebugContext(ctx, "History retention disabled")
			return nil
		}

		start := time.Now()
		cutoff := deps.Now().Add(-retention)
		deleted, err := deps.Store.DeleteTurnsBefore(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "History retention failed", "error", err, "duration", time.Since(start))
			return fmt.Errorf("history retention failed: %w", err)
		}

		log.InfoContext(ctx, "History retention completed", "deleted", deleted, "cutoff", cutoff, "duration", time.Since(start))
		return nil
	}
}
