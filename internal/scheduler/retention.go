package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// JobSweeper deletes finished job records older than a cutoff.
type JobSweeper interface {
	DeleteFinishedBefore(cutoff time.Time) (int64, error)
}

// RetentionSource reports how many days of finished jobs to keep.
// Zero or negative disables the sweep.
type RetentionSource func() int

// JobRetentionTask builds the daily sweep that removes old finished
// jobs and their task rows.
func JobRetentionTask(store JobSweeper, retentionDays RetentionSource, logger zerolog.Logger) TaskConfig {
	log := logger.With().Str("component", "retention").Logger()

	return TaskConfig{
		ID:   "job-retention",
		Name: "Job Retention Sweep",
		Cron: "0 4 * * *",
		Func: func(ctx context.Context) error {
			days := retentionDays()
			if days <= 0 {
				return nil
			}

			cutoff := time.Now().AddDate(0, 0, -days)
			removed, err := store.DeleteFinishedBefore(cutoff)
			if err != nil {
				return err
			}
			if removed > 0 {
				log.Info().Int64("removed", removed).Int("retentionDays", days).Msg("swept finished jobs")
			}
			return nil
		},
	}
}
