package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

const purgeJobName = "purge_cancelled_reservations"

// CancelledPurger deletes cancelled reservations dated before cutoff.
type CancelledPurger interface {
	PurgeCancelledBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeCounter receives the number of rows each run removed.
type PurgeCounter interface {
	Purged(n int64)
}

// PurgeJob removes cancelled reservations older than the retention period.
// Cancelled rows never occupy a slot, so removing them does not change availability.
type PurgeJob struct {
	Store         CancelledPurger
	Counter       PurgeCounter
	RetentionDays int
	Location      *time.Location
	Now           func() time.Time
}

// Cutoff is the first date whose cancelled rows are kept.
func (j PurgeJob) Cutoff() time.Time {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	loc := j.Location
	if loc == nil {
		loc = time.Local
	}
	today := now().In(loc)
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	return start.AddDate(0, 0, -j.RetentionDays)
}

// Run executes one purge pass.
func (j PurgeJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.Cutoff()
	n, err := j.Store.PurgeCancelledBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge cancelled before %s: %w", cutoff.Format(time.DateOnly), err)
	}
	if j.Counter != nil {
		j.Counter.Purged(n)
	}
	return n, nil
}

// RegisterPurgeJob registers the cancelled-reservation purge on the singleton scheduler.
// An empty cron expression disables the job.
func RegisterPurgeJob(job PurgeJob, cronExpr string) error {
	if job.Store == nil {
		return fmt.Errorf("purge job requires a reservation store")
	}

	jobLogger := log.With().
		Str("component", "purge_cancelled_job").
		Str("job_name", purgeJobName).
		Str("cron", cronExpr).
		Int("retention_days", job.RetentionDays).
		Logger()

	if cronExpr == "" {
		jobLogger.Info().Msg("Purge job disabled")
		return nil
	}

	_, err := AddJob(purgeJobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		n, err := job.Run(ctx)
		if err != nil {
			jobLogger.Error().Err(err).Msg("Failed to purge cancelled reservations")
			return
		}
		jobLogger.Info().Int64("purged", n).Msg("Purged cancelled reservations")
	}, gocron.WithSingletonMode(gocron.LimitModeWait))
	if err != nil {
		return fmt.Errorf("add purge job: %w", err)
	}

	jobLogger.Info().Msg("Purge job registered")
	return nil
}
