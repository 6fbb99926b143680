// Package availability answers "can this slot be booked" from a single,
// consistent snapshot of the club schedule, reservations and closures.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/schedule"
)

// TransportError wraps a failed fetch. Callers keep their previous state.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Snapshot holds everything needed to evaluate one date, fetched in one cycle.
type Snapshot struct {
	Date         time.Time
	CourtID      int64 // 0 means every court
	Schedule     schedule.Schedule
	Slots        []schedule.Slot
	ScheduleErr  error // non-nil when the fallback schedule is in use
	Reservations []models.Reservation
	AdHoc        []models.AdHocBlock
	Recurring    []models.RecurringBlock
	FetchedAt    time.Time
}

type ScheduleSource interface {
	// GetSchedule returns found=false when no stored override exists.
	GetSchedule(ctx context.Context) (models.ClubSchedule, bool, error)
}

type ReservationSource interface {
	ListByDateCourt(ctx context.Context, date string, courtID int64) ([]models.Reservation, error)
}

type BlockSource interface {
	ListForDate(ctx context.Context, date string, courtID int64) ([]models.AdHocBlock, error)
}

type RecurringSource interface {
	ListRecurring(ctx context.Context) ([]models.RecurringBlock, error)
}

// Observer receives snapshot load timings.
type Observer interface {
	ObserveSnapshotLoad(d time.Duration, err error)
}

// Loader fetches snapshots. Defaults are used when no schedule is stored.
type Loader struct {
	Schedules    ScheduleSource
	Reservations ReservationSource
	Blocks       BlockSource
	Recurring    RecurringSource
	Defaults     models.ClubSchedule
	Clock        schedule.Clock
	Observer     Observer
}

// Load fetches the four parts concurrently. If any part fails the whole load
// fails with a *TransportError and no partial snapshot is returned.
func (l *Loader) Load(ctx context.Context, date time.Time, courtID int64) (*Snapshot, error) {
	clock := l.Clock
	if clock == nil {
		clock = schedule.SystemClock{}
	}
	started := time.Now()

	dateKey := models.FormatDate(date)
	var (
		cfg       models.ClubSchedule
		found     bool
		rows      []models.Reservation
		adHoc     []models.AdHocBlock
		recurring []models.RecurringBlock
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cfg, found, err = l.Schedules.GetSchedule(gctx)
		if err != nil {
			return &TransportError{Op: "load club schedule", Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rows, err = l.Reservations.ListByDateCourt(gctx, dateKey, courtID)
		if err != nil {
			return &TransportError{Op: "load reservations", Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		adHoc, err = l.Blocks.ListForDate(gctx, dateKey, courtID)
		if err != nil {
			return &TransportError{Op: "load blocks", Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recurring, err = l.Recurring.ListRecurring(gctx)
		if err != nil {
			return &TransportError{Op: "load recurring blocks", Err: err}
		}
		return nil
	})

	err := g.Wait()
	if l.Observer != nil {
		l.Observer.ObserveSnapshotLoad(time.Since(started), err)
	}
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Op: "load snapshot", Err: err}
		}
		return nil, err
	}

	if !found {
		cfg = l.Defaults
	}
	sched, slots, schedErr := schedule.Resolve(cfg.OpenTime, cfg.CloseTime, cfg.SlotMinutes)
	if schedErr != nil {
		log.Ctx(ctx).Warn().
			Err(schedErr).
			Str("date", dateKey).
			Msg("Invalid club schedule, using fallback slots")
	}

	return &Snapshot{
		Date:         date,
		CourtID:      courtID,
		Schedule:     sched,
		Slots:        slots,
		ScheduleErr:  schedErr,
		Reservations: rows,
		AdHoc:        adHoc,
		Recurring:    recurring,
		FetchedAt:    clock.Now(),
	}, nil
}

// ResolvedSchedule is the club schedule as it will be served.
type ResolvedSchedule struct {
	Config   models.ClubSchedule
	Stored   bool // false when the configured defaults are in use
	Schedule schedule.Schedule
	Slots    []schedule.Slot
	Err      error // ConfigError when the fallback schedule replaced Config
}

// ClubSchedule resolves the club schedule on its own, without reservations or blocks.
func (l *Loader) ClubSchedule(ctx context.Context) (*ResolvedSchedule, error) {
	cfg, found, err := l.Schedules.GetSchedule(ctx)
	if err != nil {
		return nil, &TransportError{Op: "load club schedule", Err: err}
	}
	if !found {
		cfg = l.Defaults
	}
	sched, slots, schedErr := schedule.Resolve(cfg.OpenTime, cfg.CloseTime, cfg.SlotMinutes)
	if schedErr != nil {
		log.Ctx(ctx).Warn().Err(schedErr).Msg("Invalid club schedule, using fallback slots")
	}
	return &ResolvedSchedule{Config: cfg, Stored: found, Schedule: sched, Slots: slots, Err: schedErr}, nil
}

// CurrentSchedule is ClubSchedule for callers that only need slot ordering.
// A ConfigError yields the fallback schedule and no error.
func (l *Loader) CurrentSchedule(ctx context.Context) (schedule.Schedule, error) {
	resolved, err := l.ClubSchedule(ctx)
	if err != nil {
		return schedule.Schedule{}, err
	}
	return resolved.Schedule, nil
}
