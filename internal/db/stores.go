package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/reservations"
)

const queryTimeout = 5 * time.Second

// ReservationStore persists reservation rows.
type ReservationStore struct {
	db  *DB
	now func() time.Time
}

func NewReservationStore(db *DB) *ReservationStore {
	return &ReservationStore{db: db, now: time.Now}
}

func (s *ReservationStore) ListByDateCourt(ctx context.Context, date string, courtID int64) ([]models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.db.Queries.ListReservationsByDateCourt(ctx, date, courtID)
}

func (s *ReservationStore) ListByDate(ctx context.Context, date string) ([]models.Reservation, error) {
	return s.ListByDateCourt(ctx, date, 0)
}

func (s *ReservationStore) ListByCustomer(ctx context.Context, userID string) ([]models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.db.Queries.ListReservationsByUser(ctx, userID)
}

func (s *ReservationStore) ListGroup(ctx context.Context, groupID string) ([]models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.db.Queries.ListReservationsByGroup(ctx, groupID)
}

func (s *ReservationStore) Get(ctx context.Context, id int64) (models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	row, err := s.db.Queries.GetReservation(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reservation{}, models.ErrNotFound
	}
	return row, err
}

// Create inserts all rows in one transaction. Each slot is re-checked inside
// the transaction with the same occupancy rule the availability engine uses;
// the requester's own stale pending holds on those slots are cancelled along
// with the rest of the bookings they belong to.
func (s *ReservationStore) Create(ctx context.Context, rows []models.Reservation) ([]models.Reservation, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := s.now().UTC()
	var created []models.Reservation
	err := s.db.RunInTx(ctx, func(tx *DB) error {
		created = created[:0]
		for _, row := range rows {
			holders, err := tx.Queries.ListSlotHolders(ctx, row.CourtID, row.Date, row.SlotTime)
			if err != nil {
				return fmt.Errorf("check slot %s: %w", row.SlotTime, err)
			}
			for _, holder := range holders {
				if reservations.BlocksRequester(holder, row.UserID) {
					return models.ErrSlotTaken
				}
			}
			if row.UserID != "" {
				if _, err := tx.Queries.SupersedePending(ctx, row.CourtID, row.Date, row.SlotTime, row.UserID, now); err != nil {
					return fmt.Errorf("supersede pending: %w", err)
				}
			}
		}

		for _, row := range rows {
			id, err := tx.Queries.InsertReservation(ctx, row, now)
			if err != nil {
				if isUniqueViolation(err) {
					return models.ErrSlotTaken
				}
				return fmt.Errorf("insert reservation: %w", err)
			}
			inserted, err := tx.Queries.GetReservation(ctx, id)
			if err != nil {
				return fmt.Errorf("reload reservation %d: %w", id, err)
			}
			created = append(created, inserted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *ReservationStore) SetStatus(ctx context.Context, ids []int64, from []models.ReservationStatus, to models.ReservationStatus, reason string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var changed int64
	err := s.db.RunInTx(ctx, func(tx *DB) error {
		var err error
		changed, err = tx.Queries.UpdateReservationStatus(ctx, ids, from, to, reason, s.now().UTC())
		if isUniqueViolation(err) {
			return models.ErrSlotTaken
		}
		return err
	})
	return changed, err
}

func (s *ReservationStore) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	n, err := s.db.Queries.DeleteReservation(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// PurgeCancelledBefore hard-deletes cancelled rows dated before date.
func (s *ReservationStore) PurgeCancelledBefore(ctx context.Context, date time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.db.Queries.PurgeCancelledBefore(ctx, models.FormatDate(date))
}

// BlockStore persists ad-hoc closures.
type BlockStore struct {
	db  *DB
	now func() time.Time
}

func NewBlockStore(db *DB) *BlockStore {
	return &BlockStore{db: db, now: time.Now}
}

// ListForDate returns blocks covering date that apply to courtID or to every
// court. courtID 0 returns blocks for all courts.
func (s *BlockStore) ListForDate(ctx context.Context, date string, courtID int64) ([]models.AdHocBlock, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.db.Queries.ListAdHocBlocksForDate(ctx, date, courtID)
}

func (s *BlockStore) ListFrom(ctx context.Context, date string) ([]models.AdHocBlock, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.db.Queries.ListAdHocBlocksFrom(ctx, date)
}

func (s *BlockStore) Create(ctx context.Context, block models.AdHocBlock) (models.AdHocBlock, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	id, err := s.db.Queries.InsertAdHocBlock(ctx, block, s.now().UTC())
	if err != nil {
		return models.AdHocBlock{}, err
	}
	return s.db.Queries.GetAdHocBlock(ctx, id)
}

func (s *BlockStore) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	n, err := s.db.Queries.DeleteAdHocBlock(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RecurringBlockStore persists weekly closures.
type RecurringBlockStore struct {
	db  *DB
	now func() time.Time
}

func NewRecurringBlockStore(db *DB) *RecurringBlockStore {
	return &RecurringBlockStore{db: db, now: time.Now}
}

func (s *RecurringBlockStore) ListRecurring(ctx context.Context) ([]models.RecurringBlock, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.db.Queries.ListRecurringBlocks(ctx)
}

func (s *RecurringBlockStore) Create(ctx context.Context, block models.RecurringBlock) (models.RecurringBlock, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	id, err := s.db.Queries.InsertRecurringBlock(ctx, block, s.now().UTC())
	if err != nil {
		return models.RecurringBlock{}, err
	}
	return s.db.Queries.GetRecurringBlock(ctx, id)
}

func (s *RecurringBlockStore) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	n, err := s.db.Queries.DeleteRecurringBlock(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClubConfigStore holds the operating hours override edited from the admin panel.
type ClubConfigStore struct {
	db  *DB
	now func() time.Time
}

func NewClubConfigStore(db *DB) *ClubConfigStore {
	return &ClubConfigStore{db: db, now: time.Now}
}

func (s *ClubConfigStore) GetSchedule(ctx context.Context) (models.ClubSchedule, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	cfg, err := s.db.Queries.GetClubConfig(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ClubSchedule{}, false, nil
	}
	if err != nil {
		return models.ClubSchedule{}, false, err
	}
	return cfg, true, nil
}

func (s *ClubConfigStore) PutSchedule(ctx context.Context, cfg models.ClubSchedule) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.db.Queries.UpsertClubConfig(ctx, cfg, s.now().UTC())
}
