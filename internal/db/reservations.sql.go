package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/codr1/courtbook/internal/models"
)

const reservationColumns = `id, court_id, date, slot_time, client_name, client_phone, status,
	group_id, user_id, cancel_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (models.Reservation, error) {
	var (
		r                             models.Reservation
		status                        string
		groupID, userID, cancelReason sql.NullString
	)
	err := row.Scan(
		&r.ID,
		&r.CourtID,
		&r.Date,
		&r.SlotTime,
		&r.ClientName,
		&r.ClientPhone,
		&status,
		&groupID,
		&userID,
		&cancelReason,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return models.Reservation{}, err
	}
	r.Status = models.ReservationStatus(status)
	r.GroupID = groupID.String
	r.UserID = userID.String
	r.CancelReason = cancelReason.String
	return r, nil
}

func (q *Queries) queryReservations(ctx context.Context, query string, args ...interface{}) ([]models.Reservation, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getReservation = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`

func (q *Queries) GetReservation(ctx context.Context, id int64) (models.Reservation, error) {
	return scanReservation(q.db.QueryRowContext(ctx, getReservation, id))
}

const listReservationsByDateCourt = `SELECT ` + reservationColumns + `
FROM reservations
WHERE date = ? AND (? = 0 OR court_id = ?)
ORDER BY court_id, slot_time, id`

func (q *Queries) ListReservationsByDateCourt(ctx context.Context, date string, courtID int64) ([]models.Reservation, error) {
	return q.queryReservations(ctx, listReservationsByDateCourt, date, courtID, courtID)
}

const listReservationsByGroup = `SELECT ` + reservationColumns + `
FROM reservations
WHERE group_id = ?
ORDER BY slot_time, id`

func (q *Queries) ListReservationsByGroup(ctx context.Context, groupID string) ([]models.Reservation, error) {
	return q.queryReservations(ctx, listReservationsByGroup, groupID)
}

const listReservationsByUser = `SELECT ` + reservationColumns + `
FROM reservations
WHERE user_id = ?
ORDER BY date DESC, slot_time, id`

func (q *Queries) ListReservationsByUser(ctx context.Context, userID string) ([]models.Reservation, error) {
	return q.queryReservations(ctx, listReservationsByUser, userID)
}

const listSlotHolders = `SELECT ` + reservationColumns + `
FROM reservations
WHERE court_id = ? AND date = ? AND slot_time = ? AND status != 'cancelled'`

func (q *Queries) ListSlotHolders(ctx context.Context, courtID int64, date, slotTime string) ([]models.Reservation, error) {
	return q.queryReservations(ctx, listSlotHolders, courtID, date, slotTime)
}

const supersedePending = `UPDATE reservations
SET status = 'cancelled', cancel_reason = 'superseded', updated_at = ?
WHERE user_id = ? AND status = 'pending' AND (
	(court_id = ? AND date = ? AND slot_time = ?)
	OR group_id IN (
		SELECT group_id FROM reservations
		WHERE court_id = ? AND date = ? AND slot_time = ? AND user_id = ?
			AND status = 'pending' AND group_id IS NOT NULL
	)
)`

// SupersedePending cancels a customer's own earlier pending hold on a slot,
// together with every pending member of the booking that hold belongs to.
func (q *Queries) SupersedePending(ctx context.Context, courtID int64, date, slotTime, userID string, now time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, supersedePending,
		now, userID,
		courtID, date, slotTime,
		courtID, date, slotTime, userID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertReservation = `INSERT INTO reservations (
	court_id, date, slot_time, client_name, client_phone, status, group_id, user_id, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertReservation(ctx context.Context, r models.Reservation, now time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertReservation,
		r.CourtID,
		r.Date,
		r.SlotTime,
		r.ClientName,
		r.ClientPhone,
		string(r.Status),
		nullString(r.GroupID),
		nullString(r.UserID),
		now,
		now,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateReservationStatus moves the rows among ids whose current status is in
// from. The cancel reason is only written when moving to cancelled.
func (q *Queries) UpdateReservationStatus(ctx context.Context, ids []int64, from []models.ReservationStatus, to models.ReservationStatus, reason string, now time.Time) (int64, error) {
	if len(ids) == 0 || len(from) == 0 {
		return 0, nil
	}
	query := `UPDATE reservations
SET status = ?,
	cancel_reason = CASE WHEN ? = 'cancelled' THEN ? ELSE cancel_reason END,
	updated_at = ?
WHERE id IN (` + placeholders(len(ids)) + `) AND status IN (` + placeholders(len(from)) + `)`

	args := []interface{}{string(to), string(to), nullString(reason), now}
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, statusArgs(from)...)

	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteReservation = `DELETE FROM reservations WHERE id = ?`

func (q *Queries) DeleteReservation(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteReservation, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const purgeCancelledBefore = `DELETE FROM reservations WHERE status = 'cancelled' AND date < ?`

func (q *Queries) PurgeCancelledBefore(ctx context.Context, date string) (int64, error) {
	result, err := q.db.ExecContext(ctx, purgeCancelledBefore, date)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
