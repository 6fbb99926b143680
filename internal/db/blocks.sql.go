package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codr1/courtbook/internal/blocks"
	"github.com/codr1/courtbook/internal/models"
)

const adHocColumns = `id, court_id, date_from, date_to, time_from, time_to, reason_type, reason, created_at`

func scanAdHocBlock(row rowScanner) (models.AdHocBlock, error) {
	var (
		b                models.AdHocBlock
		courtID          sql.NullInt64
		timeFrom, timeTo sql.NullString
	)
	err := row.Scan(&b.ID, &courtID, &b.DateFrom, &b.DateTo, &timeFrom, &timeTo, &b.ReasonType, &b.Reason, &b.CreatedAt)
	if err != nil {
		return models.AdHocBlock{}, err
	}
	b.CourtID = ptrFromNullInt64(courtID)
	b.TimeFrom = ptrFromNullString(timeFrom)
	b.TimeTo = ptrFromNullString(timeTo)
	return b, nil
}

func (q *Queries) queryAdHocBlocks(ctx context.Context, query string, args ...interface{}) ([]models.AdHocBlock, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.AdHocBlock
	for rows.Next() {
		b, err := scanAdHocBlock(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listAdHocBlocksForDate = `SELECT ` + adHocColumns + `
FROM adhoc_blocks
WHERE date_from <= ? AND date_to >= ?
	AND (court_id IS NULL OR ? = 0 OR court_id = ?)
ORDER BY id`

func (q *Queries) ListAdHocBlocksForDate(ctx context.Context, date string, courtID int64) ([]models.AdHocBlock, error) {
	return q.queryAdHocBlocks(ctx, listAdHocBlocksForDate, date, date, courtID, courtID)
}

const listAdHocBlocksFrom = `SELECT ` + adHocColumns + `
FROM adhoc_blocks
WHERE date_to >= ?
ORDER BY date_from, id`

// ListAdHocBlocksFrom returns blocks that have not ended before date.
func (q *Queries) ListAdHocBlocksFrom(ctx context.Context, date string) ([]models.AdHocBlock, error) {
	return q.queryAdHocBlocks(ctx, listAdHocBlocksFrom, date)
}

const insertAdHocBlock = `INSERT INTO adhoc_blocks (
	court_id, date_from, date_to, time_from, time_to, reason_type, reason, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertAdHocBlock(ctx context.Context, b models.AdHocBlock, now time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertAdHocBlock,
		nullInt64Ptr(b.CourtID),
		b.DateFrom,
		b.DateTo,
		nullStringPtr(b.TimeFrom),
		nullStringPtr(b.TimeTo),
		b.ReasonType,
		b.Reason,
		now,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const getAdHocBlock = `SELECT ` + adHocColumns + ` FROM adhoc_blocks WHERE id = ?`

func (q *Queries) GetAdHocBlock(ctx context.Context, id int64) (models.AdHocBlock, error) {
	return scanAdHocBlock(q.db.QueryRowContext(ctx, getAdHocBlock, id))
}

const deleteAdHocBlock = `DELETE FROM adhoc_blocks WHERE id = ?`

func (q *Queries) DeleteAdHocBlock(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAdHocBlock, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const recurringColumns = `id, court_id, weekdays, time_from, time_to, label, active, created_at`

func scanRecurringBlock(row rowScanner) (models.RecurringBlock, error) {
	var (
		b        models.RecurringBlock
		courtID  sql.NullInt64
		weekdays string
	)
	err := row.Scan(&b.ID, &courtID, &weekdays, &b.TimeFrom, &b.TimeTo, &b.Label, &b.Active, &b.CreatedAt)
	if err != nil {
		return models.RecurringBlock{}, err
	}
	days, err := blocks.ParseWeekdays(weekdays)
	if err != nil {
		return models.RecurringBlock{}, fmt.Errorf("recurring block %d: %w", b.ID, err)
	}
	b.CourtID = ptrFromNullInt64(courtID)
	b.Weekdays = days
	return b, nil
}

const listRecurringBlocks = `SELECT ` + recurringColumns + ` FROM recurring_blocks ORDER BY id`

func (q *Queries) ListRecurringBlocks(ctx context.Context) ([]models.RecurringBlock, error) {
	rows, err := q.db.QueryContext(ctx, listRecurringBlocks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.RecurringBlock
	for rows.Next() {
		b, err := scanRecurringBlock(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertRecurringBlock = `INSERT INTO recurring_blocks (
	court_id, weekdays, time_from, time_to, label, active, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertRecurringBlock(ctx context.Context, b models.RecurringBlock, now time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertRecurringBlock,
		nullInt64Ptr(b.CourtID),
		blocks.FormatWeekdays(b.Weekdays),
		b.TimeFrom,
		b.TimeTo,
		b.Label,
		b.Active,
		now,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const getRecurringBlock = `SELECT ` + recurringColumns + ` FROM recurring_blocks WHERE id = ?`

func (q *Queries) GetRecurringBlock(ctx context.Context, id int64) (models.RecurringBlock, error) {
	return scanRecurringBlock(q.db.QueryRowContext(ctx, getRecurringBlock, id))
}

const deleteRecurringBlock = `DELETE FROM recurring_blocks WHERE id = ?`

func (q *Queries) DeleteRecurringBlock(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteRecurringBlock, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getClubConfig = `SELECT open_time, close_time, slot_minutes FROM club_config WHERE id = 1`

func (q *Queries) GetClubConfig(ctx context.Context) (models.ClubSchedule, error) {
	var s models.ClubSchedule
	err := q.db.QueryRowContext(ctx, getClubConfig).Scan(&s.OpenTime, &s.CloseTime, &s.SlotMinutes)
	return s, err
}

const upsertClubConfig = `INSERT INTO club_config (id, open_time, close_time, slot_minutes, updated_at)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	open_time = excluded.open_time,
	close_time = excluded.close_time,
	slot_minutes = excluded.slot_minutes,
	updated_at = excluded.updated_at`

func (q *Queries) UpsertClubConfig(ctx context.Context, s models.ClubSchedule, now time.Time) error {
	_, err := q.db.ExecContext(ctx, upsertClubConfig, s.OpenTime, s.CloseTime, s.SlotMinutes, now)
	return err
}
