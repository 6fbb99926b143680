// Package reservations indexes fetched reservation rows by court, date and
// slot, and aggregates multi-slot bookings that share a group identifier.
package reservations

import (
	"time"

	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/schedule"
)

// BlocksRequester is the single occupancy rule: a confirmed row blocks
// everyone, a pending row blocks everyone except the customer who owns it,
// and a cancelled row blocks nobody. An empty requesterID never owns a row.
func BlocksRequester(row models.Reservation, requesterID string) bool {
	switch row.Status {
	case models.StatusConfirmed:
		return true
	case models.StatusPending:
		return row.UserID == "" || row.UserID != requesterID
	default:
		return false
	}
}

type slotKey struct {
	court int64
	date  string
	slot  schedule.Slot
}

// Index is a read-only view over one fetch of reservation rows.
type Index struct {
	rows map[slotKey][]models.Reservation
}

// NewIndex builds an index. Rows whose slot time cannot be parsed are skipped
// and returned so the caller can log them.
func NewIndex(rows []models.Reservation) (*Index, []models.Reservation) {
	ix := &Index{rows: make(map[slotKey][]models.Reservation, len(rows))}
	var skipped []models.Reservation
	for _, row := range rows {
		slot, err := schedule.ParseSlot(row.SlotTime)
		if err != nil {
			skipped = append(skipped, row)
			continue
		}
		key := slotKey{court: row.CourtID, date: dateKey(row.Date), slot: slot}
		ix.rows[key] = append(ix.rows[key], row)
	}
	return ix, skipped
}

// IsReserved reports whether any row on (court, date, slot) blocks requesterID.
func (ix *Index) IsReserved(court int64, date time.Time, slot schedule.Slot, requesterID string) bool {
	for _, row := range ix.Rows(court, date, slot) {
		if BlocksRequester(row, requesterID) {
			return true
		}
	}
	return false
}

func (ix *Index) Rows(court int64, date time.Time, slot schedule.Slot) []models.Reservation {
	if ix == nil {
		return nil
	}
	return ix.rows[slotKey{court: court, date: models.FormatDate(date), slot: slot}]
}

// Occupant returns the row that holds the slot: the confirmed row when there
// is one, otherwise the first pending row.
func (ix *Index) Occupant(court int64, date time.Time, slot schedule.Slot) (models.Reservation, bool) {
	var pending *models.Reservation
	rows := ix.Rows(court, date, slot)
	for i := range rows {
		switch rows[i].Status {
		case models.StatusConfirmed:
			return rows[i], true
		case models.StatusPending:
			if pending == nil {
				pending = &rows[i]
			}
		}
	}
	if pending != nil {
		return *pending, true
	}
	return models.Reservation{}, false
}

// IsReserved is the one-shot form of Index.IsReserved.
func IsReserved(court int64, date time.Time, slot schedule.Slot, rows []models.Reservation, requesterID string) bool {
	ix, _ := NewIndex(rows)
	return ix.IsReserved(court, date, slot, requesterID)
}

// FindContiguousWindow returns count consecutive slots of ordered starting at
// start, or nil when start is missing or the window runs past the last slot.
func FindContiguousWindow(start schedule.Slot, count int, ordered []schedule.Slot) []schedule.Slot {
	if count <= 0 {
		return nil
	}
	for i, slot := range ordered {
		if slot != start {
			continue
		}
		if i+count > len(ordered) {
			return nil
		}
		window := make([]schedule.Slot, count)
		copy(window, ordered[i:i+count])
		return window
	}
	return nil
}

func dateKey(raw string) string {
	if len(raw) > len(models.DateLayout) {
		return raw[:len(models.DateLayout)]
	}
	return raw
}
