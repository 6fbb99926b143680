// internal/models/reservations.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date encoding used in storage and on the wire.
const DateLayout = "2006-01-02"

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
)

// ParseReservationStatus accepts the canonical names plus the legacy Spanish
// values still present in older exports.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "pendiente":
		return StatusPending, nil
	case "confirmed", "confirmada":
		return StatusConfirmed, nil
	case "cancelled", "canceled", "cancelada":
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("unknown reservation status %q", raw)
	}
}

type Court struct {
	ID    int64  `json:"id" yaml:"id" validate:"gt=0"`
	Label string `json:"label" yaml:"label" validate:"required"`
}

// Reservation is one slot of occupancy on one court. Multi-slot bookings are
// several rows sharing a GroupID.
type Reservation struct {
	ID           int64             `json:"id"`
	CourtID      int64             `json:"courtId"`
	Date         string            `json:"date"`
	SlotTime     string            `json:"slotTime"`
	ClientName   string            `json:"clientName"`
	ClientPhone  string            `json:"clientPhone"`
	Status       ReservationStatus `json:"status"`
	GroupID      string            `json:"groupId,omitempty"`
	UserID       string            `json:"userId,omitempty"`
	CancelReason string            `json:"cancelReason,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// GroupKey identifies the logical booking the row belongs to.
func (r Reservation) GroupKey() string {
	if r.GroupID != "" {
		return r.GroupID
	}
	return fmt.Sprintf("reservation-%d", r.ID)
}

type ClubSchedule struct {
	OpenTime    string `json:"openTime"`
	CloseTime   string `json:"closeTime"`
	SlotMinutes int    `json:"slotMinutes"`
}

// ParseDate parses a YYYY-MM-DD value as midnight in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if loc == nil {
		loc = time.Local
	}
	// Accept full timestamps from drivers that return DATE columns as datetimes.
	if len(raw) > len(DateLayout) {
		raw = raw[:len(DateLayout)]
	}
	parsed, err := time.ParseInLocation(DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be in YYYY-MM-DD format")
	}
	return parsed, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
