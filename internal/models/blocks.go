// internal/models/blocks.go
package models

import "time"

const (
	BlockReasonTournament = "tournament"
	BlockReasonClosure    = "closure"
	BlockReasonOther      = "other"
)

// AdHocBlock closes a date range. Nil CourtID applies to every court; nil
// TimeFrom and TimeTo close the whole day.
type AdHocBlock struct {
	ID         int64     `json:"id"`
	CourtID    *int64    `json:"courtId"`
	DateFrom   string    `json:"dateFrom"`
	DateTo     string    `json:"dateTo"`
	TimeFrom   *string   `json:"timeFrom"`
	TimeTo     *string   `json:"timeTo"`
	ReasonType string    `json:"reasonType"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RecurringBlock closes a time range on the given ISO weekdays (Monday=1, Sunday=7).
type RecurringBlock struct {
	ID        int64     `json:"id"`
	CourtID   *int64    `json:"courtId"`
	Weekdays  []int     `json:"weekdays"`
	TimeFrom  string    `json:"timeFrom"`
	TimeTo    string    `json:"timeTo"`
	Label     string    `json:"label"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}
