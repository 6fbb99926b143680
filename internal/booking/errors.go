package booking

import (
	"errors"
	"fmt"

	"github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/schedule"
)

var (
	ErrNotFound          = models.ErrNotFound
	ErrInvalidTransition = errors.New("invalid reservation status transition")
)

// TransportError is a failed read or write against storage.
type TransportError = availability.TransportError

// ValidationError rejects a request before anything is fetched or written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// SlotConflictError means the store refused the insert because another
// booking took one of the slots first. Fresh holds the reloaded snapshot, or
// nil when the reload itself failed.
type SlotConflictError struct {
	CourtID int64
	Date    string
	Slots   []schedule.Slot
	Fresh   *availability.Snapshot
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot already booked on court %d for %s", e.CourtID, e.Date)
}

func (e *SlotConflictError) Is(target error) bool {
	return target == models.ErrSlotTaken
}
