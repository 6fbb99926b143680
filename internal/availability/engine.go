package availability

import (
	"errors"
	"fmt"

	"github.com/codr1/courtbook/internal/blocks"
	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/reservations"
	"github.com/codr1/courtbook/internal/schedule"
)

var ErrWindowOutOfRange = errors.New("requested window does not fit in the schedule")

type Cause string

const (
	CauseReserved Cause = "reserved"
	CauseBlocked  Cause = "blocked"
	CausePast     Cause = "past"
)

// UnavailableError names the first slot of a window that cannot be booked.
type UnavailableError struct {
	Slot   schedule.Slot
	Cause  Cause
	Detail string
}

func (e *UnavailableError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("slot %s is %s (%s)", e.Slot.Label(), e.Cause, e.Detail)
	}
	return fmt.Sprintf("slot %s is %s", e.Slot.Label(), e.Cause)
}

// Engine evaluates a snapshot. It never fetches; the clock is read on every call.
type Engine struct {
	snap     *Snapshot
	clock    schedule.Clock
	index    *reservations.Index
	resolver *blocks.Resolver

	skippedRows   []models.Reservation
	skippedBlocks []error
}

func NewEngine(snap *Snapshot, clock schedule.Clock) *Engine {
	if clock == nil {
		clock = schedule.SystemClock{}
	}
	index, skippedRows := reservations.NewIndex(snap.Reservations)
	resolver, skippedBlocks := blocks.NewResolver(snap.AdHoc, snap.Recurring, snap.Date.Location())
	return &Engine{
		snap:          snap,
		clock:         clock,
		index:         index,
		resolver:      resolver,
		skippedRows:   skippedRows,
		skippedBlocks: skippedBlocks,
	}
}

func (e *Engine) Snapshot() *Snapshot { return e.snap }

// Warnings lists data problems found while indexing the snapshot.
func (e *Engine) Warnings() []string {
	var out []string
	if e.snap.ScheduleErr != nil {
		out = append(out, e.snap.ScheduleErr.Error())
	}
	for _, row := range e.skippedRows {
		out = append(out, fmt.Sprintf("reservation %d has unreadable slot time %q", row.ID, row.SlotTime))
	}
	for _, err := range e.skippedBlocks {
		out = append(out, err.Error())
	}
	return out
}

func (e *Engine) IsAvailable(court int64, slot schedule.Slot, requesterID string) bool {
	return e.unavailable(court, slot, requesterID) == nil
}

func (e *Engine) unavailable(court int64, slot schedule.Slot, requesterID string) *UnavailableError {
	if schedule.IsPast(e.snap.Date, slot, e.snap.Schedule, e.clock.Now()) {
		return &UnavailableError{Slot: slot, Cause: CausePast}
	}
	if reason, ok := e.resolver.Reason(court, e.snap.Date, slot); ok {
		return &UnavailableError{Slot: slot, Cause: CauseBlocked, Detail: reason.Label}
	}
	if e.index.IsReserved(court, e.snap.Date, slot, requesterID) {
		return &UnavailableError{Slot: slot, Cause: CauseReserved}
	}
	return nil
}

// ValidateWindow checks that duration consecutive slots starting at start are
// all available to requesterID and returns them.
func (e *Engine) ValidateWindow(court int64, start schedule.Slot, duration int, requesterID string) ([]schedule.Slot, error) {
	window := reservations.FindContiguousWindow(start, duration, e.snap.Slots)
	if window == nil {
		return nil, ErrWindowOutOfRange
	}
	for _, slot := range window {
		if err := e.unavailable(court, slot, requesterID); err != nil {
			return nil, err
		}
	}
	return window, nil
}

type SlotState string

const (
	StateFree      SlotState = "free"
	StateReserved  SlotState = "reserved"
	StatePending   SlotState = "pending"
	StateConfirmed SlotState = "confirmed"
	StateBlocked   SlotState = "blocked"
	StatePast      SlotState = "past"
)

type SlotStatus struct {
	Slot      schedule.Slot `json:"slot"`
	Available bool          `json:"available"`
	State     SlotState     `json:"state"`
	Label     string        `json:"label,omitempty"`
}

// Day lists every slot of the snapshot date for one court, in schedule order.
func (e *Engine) Day(court int64, requesterID string) []SlotStatus {
	out := make([]SlotStatus, 0, len(e.snap.Slots))
	for _, slot := range e.snap.Slots {
		status := SlotStatus{Slot: slot, Available: true, State: StateFree}
		if err := e.unavailable(court, slot, requesterID); err != nil {
			status.Available = false
			status.Label = err.Detail
			switch err.Cause {
			case CausePast:
				status.State = StatePast
			case CauseBlocked:
				status.State = StateBlocked
			default:
				status.State = StateReserved
			}
		}
		out = append(out, status)
	}
	return out
}

type Cell struct {
	CourtID       int64     `json:"courtId"`
	State         SlotState `json:"state"`
	Label         string    `json:"label,omitempty"`
	BlockKind     string    `json:"blockKind,omitempty"`
	ReservationID int64     `json:"reservationId,omitempty"`
	GroupID       string    `json:"groupId,omitempty"`
	ClientName    string    `json:"clientName,omitempty"`
	ClientPhone   string    `json:"clientPhone,omitempty"`
}

type GridRow struct {
	Slot  schedule.Slot `json:"slot"`
	Cells []Cell        `json:"cells"`
}

type Grid struct {
	Date    string          `json:"date"`
	Courts  []models.Court  `json:"courts"`
	Rows    []GridRow       `json:"rows"`
	Summary Summary         `json:"summary"`
	Slots   []schedule.Slot `json:"slots"`
}

// Calendar builds the admin grid. A live reservation wins over a closure so
// that bookings made before the closure stay visible.
func (e *Engine) Calendar(courts []models.Court) Grid {
	now := e.clock.Now()
	grid := Grid{
		Date:    models.FormatDate(e.snap.Date),
		Courts:  courts,
		Rows:    make([]GridRow, 0, len(e.snap.Slots)),
		Summary: e.Summary(),
		Slots:   e.snap.Slots,
	}
	for _, slot := range e.snap.Slots {
		row := GridRow{Slot: slot, Cells: make([]Cell, 0, len(courts))}
		past := schedule.IsPast(e.snap.Date, slot, e.snap.Schedule, now)
		for _, court := range courts {
			row.Cells = append(row.Cells, e.cell(court.ID, slot, past))
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid
}

func (e *Engine) cell(court int64, slot schedule.Slot, past bool) Cell {
	cell := Cell{CourtID: court, State: StateFree}
	if occupant, ok := e.index.Occupant(court, e.snap.Date, slot); ok {
		cell.State = StatePending
		if occupant.Status == models.StatusConfirmed {
			cell.State = StateConfirmed
		}
		cell.ReservationID = occupant.ID
		cell.GroupID = occupant.GroupID
		cell.ClientName = occupant.ClientName
		cell.ClientPhone = occupant.ClientPhone
		return cell
	}
	if reason, ok := e.resolver.Reason(court, e.snap.Date, slot); ok {
		cell.State = StateBlocked
		cell.Label = reason.Label
		cell.BlockKind = string(reason.Kind)
		return cell
	}
	if past {
		cell.State = StatePast
	}
	return cell
}

type Summary struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Cancelled int `json:"cancelled"`
}

// Summary counts the snapshot's reservation rows by status.
func (e *Engine) Summary() Summary {
	var s Summary
	for _, row := range e.snap.Reservations {
		s.Total++
		switch row.Status {
		case models.StatusPending:
			s.Pending++
			s.Active++
		case models.StatusConfirmed:
			s.Confirmed++
			s.Active++
		case models.StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}
