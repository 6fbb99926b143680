// Package blocks evaluates administrator closures against a (court, date, slot)
// query. One-off date-range closures and weekly recurring closures are two
// Matcher variants behind a single Resolver.
package blocks

import (
	"time"

	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/schedule"
)

type Kind string

const (
	KindAdHoc     Kind = "adhoc"
	KindRecurring Kind = "recurring"
)

// Matcher is implemented by every block source.
type Matcher interface {
	Matches(court int64, date time.Time, slot schedule.Slot) bool
	Describe() Reason
}

// Reason identifies the block that closed a slot.
type Reason struct {
	Kind  Kind   `json:"kind"`
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// AdHoc is a compiled models.AdHocBlock.
type AdHoc struct {
	id         int64
	courtID    *int64
	from       time.Time
	to         time.Time
	wholeDay   bool
	startMin   int
	endMin     int
	reason     string
	reasonType string
}

// NewAdHoc compiles a stored block. Rows that fail to parse are reported so the
// caller can log and skip them; a half-specified time range never reaches here
// because ValidateAdHoc rejects it at creation.
func NewAdHoc(block models.AdHocBlock, loc *time.Location) (*AdHoc, error) {
	from, err := models.ParseDate(block.DateFrom, loc)
	if err != nil {
		return nil, ConfigError{Field: "date_from", Reason: err.Error()}
	}
	to, err := models.ParseDate(block.DateTo, loc)
	if err != nil {
		return nil, ConfigError{Field: "date_to", Reason: err.Error()}
	}

	compiled := &AdHoc{
		id:         block.ID,
		courtID:    block.CourtID,
		from:       from,
		to:         to,
		reason:     block.Reason,
		reasonType: block.ReasonType,
	}
	if block.TimeFrom == nil && block.TimeTo == nil {
		compiled.wholeDay = true
		return compiled, nil
	}
	if block.TimeFrom == nil || block.TimeTo == nil {
		return nil, ConfigError{Field: "time_range", Reason: errHalfRange}
	}
	if compiled.startMin, err = schedule.ParseTimeOfDay(*block.TimeFrom); err != nil {
		return nil, ConfigError{Field: "time_from", Reason: err.Error()}
	}
	if compiled.endMin, err = schedule.ParseTimeOfDay(*block.TimeTo); err != nil {
		return nil, ConfigError{Field: "time_to", Reason: err.Error()}
	}
	return compiled, nil
}

func (b *AdHoc) Matches(court int64, date time.Time, slot schedule.Slot) bool {
	if !courtApplies(b.courtID, court) {
		return false
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, b.from.Location())
	if day.Before(b.from) || day.After(b.to) {
		return false
	}
	if b.wholeDay {
		return true
	}
	return inRange(slot, b.startMin, b.endMin)
}

func (b *AdHoc) Describe() Reason {
	label := b.reason
	if label == "" {
		label = b.reasonType
	}
	return Reason{Kind: KindAdHoc, ID: b.id, Label: label}
}

// Recurring is a compiled models.RecurringBlock.
type Recurring struct {
	id       int64
	courtID  *int64
	weekdays map[int]struct{}
	startMin int
	endMin   int
	label    string
}

func NewRecurring(block models.RecurringBlock) (*Recurring, error) {
	startMin, err := schedule.ParseTimeOfDay(block.TimeFrom)
	if err != nil {
		return nil, ConfigError{Field: "time_from", Reason: err.Error()}
	}
	endMin, err := schedule.ParseTimeOfDay(block.TimeTo)
	if err != nil {
		return nil, ConfigError{Field: "time_to", Reason: err.Error()}
	}
	days := make(map[int]struct{}, len(block.Weekdays))
	for _, day := range block.Weekdays {
		days[day] = struct{}{}
	}
	return &Recurring{
		id:       block.ID,
		courtID:  block.CourtID,
		weekdays: days,
		startMin: startMin,
		endMin:   endMin,
		label:    block.Label,
	}, nil
}

func (b *Recurring) Matches(court int64, date time.Time, slot schedule.Slot) bool {
	if !courtApplies(b.courtID, court) {
		return false
	}
	if _, ok := b.weekdays[ISOWeekday(date)]; !ok {
		return false
	}
	return inRange(slot, b.startMin, b.endMin)
}

func (b *Recurring) Describe() Reason {
	return Reason{Kind: KindRecurring, ID: b.id, Label: b.label}
}

// Resolver answers block queries for one fetch cycle of block data.
type Resolver struct {
	matchers []Matcher
}

// NewResolver compiles both block lists. Inactive recurring blocks are dropped.
// Rows that cannot be compiled are returned in skipped and left out.
func NewResolver(adHoc []models.AdHocBlock, recurring []models.RecurringBlock, loc *time.Location) (*Resolver, []error) {
	var skipped []error
	matchers := make([]Matcher, 0, len(adHoc)+len(recurring))
	for _, block := range adHoc {
		compiled, err := NewAdHoc(block, loc)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		matchers = append(matchers, compiled)
	}
	for _, block := range recurring {
		if !block.Active {
			continue
		}
		compiled, err := NewRecurring(block)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		matchers = append(matchers, compiled)
	}
	return &Resolver{matchers: matchers}, skipped
}

// NewResolverFromMatchers wraps already compiled matchers.
func NewResolverFromMatchers(matchers ...Matcher) *Resolver {
	return &Resolver{matchers: matchers}
}

func (r *Resolver) IsBlocked(court int64, date time.Time, slot schedule.Slot) bool {
	_, ok := r.Reason(court, date, slot)
	return ok
}

// Reason returns the first block closing the slot.
func (r *Resolver) Reason(court int64, date time.Time, slot schedule.Slot) (Reason, bool) {
	if r == nil {
		return Reason{}, false
	}
	for _, m := range r.matchers {
		if m.Matches(court, date, slot) {
			return m.Describe(), true
		}
	}
	return Reason{}, false
}

// ISOWeekday maps Sunday to 7 and keeps Monday..Saturday as 1..6.
func ISOWeekday(date time.Time) int {
	if date.Weekday() == time.Sunday {
		return 7
	}
	return int(date.Weekday())
}

func courtApplies(blockCourt *int64, court int64) bool {
	return blockCourt == nil || *blockCourt == court
}

func inRange(slot schedule.Slot, startMin, endMin int) bool {
	return slot.Minutes() >= startMin && slot.Minutes() < endMin
}
