// Package schedule turns a club's operating hours into an ordered list of
// bookable slots. Schedules whose closing time is at or before the opening
// time run past midnight into the next calendar day.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

var (
	fallbackOpen  = Slot(14 * 60)
	fallbackClose = Slot(0)
)

const fallbackSlotMinutes = 60

// ConfigError reports malformed or missing operating hours.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("schedule config: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("schedule config: %s %q %s", e.Field, e.Value, e.Reason)
}

// Clock is injected wherever "now" matters.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Slot is the start of a bookable unit, in minutes since midnight.
type Slot int

func (s Slot) Minutes() int { return int(s) }

func (s Slot) Label() string {
	return fmt.Sprintf("%02d:%02d", int(s)/60, int(s)%60)
}

func (s Slot) String() string { return s.Label() }

func (s Slot) MarshalText() ([]byte, error) {
	return []byte(s.Label()), nil
}

func (s *Slot) UnmarshalText(text []byte) error {
	parsed, err := ParseSlot(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSlot parses a slot label such as "20:00" or a TIME column value "20:00:00".
func ParseSlot(raw string) (Slot, error) {
	minutes, err := ParseTimeOfDay(raw)
	if err != nil {
		return 0, err
	}
	return Slot(minutes), nil
}

// ParseTimeOfDay returns minutes since midnight.
func ParseTimeOfDay(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("time is required")
	}
	for _, layout := range []string{"15:04", "15:04:05"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.Hour()*60 + parsed.Minute(), nil
		}
	}
	upper := strings.ToUpper(raw)
	for _, layout := range []string{"3:04 PM", "03:04 PM", "3:04PM", "03:04PM"} {
		if parsed, err := time.Parse(layout, upper); err == nil {
			return parsed.Hour()*60 + parsed.Minute(), nil
		}
	}
	return 0, errors.New("time must be in HH:MM or H:MM AM/PM format")
}

// Schedule is a club's daily operating window.
type Schedule struct {
	Open        Slot
	Close       Slot
	SlotMinutes int
}

// New validates raw operating hours. Any failure is a ConfigError.
func New(openTime, closeTime string, slotMinutes int) (Schedule, error) {
	open, err := ParseTimeOfDay(openTime)
	if err != nil {
		return Schedule{}, ConfigError{Field: "open_time", Value: openTime, Reason: err.Error()}
	}
	closing, err := ParseTimeOfDay(closeTime)
	if err != nil {
		return Schedule{}, ConfigError{Field: "close_time", Value: closeTime, Reason: err.Error()}
	}
	if slotMinutes <= 0 || slotMinutes > minutesPerDay {
		return Schedule{}, ConfigError{Field: "slot_minutes", Value: fmt.Sprint(slotMinutes), Reason: "must be between 1 and 1440"}
	}
	return Schedule{Open: Slot(open), Close: Slot(closing), SlotMinutes: slotMinutes}, nil
}

// FallbackSchedule is served when the configured hours cannot be loaded.
func FallbackSchedule() Schedule {
	return Schedule{Open: fallbackOpen, Close: fallbackClose, SlotMinutes: fallbackSlotMinutes}
}

// FallbackSlots is the static 14:00..23:00 hourly list.
func FallbackSlots() []Slot {
	return Generate(FallbackSchedule())
}

// Resolve builds a schedule and its slots. On a ConfigError it returns the
// fallback schedule and slots together with the error.
func Resolve(openTime, closeTime string, slotMinutes int) (Schedule, []Slot, error) {
	s, err := New(openTime, closeTime, slotMinutes)
	if err != nil {
		return FallbackSchedule(), FallbackSlots(), err
	}
	slots := Generate(s)
	if len(slots) == 0 {
		return FallbackSchedule(), FallbackSlots(), ConfigError{Field: "slot_minutes", Value: fmt.Sprint(slotMinutes), Reason: "produces no slots"}
	}
	return s, slots, nil
}

func (s Schedule) CrossesMidnight() bool {
	return s.Close <= s.Open
}

func (s Schedule) closingMinutes() int {
	if s.CrossesMidnight() {
		return int(s.Close) + minutesPerDay
	}
	return int(s.Close)
}

func (s Schedule) String() string {
	return fmt.Sprintf("%s-%s/%dm", s.Open, s.Close, s.SlotMinutes)
}

// Generate emits one slot every SlotMinutes from open up to, not including, close.
func Generate(s Schedule) []Slot {
	if s.SlotMinutes <= 0 {
		return nil
	}
	end := s.closingMinutes()
	slots := make([]Slot, 0, (end-int(s.Open))/s.SlotMinutes+1)
	for t := int(s.Open); t < end; t += s.SlotMinutes {
		slots = append(slots, Slot(t%minutesPerDay))
	}
	return slots
}

// SortKey orders the early-morning continuation of a midnight-crossing
// schedule after the late-night slots of the same operating day.
func SortKey(slot Slot, s Schedule) int {
	if s.CrossesMidnight() && slot < s.Open {
		return int(slot) + minutesPerDay
	}
	return int(slot)
}

// Sort orders slots in place by SortKey.
func Sort(slots []Slot, s Schedule) {
	sort.SliceStable(slots, func(i, j int) bool {
		return SortKey(slots[i], s) < SortKey(slots[j], s)
	})
}

// Next returns the slot that starts one duration after slot, wrapping at midnight.
func Next(slot Slot, s Schedule) Slot {
	return Slot((int(slot) + s.SlotMinutes) % minutesPerDay)
}

// IsPast reports whether the slot on date has already started relative to now.
// Early-morning slots of a midnight-crossing schedule belong to the night that
// started on date, so their instant falls on the following calendar day.
func IsPast(date time.Time, slot Slot, s Schedule, now time.Time) bool {
	loc := date.Location()
	day := truncateDate(date)
	today := truncateDate(now.In(loc))

	if day.Before(today) {
		return true
	}
	if day.After(today) {
		return false
	}

	instant := time.Date(day.Year(), day.Month(), day.Day(), 0, slot.Minutes(), 0, 0, loc)
	if s.CrossesMidnight() && slot < s.Open {
		instant = instant.AddDate(0, 0, 1)
	}
	return instant.Before(now)
}

func truncateDate(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}
