package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, slot := range slots {
		out[i] = slot.Label()
	}
	return out
}

func mustSchedule(t *testing.T, open, close string, minutes int) Schedule {
	t.Helper()
	s, err := New(open, close, minutes)
	require.NoError(t, err)
	return s
}

func mustSlot(t *testing.T, raw string) Slot {
	t.Helper()
	slot, err := ParseSlot(raw)
	require.NoError(t, err)
	return slot
}

func TestGenerate_CrossesMidnight(t *testing.T) {
	s := mustSchedule(t, "14:00", "02:00", 60)

	require.True(t, s.CrossesMidnight())
	slots := Generate(s)
	require.Len(t, slots, 12)
	assert.Equal(t, []string{"23:00", "00:00", "01:00"}, labels(slots[9:]))
	assert.Equal(t, "14:00", slots[0].Label())

	midnight := SortKey(mustSlot(t, "00:00"), s)
	late := SortKey(mustSlot(t, "23:00"), s)
	opening := SortKey(mustSlot(t, "14:00"), s)
	assert.Greater(t, midnight, late)
	assert.Greater(t, late, opening)
}

func TestGenerate_SameDay(t *testing.T) {
	s := mustSchedule(t, "08:00", "20:00", 60)

	require.False(t, s.CrossesMidnight())
	slots := Generate(s)
	require.Len(t, slots, 12)
	assert.Equal(t, "19:00", slots[len(slots)-1].Label())

	for _, slot := range slots {
		assert.Equal(t, slot.Minutes(), SortKey(slot, s), "slot %s", slot)
	}
}

func TestGenerate_HalfHourSlots(t *testing.T) {
	s := mustSchedule(t, "22:00", "00:00", 30)

	assert.Equal(t, []string{"22:00", "22:30", "23:00", "23:30"}, labels(Generate(s)))
}

func TestGenerate_OpenEqualsCloseRunsAllDay(t *testing.T) {
	s := mustSchedule(t, "06:00", "06:00", 120)

	slots := Generate(s)
	require.Len(t, slots, 12)
	assert.Equal(t, "04:00", slots[len(slots)-1].Label())
}

func TestNew_ConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		open    string
		close   string
		minutes int
		field   string
	}{
		{name: "empty_open", open: "", close: "22:00", minutes: 60, field: "open_time"},
		{name: "garbage_close", open: "08:00", close: "late", minutes: 60, field: "close_time"},
		{name: "zero_duration", open: "08:00", close: "22:00", minutes: 0, field: "slot_minutes"},
		{name: "negative_duration", open: "08:00", close: "22:00", minutes: -30, field: "slot_minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.open, tt.close, tt.minutes)
			var cfgErr ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestResolve_FallsBackOnConfigError(t *testing.T) {
	s, slots, err := Resolve("nope", "02:00", 60)

	require.Error(t, err)
	assert.Equal(t, FallbackSchedule(), s)
	assert.Equal(t, []string{
		"14:00", "15:00", "16:00", "17:00", "18:00",
		"19:00", "20:00", "21:00", "22:00", "23:00",
	}, labels(slots))
}

func TestParseTimeOfDay_Formats(t *testing.T) {
	tests := map[string]int{
		"08:00":    480,
		"20:30:00": 1230,
		"7:15 pm":  1155,
		"07:15PM":  1155,
		" 00:00 ":  0,
	}
	for raw, want := range tests {
		got, err := ParseTimeOfDay(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestSort_OrdersByOperatingNight(t *testing.T) {
	s := mustSchedule(t, "14:00", "02:00", 60)
	slots := []Slot{mustSlot(t, "01:00"), mustSlot(t, "15:00"), mustSlot(t, "00:00"), mustSlot(t, "23:00")}

	Sort(slots, s)

	assert.Equal(t, []string{"15:00", "23:00", "00:00", "01:00"}, labels(slots))
}

func TestNext_WrapsAtMidnight(t *testing.T) {
	s := mustSchedule(t, "14:00", "02:00", 60)

	assert.Equal(t, "00:00", Next(mustSlot(t, "23:00"), s).Label())
	assert.Equal(t, "20:00", Next(mustSlot(t, "19:00"), s).Label())
}

func TestIsPast(t *testing.T) {
	loc := time.UTC
	today := time.Date(2026, 10, 15, 0, 0, 0, 0, loc)
	now := time.Date(2026, 10, 15, 23, 50, 0, 0, loc)
	night := mustSchedule(t, "14:00", "02:00", 60)
	day := mustSchedule(t, "08:00", "20:00", 60)

	tests := []struct {
		name     string
		date     time.Time
		slot     string
		schedule Schedule
		now      time.Time
		want     bool
	}{
		{name: "yesterday", date: today.AddDate(0, 0, -1), slot: "23:00", schedule: night, now: now, want: true},
		{name: "tomorrow", date: today.AddDate(0, 0, 1), slot: "14:00", schedule: night, now: now, want: false},
		{name: "early_morning_of_tonight", date: today, slot: "00:30", schedule: night, now: now, want: false},
		{name: "same_slot_without_wrap", date: today, slot: "00:30", schedule: day, now: now, want: true},
		{name: "started_slot", date: today, slot: "23:00", schedule: night, now: now, want: true},
		{name: "exact_start_is_not_past", date: today, slot: "18:00", schedule: day, now: time.Date(2026, 10, 15, 18, 0, 0, 0, loc), want: false},
		{name: "one_minute_after_start", date: today, slot: "18:00", schedule: day, now: time.Date(2026, 10, 15, 18, 1, 0, 0, loc), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsPast(tt.date, mustSlot(t, tt.slot), tt.schedule, tt.now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsPast_UsesDateLocationForToday(t *testing.T) {
	buenosAires := time.FixedZone("ART", -3*60*60)
	date := time.Date(2026, 10, 15, 0, 0, 0, 0, buenosAires)
	// 01:00 UTC on the 16th is still 22:00 on the 15th in the club's zone.
	now := time.Date(2026, 10, 16, 1, 0, 0, 0, time.UTC)
	s := mustSchedule(t, "14:00", "02:00", 60)

	assert.False(t, IsPast(date, mustSlot(t, "23:00"), s, now))
	assert.True(t, IsPast(date, mustSlot(t, "21:00"), s, now))
}

func TestSlot_TextRoundTrip(t *testing.T) {
	var slot Slot
	require.NoError(t, slot.UnmarshalText([]byte("21:30")))
	text, err := slot.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "21:30", string(text))
}
