package blocks

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/schedule"
)

func ptr[T any](v T) *T { return &v }

func slot(t *testing.T, raw string) schedule.Slot {
	t.Helper()
	s, err := schedule.ParseSlot(raw)
	require.NoError(t, err)
	return s
}

// 2026-10-14 is a Wednesday.
var (
	tuesday   = time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC)
	wednesday = time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	sunday    = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
)

func TestAdHoc_WholeDayBlocksEverySlotInRange(t *testing.T) {
	resolver, skipped := NewResolver([]models.AdHocBlock{{
		ID:         1,
		DateFrom:   "2026-10-13",
		DateTo:     "2026-10-14",
		ReasonType: models.BlockReasonClosure,
	}}, nil, time.UTC)
	require.Empty(t, skipped)

	for _, court := range []int64{1, 2, 3} {
		for _, raw := range []string{"00:00", "14:00", "23:00"} {
			assert.True(t, resolver.IsBlocked(court, tuesday, slot(t, raw)), "court %d slot %s", court, raw)
			assert.True(t, resolver.IsBlocked(court, wednesday, slot(t, raw)), "court %d slot %s", court, raw)
		}
	}
	assert.False(t, resolver.IsBlocked(1, sunday, slot(t, "14:00")))
}

func TestAdHoc_PartialRangeIsHalfOpen(t *testing.T) {
	resolver, _ := NewResolver([]models.AdHocBlock{{
		ID:         2,
		CourtID:    ptr(int64(2)),
		DateFrom:   "2026-10-14",
		DateTo:     "2026-10-14",
		TimeFrom:   ptr("18:00"),
		TimeTo:     ptr("20:00"),
		ReasonType: models.BlockReasonTournament,
		Reason:     "Club cup",
	}}, nil, time.UTC)

	assert.False(t, resolver.IsBlocked(2, wednesday, slot(t, "17:00")))
	assert.True(t, resolver.IsBlocked(2, wednesday, slot(t, "18:00")))
	assert.True(t, resolver.IsBlocked(2, wednesday, slot(t, "19:00")))
	assert.False(t, resolver.IsBlocked(2, wednesday, slot(t, "20:00")))
	assert.False(t, resolver.IsBlocked(1, wednesday, slot(t, "18:00")), "other court")

	reason, ok := resolver.Reason(2, wednesday, slot(t, "18:00"))
	require.True(t, ok)
	assert.Equal(t, Reason{Kind: KindAdHoc, ID: 2, Label: "Club cup"}, reason)
}

func TestAdHoc_HalfSpecifiedRowIsSkipped(t *testing.T) {
	resolver, skipped := NewResolver([]models.AdHocBlock{{
		ID:       3,
		DateFrom: "2026-10-14",
		DateTo:   "2026-10-14",
		TimeFrom: ptr("18:00"),
	}}, nil, time.UTC)

	require.Len(t, skipped, 1)
	assert.False(t, resolver.IsBlocked(1, wednesday, slot(t, "19:00")))
}

func TestRecurring_WeekdayAndRange(t *testing.T) {
	resolver, skipped := NewResolver(nil, []models.RecurringBlock{{
		ID:       7,
		Weekdays: []int{1, 3, 4},
		TimeFrom: "19:00",
		TimeTo:   "22:00",
		Label:    "Weekly league",
		Active:   true,
	}}, time.UTC)
	require.Empty(t, skipped)

	assert.True(t, resolver.IsBlocked(1, wednesday, slot(t, "20:00")))
	assert.False(t, resolver.IsBlocked(1, tuesday, slot(t, "20:00")))
	assert.False(t, resolver.IsBlocked(1, wednesday, slot(t, "18:00")))
	assert.False(t, resolver.IsBlocked(1, wednesday, slot(t, "22:00")))
}

func TestRecurring_InactiveAndCourtFilter(t *testing.T) {
	resolver, _ := NewResolver(nil, []models.RecurringBlock{
		{ID: 1, Weekdays: []int{3}, TimeFrom: "08:00", TimeTo: "12:00", Label: "paused", Active: false},
		{ID: 2, CourtID: ptr(int64(3)), Weekdays: []int{7}, TimeFrom: "08:00", TimeTo: "12:00", Label: "school", Active: true},
	}, time.UTC)

	assert.False(t, resolver.IsBlocked(1, wednesday, slot(t, "09:00")), "inactive block")
	assert.True(t, resolver.IsBlocked(3, sunday, slot(t, "09:00")), "sunday is weekday 7")
	assert.False(t, resolver.IsBlocked(1, sunday, slot(t, "09:00")), "other court")
}

func TestISOWeekday(t *testing.T) {
	assert.Equal(t, 2, ISOWeekday(tuesday))
	assert.Equal(t, 3, ISOWeekday(wednesday))
	assert.Equal(t, 7, ISOWeekday(sunday))
}

func TestValidateAdHoc(t *testing.T) {
	tests := []struct {
		name    string
		input   AdHocInput
		wantErr string
	}{
		{
			name:  "whole_day",
			input: AdHocInput{DateFrom: "2026-10-14", DateTo: "2026-10-15", ReasonType: "closure"},
		},
		{
			name:  "blank_times_mean_whole_day",
			input: AdHocInput{DateFrom: "2026-10-14", DateTo: "2026-10-14", TimeFrom: ptr(" "), TimeTo: ptr(""), ReasonType: "tournament"},
		},
		{
			name:    "only_time_from",
			input:   AdHocInput{DateFrom: "2026-10-14", DateTo: "2026-10-14", TimeFrom: ptr("18:00"), ReasonType: "closure"},
			wantErr: "timeRange",
		},
		{
			name:    "only_time_to",
			input:   AdHocInput{DateFrom: "2026-10-14", DateTo: "2026-10-14", TimeTo: ptr("18:00"), ReasonType: "closure"},
			wantErr: "timeRange",
		},
		{
			name:    "inverted_range",
			input:   AdHocInput{DateFrom: "2026-10-14", DateTo: "2026-10-14", TimeFrom: ptr("20:00"), TimeTo: ptr("18:00"), ReasonType: "closure"},
			wantErr: "timeFrom",
		},
		{
			name:    "dates_reversed",
			input:   AdHocInput{DateFrom: "2026-10-15", DateTo: "2026-10-14", ReasonType: "closure"},
			wantErr: "dateTo",
		},
		{
			name:    "bad_date",
			input:   AdHocInput{DateFrom: "14/10/2026", DateTo: "2026-10-14", ReasonType: "closure"},
			wantErr: "dateFrom",
		},
		{
			name:    "unknown_reason",
			input:   AdHocInput{DateFrom: "2026-10-14", DateTo: "2026-10-14", ReasonType: "party"},
			wantErr: "reasonType",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := ValidateAdHoc(tt.input)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Nil(t, block.TimeFrom)
				assert.Nil(t, block.TimeTo)
				return
			}
			var cfgErr ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
			assert.Equal(t, tt.wantErr, cfgErr.Field)
		})
	}
}

func TestValidateAdHoc_NormalizesTimes(t *testing.T) {
	block, err := ValidateAdHoc(AdHocInput{
		CourtID:    ptr(int64(1)),
		DateFrom:   "2026-10-14",
		DateTo:     "2026-10-14",
		TimeFrom:   ptr("6:00 pm"),
		TimeTo:     ptr("20:00:00"),
		ReasonType: "Tournament",
	})
	require.NoError(t, err)
	assert.Equal(t, "18:00", *block.TimeFrom)
	assert.Equal(t, "20:00", *block.TimeTo)
	assert.Equal(t, models.BlockReasonTournament, block.ReasonType)
}

func TestValidateRecurring(t *testing.T) {
	block, err := ValidateRecurring(RecurringInput{
		Weekdays: Weekdays{4, 1, 3, 3},
		TimeFrom: "19:00",
		TimeTo:   "22:00",
		Label:    " League ",
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 4}, block.Weekdays)
	assert.True(t, block.Active)
	assert.Equal(t, "League", block.Label)

	_, err = ValidateRecurring(RecurringInput{Weekdays: Weekdays{8}, TimeFrom: "19:00", TimeTo: "22:00", Label: "x"})
	assert.Error(t, err)

	_, err = ValidateRecurring(RecurringInput{Weekdays: Weekdays{}, TimeFrom: "19:00", TimeTo: "22:00", Label: "x"})
	assert.Error(t, err)
}

func TestWeekdays_DecodesBothEncodings(t *testing.T) {
	var fromString struct {
		Days Weekdays `json:"days"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"days":"1, 3,4"}`), &fromString))
	assert.Equal(t, Weekdays{1, 3, 4}, fromString.Days)

	var fromList struct {
		Days Weekdays `json:"days"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"days":[2,5]}`), &fromList))
	assert.Equal(t, Weekdays{2, 5}, fromList.Days)

	assert.Equal(t, "1,3,4", FormatWeekdays([]int{1, 3, 4}))
}
