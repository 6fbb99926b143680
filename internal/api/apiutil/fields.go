package apiutil

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codr1/courtbook/internal/models"
)

const (
	courtIDQueryKey = "court_id"
	dateQueryKey    = "date"
)

func ParsePositiveInt64Field(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, FieldError{Field: field, Reason: "is required"}
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, FieldError{Field: field, Reason: "must be greater than 0"}
	}
	return value, nil
}

// CourtIDFromQuery reads court_id. When optional is true a missing value
// returns 0, meaning every court.
func CourtIDFromQuery(r *http.Request, optional bool) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(courtIDQueryKey))
	if raw == "" && optional {
		return 0, nil
	}
	return ParsePositiveInt64Field(raw, courtIDQueryKey)
}

// DateFromQuery parses date in loc, defaulting to today at the club.
func DateFromQuery(r *http.Request, loc *time.Location, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(dateQueryKey))
	if raw == "" {
		today := now.In(loc)
		return time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc), nil
	}
	date, err := models.ParseDate(raw, loc)
	if err != nil {
		return time.Time{}, FieldError{Field: dateQueryKey, Reason: "must be in YYYY-MM-DD format"}
	}
	return date, nil
}

// PathID parses a positive integer path value such as {id}.
func PathID(r *http.Request, name string) (int64, error) {
	return ParsePositiveInt64Field(r.PathValue(name), name)
}
