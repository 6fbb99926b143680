package apiutil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/blocks"
	"github.com/codr1/courtbook/internal/booking"
	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/schedule"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		field  string
		cause  string
	}{
		{name: "handler error", err: HandlerError{Status: http.StatusTeapot, Message: "short"}, status: http.StatusTeapot},
		{name: "field error", err: FieldError{Field: "court_id", Reason: "is required"}, status: http.StatusBadRequest, field: "court_id"},
		{name: "validation", err: &booking.ValidationError{Field: "clientPhone", Message: "invalid"}, status: http.StatusBadRequest, field: "clientPhone"},
		{name: "block config", err: blocks.ConfigError{Field: "time_range", Reason: "bad"}, status: http.StatusBadRequest, field: "time_range"},
		{name: "schedule config", err: schedule.ConfigError{Field: "slot_minutes", Reason: "bad"}, status: http.StatusBadRequest, field: "slot_minutes"},
		{name: "slot conflict", err: &booking.SlotConflictError{CourtID: 1, Date: "2026-10-14"}, status: http.StatusConflict, cause: "conflict"},
		{name: "unavailable", err: &availability.UnavailableError{Slot: schedule.Slot(20 * 60), Cause: availability.CauseBlocked}, status: http.StatusConflict, cause: "blocked"},
		{name: "out of range", err: fmt.Errorf("window: %w", availability.ErrWindowOutOfRange), status: http.StatusUnprocessableEntity},
		{name: "invalid transition", err: booking.ErrInvalidTransition, status: http.StatusConflict},
		{name: "not found", err: fmt.Errorf("get: %w", models.ErrNotFound), status: http.StatusNotFound},
		{name: "transport", err: &availability.TransportError{Op: "load blocks", Err: errors.New("locked")}, status: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := StatusFor(tt.err)
			if status != tt.status {
				t.Fatalf("status = %d, want %d", status, tt.status)
			}
			if body.Field != tt.field {
				t.Fatalf("field = %q, want %q", body.Field, tt.field)
			}
			if body.Cause != tt.cause {
				t.Fatalf("cause = %q, want %q", body.Cause, tt.cause)
			}
			if body.Error == "" {
				t.Fatal("expected an error message")
			}
		})
	}
}

func TestWriteError_UnavailableCarriesSlot(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil)

	WriteError(rec, req, &availability.UnavailableError{Slot: schedule.Slot(21 * 60), Cause: availability.CauseReserved})

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `"slot":"21:00"`) {
		t.Fatalf("body missing slot: %s", rec.Body.String())
	}
}

func TestWriteTooManyRequests(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteTooManyRequests(rec, 90*time.Second)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "90" {
		t.Fatalf("Retry-After = %q, want 90", got)
	}

	rec = httptest.NewRecorder()
	WriteTooManyRequests(rec, 100*time.Millisecond)
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q, want 1", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ana"}`))
	if err := DecodeJSON(req, &dst); err != nil || dst.Name != "Ana" {
		t.Fatalf("decode: %v (%+v)", err, dst)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ana","extra":1}`))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatal("expected unknown field error")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}{"name":"b"}`))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatal("expected trailing data error")
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	if err := DecodeOptionalJSON(req, &dst); err != nil {
		t.Fatalf("optional empty body: %v", err)
	}
}

func TestDateAndCourtFromQuery(t *testing.T) {
	loc := time.FixedZone("club", -3*3600)
	now := time.Date(2026, 10, 15, 1, 0, 0, 0, time.UTC)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability", nil)
	date, err := DateFromQuery(req, loc, now)
	if err != nil {
		t.Fatalf("default date: %v", err)
	}
	if got := models.FormatDate(date); got != "2026-10-14" {
		t.Fatalf("default date = %s, want club-local 2026-10-14", got)
	}
	if court, err := CourtIDFromQuery(req, true); err != nil || court != 0 {
		t.Fatalf("optional court = %d, err %v", court, err)
	}
	if _, err := CourtIDFromQuery(req, false); err == nil {
		t.Fatal("expected required court_id error")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/availability?date=14/10/2026&court_id=-2", nil)
	if _, err := DateFromQuery(req, loc, now); err == nil {
		t.Fatal("expected bad date error")
	}
	var fe FieldError
	if _, err := CourtIDFromQuery(req, true); !errors.As(err, &fe) || fe.Field != "court_id" {
		t.Fatalf("expected court_id FieldError, got %v", err)
	}
}
