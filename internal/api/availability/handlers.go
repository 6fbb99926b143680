// internal/api/availability/handlers.go
package availability

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/api/apiutil"
	"github.com/codr1/courtbook/internal/api/authz"
	slotengine "github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/schedule"
)

const availabilityQueryTimeout = 5 * time.Second

type SnapshotLoader interface {
	Load(ctx context.Context, date time.Time, courtID int64) (*slotengine.Snapshot, error)
}

var (
	loader     SnapshotLoader
	clock      schedule.Clock
	location   *time.Location
	loaderOnce sync.Once
)

type dayResponse struct {
	Date     string                  `json:"date"`
	CourtID  int64                   `json:"courtId"`
	Slots    []slotengine.SlotStatus `json:"slots"`
	Warnings []string                `json:"warnings,omitempty"`
}

type validateRequest struct {
	CourtID   int64  `json:"courtId"`
	Date      string `json:"date"`
	StartSlot string `json:"startSlot"`
	Slots     int    `json:"slots"`
	UserID    string `json:"userId"`
}

type validateResponse struct {
	Available bool            `json:"available"`
	Slots     []schedule.Slot `json:"slots,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Cause     string          `json:"cause,omitempty"`
	Slot      string          `json:"slot,omitempty"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(l SnapshotLoader, c schedule.Clock, loc *time.Location) {
	if l == nil {
		return
	}
	loaderOnce.Do(func() {
		loader = l
		clock = c
		if clock == nil {
			clock = schedule.SystemClock{}
		}
		location = loc
		if location == nil {
			location = time.Local
		}
	})
}

// requester prefers the explicit user_id so the booking page can ask on
// behalf of the signed-in customer.
func requester(r *http.Request, explicit string) string {
	if id := strings.TrimSpace(explicit); id != "" {
		return id
	}
	return authz.RequesterID(r.Context())
}

// GET /api/v1/availability?date=YYYY-MM-DD&court_id=N&user_id=U
func HandleAvailability(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if loader == nil {
		logger.Error().Msg("Availability handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	courtID, err := apiutil.CourtIDFromQuery(r, false)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	date, err := apiutil.DateFromQuery(r, location, clock.Now())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), availabilityQueryTimeout)
	defer cancel()

	snap, err := loader.Load(ctx, date, courtID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	engine := slotengine.NewEngine(snap, clock)

	resp := dayResponse{
		Date:     models.FormatDate(date),
		CourtID:  courtID,
		Slots:    engine.Day(courtID, requester(r, r.URL.Query().Get("user_id"))),
		Warnings: engine.Warnings(),
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write availability response")
	}
}

// POST /api/v1/availability/validate
func HandleValidateWindow(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if loader == nil {
		logger.Error().Msg("Availability handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req validateRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid request body", Err: err})
		return
	}
	if req.CourtID <= 0 {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "courtId", Reason: "must be greater than 0"})
		return
	}
	if req.Slots <= 0 {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "slots", Reason: "must be greater than 0"})
		return
	}
	date, err := models.ParseDate(req.Date, location)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "date", Reason: "must be in YYYY-MM-DD format"})
		return
	}
	start, err := schedule.ParseSlot(req.StartSlot)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "startSlot", Reason: "must be a time of day"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), availabilityQueryTimeout)
	defer cancel()

	snap, err := loader.Load(ctx, date, req.CourtID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	window, err := slotengine.NewEngine(snap, clock).ValidateWindow(req.CourtID, start, req.Slots, requester(r, req.UserID))
	resp := validateResponse{Available: err == nil, Slots: window}
	var unavailable *slotengine.UnavailableError
	switch {
	case err == nil:
	case errors.As(err, &unavailable):
		resp.Reason = unavailable.Error()
		resp.Cause = string(unavailable.Cause)
		resp.Slot = unavailable.Slot.Label()
	case errors.Is(err, slotengine.ErrWindowOutOfRange):
		resp.Reason = err.Error()
		resp.Cause = "out_of_range"
	default:
		apiutil.WriteError(w, r, err)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write validation response")
	}
}
