// internal/api/calendar/handlers.go
package calendar

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/api/apiutil"
	"github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/schedule"
)

const calendarQueryTimeout = 5 * time.Second

type SnapshotLoader interface {
	Load(ctx context.Context, date time.Time, courtID int64) (*availability.Snapshot, error)
}

var (
	loader       SnapshotLoader
	courts       []models.Court
	clock        schedule.Clock
	location     *time.Location
	calendarOnce sync.Once
)

type calendarResponse struct {
	availability.Grid
	Warnings []string `json:"warnings,omitempty"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(l SnapshotLoader, clubCourts []models.Court, c schedule.Clock, loc *time.Location) {
	if l == nil {
		return
	}
	calendarOnce.Do(func() {
		loader = l
		courts = clubCourts
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

// GET /api/v1/admin/calendar?date=YYYY-MM-DD
// One row per slot, one cell per court. Occupied cells carry the client's
// contact details.
func HandleCalendar(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if loader == nil {
		logger.Error().Msg("Calendar handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	date, err := apiutil.DateFromQuery(r, location, clock.Now())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), calendarQueryTimeout)
	defer cancel()

	snap, err := loader.Load(ctx, date, 0)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	engine := availability.NewEngine(snap, clock)

	resp := calendarResponse{
		Grid:     engine.Calendar(courts),
		Warnings: engine.Warnings(),
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write calendar response")
	}
}
