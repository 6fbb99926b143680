// internal/api/clubconfig/handlers.go
package clubconfig

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

const configQueryTimeout = 5 * time.Second

type ScheduleResolver interface {
	ClubSchedule(ctx context.Context) (*availability.ResolvedSchedule, error)
}

type ScheduleWriter interface {
	PutSchedule(ctx context.Context, cfg models.ClubSchedule) error
}

// Deps are the collaborators shared by the config handlers.
type Deps struct {
	Schedules ScheduleResolver
	Store     ScheduleWriter
	Courts    []models.Court
	MaxSlots  int
}

var (
	deps     *Deps
	depsOnce sync.Once
)

type configResponse struct {
	OpenTime        string          `json:"openTime"`
	CloseTime       string          `json:"closeTime"`
	SlotMinutes     int             `json:"slotMinutes"`
	CrossesMidnight bool            `json:"crossesMidnight"`
	Slots           []schedule.Slot `json:"slots"`
	Courts          []models.Court  `json:"courts"`
	MaxBookingSlots int             `json:"maxBookingSlots"`
	Stored          bool            `json:"stored"`
	Warning         string          `json:"warning,omitempty"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(d Deps) {
	if d.Schedules == nil {
		return
	}
	depsOnce.Do(func() {
		deps = &d
	})
}

func loadDeps() *Deps {
	return deps
}

// GET /api/v1/config
func HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil {
		logger.Error().Msg("Config handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), configQueryTimeout)
	defer cancel()

	resolved, err := d.Schedules.ClubSchedule(ctx)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	resp := configResponse{
		OpenTime:        resolved.Schedule.Open.Label(),
		CloseTime:       resolved.Schedule.Close.Label(),
		SlotMinutes:     resolved.Schedule.SlotMinutes,
		CrossesMidnight: resolved.Schedule.CrossesMidnight(),
		Slots:           resolved.Slots,
		Courts:          d.Courts,
		MaxBookingSlots: d.MaxSlots,
		Stored:          resolved.Stored,
	}
	if resolved.Err != nil {
		resp.Warning = resolved.Err.Error()
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write config response")
	}
}

// GET /api/v1/courts
func HandleListCourts(w http.ResponseWriter, r *http.Request) {
	d := loadDeps()
	if d == nil {
		log.Ctx(r.Context()).Error().Msg("Config handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	courts := d.Courts
	if courts == nil {
		courts = []models.Court{}
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, courts); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write courts response")
	}
}

// PUT /api/v1/admin/config
func HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil || d.Store == nil {
		logger.Error().Msg("Config handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req models.ClubSchedule
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid request body", Err: err})
		return
	}

	// Reject hours that would only ever be served as the fallback.
	sched, err := schedule.New(req.OpenTime, req.CloseTime, req.SlotMinutes)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if len(schedule.Generate(sched)) == 0 {
		apiutil.WriteError(w, r, schedule.ConfigError{Field: "slot_minutes", Reason: "produces no slots"})
		return
	}
	normalized := models.ClubSchedule{
		OpenTime:    sched.Open.Label(),
		CloseTime:   sched.Close.Label(),
		SlotMinutes: sched.SlotMinutes,
	}

	ctx, cancel := context.WithTimeout(r.Context(), configQueryTimeout)
	defer cancel()

	if err := d.Store.PutSchedule(ctx, normalized); err != nil {
		apiutil.WriteError(w, r, &availability.TransportError{Op: "save club schedule", Err: err})
		return
	}

	logger.Info().
		Str("open_time", normalized.OpenTime).
		Str("close_time", normalized.CloseTime).
		Int("slot_minutes", normalized.SlotMinutes).
		Msg("Club schedule updated")

	if err := apiutil.WriteJSON(w, http.StatusOK, normalized); err != nil {
		logger.Error().Err(err).Msg("Failed to write config response")
	}
}
