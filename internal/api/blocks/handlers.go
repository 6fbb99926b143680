// internal/api/blocks/handlers.go
package blocks

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/api/apiutil"
	blockrules "github.com/codr1/courtbook/internal/blocks"
	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/schedule"
)

const blockQueryTimeout = 5 * time.Second

type AdHocStore interface {
	ListFrom(ctx context.Context, date string) ([]models.AdHocBlock, error)
	Create(ctx context.Context, block models.AdHocBlock) (models.AdHocBlock, error)
	Delete(ctx context.Context, id int64) error
}

type RecurringStore interface {
	ListRecurring(ctx context.Context) ([]models.RecurringBlock, error)
	Create(ctx context.Context, block models.RecurringBlock) (models.RecurringBlock, error)
	Delete(ctx context.Context, id int64) error
}

type Deps struct {
	AdHoc     AdHocStore
	Recurring RecurringStore
	Courts    []models.Court
	Clock     schedule.Clock
	Location  *time.Location
}

var (
	deps     *Deps
	depsOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(d Deps) {
	if d.AdHoc == nil || d.Recurring == nil {
		return
	}
	depsOnce.Do(func() {
		if d.Clock == nil {
			d.Clock = schedule.SystemClock{}
		}
		if d.Location == nil {
			d.Location = time.Local
		}
		deps = &d
	})
}

func loadDeps(w http.ResponseWriter, r *http.Request) *Deps {
	if deps == nil {
		log.Ctx(r.Context()).Error().Msg("Block handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return deps
}

// knownCourt rejects block targets that are not club courts. A nil court
// means every court.
func (d *Deps) knownCourt(courtID *int64) error {
	if courtID == nil || len(d.Courts) == 0 {
		return nil
	}
	for _, court := range d.Courts {
		if court.ID == *courtID {
			return nil
		}
	}
	return apiutil.FieldError{Field: "courtId", Reason: "is not a court of this club"}
}

// GET /api/v1/admin/blocks?date=YYYY-MM-DD
// Lists ad-hoc closures that end on or after date (default today).
func HandleListBlocks(w http.ResponseWriter, r *http.Request) {
	d := loadDeps(w, r)
	if d == nil {
		return
	}
	logger := log.Ctx(r.Context())

	date, err := apiutil.DateFromQuery(r, d.Location, d.Clock.Now())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), blockQueryTimeout)
	defer cancel()

	list, err := d.AdHoc.ListFrom(ctx, models.FormatDate(date))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list blocks")
		apiutil.WriteError(w, r, err)
		return
	}
	if list == nil {
		list = []models.AdHocBlock{}
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"blocks": list}); err != nil {
		logger.Error().Err(err).Msg("Failed to write blocks response")
	}
}

// POST /api/v1/admin/blocks
func HandleCreateBlock(w http.ResponseWriter, r *http.Request) {
	d := loadDeps(w, r)
	if d == nil {
		return
	}
	logger := log.Ctx(r.Context())

	var input blockrules.AdHocInput
	if err := apiutil.DecodeJSON(r, &input); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid request body", Err: err})
		return
	}
	block, err := blockrules.ValidateAdHoc(input)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := d.knownCourt(block.CourtID); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), blockQueryTimeout)
	defer cancel()

	created, err := d.AdHoc.Create(ctx, block)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create block")
		apiutil.WriteError(w, r, err)
		return
	}

	logger.Info().
		Int64("block_id", created.ID).
		Str("date_from", created.DateFrom).
		Str("date_to", created.DateTo).
		Str("reason_type", created.ReasonType).
		Msg("Court block created")

	if err := apiutil.WriteJSON(w, http.StatusCreated, created); err != nil {
		logger.Error().Err(err).Msg("Failed to write block response")
	}
}

// DELETE /api/v1/admin/blocks/{id}
func HandleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	d := loadDeps(w, r)
	if d == nil {
		return
	}
	deleteByID(w, r, "block", d.AdHoc.Delete)
}

// GET /api/v1/admin/recurring-blocks
func HandleListRecurring(w http.ResponseWriter, r *http.Request) {
	d := loadDeps(w, r)
	if d == nil {
		return
	}
	logger := log.Ctx(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), blockQueryTimeout)
	defer cancel()

	list, err := d.Recurring.ListRecurring(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list recurring blocks")
		apiutil.WriteError(w, r, err)
		return
	}
	if list == nil {
		list = []models.RecurringBlock{}
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"blocks": list}); err != nil {
		logger.Error().Err(err).Msg("Failed to write recurring blocks response")
	}
}

// POST /api/v1/admin/recurring-blocks
func HandleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	d := loadDeps(w, r)
	if d == nil {
		return
	}
	logger := log.Ctx(r.Context())

	var input blockrules.RecurringInput
	if err := apiutil.DecodeJSON(r, &input); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid request body", Err: err})
		return
	}
	block, err := blockrules.ValidateRecurring(input)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := d.knownCourt(block.CourtID); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), blockQueryTimeout)
	defer cancel()

	created, err := d.Recurring.Create(ctx, block)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create recurring block")
		apiutil.WriteError(w, r, err)
		return
	}

	logger.Info().
		Int64("block_id", created.ID).
		Str("weekdays", blockrules.FormatWeekdays(created.Weekdays)).
		Str("label", created.Label).
		Msg("Recurring block created")

	if err := apiutil.WriteJSON(w, http.StatusCreated, created); err != nil {
		logger.Error().Err(err).Msg("Failed to write recurring block response")
	}
}

// DELETE /api/v1/admin/recurring-blocks/{id}
func HandleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	d := loadDeps(w, r)
	if d == nil {
		return
	}
	deleteByID(w, r, "recurring block", d.Recurring.Delete)
}

func deleteByID(w http.ResponseWriter, r *http.Request, kind string, del func(context.Context, int64) error) {
	logger := log.Ctx(r.Context())

	id, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), blockQueryTimeout)
	defer cancel()

	if err := del(ctx, id); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			logger.Error().Err(err).Int64("id", id).Msgf("Failed to delete %s", kind)
		}
		apiutil.WriteError(w, r, err)
		return
	}

	logger.Info().Int64("id", id).Msgf("Deleted %s", kind)
	w.WriteHeader(http.StatusNoContent)
}
