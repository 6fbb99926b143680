// internal/api/reservations/handlers.go
package reservations

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/api/apiutil"
	"github.com/codr1/courtbook/internal/api/authz"
	"github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/booking"
	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/reservations"
	"github.com/codr1/courtbook/internal/schedule"
)

const (
	reservationQueryTimeout = 5 * time.Second
	// Customer cancellations are recorded with this reason unless one is given.
	customerCancelReason = "customer_cancelled"
	adminCancelReason    = "admin_cancelled"
)

type SnapshotLoader interface {
	Load(ctx context.Context, date time.Time, courtID int64) (*availability.Snapshot, error)
}

var (
	service     *booking.Service
	loader      SnapshotLoader
	clock       schedule.Clock
	location    *time.Location
	serviceOnce sync.Once
)

type listResponse struct {
	Date     string                      `json:"date"`
	CourtID  int64                       `json:"courtId,omitempty"`
	Status   models.ReservationStatus    `json:"status,omitempty"`
	Bookings []reservations.BookingGroup `json:"bookings"`
	Summary  availability.Summary        `json:"summary"`
	Warnings []string                    `json:"warnings,omitempty"`
}

type transitionResponse struct {
	Reference    string                   `json:"reference"`
	Status       models.ReservationStatus `json:"status"`
	Reservations []models.Reservation     `json:"reservations"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(svc *booking.Service, l SnapshotLoader, c schedule.Clock, loc *time.Location) {
	if svc == nil || l == nil {
		return
	}
	serviceOnce.Do(func() {
		service = svc
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

func ready(w http.ResponseWriter, r *http.Request) bool {
	if service == nil {
		log.Ctx(r.Context()).Error().Msg("Reservation handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return false
	}
	return true
}

// statusFromQuery reads the optional status filter. Empty or "all" means no filter.
func statusFromQuery(r *http.Request) (models.ReservationStatus, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	switch models.ReservationStatus(raw) {
	case "", "all":
		return "", nil
	case models.StatusPending, models.StatusConfirmed, models.StatusCancelled:
		return models.ReservationStatus(raw), nil
	}
	return "", apiutil.FieldError{Field: "status", Reason: "must be one of all, pending, confirmed, cancelled"}
}

// GET /api/v1/reservations?date=YYYY-MM-DD&court_id=N&status=confirmed
// The summary always covers the whole day; status only narrows the bookings.
func HandleListReservations(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	logger := log.Ctx(r.Context())

	courtID, err := apiutil.CourtIDFromQuery(r, true)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	status, err := statusFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	date, err := apiutil.DateFromQuery(r, location, clock.Now())
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	snap, err := loader.Load(ctx, date, courtID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	engine := availability.NewEngine(snap, clock)

	bookings := []reservations.BookingGroup{}
	for _, group := range reservations.GroupReservations(snap.Reservations, snap.Schedule) {
		if status == "" || group.Status == status {
			bookings = append(bookings, group)
		}
	}
	resp := listResponse{
		Date:     models.FormatDate(date),
		CourtID:  courtID,
		Status:   status,
		Bookings: bookings,
		Summary:  engine.Summary(),
		Warnings: engine.Warnings(),
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write reservations response")
	}
}

// POST /api/v1/reservations
func HandleCreateReservation(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	logger := log.Ctx(r.Context())

	var req booking.CreateRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid request body", Err: err})
		return
	}
	// The owner is always the resolved caller; a userId in the body is ignored
	// so an anonymous request cannot act for (or supersede) another customer.
	req.UserID = authz.RequesterID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	result, err := service.Create(ctx, req)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusCreated, result); err != nil {
		logger.Error().Err(err).Msg("Failed to write reservation response")
	}
}

// POST /api/v1/reservations/{ref}/confirm
func HandleConfirmReservation(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	ref := r.PathValue("ref")

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	rows, err := service.Confirm(ctx, ref)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeTransition(w, r, ref, rows)
}

// POST /api/v1/reservations/{ref}/cancel
// Admins may cancel any booking; customers only their own.
func HandleCancelReservation(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	ref := r.PathValue("ref")

	var req cancelRequest
	if err := apiutil.DecodeOptionalJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid request body", Err: err})
		return
	}
	reason := strings.TrimSpace(req.Reason)

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	var (
		rows []models.Reservation
		err  error
	)
	if authz.IsAdmin(authz.UserFromContext(r.Context())) {
		if reason == "" {
			reason = adminCancelReason
		}
		rows, err = service.Cancel(ctx, ref, reason)
	} else {
		requesterID := authz.RequesterID(r.Context())
		if requesterID == "" {
			apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "Unauthorized", Err: authz.ErrUnauthenticated})
			return
		}
		if reason == "" {
			reason = customerCancelReason
		}
		rows, err = service.CancelOwned(ctx, ref, requesterID, reason)
	}
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeTransition(w, r, ref, rows)
}

// GET /api/v1/customers/{user_id}/reservations
func HandleCustomerReservations(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	logger := log.Ctx(r.Context())
	userID := strings.TrimSpace(r.PathValue("user_id"))

	user := authz.UserFromContext(r.Context())
	if !authz.IsAdmin(user) && authz.RequesterID(r.Context()) != userID {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusForbidden, Message: "Forbidden", Err: authz.ErrForbidden})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	groups, err := service.ListByCustomer(ctx, userID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if groups == nil {
		groups = []reservations.BookingGroup{}
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, groups); err != nil {
		logger.Error().Err(err).Msg("Failed to write customer reservations")
	}
}

// POST /api/v1/admin/reservations
func HandleAdminCreateReservation(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	logger := log.Ctx(r.Context())

	var req booking.ManualRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid request body", Err: err})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	result, err := service.CreateManual(ctx, req)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusCreated, result); err != nil {
		logger.Error().Err(err).Msg("Failed to write reservation response")
	}
}

// DELETE /api/v1/admin/reservations/{id}
func HandleAdminDeleteReservation(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}

	id, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	if err := service.HardDelete(ctx, id); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeTransition(w http.ResponseWriter, r *http.Request, ref string, rows []models.Reservation) {
	resp := transitionResponse{
		Reference:    ref,
		Status:       reservations.GroupStatus(rows),
		Reservations: rows,
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write reservation response")
	}
}
