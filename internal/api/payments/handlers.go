// internal/api/payments/handlers.go
package payments

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/api/apiutil"
	"github.com/codr1/courtbook/internal/booking"
	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/payment"
	"github.com/codr1/courtbook/internal/reservations"
)

const paymentQueryTimeout = 5 * time.Second

var (
	service     *booking.Service
	serviceOnce sync.Once
)

type returnResponse struct {
	Outcome      payment.Outcome          `json:"outcome"`
	Reference    string                   `json:"reference"`
	Status       models.ReservationStatus `json:"status"`
	Reservations []models.Reservation     `json:"reservations"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(svc *booking.Service) {
	if svc == nil {
		return
	}
	serviceOnce.Do(func() {
		service = svc
	})
}

// GET /api/v1/payments/return?outcome=success&reference=REF
// The gateway redirects the customer here once the hosted checkout finishes.
func HandlePaymentReturn(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if service == nil {
		logger.Error().Msg("Payment handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	ref := strings.TrimSpace(query.Get("reference"))
	if ref == "" {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "reference", Reason: "is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), paymentQueryTimeout)
	defer cancel()

	outcome, rows, err := service.HandlePaymentReturn(ctx, query.Get("outcome"), ref)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	logger.Info().
		Str("reference", ref).
		Str("outcome", string(outcome)).
		Msg("Payment return processed")

	resp := returnResponse{
		Outcome:      outcome,
		Reference:    ref,
		Status:       reservations.GroupStatus(rows),
		Reservations: rows,
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write payment response")
	}
}
