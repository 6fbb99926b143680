package apiutil

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/blocks"
	"github.com/codr1/courtbook/internal/booking"
	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/schedule"
)

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Cause string `json:"cause,omitempty"`
	Slot  string `json:"slot,omitempty"`
}

// StatusFor maps a service error to its HTTP status and response body.
func StatusFor(err error) (int, ErrorResponse) {
	var (
		handlerErr     HandlerError
		fieldErr       FieldError
		validationErr  *booking.ValidationError
		blockErr       blocks.ConfigError
		scheduleErr    schedule.ConfigError
		conflictErr    *booking.SlotConflictError
		unavailableErr *availability.UnavailableError
		transportErr   *availability.TransportError
	)

	switch {
	case errors.As(err, &handlerErr):
		return handlerErr.Status, ErrorResponse{Error: handlerErr.Message}
	case errors.As(err, &fieldErr):
		return http.StatusBadRequest, ErrorResponse{Error: fieldErr.Error(), Field: fieldErr.Field}
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, ErrorResponse{Error: validationErr.Message, Field: validationErr.Field}
	case errors.As(err, &blockErr):
		return http.StatusBadRequest, ErrorResponse{Error: blockErr.Error(), Field: blockErr.Field}
	case errors.As(err, &scheduleErr):
		return http.StatusBadRequest, ErrorResponse{Error: scheduleErr.Error(), Field: scheduleErr.Field}
	case errors.As(err, &conflictErr):
		return http.StatusConflict, ErrorResponse{Error: models.ErrSlotTaken.Error(), Cause: "conflict"}
	case errors.As(err, &unavailableErr):
		return http.StatusConflict, ErrorResponse{
			Error: unavailableErr.Error(),
			Cause: string(unavailableErr.Cause),
			Slot:  unavailableErr.Slot.Label(),
		}
	case errors.Is(err, availability.ErrWindowOutOfRange):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()}
	case errors.Is(err, booking.ErrInvalidTransition):
		return http.StatusConflict, ErrorResponse{Error: err.Error()}
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "not found"}
	case errors.As(err, &transportErr):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "storage unavailable, try again"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error"}
	}
}

// WriteError logs err at a level matching its status and writes the JSON body.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := StatusFor(err)
	logger := log.Ctx(r.Context())
	event := logger.Debug()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request failed")

	if writeErr := WriteJSON(w, status, body); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write error response")
	}
}

// WriteTooManyRequests answers a rate-limited request.
func WriteTooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	_ = WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "too many reservation attempts, try again later"})
}
