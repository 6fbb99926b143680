// internal/api/middleware.go
package api

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/api/apiutil"
	"github.com/codr1/courtbook/internal/api/authz"
	"github.com/codr1/courtbook/internal/ratelimit"
)

const (
	userIDHeader     = "X-User-ID"
	adminTokenHeader = "X-Admin-Token"
)

type Middleware func(http.Handler) http.Handler

func ChainMiddleware(h http.Handler, middleware ...Middleware) http.Handler {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create response wrapper to capture status code
		wrapped := wrapResponseWriter(w)

		next.ServeHTTP(wrapped, r)
		requestID, _ := r.Context().Value("request_id").(string)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Str("request_id", requestID).
			Msg("Request completed")
	})
}

func WithRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger := log.Ctx(r.Context())
				// Log the full stack trace
				stack := debug.Stack()
				logger.Error().
					Interface("error", err).
					Str("stack", string(stack)).
					Msg("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		// Create a logger with the request ID
		logger := log.With().Str("request_id", requestID).Logger()

		// Add both the request ID and logger to context
		ctx := context.WithValue(r.Context(), "request_id", requestID)
		ctx = logger.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithIdentity resolves the caller from X-User-ID and, when present,
// X-Admin-Token. A wrong admin token is rejected here rather than silently
// downgraded to a customer.
func WithIdentity(adminTokenHash string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := &authz.AuthUser{ID: strings.TrimSpace(r.Header.Get(userIDHeader))}

			if token := r.Header.Get(adminTokenHeader); token != "" {
				if err := authz.VerifyAdminToken(adminTokenHash, token); err != nil {
					log.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Msg("Admin token rejected")
					apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusForbidden, Message: "Forbidden", Err: err})
					return
				}
				user.IsAdmin = true
			}

			if user.ID != "" {
				ctx := log.Ctx(r.Context()).With().Str("user_id", user.ID).Logger().WithContext(r.Context())
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r.WithContext(authz.ContextWithUser(r.Context(), user)))
		})
	}
}

// WithAdminAuth allows only callers that presented a valid admin token.
func WithAdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.Ctx(r.Context())
		if err := authz.RequireAdmin(r.Context()); err != nil {
			switch {
			case errors.Is(err, authz.ErrUnauthenticated), errors.Is(err, authz.ErrForbidden):
				logger.Warn().Str("path", r.URL.Path).Msg("Admin access denied: missing token")
				apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusUnauthorized, Message: "Unauthorized", Err: err})
			default:
				logger.Error().Err(err).Msg("Admin access denied: error")
				apiutil.WriteError(w, r, err)
			}
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RateLimitObserver is told about every rejected request.
type RateLimitObserver interface {
	RateLimited()
}

// WithRateLimit throttles the wrapped handler per caller and per client IP.
// Admins are exempt.
func WithRateLimit(limiter *ratelimit.Limiter, trustProxy bool, observer RateLimitObserver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := authz.UserFromContext(r.Context())
			if limiter == nil || authz.IsAdmin(user) {
				next.ServeHTTP(w, r)
				return
			}

			identifier := authz.RequesterID(r.Context())
			ip := ratelimit.GetClientIP(r, trustProxy)
			result := limiter.Allow(identifier, ip)
			if !result.Allowed {
				ratelimit.LogRateLimitExceeded(identifier, ip, result.Reason)
				if observer != nil {
					observer.RateLimited()
				}
				apiutil.WriteTooManyRequests(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wrapper to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
