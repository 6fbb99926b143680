// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/codr1/courtbook/internal/api"
	"github.com/codr1/courtbook/internal/api/availability"
	"github.com/codr1/courtbook/internal/api/blocks"
	"github.com/codr1/courtbook/internal/api/calendar"
	"github.com/codr1/courtbook/internal/api/clubconfig"
	"github.com/codr1/courtbook/internal/api/payments"
	"github.com/codr1/courtbook/internal/api/reservations"
	slotengine "github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/booking"
	"github.com/codr1/courtbook/internal/config"
	"github.com/codr1/courtbook/internal/db"
	"github.com/codr1/courtbook/internal/metrics"
	"github.com/codr1/courtbook/internal/payment"
	"github.com/codr1/courtbook/internal/ratelimit"
	"github.com/codr1/courtbook/internal/scheduler"
	"github.com/codr1/courtbook/internal/schedule"
)

// app holds the wired services shared by the routes.
type app struct {
	cfg          *config.Config
	reservations *db.ReservationStore
	loader       *slotengine.Loader
	booking      *booking.Service
	limiter      *ratelimit.Limiter
	metrics      *metrics.Service
}

func newApp(cfg *config.Config, database *db.DB) (*app, error) {
	a := &app{
		cfg:          cfg,
		reservations: db.NewReservationStore(database),
	}
	clubConfig := db.NewClubConfigStore(database)
	adHoc := db.NewBlockStore(database)
	recurring := db.NewRecurringBlockStore(database)
	clock := schedule.SystemClock{}

	var (
		recorder     booking.Recorder
		loadObserver slotengine.Observer
		purgeCounter scheduler.PurgeCounter
	)
	if cfg.Features.EnableMetrics {
		a.metrics = metrics.NewService()
		recorder = a.metrics
		loadObserver = a.metrics
		purgeCounter = a.metrics
	}

	a.loader = &slotengine.Loader{
		Schedules:    clubConfig,
		Reservations: a.reservations,
		Blocks:       adHoc,
		Recurring:    recurring,
		Defaults:     cfg.Club.Schedule(),
		Clock:        clock,
		Observer:     loadObserver,
	}

	var provider payment.Provider
	if cfg.Payment.CheckoutURL != "" {
		checkout, err := payment.NewHostedCheckout(cfg.Payment.CheckoutURL, cfg.Payment.ReturnURL)
		if err != nil {
			return nil, fmt.Errorf("payment checkout: %w", err)
		}
		provider = checkout
	}

	a.booking = booking.NewService(a.reservations, a.loader, booking.Options{
		Location:    cfg.Location(),
		Courts:      cfg.Club.Courts,
		MaxSlots:    cfg.Club.MaxBookingSlots,
		PhoneRegion: cfg.Club.PhoneRegion,
		Clock:       clock,
		Payments:    provider,
		Recorder:    recorder,
	})

	if cfg.RateLimit.MaxAttempts > 0 || cfg.RateLimit.MaxPerIP > 0 {
		a.limiter = ratelimit.New(&ratelimit.Config{
			MaxPerClient: cfg.RateLimit.MaxAttempts,
			MaxPerIP:     cfg.RateLimit.MaxPerIP,
			Window:       cfg.RateLimit.Window,
		})
	}

	availability.InitHandlers(a.loader, clock, cfg.Location())
	reservations.InitHandlers(a.booking, a.loader, clock, cfg.Location())
	payments.InitHandlers(a.booking)
	calendar.InitHandlers(a.loader, cfg.Club.Courts, clock, cfg.Location())
	blocks.InitHandlers(blocks.Deps{
		AdHoc:     adHoc,
		Recurring: recurring,
		Courts:    cfg.Club.Courts,
		Clock:     clock,
		Location:  cfg.Location(),
	})
	clubconfig.InitHandlers(clubconfig.Deps{
		Schedules: a.loader,
		Store:     clubConfig,
		Courts:    cfg.Club.Courts,
		MaxSlots:  cfg.Club.MaxBookingSlots,
	})

	err := scheduler.RegisterPurgeJob(scheduler.PurgeJob{
		Store:         a.reservations,
		Counter:       purgeCounter,
		RetentionDays: cfg.Scheduler.CancelledRetentionDays,
		Location:      cfg.Location(),
	}, cfg.Scheduler.PurgeCron)
	if err != nil {
		return nil, fmt.Errorf("register purge job: %w", err)
	}

	return a, nil
}

func (a *app) Close() {
	if a.limiter != nil {
		a.limiter.Close()
	}
}

// rateLimitObserver avoids handing the middleware a typed nil when metrics are off.
func (a *app) rateLimitObserver() api.RateLimitObserver {
	if a.metrics == nil {
		return nil
	}
	return a.metrics
}

func newServer(cfg *config.Config, a *app) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithIdentity(cfg.Admin.TokenHash),
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	// Register routes
	registerRoutes(router, a)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, a *app) {
	admin := func(h http.HandlerFunc) http.Handler {
		return api.WithAdminAuth(h)
	}
	limited := api.WithRateLimit(a.limiter, a.cfg.RateLimit.TrustProxy, a.rateLimitObserver())

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if a.metrics != nil {
		mux.Handle("GET /metrics", metrics.NewHandler())
	}

	// Club configuration
	mux.HandleFunc("GET /api/v1/config", clubconfig.HandleGetConfig)
	mux.HandleFunc("GET /api/v1/courts", clubconfig.HandleListCourts)
	mux.Handle("PUT /api/v1/admin/config", admin(clubconfig.HandleUpdateConfig))

	// Availability
	mux.HandleFunc("GET /api/v1/availability", availability.HandleAvailability)
	mux.HandleFunc("POST /api/v1/availability/validate", availability.HandleValidateWindow)

	// Reservations
	mux.HandleFunc("GET /api/v1/reservations", reservations.HandleListReservations)
	mux.Handle("POST /api/v1/reservations", limited(http.HandlerFunc(reservations.HandleCreateReservation)))
	mux.Handle("POST /api/v1/reservations/{ref}/confirm", admin(reservations.HandleConfirmReservation))
	mux.HandleFunc("POST /api/v1/reservations/{ref}/cancel", reservations.HandleCancelReservation)
	mux.HandleFunc("GET /api/v1/customers/{user_id}/reservations", reservations.HandleCustomerReservations)

	// Payment gateway return
	mux.HandleFunc("GET /api/v1/payments/return", payments.HandlePaymentReturn)

	// Admin
	mux.Handle("GET /api/v1/admin/calendar", admin(calendar.HandleCalendar))
	mux.Handle("POST /api/v1/admin/reservations", admin(reservations.HandleAdminCreateReservation))
	mux.Handle("DELETE /api/v1/admin/reservations/{id}", admin(reservations.HandleAdminDeleteReservation))
	mux.Handle("GET /api/v1/admin/blocks", admin(blocks.HandleListBlocks))
	mux.Handle("POST /api/v1/admin/blocks", admin(blocks.HandleCreateBlock))
	mux.Handle("DELETE /api/v1/admin/blocks/{id}", admin(blocks.HandleDeleteBlock))
	mux.Handle("GET /api/v1/admin/recurring-blocks", admin(blocks.HandleListRecurring))
	mux.Handle("POST /api/v1/admin/recurring-blocks", admin(blocks.HandleCreateRecurring))
	mux.Handle("DELETE /api/v1/admin/recurring-blocks/{id}", admin(blocks.HandleDeleteRecurring))
}
