// Package metrics exposes the Prometheus collectors for the booking flow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codr1/courtbook/internal/models"
)

// Service holds all the Prometheus metrics for the application.
type Service struct {
	ReservationsCreated    *prometheus.CounterVec
	ReservationTransitions *prometheus.CounterVec
	SlotConflicts          prometheus.Counter
	SnapshotLoadDuration   prometheus.Histogram
	SnapshotLoadFailures   prometheus.Counter
	CancelledRowsPurged    prometheus.Counter
	RateLimitedRequests    prometheus.Counter
}

// NewHandler returns an http.Handler for the given Gatherer, or the default one.
func NewHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the collectors with registerer, or with
// the default registerer when none is given.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		ReservationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtbook_reservations_created_total",
			Help: "Reservation rows created, by initial status.",
		}, []string{"status"}),
		ReservationTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtbook_reservation_transitions_total",
			Help: "Reservation rows moved to a new status.",
		}, []string{"to"}),
		SlotConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtbook_slot_conflicts_total",
			Help: "Bookings rejected by storage because the slot was taken concurrently.",
		}),
		SnapshotLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "courtbook_snapshot_load_duration_seconds",
			Help:    "Time to fetch one availability snapshot.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		SnapshotLoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtbook_snapshot_load_failures_total",
			Help: "Availability snapshot loads that failed.",
		}),
		CancelledRowsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtbook_cancelled_rows_purged_total",
			Help: "Cancelled reservation rows removed by the purge job.",
		}),
		RateLimitedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtbook_rate_limited_requests_total",
			Help: "Reservation requests rejected by the rate limiter.",
		}),
	}

	reg.MustRegister(
		s.ReservationsCreated,
		s.ReservationTransitions,
		s.SlotConflicts,
		s.SnapshotLoadDuration,
		s.SnapshotLoadFailures,
		s.CancelledRowsPurged,
		s.RateLimitedRequests,
	)

	return s
}

func (s *Service) Created(status models.ReservationStatus, n int) {
	s.ReservationsCreated.WithLabelValues(string(status)).Add(float64(n))
}

func (s *Service) Transitioned(to models.ReservationStatus, n int) {
	s.ReservationTransitions.WithLabelValues(string(to)).Add(float64(n))
}

func (s *Service) Conflict() {
	s.SlotConflicts.Inc()
}

func (s *Service) ObserveSnapshotLoad(d time.Duration, err error) {
	s.SnapshotLoadDuration.Observe(d.Seconds())
	if err != nil {
		s.SnapshotLoadFailures.Inc()
	}
}

func (s *Service) Purged(n int64) {
	s.CancelledRowsPurged.Add(float64(n))
}

func (s *Service) RateLimited() {
	s.RateLimitedRequests.Inc()
}
