package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/codr1/courtbook/internal/models"
)

func TestServiceCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewService(reg)

	s.Created(models.StatusPending, 2)
	s.Created(models.StatusConfirmed, 1)
	s.Transitioned(models.StatusCancelled, 3)
	s.Conflict()
	s.ObserveSnapshotLoad(20*time.Millisecond, nil)
	s.ObserveSnapshotLoad(time.Second, errors.New("timeout"))
	s.Purged(4)

	if got := testutil.ToFloat64(s.ReservationsCreated.WithLabelValues("pending")); got != 2 {
		t.Fatalf("pending created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.ReservationTransitions.WithLabelValues("cancelled")); got != 3 {
		t.Fatalf("cancelled transitions = %v, want 3", got)
	}
	if got := testutil.ToFloat64(s.SlotConflicts); got != 1 {
		t.Fatalf("conflicts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.SnapshotLoadFailures); got != 1 {
		t.Fatalf("load failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.CancelledRowsPurged); got != 4 {
		t.Fatalf("purged = %v, want 4", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewService(reg)
	s.Conflict()

	rec := httptest.NewRecorder()
	NewHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "courtbook_slot_conflicts_total 1") {
		t.Fatalf("metrics output missing conflict counter:\n%s", body)
	}
}
