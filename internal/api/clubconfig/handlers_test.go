package clubconfig

// NOTE: Tests cannot use t.Parallel() due to shared package state.

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/testutil"
)

func setupConfigTest(t *testing.T) *testutil.Fixture {
	t.Helper()

	f := testutil.NewFixture(t, time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC))

	deps = nil
	depsOnce = sync.Once{}
	InitHandlers(Deps{Schedules: f.Loader, Store: f.ClubConfig, Courts: f.Courts, MaxSlots: 3})

	t.Cleanup(func() {
		deps = nil
		depsOnce = sync.Once{}
	})

	return f
}

func decodeConfig(t *testing.T, rec *httptest.ResponseRecorder) configResponse {
	t.Helper()
	var resp configResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestHandleGetConfig_Defaults(t *testing.T) {
	setupConfigTest(t)

	rec := httptest.NewRecorder()
	HandleGetConfig(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeConfig(t, rec)
	if resp.OpenTime != "14:00" || resp.CloseTime != "00:00" || !resp.CrossesMidnight {
		t.Fatalf("unexpected hours: %+v", resp)
	}
	if len(resp.Slots) != 10 || resp.Slots[9].Label() != "23:00" {
		t.Fatalf("unexpected slots: %v", resp.Slots)
	}
	if resp.Stored || resp.Warning != "" || resp.MaxBookingSlots != 3 || len(resp.Courts) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleGetConfig_WarnsOnFallback(t *testing.T) {
	f := setupConfigTest(t)

	// A row written outside the admin endpoint can still be malformed.
	if err := f.ClubConfig.PutSchedule(context.Background(), models.ClubSchedule{OpenTime: "25:00", CloseTime: "02:00", SlotMinutes: 60}); err != nil {
		t.Fatalf("put schedule: %v", err)
	}

	rec := httptest.NewRecorder()
	HandleGetConfig(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	resp := decodeConfig(t, rec)
	if resp.Warning == "" || !resp.Stored {
		t.Fatalf("expected fallback warning, got %+v", resp)
	}
	if resp.OpenTime != "14:00" || len(resp.Slots) != 10 {
		t.Fatalf("expected fallback slots, got %+v", resp)
	}
}

func TestHandleUpdateConfig(t *testing.T) {
	f := setupConfigTest(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "midnight crossing", body: `{"openTime":"4:00 PM","closeTime":"02:00","slotMinutes":90}`, status: http.StatusOK},
		{name: "bad time", body: `{"openTime":"nope","closeTime":"02:00","slotMinutes":60}`, status: http.StatusBadRequest},
		{name: "zero slot length", body: `{"openTime":"14:00","closeTime":"02:00","slotMinutes":0}`, status: http.StatusBadRequest},
		{name: "unknown field", body: `{"openTime":"14:00","closeTime":"02:00","slotMinutes":60,"x":1}`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/config", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			HandleUpdateConfig(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}

	stored, found, err := f.ClubConfig.GetSchedule(context.Background())
	if err != nil || !found {
		t.Fatalf("get schedule: found=%v err=%v", found, err)
	}
	if stored.OpenTime != "16:00" || stored.CloseTime != "02:00" || stored.SlotMinutes != 90 {
		t.Fatalf("unexpected stored schedule: %+v", stored)
	}
}

func TestHandleListCourts(t *testing.T) {
	setupConfigTest(t)

	rec := httptest.NewRecorder()
	HandleListCourts(rec, httptest.NewRequest(http.MethodGet, "/api/v1/courts", nil))

	var courts []models.Court
	if err := json.Unmarshal(rec.Body.Bytes(), &courts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(courts) != 2 || courts[0].Label != "Court 1" {
		t.Fatalf("unexpected courts: %+v", courts)
	}
}
