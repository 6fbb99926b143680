package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/codr1/courtbook/internal/api/authz"
	"github.com/codr1/courtbook/internal/config"
	"github.com/codr1/courtbook/internal/testutil"
)

const testConfigYAML = `
app:
  name: courtbook
  environment: test
  port: 8080
  timezone: UTC
database:
  driver: sqlite
  filename: unused.db
club:
  open_time: "14:00"
  close_time: "00:00"
  slot_minutes: 60
  courts:
    - id: 1
      label: Court 1
scheduler:
  purge_cron: ""
ratelimit:
  max_attempts: 1
  max_per_ip: 10
`

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	hash, err := authz.HashToken("s3cret")
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	t.Setenv("ADMIN_TOKEN_HASH", hash)

	cfg, err := config.Parse([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	a, err := newApp(cfg, testutil.NewTestDB(t))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(a.Close)

	return newServer(cfg, a).Handler
}

func TestServerRoutes(t *testing.T) {
	handler := newTestHandler(t)

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		status int
	}{
		{name: "health", method: http.MethodGet, path: "/health", status: http.StatusOK},
		{name: "public config", method: http.MethodGet, path: "/api/v1/config", status: http.StatusOK},
		{name: "calendar without token", method: http.MethodGet, path: "/api/v1/admin/calendar", status: http.StatusUnauthorized},
		{
			name:   "calendar with wrong token",
			method: http.MethodGet,
			path:   "/api/v1/admin/calendar",
			header: map[string]string{"X-Admin-Token": "nope"},
			status: http.StatusForbidden,
		},
		{
			name:   "calendar with token",
			method: http.MethodGet,
			path:   "/api/v1/admin/calendar?date=2026-10-14",
			header: map[string]string{"X-Admin-Token": "s3cret"},
			status: http.StatusOK,
		},
		{name: "confirm requires admin", method: http.MethodPost, path: "/api/v1/reservations/abc/confirm", status: http.StatusUnauthorized},
		{name: "metrics disabled", method: http.MethodGet, path: "/metrics", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Fatal("missing X-Request-ID header")
			}
		})
	}

	// Handlers are package singletons, so the same app serves every check.
	t.Run("reservation create is rate limited", func(t *testing.T) {
		testRateLimitsReservationCreate(t, handler)
	})
}

func testRateLimitsReservationCreate(t *testing.T, handler http.Handler) {
	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{}`))
		req.Header.Set("X-User-ID", "cust-9")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	// The first attempt reaches the handler and fails validation.
	if rec := post(); rec.Code != http.StatusBadRequest {
		t.Fatalf("first status = %d: %s", rec.Code, rec.Body.String())
	}
	rec := post()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}
