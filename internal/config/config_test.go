package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
app:
  name: courtbook
  port: 8080
  timezone: UTC
database:
  driver: sqlite
  filename: data/courtbook.db
club:
  open_time: "14:00"
  close_time: "02:00"
  slot_minutes: 60
  max_booking_slots: 3
  courts:
    - id: 1
      label: Court 1
    - id: 2
      label: Court 2
payment:
  checkout_url: https://pay.example.com/checkout
  return_url: https://club.example.com/api/v1/payments/return
ratelimit:
  max_attempts: 5
  window: 10m
`

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.Club.Courts) != 2 || cfg.Club.Courts[1].Label != "Court 2" {
		t.Fatalf("unexpected courts: %+v", cfg.Club.Courts)
	}
	if cfg.RateLimit.Window != 10*time.Minute {
		t.Fatalf("window = %v, want 10m", cfg.RateLimit.Window)
	}
	if cfg.Scheduler.PurgeCron != "0 4 * * *" {
		t.Fatalf("default purge cron not applied: %q", cfg.Scheduler.PurgeCron)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("location = %v, want UTC", cfg.Location())
	}
	if got := cfg.Club.Schedule(); got.CloseTime != "02:00" || got.SlotMinutes != 60 {
		t.Fatalf("unexpected schedule: %+v", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		wantErr string
	}{
		{name: "bad_open_time", replace: [2]string{`open_time: "14:00"`, `open_time: "noon"`}, wantErr: "open_time"},
		{name: "bad_cron", replace: [2]string{"ratelimit:", "scheduler:\n  purge_cron: \"every day\"\nratelimit:"}, wantErr: "purge_cron"},
		{name: "bad_driver", replace: [2]string{"driver: sqlite", "driver: postgres"}, wantErr: "driver"},
		{name: "missing_filename", replace: [2]string{"filename: data/courtbook.db", ""}, wantErr: "filename"},
		{name: "duplicate_court", replace: [2]string{"id: 2", "id: 1"}, wantErr: "duplicate court"},
		{name: "bad_timezone", replace: [2]string{"timezone: UTC", "timezone: Mars/Olympus"}, wantErr: "timezone"},
		{name: "missing_return_url", replace: [2]string{"return_url: https://club.example.com/api/v1/payments/return", ""}, wantErr: "return_url"},
		{name: "turso_without_token", replace: [2]string{"driver: sqlite", "driver: turso\n  url: libsql://club.turso.io"}, wantErr: "auth token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_AUTH_TOKEN", "")
			data := strings.Replace(validYAML, tt.replace[0], tt.replace[1], 1)
			_, err := Parse([]byte(data))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_ReadsSecretsFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(validYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ADMIN_TOKEN_HASH=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("ADMIN_TOKEN_HASH", "")
	os.Unsetenv("ADMIN_TOKEN_HASH")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Admin.TokenHash != "from-dotenv" {
		t.Fatalf("token hash = %q, want value from .env", cfg.Admin.TokenHash)
	}
}
