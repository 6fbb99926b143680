package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := `
app:
  name: courtbook
  environment: test
  port: 8080
  timezone: UTC
database:
  driver: sqlite
  filename: ` + filepath.Join(dir, "courtbook.db") + `
club:
  open_time: "14:00"
  close_time: "17:00"
  slot_minutes: 60
  courts:
    - id: 1
      label: Court 1
    - id: 2
      label: Court 2
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestHashToken(t *testing.T) {
	out, err := run(t, "s3cret\n", "hash-token")
	if err != nil {
		t.Fatalf("hash-token: %v", err)
	}
	hash := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Fatalf("hash does not match token: %v", err)
	}

	if _, err := run(t, "", "hash-token", "  "); err == nil {
		t.Fatal("expected blank token to be rejected")
	}
}

func TestMigrateAndSlots(t *testing.T) {
	cfgPath := writeConfig(t)

	if _, err := run(t, "", "migrate", "up", "--config", cfgPath); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	out, err := run(t, "", "migrate", "version", "--config", cfgPath)
	if err != nil {
		t.Fatalf("migrate version: %v", err)
	}
	if !strings.Contains(out, "Dirty: false") {
		t.Fatalf("unexpected version output: %q", out)
	}

	out, err = run(t, "", "slots", "--config", cfgPath, "--date", "2099-01-07")
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	for _, want := range []string{"Court 1", "Court 2", "14:00", "16:00", "free"} {
		if !strings.Contains(out, want) {
			t.Errorf("slots output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "17:00") {
		t.Errorf("closing time listed as a slot:\n%s", out)
	}

	out, err = run(t, "", "purge", "--config", cfgPath, "--retention-days", "0")
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if !strings.Contains(out, "Purged 0 cancelled reservations") {
		t.Fatalf("unexpected purge output: %q", out)
	}
}

func TestMigrateRejectsUnknownDirection(t *testing.T) {
	if _, err := run(t, "", "migrate", "sideways"); err == nil {
		t.Fatal("expected an error for an unknown direction")
	}
}
