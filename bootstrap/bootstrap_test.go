package bootstrap_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/usageledger/bootstrap"
	"github.com/artpar/usageledger/ports"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNew_WiresApplication(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 0
database:
  driver: sqlite
  dsn: `+filepath.Join(dir, "test.db")+`
limits:
  requests_per_minute: 10
  requests_per_day: 100
  ai_requests_per_day: 5
rollup:
  interval: 0s
  on_start: false
`)

	a, err := bootstrap.New(path)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer a.Shutdown()

	if a.DB == nil {
		t.Error("DB not initialized")
	}
	if a.HTTPServer == nil {
		t.Error("HTTP server not initialized")
	}
	if a.Keys == nil || a.Aggregator == nil || a.Projects == nil {
		t.Error("services not initialized")
	}

	// The database is migrated and usable.
	ctx := context.Background()
	if err := a.Projects.Create(ctx, ports.Project{ID: "p1", Name: "test"}); err != nil {
		t.Errorf("project create after migrate: %v", err)
	}
}

func TestNew_BadConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
`)

	if _, err := bootstrap.New(path); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestNew_MissingConfigFile(t *testing.T) {
	if _, err := bootstrap.New("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
