package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/usageledger/config"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func newHolder(t *testing.T, content string) (*config.Holder, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, content)

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("new holder: %v", err)
	}
	return h, path
}

func TestHolder_Get(t *testing.T) {
	h, _ := newHolder(t, "limits:\n  requests_per_minute: 42\n")
	defer h.Stop()

	if got := h.Get().Limits.RequestsPerMinute; got != 42 {
		t.Errorf("RequestsPerMinute = %d, want 42", got)
	}
}

func TestHolder_Reload(t *testing.T) {
	h, path := newHolder(t, "limits:\n  requests_per_minute: 42\n")
	defer h.Stop()

	writeConfig(t, path, "limits:\n  requests_per_minute: 99\n")
	if err := h.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if got := h.Get().Limits.RequestsPerMinute; got != 99 {
		t.Errorf("RequestsPerMinute after reload = %d, want 99", got)
	}
}

func TestHolder_OnChange(t *testing.T) {
	h, path := newHolder(t, "limits:\n  requests_per_minute: 42\n")
	defer h.Stop()

	var got int64
	h.OnChange(func(cfg *config.Config) {
		got = cfg.Limits.RequestsPerMinute
	})

	writeConfig(t, path, "limits:\n  requests_per_minute: 7\n")
	if err := h.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got != 7 {
		t.Errorf("callback saw %d, want 7", got)
	}
}

func TestHolder_ReloadInvalidKeepsOld(t *testing.T) {
	h, path := newHolder(t, "limits:\n  requests_per_minute: 42\n")
	defer h.Stop()

	writeConfig(t, path, "logging:\n  level: verbose\n")
	if err := h.Reload(); err == nil {
		t.Fatal("expected reload error")
	}

	if got := h.Get().Limits.RequestsPerMinute; got != 42 {
		t.Errorf("old config lost on failed reload: %d", got)
	}
}

func TestHolder_WatchFile(t *testing.T) {
	h, path := newHolder(t, "limits:\n  requests_per_minute: 42\n")
	defer h.Stop()

	if err := h.WatchFile(); err != nil {
		t.Fatalf("watch file: %v", err)
	}

	writeConfig(t, path, "limits:\n  requests_per_minute: 77\n")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if h.Get().Limits.RequestsPerMinute == 77 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("file change was not picked up")
}

func TestHolder_ConcurrentAccess(t *testing.T) {
	h, path := newHolder(t, "limits:\n  requests_per_minute: 42\n")
	defer h.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = h.Get().Limits.RequestsPerMinute
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = os.WriteFile(path, []byte("limits:\n  requests_per_minute: 50\n"), 0o644)
			_ = h.Reload()
		}()
	}
	wg.Wait()
}

func TestReloadableFields(t *testing.T) {
	fields := config.ReloadableFields()
	if len(fields) == 0 {
		t.Fatal("no reloadable fields listed")
	}
	found := false
	for _, f := range fields {
		if f == "pricing" {
			found = true
		}
	}
	if !found {
		t.Error("pricing should be reloadable")
	}
}
