package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Rokurolize/ttsrelay/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("TTS_ENGINE", "voicevox")
	t.Setenv("VOICEVOX_URL", "http://localhost:50021")
}

func TestWatcher_InitialLoad(t *testing.T) {
	setBaseEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "overlay.yaml")
	writeFile(t, cfgPath, "RATE_LIMIT_MESSAGES: 5\n")

	w, err := config.NewWatcher(cfgPath, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.RateLimitMessages != 5 {
		t.Errorf("RateLimitMessages = %d, want 5", cfg.RateLimitMessages)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	setBaseEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "overlay.yaml")
	writeFile(t, cfgPath, "RATE_LIMIT_MESSAGES: 5\n")

	changes := make(chan config.Diff, 1)
	w, err := config.NewWatcher(cfgPath, func(_, _ *config.Config, diff config.Diff) {
		changes <- diff
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeFile(t, cfgPath, "RATE_LIMIT_MESSAGES: 20\n")

	select {
	case diff := <-changes:
		if !diff.RateLimitChanged {
			t.Error("expected RateLimitChanged")
		}
		if diff.NewRateLimit != 20 {
			t.Errorf("NewRateLimit = %d, want 20", diff.NewRateLimit)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher to detect change")
	}

	if got := w.Current().RateLimitMessages; got != 20 {
		t.Errorf("Current().RateLimitMessages = %d, want 20", got)
	}
}

func TestWatcher_InvalidReloadKeepsPreviousConfig(t *testing.T) {
	setBaseEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "overlay.yaml")
	writeFile(t, cfgPath, "RATE_LIMIT_MESSAGES: 5\n")

	w, err := config.NewWatcher(cfgPath, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeFile(t, cfgPath, "RATE_LIMIT_MESSAGES: -1\n")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Current().RateLimitMessages != 5 {
			t.Fatal("watcher applied an invalid config")
		}
		time.Sleep(50 * time.Millisecond)
	}
}
