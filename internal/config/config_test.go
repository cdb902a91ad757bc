package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "test-key")
	t.Setenv("CACHE_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultLocation != "London" {
		t.Errorf("DefaultLocation = %q, want London", cfg.DefaultLocation)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v, want 10s", cfg.HTTPTimeout)
	}
	if cfg.WarmPause != 2*time.Second {
		t.Errorf("WarmPause = %v, want 2s", cfg.WarmPause)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "")
	t.Setenv("CACHE_DIR", t.TempDir())

	if _, err := Load(); err == nil {
		t.Fatal("Load() succeeded without an API key")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "test-key")
	t.Setenv("CACHE_DIR", t.TempDir())
	t.Setenv("DEFAULT_LOCATION", "Oslo")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("WARM_PAUSE_SECONDS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultLocation != "Oslo" {
		t.Errorf("DefaultLocation = %q, want Oslo", cfg.DefaultLocation)
	}
	if cfg.HTTPTimeout != 3*time.Second {
		t.Errorf("HTTPTimeout = %v, want 3s", cfg.HTTPTimeout)
	}
	if cfg.WarmPause != 0 {
		t.Errorf("WarmPause = %v, want 0", cfg.WarmPause)
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "test-key")
	t.Setenv("CACHE_DIR", t.TempDir())
	t.Setenv("HTTP_TIMEOUT", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted a malformed HTTP_TIMEOUT")
	}
}
