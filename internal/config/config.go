package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	OpenWeatherAPIKey string

	// BaseURL overrides the remote API endpoint; empty means production.
	BaseURL string

	// DefaultLocation anchors the offline fallback cascade and the first
	// fetch when nothing was viewed before.
	DefaultLocation string

	// CacheDir holds per-location payload files, favorites and settings.
	CacheDir string

	HTTPTimeout time.Duration

	// WarmPause is the delay between favorite locations during the
	// background cache-warming pass.
	WarmPause time.Duration

	// ProbeAddr is the TCP address dialed by the connectivity check.
	ProbeAddr string

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.BaseURL = os.Getenv("OPENWEATHER_BASE_URL")
	cfg.DefaultLocation = getenvDefault("DEFAULT_LOCATION", "London")
	cfg.ProbeAddr = getenvDefault("CONNECTIVITY_PROBE_ADDR", "api.openweathermap.org:443")
	cfg.Port = getenvDefault("PORT", "8080")

	cacheDir := os.Getenv("CACHE_DIR")
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		cacheDir = filepath.Join(base, "weathergapp")
	}
	cfg.CacheDir = cacheDir

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.WarmPause = time.Duration(getenvInt("WARM_PAUSE_SECONDS", 2)) * time.Second

	if cfg.OpenWeatherAPIKey == "" {
		return nil, fmt.Errorf("OPENWEATHER_API_KEY is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
