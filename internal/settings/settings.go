// Package settings reads and writes the user preferences that survive
// restarts: the auto-refresh interval and the temperature unit.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SzymonGieraga/weatherGapp/internal/weather"
)

// DefaultRefreshIntervalMinutes disables auto-refresh.
const DefaultRefreshIntervalMinutes = 0

// RefreshIntervalOptions are the accepted auto-refresh intervals in minutes.
// 0 means disabled.
var RefreshIntervalOptions = []int{0, 15, 30, 60}

// Settings is the whole persisted preference set; saved as one snapshot,
// never patched field by field.
type Settings struct {
	RefreshIntervalMinutes int          `json:"refreshIntervalMinutes"`
	Unit                   weather.Unit `json:"unit"`
}

// ValidInterval reports whether the interval is one of the accepted options.
func ValidInterval(minutes int) bool {
	for _, opt := range RefreshIntervalOptions {
		if minutes == opt {
			return true
		}
	}
	return false
}

// Store persists settings as a single JSON file.
type Store struct {
	path string
}

func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, "settings.json")}
}

// Load returns the persisted settings, or defaults when nothing has been
// saved yet.
func (s *Store) Load() (Settings, error) {
	defaults := Settings{
		RefreshIntervalMinutes: DefaultRefreshIntervalMinutes,
		Unit:                   weather.UnitMetric,
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("read settings: %w", err)
	}

	var loaded Settings
	if err := json.Unmarshal(data, &loaded); err != nil {
		return defaults, fmt.Errorf("decode settings: %w", err)
	}
	if !ValidInterval(loaded.RefreshIntervalMinutes) {
		loaded.RefreshIntervalMinutes = DefaultRefreshIntervalMinutes
	}
	if loaded.Unit == "" {
		loaded.Unit = defaults.Unit
	}
	return loaded, nil
}

// Save replaces the persisted settings.
func (s *Store) Save(settings Settings) error {
	if !ValidInterval(settings.RefreshIntervalMinutes) {
		return fmt.Errorf("refresh interval %d is not one of %v",
			settings.RefreshIntervalMinutes, RefreshIntervalOptions)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
