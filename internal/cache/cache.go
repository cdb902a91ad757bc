// Package cache persists raw weather payloads per location on disk, plus the
// last-viewed location and the favorites list. Callers that only care about
// "is there data" treat any load error as a cache miss; the methods still
// return the real error so the caller can log it.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNotCached is returned when no entry exists for the requested location.
var ErrNotCached = errors.New("not cached")

const (
	currentSuffix  = "_current.json"
	forecastSuffix = "_forecast.json"

	lastLocationFile = "last_location.txt"
	favoritesFile    = "favorites.json"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9,\-_]`)

// SanitizeKey turns a free-form location string into a filesystem-safe cache
// identifier: characters outside letters, digits, comma, hyphen and
// underscore become underscores, then the result is percent-encoded.
//
// Known limitation: two genuinely distinct inputs can sanitize to the same
// key (e.g. "a b" and "a_b") and will share cache entries. Inherited
// behavior; last write wins.
func SanitizeKey(location string) string {
	return url.QueryEscape(unsafeChars.ReplaceAllString(location, "_"))
}

// Store is a file-per-location cache rooted at a single directory.
type Store struct {
	dir string
	log *logrus.Logger
}

// NewStore creates the cache directory if needed and returns the store.
func NewStore(dir string, log *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

// SaveCurrent persists a raw current-weather payload for a location.
func (s *Store) SaveCurrent(location string, payload []byte) error {
	return s.save(SanitizeKey(location)+currentSuffix, payload)
}

// LoadCurrent returns the cached current-weather payload for a location, or
// ErrNotCached.
func (s *Store) LoadCurrent(location string) ([]byte, error) {
	return s.load(SanitizeKey(location) + currentSuffix)
}

// SaveForecast persists a raw forecast payload for a location.
func (s *Store) SaveForecast(location string, payload []byte) error {
	return s.save(SanitizeKey(location)+forecastSuffix, payload)
}

// LoadForecast returns the cached forecast payload for a location, or
// ErrNotCached.
func (s *Store) LoadForecast(location string) ([]byte, error) {
	return s.load(SanitizeKey(location) + forecastSuffix)
}

// Delete removes both cached payloads for a location. Missing files are not
// an error.
func (s *Store) Delete(location string) {
	key := SanitizeKey(location)
	for _, name := range []string{key + currentSuffix, key + forecastSuffix} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.WithError(err).WithField("file", name).Warn("failed to delete cached payload")
		}
	}
	s.log.WithField("location", location).Debug("deleted cached weather data")
}

// SaveLastViewed records the location to restore on next startup.
func (s *Store) SaveLastViewed(location string) error {
	return s.save(lastLocationFile, []byte(location))
}

// LoadLastViewed returns the recorded location, or ErrNotCached.
func (s *Store) LoadLastViewed() (string, error) {
	data, err := s.load(lastLocationFile)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SaveFavorites replaces the persisted favorites list wholesale.
func (s *Store) SaveFavorites(favorites []string) error {
	data, err := json.Marshal(favorites)
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	return s.save(favoritesFile, data)
}

// LoadFavorites returns the persisted favorites list. A missing or unreadable
// file yields an empty list, matching "never favorited anything".
func (s *Store) LoadFavorites() []string {
	data, err := s.load(favoritesFile)
	if err != nil {
		if !errors.Is(err, ErrNotCached) {
			s.log.WithError(err).Warn("failed to load favorites")
		}
		return nil
	}
	var favorites []string
	if err := json.Unmarshal(data, &favorites); err != nil {
		s.log.WithError(err).Warn("favorites file is corrupt; starting empty")
		return nil
	}
	return favorites
}

func (s *Store) save(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (s *Store) load(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// ContainsFavorite reports whether the list already holds the location,
// ignoring case.
func ContainsFavorite(favorites []string, location string) bool {
	for _, fav := range favorites {
		if strings.EqualFold(fav, location) {
			return true
		}
	}
	return false
}

// AddFavorite appends a location to the list, keeping entries unique
// case-insensitively. Re-adding an existing favorite with different casing
// updates the stored casing. The second return reports whether the list
// changed.
func AddFavorite(favorites []string, location string) ([]string, bool) {
	if strings.TrimSpace(location) == "" {
		return favorites, false
	}
	for i, fav := range favorites {
		if strings.EqualFold(fav, location) {
			if fav == location {
				return favorites, false
			}
			out := append([]string(nil), favorites...)
			out[i] = location
			return out, true
		}
	}
	return append(append([]string(nil), favorites...), location), true
}

// RemoveFavorite removes a location from the list, ignoring case. The second
// return reports whether the list changed.
func RemoveFavorite(favorites []string, location string) ([]string, bool) {
	out := favorites[:0:0]
	removed := false
	for _, fav := range favorites {
		if strings.EqualFold(fav, location) {
			removed = true
			continue
		}
		out = append(out, fav)
	}
	if !removed {
		return favorites, false
	}
	return out, true
}
