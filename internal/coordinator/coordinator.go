// Package coordinator decides, per refresh, whether weather data comes from
// the network or the local cache, and keeps the shared state store and the
// cache consistent with each other.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/SzymonGieraga/weatherGapp/internal/cache"
	"github.com/SzymonGieraga/weatherGapp/internal/connectivity"
	"github.com/SzymonGieraga/weatherGapp/internal/store"
	"github.com/SzymonGieraga/weatherGapp/internal/weather"
)

var (
	// ErrOffline means the connectivity gate rejected the fetch attempt.
	ErrOffline = errors.New("network unavailable")

	// ErrSuperseded means a newer refresh cycle started before this one
	// finished; its late results were discarded.
	ErrSuperseded = errors.New("superseded by newer refresh")

	// ErrNoCachedData means the offline path found nothing for the
	// requested location, the first favorite, or the default location.
	ErrNoCachedData = errors.New("no cached data")

	// ErrMissingCoordinates means the current-weather payload carried no
	// coordinates, so the forecast stage could not run.
	ErrMissingCoordinates = errors.New("coordinates not found in current weather payload")

	errEmptyLocation = errors.New("location is empty")
)

// Phase is the coordinator's position in the fetch cycle state machine.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseLoadingCurrent  Phase = "loading_current"
	PhaseLoadingForecast Phase = "loading_forecast"
	PhaseReady           Phase = "ready"
	PhaseErrorCurrent    Phase = "error_current"
	PhaseErrorForecast   Phase = "error_forecast"
)

// Status is an observable snapshot of the coordinator's state. Stale marks
// data served from cache rather than a live fetch.
type Status struct {
	Phase       Phase        `json:"phase"`
	Location    string       `json:"location"`
	DisplayName string       `json:"displayName,omitempty"`
	Unit        weather.Unit `json:"unit"`
	Stale       bool         `json:"stale"`
	Error       string       `json:"error,omitempty"`
	ForecastErr string       `json:"forecastError,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Fetcher is the remote fetch client contract.
type Fetcher interface {
	FetchCurrent(ctx context.Context, location string, unit weather.Unit) ([]byte, error)
	FetchForecast(ctx context.Context, lat, lon float64, unit weather.Unit) ([]byte, error)
}

// Coordinator orchestrates the two-stage fetch, the offline fallback and the
// favorites cache-warming pass. Construct one per process and share it.
type Coordinator struct {
	fetcher Fetcher
	cache   *cache.Store
	weather *store.Store
	checker connectivity.Checker
	log     *logrus.Logger

	defaultLocation string
	warmPause       time.Duration

	gen      atomic.Int64
	warmOnce sync.Once

	mu        sync.Mutex
	status    Status
	favorites []string
}

// Config carries the coordinator's collaborators and tunables.
type Config struct {
	Fetcher         Fetcher
	Cache           *cache.Store
	Store           *store.Store
	Checker         connectivity.Checker
	Log             *logrus.Logger
	DefaultLocation string
	WarmPause       time.Duration
}

func New(cfg Config) *Coordinator {
	if cfg.DefaultLocation == "" {
		cfg.DefaultLocation = "London"
	}
	return &Coordinator{
		fetcher:         cfg.Fetcher,
		cache:           cfg.Cache,
		weather:         cfg.Store,
		checker:         cfg.Checker,
		log:             cfg.Log,
		defaultLocation: cfg.DefaultLocation,
		warmPause:       cfg.WarmPause,
		status:          Status{Phase: PhaseIdle},
		favorites:       cfg.Cache.LoadFavorites(),
	}
}

// Refresh runs one fetch cycle for the location. Manual refreshes propagate
// failures to the caller; background refreshes also return the error, but
// callers are expected to only log it. A cycle superseded by a newer one
// stops with ErrSuperseded and leaves the newer cycle's state untouched.
func (c *Coordinator) Refresh(ctx context.Context, location string, unit weather.Unit, manual bool) error {
	loc := strings.TrimSpace(location)
	if loc == "" {
		return errEmptyLocation
	}

	gen := c.gen.Add(1)
	log := c.log.WithFields(logrus.Fields{
		"cycle":    uuid.NewString(),
		"location": loc,
		"manual":   manual,
	})

	c.transition(gen, func(s *Status) {
		*s = Status{Phase: PhaseLoadingCurrent, Location: loc, Unit: unit, UpdatedAt: time.Now()}
	})

	// Pre-flight gate: a known-offline device goes straight to cache
	// instead of attempting and failing.
	if !c.checker.Online(ctx) {
		log.Info("network unavailable, loading cached data")
		if err := c.loadFromCache(gen, loc, true, log); err != nil {
			c.failCurrent(gen, ErrOffline)
			return fmt.Errorf("%w: %v", ErrOffline, err)
		}
		return nil
	}

	raw, err := c.fetcher.FetchCurrent(ctx, loc, unit)
	if err != nil {
		return c.recoverCurrentFailure(gen, loc, fmt.Errorf("fetch current weather: %w", err), log)
	}

	parsed, err := weather.ParseCurrent(raw)
	if err != nil {
		return c.recoverCurrentFailure(gen, loc, err, log)
	}
	if parsed.Coord == nil {
		// The forecast is keyed by these coordinates; without them the
		// whole cycle counts as a current-stage failure.
		return c.recoverCurrentFailure(gen, loc, ErrMissingCoordinates, log)
	}

	if !c.commitCurrent(gen, loc, raw, parsed.DisplayName(), log) {
		return ErrSuperseded
	}

	fraw, err := c.fetcher.FetchForecast(ctx, parsed.Coord.Lat, parsed.Coord.Lon, unit)
	if err != nil {
		c.failForecast(gen, err)
		log.WithError(err).Error("forecast fetch failed")
		return fmt.Errorf("fetch forecast: %w", err)
	}

	if !c.commitForecast(gen, loc, fraw, log) {
		return ErrSuperseded
	}

	if manual {
		log.Info("weather data refreshed")
	}

	c.warmOnce.Do(func() {
		go c.warmFavorites(context.WithoutCancel(ctx), unit)
	})
	return nil
}

// recoverCurrentFailure records a current-stage error (which also poisons
// forecast state as a dependency error) and then attempts the offline path
// as best-effort recovery.
func (c *Coordinator) recoverCurrentFailure(gen int64, loc string, cause error, log *logrus.Entry) error {
	log.WithError(cause).Error("current weather fetch failed")
	c.failCurrent(gen, cause)

	if err := c.loadFromCache(gen, loc, false, log); err == nil {
		log.Info("recovered with cached data")
	}
	return cause
}

// loadFromCache is the offline path: serve cached payloads for the target
// location, cascading to the first favorite and then the default location.
// Only the top-level attempt reports a miss for the requested location;
// cascade attempts stay quiet.
func (c *Coordinator) loadFromCache(gen int64, loc string, topLevel bool, log *logrus.Entry) error {
	candidates := []string{loc}
	if favs := c.Favorites(); len(favs) > 0 && !strings.EqualFold(favs[0], loc) {
		candidates = append(candidates, favs[0])
	}
	if !containsFold(candidates, c.defaultLocation) {
		candidates = append(candidates, c.defaultLocation)
	}

	for i, candidate := range candidates {
		current, cerr := c.cache.LoadCurrent(candidate)
		forecast, ferr := c.cache.LoadForecast(candidate)
		for _, err := range []error{cerr, ferr} {
			if err != nil && !errors.Is(err, cache.ErrNotCached) {
				// An I/O failure degrades to a miss from this point on.
				log.WithError(err).Warn("cache read failed")
			}
		}
		if cerr != nil && ferr != nil {
			if i == 0 && topLevel {
				log.WithField("candidate", candidate).Warn("no cached data for requested location")
			}
			continue
		}

		applied := c.transition(gen, func(s *Status) {
			s.Phase = PhaseReady
			s.Location = candidate
			s.Stale = true
			s.Error = ""
			s.ForecastErr = ""
			s.UpdatedAt = time.Now()
		})
		if !applied {
			return ErrSuperseded
		}

		if cerr == nil {
			if err := c.weather.PublishCurrent(current); err != nil {
				log.WithError(err).Warn("skipped publishing cached current weather")
			}
		}
		if ferr == nil {
			if err := c.weather.PublishForecast(forecast); err != nil {
				log.WithError(err).Warn("skipped publishing cached forecast")
			}
		}
		log.WithField("candidate", candidate).Info("serving cached weather data")
		return nil
	}

	return fmt.Errorf("%w for %q", ErrNoCachedData, loc)
}

func (c *Coordinator) commitCurrent(gen int64, loc string, raw []byte, displayName string, log *logrus.Entry) bool {
	applied := c.transition(gen, func(s *Status) {
		s.Phase = PhaseLoadingForecast
		s.DisplayName = displayName
		s.Stale = false
		s.Error = ""
		s.ForecastErr = ""
		s.UpdatedAt = time.Now()
	})
	if !applied {
		return false
	}

	if err := c.cache.SaveCurrent(loc, raw); err != nil {
		// The cache silently goes stale; the live payload still flows.
		log.WithError(err).Warn("failed to cache current weather")
	}
	if err := c.cache.SaveLastViewed(loc); err != nil {
		log.WithError(err).Warn("failed to save last viewed location")
	}
	if err := c.weather.PublishCurrent(raw); err != nil {
		log.WithError(err).Warn("skipped publishing current weather")
	}
	return true
}

func (c *Coordinator) commitForecast(gen int64, loc string, raw []byte, log *logrus.Entry) bool {
	applied := c.transition(gen, func(s *Status) {
		s.Phase = PhaseReady
		s.UpdatedAt = time.Now()
	})
	if !applied {
		return false
	}

	if err := c.cache.SaveForecast(loc, raw); err != nil {
		log.WithError(err).Warn("failed to cache forecast")
	}
	if err := c.weather.PublishForecast(raw); err != nil {
		log.WithError(err).Warn("skipped publishing forecast")
	}
	return true
}

func (c *Coordinator) failCurrent(gen int64, cause error) {
	c.transition(gen, func(s *Status) {
		s.Phase = PhaseErrorCurrent
		s.Error = cause.Error()
		// A current-weather failure invalidates the forecast too; it
		// could not even be requested.
		s.ForecastErr = "dependency error: " + cause.Error()
		s.UpdatedAt = time.Now()
	})
}

func (c *Coordinator) failForecast(gen int64, cause error) {
	c.transition(gen, func(s *Status) {
		// Current-weather state stays valid; only the forecast errored.
		s.Phase = PhaseErrorForecast
		s.ForecastErr = cause.Error()
		s.UpdatedAt = time.Now()
	})
}

// transition applies fn to the status if this cycle is still the newest one.
// It reports whether the mutation was applied.
func (c *Coordinator) transition(gen int64, fn func(*Status)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen.Load() != gen {
		return false
	}
	fn(&c.status)
	return true
}

// Status returns a copy of the coordinator's observable state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// warmFavorites sequentially pre-fetches and caches current and forecast
// data for every favorite, pausing between locations to avoid hammering the
// remote source. Failures are logged, never surfaced; the pass touches only
// the cache, not the shared store.
func (c *Coordinator) warmFavorites(ctx context.Context, unit weather.Unit) {
	favorites := c.Favorites()
	if len(favorites) == 0 {
		return
	}
	c.log.WithField("count", len(favorites)).Info("warming cache for favorite locations")

	for i, fav := range favorites {
		if i > 0 && c.warmPause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.warmPause):
			}
		}

		if !c.checker.Online(ctx) {
			c.log.Info("network unavailable, stopping cache warming")
			return
		}

		raw, err := c.fetcher.FetchCurrent(ctx, fav, unit)
		if err != nil {
			c.log.WithError(err).WithField("favorite", fav).Warn("cache warming: current fetch failed")
			continue
		}
		if err := c.cache.SaveCurrent(fav, raw); err != nil {
			c.log.WithError(err).WithField("favorite", fav).Warn("cache warming: save failed")
		}

		parsed, err := weather.ParseCurrent(raw)
		if err != nil || parsed.Coord == nil {
			c.log.WithField("favorite", fav).Warn("cache warming: no coordinates, skipping forecast")
			continue
		}

		fraw, err := c.fetcher.FetchForecast(ctx, parsed.Coord.Lat, parsed.Coord.Lon, unit)
		if err != nil {
			c.log.WithError(err).WithField("favorite", fav).Warn("cache warming: forecast fetch failed")
			continue
		}
		if err := c.cache.SaveForecast(fav, fraw); err != nil {
			c.log.WithError(err).WithField("favorite", fav).Warn("cache warming: save failed")
		}
	}
}

// Favorites returns a copy of the current favorites list, in order.
func (c *Coordinator) Favorites() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.favorites...)
}

// AddFavorite adds a location to the favorites (case-insensitively unique;
// differing casing updates the stored entry) and persists the list. It
// reports whether the list changed.
func (c *Coordinator) AddFavorite(location string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	updated, changed := cache.AddFavorite(c.favorites, location)
	if !changed {
		return false
	}
	if err := c.cache.SaveFavorites(updated); err != nil {
		c.log.WithError(err).Warn("failed to save favorites")
	}
	c.favorites = updated
	return true
}

// RemoveFavorite removes a location from the favorites (ignoring case),
// persists the list and deletes the location's cached payloads.
func (c *Coordinator) RemoveFavorite(location string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Cached filenames carry the stored casing, not the caller's.
	stored := location
	for _, fav := range c.favorites {
		if strings.EqualFold(fav, location) {
			stored = fav
			break
		}
	}

	updated, changed := cache.RemoveFavorite(c.favorites, location)
	if !changed {
		return false
	}
	if err := c.cache.SaveFavorites(updated); err != nil {
		c.log.WithError(err).Warn("failed to save favorites")
	}
	c.favorites = updated
	c.cache.Delete(stored)
	return true
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
