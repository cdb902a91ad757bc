package coordinator

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SzymonGieraga/weatherGapp/internal/cache"
	"github.com/SzymonGieraga/weatherGapp/internal/connectivity"
	"github.com/SzymonGieraga/weatherGapp/internal/store"
	"github.com/SzymonGieraga/weatherGapp/internal/weather"
)

const (
	currentFixture = `{"name":"London","coord":{"lat":51.51,"lon":-0.13},` +
		`"main":{"temp":18,"feels_like":17,"pressure":1012,"humidity":70},` +
		`"weather":[{"description":"clear sky","icon":"01d"}],` +
		`"sys":{"country":"GB"},"dt":1748775600,"timezone":0}`

	forecastFixture = `{"city":{"name":"London","timezone":0},` +
		`"list":[{"dt":1748775600,"main":{"temp_min":15,"temp_max":20},` +
		`"weather":[{"description":"clear sky","icon":"01d"}]}]}`

	noCoordsFixture = `{"name":"Nowhere","main":{"temp":10},"dt":1748775600}`
)

type fakeFetcher struct {
	mu            sync.Mutex
	currentCalls  int
	forecastCalls int

	current     []byte
	forecast    []byte
	currentErr  error
	forecastErr error

	// onForecast runs before the forecast result is returned; tests use it
	// to interleave a competing refresh.
	onForecast func()
}

func (f *fakeFetcher) FetchCurrent(ctx context.Context, location string, unit weather.Unit) ([]byte, error) {
	f.mu.Lock()
	f.currentCalls++
	f.mu.Unlock()
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	return f.current, nil
}

func (f *fakeFetcher) FetchForecast(ctx context.Context, lat, lon float64, unit weather.Unit) ([]byte, error) {
	f.mu.Lock()
	f.forecastCalls++
	hook := f.onForecast
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if f.forecastErr != nil {
		return nil, f.forecastErr
	}
	return f.forecast, nil
}

func (f *fakeFetcher) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentCalls, f.forecastCalls
}

var alwaysOnline = connectivity.Func(func(context.Context) bool { return true })

func newTestCoordinator(t *testing.T, fetcher Fetcher, checker connectivity.Checker) (*Coordinator, *cache.Store, *store.Store) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cacheStore, err := cache.NewStore(t.TempDir(), log)
	require.NoError(t, err)
	weatherStore := store.New()

	coord := New(Config{
		Fetcher:         fetcher,
		Cache:           cacheStore,
		Store:           weatherStore,
		Checker:         checker,
		Log:             log,
		DefaultLocation: "London",
	})
	return coord, cacheStore, weatherStore
}

func TestRefreshSuccessPublishesAndCaches(t *testing.T) {
	fetcher := &fakeFetcher{current: []byte(currentFixture), forecast: []byte(forecastFixture)}
	coord, cacheStore, weatherStore := newTestCoordinator(t, fetcher, alwaysOnline)

	require.NoError(t, coord.Refresh(context.Background(), "London", weather.UnitMetric, true))

	current, ok := weatherStore.Current()
	require.True(t, ok)
	assert.Equal(t, currentFixture, string(current))

	forecast, ok := weatherStore.Forecast()
	require.True(t, ok)
	assert.Equal(t, forecastFixture, string(forecast))

	// Raw payloads are cached byte-identically under the requested location.
	cached, err := cacheStore.LoadCurrent("London")
	require.NoError(t, err)
	assert.Equal(t, currentFixture, string(cached))
	cached, err = cacheStore.LoadForecast("London")
	require.NoError(t, err)
	assert.Equal(t, forecastFixture, string(cached))

	last, err := cacheStore.LoadLastViewed()
	require.NoError(t, err)
	assert.Equal(t, "London", last)

	status := coord.Status()
	assert.Equal(t, PhaseReady, status.Phase)
	assert.Equal(t, "London, GB", status.DisplayName)
	assert.False(t, status.Stale)
	assert.Empty(t, status.Error)
}

func TestOfflineNeverCallsFetcher(t *testing.T) {
	fetcher := &fakeFetcher{current: []byte(currentFixture), forecast: []byte(forecastFixture)}
	offline := connectivity.Func(func(context.Context) bool { return false })
	coord, _, _ := newTestCoordinator(t, fetcher, offline)

	err := coord.Refresh(context.Background(), "London", weather.UnitMetric, true)
	require.ErrorIs(t, err, ErrOffline)

	currentCalls, forecastCalls := fetcher.calls()
	assert.Zero(t, currentCalls)
	assert.Zero(t, forecastCalls)
	assert.Equal(t, PhaseErrorCurrent, coord.Status().Phase)
}

func TestOfflineServesCachedData(t *testing.T) {
	fetcher := &fakeFetcher{}
	offline := connectivity.Func(func(context.Context) bool { return false })
	coord, cacheStore, weatherStore := newTestCoordinator(t, fetcher, offline)

	require.NoError(t, cacheStore.SaveCurrent("London", []byte(currentFixture)))
	require.NoError(t, cacheStore.SaveForecast("London", []byte(forecastFixture)))

	require.NoError(t, coord.Refresh(context.Background(), "London", weather.UnitMetric, true))

	current, ok := weatherStore.Current()
	require.True(t, ok)
	assert.Equal(t, currentFixture, string(current))

	status := coord.Status()
	assert.Equal(t, PhaseReady, status.Phase)
	assert.True(t, status.Stale)

	currentCalls, _ := fetcher.calls()
	assert.Zero(t, currentCalls)
}

func TestOfflineCascadesToFirstFavorite(t *testing.T) {
	fetcher := &fakeFetcher{}
	offline := connectivity.Func(func(context.Context) bool { return false })
	coord, cacheStore, weatherStore := newTestCoordinator(t, fetcher, offline)

	coord.AddFavorite("Oslo")
	require.NoError(t, cacheStore.SaveCurrent("Oslo", []byte(currentFixture)))

	require.NoError(t, coord.Refresh(context.Background(), "Helsinki", weather.UnitMetric, true))

	_, ok := weatherStore.Current()
	assert.True(t, ok)

	status := coord.Status()
	assert.Equal(t, "Oslo", status.Location)
	assert.True(t, status.Stale)
}

func TestOfflineNothingCachedAnywhere(t *testing.T) {
	fetcher := &fakeFetcher{}
	offline := connectivity.Func(func(context.Context) bool { return false })
	coord, _, weatherStore := newTestCoordinator(t, fetcher, offline)

	err := coord.Refresh(context.Background(), "Helsinki", weather.UnitMetric, true)
	require.ErrorIs(t, err, ErrOffline)

	_, ok := weatherStore.Current()
	assert.False(t, ok)
}

func TestCurrentFailureFallsBackToCache(t *testing.T) {
	fetchErr := errors.New("remote exploded")
	fetcher := &fakeFetcher{currentErr: fetchErr}
	coord, cacheStore, weatherStore := newTestCoordinator(t, fetcher, alwaysOnline)

	require.NoError(t, cacheStore.SaveCurrent("London", []byte(currentFixture)))

	err := coord.Refresh(context.Background(), "London", weather.UnitMetric, true)
	require.ErrorIs(t, err, fetchErr)

	// Best-effort recovery still surfaced the cached payload.
	current, ok := weatherStore.Current()
	require.True(t, ok)
	assert.Equal(t, currentFixture, string(current))
}

func TestCurrentFailurePoisonsForecastState(t *testing.T) {
	fetcher := &fakeFetcher{currentErr: errors.New("boom")}
	coord, _, _ := newTestCoordinator(t, fetcher, alwaysOnline)

	_ = coord.Refresh(context.Background(), "London", weather.UnitMetric, true)

	status := coord.Status()
	assert.Equal(t, PhaseErrorCurrent, status.Phase)
	assert.NotEmpty(t, status.Error)
	assert.Contains(t, status.ForecastErr, "dependency error")
}

func TestForecastFailureKeepsCurrentState(t *testing.T) {
	fetcher := &fakeFetcher{
		current:     []byte(currentFixture),
		forecastErr: errors.New("forecast down"),
	}
	coord, _, weatherStore := newTestCoordinator(t, fetcher, alwaysOnline)

	err := coord.Refresh(context.Background(), "London", weather.UnitMetric, true)
	require.Error(t, err)

	// The current payload made it through before the forecast stage failed.
	_, ok := weatherStore.Current()
	assert.True(t, ok)
	_, ok = weatherStore.Forecast()
	assert.False(t, ok)

	status := coord.Status()
	assert.Equal(t, PhaseErrorForecast, status.Phase)
	assert.Empty(t, status.Error)
	assert.NotEmpty(t, status.ForecastErr)
}

func TestMissingCoordinatesIsCurrentStageError(t *testing.T) {
	fetcher := &fakeFetcher{current: []byte(noCoordsFixture)}
	coord, _, _ := newTestCoordinator(t, fetcher, alwaysOnline)

	err := coord.Refresh(context.Background(), "Nowhere", weather.UnitMetric, true)
	require.ErrorIs(t, err, ErrMissingCoordinates)

	_, forecastCalls := fetcher.calls()
	assert.Zero(t, forecastCalls, "forecast must never be attempted without coordinates")
	assert.Equal(t, PhaseErrorCurrent, coord.Status().Phase)
}

func TestSupersededCycleIsDiscarded(t *testing.T) {
	fetcher := &fakeFetcher{current: []byte(currentFixture), forecast: []byte(forecastFixture)}
	coord, _, _ := newTestCoordinator(t, fetcher, alwaysOnline)

	var once sync.Once
	fetcher.onForecast = func() {
		once.Do(func() {
			// A competing refresh starts while the first cycle's forecast
			// response is still in flight; the first cycle must not
			// overwrite the newer cycle's state.
			_ = coord.Refresh(context.Background(), "Paris", weather.UnitMetric, true)
		})
	}

	err := coord.Refresh(context.Background(), "London", weather.UnitMetric, true)
	require.ErrorIs(t, err, ErrSuperseded)
	assert.Equal(t, "Paris", coord.Status().Location)
}

func TestBlankLocationRejected(t *testing.T) {
	fetcher := &fakeFetcher{}
	coord, _, _ := newTestCoordinator(t, fetcher, alwaysOnline)
	require.Error(t, coord.Refresh(context.Background(), "   ", weather.UnitMetric, true))
}

func TestWarmFavoritesCachesAll(t *testing.T) {
	fetcher := &fakeFetcher{current: []byte(currentFixture), forecast: []byte(forecastFixture)}
	coord, cacheStore, _ := newTestCoordinator(t, fetcher, alwaysOnline)

	coord.AddFavorite("Oslo")
	coord.AddFavorite("Paris")

	require.NoError(t, coord.Refresh(context.Background(), "London", weather.UnitMetric, false))

	// The warming pass runs in the background after the first success.
	require.Eventually(t, func() bool {
		for _, fav := range []string{"Oslo", "Paris"} {
			if _, err := cacheStore.LoadCurrent(fav); err != nil {
				return false
			}
			if _, err := cacheStore.LoadForecast(fav); err != nil {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRemoveFavoriteDeletesCachedPayloads(t *testing.T) {
	fetcher := &fakeFetcher{}
	coord, cacheStore, _ := newTestCoordinator(t, fetcher, alwaysOnline)

	coord.AddFavorite("Oslo")
	require.NoError(t, cacheStore.SaveCurrent("Oslo", []byte("c")))
	require.NoError(t, cacheStore.SaveForecast("Oslo", []byte("f")))

	require.True(t, coord.RemoveFavorite("oslo"))

	_, err := cacheStore.LoadCurrent("Oslo")
	assert.ErrorIs(t, err, cache.ErrNotCached)
	_, err = cacheStore.LoadForecast("Oslo")
	assert.ErrorIs(t, err, cache.ErrNotCached)
	assert.Empty(t, coord.Favorites())
}

func TestFavoritesPersistAcrossCoordinators(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	dir := t.TempDir()

	cacheStore, err := cache.NewStore(dir, log)
	require.NoError(t, err)

	first := New(Config{
		Fetcher: &fakeFetcher{},
		Cache:   cacheStore,
		Store:   store.New(),
		Checker: alwaysOnline,
		Log:     log,
	})
	first.AddFavorite("Oslo")

	second := New(Config{
		Fetcher: &fakeFetcher{},
		Cache:   cacheStore,
		Store:   store.New(),
		Checker: alwaysOnline,
		Log:     log,
	})
	assert.Equal(t, []string{"Oslo"}, second.Favorites())
}
