package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	httpapi "github.com/SzymonGieraga/weatherGapp/internal/api/http"
	"github.com/SzymonGieraga/weatherGapp/internal/cache"
	"github.com/SzymonGieraga/weatherGapp/internal/config"
	"github.com/SzymonGieraga/weatherGapp/internal/connectivity"
	"github.com/SzymonGieraga/weatherGapp/internal/coordinator"
	"github.com/SzymonGieraga/weatherGapp/internal/openweather"
	"github.com/SzymonGieraga/weatherGapp/internal/scheduler"
	"github.com/SzymonGieraga/weatherGapp/internal/settings"
	"github.com/SzymonGieraga/weatherGapp/internal/store"
	"github.com/SzymonGieraga/weatherGapp/internal/weather"
)

// app bundles the explicitly constructed services. There are no package
// globals; everything is wired here and passed down.
type app struct {
	cfg      *config.AppConfig
	log      *logrus.Logger
	cache    *cache.Store
	settings *settings.Store
	store    *store.Store
	checker  connectivity.Checker
	coord    *coordinator.Coordinator
}

func buildApp() (*app, error) {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	cacheStore, err := cache.NewStore(cfg.CacheDir, log)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	client := openweather.NewClient(httpClient, cfg.OpenWeatherAPIKey, cfg.BaseURL, log)
	checker := connectivity.NewDialChecker(cfg.ProbeAddr)
	weatherStore := store.New()

	coord := coordinator.New(coordinator.Config{
		Fetcher:         client,
		Cache:           cacheStore,
		Store:           weatherStore,
		Checker:         checker,
		Log:             log,
		DefaultLocation: cfg.DefaultLocation,
		WarmPause:       cfg.WarmPause,
	})

	return &app{
		cfg:      cfg,
		log:      log,
		cache:    cacheStore,
		settings: settings.NewStore(cfg.CacheDir),
		store:    weatherStore,
		checker:  checker,
		coord:    coord,
	}, nil
}

// trackedLocation is the location the scheduler refreshes: the last viewed
// one, falling back to the configured default.
func (a *app) trackedLocation() string {
	if loc, err := a.cache.LoadLastViewed(); err == nil && loc != "" {
		return loc
	}
	return a.cfg.DefaultLocation
}

func (a *app) currentUnit() weather.Unit {
	loaded, err := a.settings.Load()
	if err != nil {
		return weather.UnitMetric
	}
	return loaded.Unit
}

// watchStore logs store updates as they land. Signals are coalesced, so a
// burst of publishes may produce a single line.
func (a *app) watchStore(ctx context.Context) {
	current := a.store.Subscribe(store.KindCurrent)
	forecast := a.store.Subscribe(store.KindForecast)
	defer a.store.Unsubscribe(current)
	defer a.store.Unsubscribe(forecast)

	for {
		select {
		case <-ctx.Done():
			return
		case <-current.Signal():
			a.log.WithField("status", a.coord.Status().Phase).Debug("current weather updated")
		case <-forecast.Signal():
			a.log.WithField("status", a.coord.Status().Phase).Debug("forecast updated")
		}
	}
}

func runServe(a *app) error {
	prefs, err := a.settings.Load()
	if err != nil {
		a.log.WithError(err).Warn("failed to load settings, using defaults")
	}

	// Initial fetch in the background so the server comes up immediately;
	// the offline path serves cached data if the network is down.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.coord.Refresh(ctx, a.trackedLocation(), prefs.Unit, false); err != nil {
			a.log.WithError(err).Warn("initial refresh failed")
		}
	}()

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go a.watchStore(watchCtx)

	var schedMu sync.Mutex
	sched := scheduler.New(
		time.Duration(prefs.RefreshIntervalMinutes)*time.Minute,
		a.trackedLocation, a.currentUnit, a.coord, a.checker, a.log,
	)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		schedMu.Lock()
		defer schedMu.Unlock()
		sched.Stop()
	}()

	fiberApp := fiber.New(fiber.Config{
		AppName:               "weathergapp",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	fiberApp.Use(logger.New())
	fiberApp.Use(recover.New())

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weathergapp",
		})
	})

	httpapi.RegisterRoutes(fiberApp, httpapi.Deps{
		Coordinator: a.coord,
		Store:       a.store,
		Settings:    a.settings,
		OnSettingsChanged: func(updated settings.Settings) {
			// Re-arm the scheduler so the new interval takes effect now,
			// not on the next restart.
			schedMu.Lock()
			defer schedMu.Unlock()
			sched.Stop()
			sched = scheduler.New(
				time.Duration(updated.RefreshIntervalMinutes)*time.Minute,
				a.trackedLocation, a.currentUnit, a.coord, a.checker, a.log,
			)
			if err := sched.Start(); err != nil {
				a.log.WithError(err).Error("failed to restart scheduler")
			}
		},
	})

	go func() {
		if err := fiberApp.Listen(":" + a.cfg.Port); err != nil {
			a.log.WithError(err).Error("fiber server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return fiberApp.ShutdownWithContext(shutdownCtx)
}

func runGet(a *app, location, unitFlag string) error {
	unit := a.currentUnit()
	if unitFlag != "" {
		unit = weather.ParseUnit(unitFlag)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.coord.Refresh(ctx, location, unit, true); err != nil {
		// The offline path may still have produced cached data worth
		// showing; fall through when the store has anything.
		if _, ok := a.store.Current(); !ok {
			return err
		}
		fmt.Printf("Warning: %v (showing cached data)\n\n", err)
	}

	raw, ok := a.store.Current()
	if !ok {
		return fmt.Errorf("no weather data available")
	}
	parsed, err := weather.ParseCurrent(raw)
	if err != nil {
		return err
	}
	snap := weather.BuildSnapshot(parsed, unit)

	fmt.Printf("Weather for %s (%s)\n", snap.LocationName, snap.ObservedAt)
	fmt.Printf("  %s, feels like %s, %s\n", snap.Temperature, snap.FeelsLike, snap.Condition)
	fmt.Printf("  Wind %s %s, humidity %s, pressure %s, visibility %s\n",
		snap.WindSpeed, snap.WindDirection, snap.Humidity, snap.Pressure, snap.VisibilityKM)
	fmt.Printf("  Sunrise %s, sunset %s\n", snap.Sunrise, snap.Sunset)

	fraw, ok := a.store.Forecast()
	if !ok {
		return nil
	}
	days, err := weather.Aggregate(fraw, unit)
	if err != nil {
		a.log.WithError(err).Warn("forecast aggregation failed")
		return nil
	}

	fmt.Println("\nForecast:")
	for _, day := range days {
		fmt.Printf("  %s %s  %s / %s  %s\n",
			day.DayOfWeek, day.Date, day.TempMaxLabel, day.TempMinLabel, day.Condition)
	}
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "weathergapp",
		Short:         "Weather client with offline cache and multi-day forecast",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server with background auto-refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			return runServe(a)
		},
	}

	var unitFlag string
	getCmd := &cobra.Command{
		Use:   "get <location>",
		Short: "Fetch and print weather for a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			return runGet(a, args[0], unitFlag)
		},
	}
	getCmd.Flags().StringVarP(&unitFlag, "unit", "u", "", "temperature unit (metric, imperial, standard)")

	rootCmd.AddCommand(serveCmd, getCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
