// Package httpapi is the thin presentation surface over the sync core. The
// handlers are consumers of the shared store: they re-read it and aggregate
// on demand; the coordinator never renders anything.
package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/SzymonGieraga/weatherGapp/internal/coordinator"
	"github.com/SzymonGieraga/weatherGapp/internal/settings"
	"github.com/SzymonGieraga/weatherGapp/internal/store"
	"github.com/SzymonGieraga/weatherGapp/internal/weather"
)

var validate = validator.New()

// Deps are the collaborators the HTTP layer reads from and acts through.
type Deps struct {
	Coordinator *coordinator.Coordinator
	Store       *store.Store
	Settings    *settings.Store

	// OnSettingsChanged is invoked after new settings are persisted, so
	// the owner can re-arm the auto-refresh scheduler.
	OnSettingsChanged func(settings.Settings)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		raw, ok := deps.Store.Current()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no current weather data yet")
		}
		parsed, err := weather.ParseCurrent(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "stored payload is unreadable")
		}
		return c.JSON(weather.BuildSnapshot(parsed, currentUnit(deps)))
	})

	v1.Get("/weather/forecast", func(c *fiber.Ctx) error {
		raw, ok := deps.Store.Forecast()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no forecast data yet")
		}
		summaries, err := weather.Aggregate(raw, currentUnit(deps))
		if err != nil {
			if errors.Is(err, weather.ErrForecastListMissing) {
				return fiber.NewError(fiber.StatusBadGateway, "forecast list missing")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "stored payload is unreadable")
		}
		return c.JSON(fiber.Map{"days": summaries})
	})

	v1.Post("/weather/refresh", func(c *fiber.Ctx) error {
		var req refreshRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		unit := currentUnit(deps)
		if req.Unit != "" {
			unit = weather.ParseUnit(req.Unit)
		}

		err := deps.Coordinator.Refresh(c.Context(), req.Location, unit, true)
		switch {
		case err == nil:
			return c.JSON(deps.Coordinator.Status())
		case errors.Is(err, weather.ErrInvalidQuery):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, coordinator.ErrOffline):
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		default:
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
	})

	v1.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(deps.Coordinator.Status())
	})

	v1.Get("/favorites", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"favorites": deps.Coordinator.Favorites()})
	})

	v1.Post("/favorites", func(c *fiber.Ctx) error {
		var req favoriteRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		added := deps.Coordinator.AddFavorite(req.Location)
		return c.JSON(fiber.Map{
			"changed":   added,
			"favorites": deps.Coordinator.Favorites(),
		})
	})

	v1.Delete("/favorites", func(c *fiber.Ctx) error {
		location := c.Query("location")
		if location == "" {
			return fiber.NewError(fiber.StatusBadRequest, "location query parameter is required")
		}
		removed := deps.Coordinator.RemoveFavorite(location)
		if !removed {
			return fiber.NewError(fiber.StatusNotFound, "location is not a favorite")
		}
		return c.JSON(fiber.Map{"favorites": deps.Coordinator.Favorites()})
	})

	v1.Get("/settings", func(c *fiber.Ctx) error {
		current, err := deps.Settings.Load()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load settings")
		}
		return c.JSON(current)
	})

	v1.Put("/settings", func(c *fiber.Ctx) error {
		var req settingsRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if !settings.ValidInterval(req.RefreshIntervalMinutes) {
			return fiber.NewError(fiber.StatusBadRequest, "interval must be one of 0, 15, 30, 60")
		}

		updated := settings.Settings{
			RefreshIntervalMinutes: req.RefreshIntervalMinutes,
			Unit:                   weather.ParseUnit(req.Unit),
		}
		if err := deps.Settings.Save(updated); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to save settings")
		}
		if deps.OnSettingsChanged != nil {
			deps.OnSettingsChanged(updated)
		}
		return c.JSON(updated)
	})
}

func currentUnit(deps Deps) weather.Unit {
	loaded, err := deps.Settings.Load()
	if err != nil {
		return weather.UnitMetric
	}
	return loaded.Unit
}

type refreshRequest struct {
	Location string `json:"location" validate:"required"`
	Unit     string `json:"unit"`
}

type favoriteRequest struct {
	Location string `json:"location" validate:"required"`
}

type settingsRequest struct {
	RefreshIntervalMinutes int    `json:"refreshIntervalMinutes"`
	Unit                   string `json:"unit" validate:"required"`
}
