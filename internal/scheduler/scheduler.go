// Package scheduler drives the periodic background refresh of the last
// viewed location.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/SzymonGieraga/weatherGapp/internal/connectivity"
	"github.com/SzymonGieraga/weatherGapp/internal/coordinator"
	"github.com/SzymonGieraga/weatherGapp/internal/weather"
)

// Scheduler periodically re-fetches weather data for a tracked location.
// An interval of zero disables it entirely.
type Scheduler struct {
	scheduler *gocron.Scheduler
	coord     *coordinator.Coordinator
	checker   connectivity.Checker
	log       *logrus.Logger

	interval time.Duration
	location func() string
	unit     func() weather.Unit
}

// New creates a Scheduler. location and unit are read per tick so that a
// manual search or a settings change redirects subsequent auto-refreshes.
func New(
	interval time.Duration,
	location func() string,
	unit func() weather.Unit,
	coord *coordinator.Coordinator,
	checker connectivity.Checker,
	log *logrus.Logger,
) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		coord:     coord,
		checker:   checker,
		log:       log,
		interval:  interval,
		location:  location,
		unit:      unit,
	}
}

// Start schedules the periodic job. With a zero or negative interval nothing
// is scheduled and auto-refresh stays off.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.log.Info("scheduler: auto-refresh disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		loc := s.location()
		if loc == "" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Re-check connectivity after every sleep interval; a quiet skip
		// beats a guaranteed timeout.
		if !s.checker.Online(ctx) {
			s.log.Info("scheduler: network unavailable, skipping refresh")
			return
		}

		// Background tick: failures are logged, never surfaced.
		if err := s.coord.Refresh(ctx, loc, s.unit(), false); err != nil {
			s.log.WithError(err).WithField("location", loc).Warn("scheduler: background refresh failed")
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.WithField("interval", s.interval).Info("scheduler: auto-refresh started")
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
