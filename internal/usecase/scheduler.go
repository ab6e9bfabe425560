package usecase

import (
	"context"
	"log/slog"
	"time"

	"EventScanner/internal/ports"
)

// Scheduler wires the ticker driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	horizon  int
	location *time.Location
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs covering
// horizonDays days from each trigger.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, horizonDays int, loc *time.Location, logger *slog.Logger) *Scheduler {
	if horizonDays < 1 {
		horizonDays = 1
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, horizon: horizonDays, location: loc, logger: logger}
}

// Window returns the day range processed for a trigger time.
func (s *Scheduler) Window(trigger time.Time) (time.Time, time.Time) {
	from := startOfDay(trigger.In(s.location))
	return from, from.AddDate(0, 0, s.horizon-1)
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		from, to := s.Window(trigger)
		if _, err := s.pipeline.Run(ctx, from, to); err != nil {
			s.logger.Error("scheduled run failed", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
