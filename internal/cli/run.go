package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"EventScanner/internal/app"
	"EventScanner/internal/config"
	"EventScanner/internal/logging"
)

// Execute implements the go-flags Commander interface for RunCommand.
func (c *RunCommand) Execute(args []string) error {
	cfg := loadConfig(c.globals)
	if c.MetricsAddr != "" {
		cfg.Metrics.Addr = c.MetricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	from, to, err := c.window(cfg, time.Now())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	application, err := app.New(ctx, cfg, app.Options{SkipGeocode: c.SkipGeocode, SkipGenre: c.SkipGenre}, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	application.ServeMetrics(ctx, cfg.Metrics.Addr)

	if c.Daemon {
		return application.RunDaemon(ctx)
	}

	dataset, err := application.Run(ctx, from, to)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("run interrupted")
		}
		return err
	}
	logger.Info("dataset stored", "run", dataset.RunID, "rows", len(dataset.Rows), "version", c.version)
	return nil
}

// window resolves --from/--to against the configured horizon.
func (c *RunCommand) window(cfg config.Config, now time.Time) (time.Time, time.Time, error) {
	loc := cfg.Scheduler.Location()

	from, err := parseDay(c.From, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from == nil {
		y, m, d := now.In(loc).Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, loc)
		from = &today
	}

	to, err := parseDay(c.To, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to == nil {
		horizon := cfg.Scheduler.HorizonDays
		if horizon < 1 {
			horizon = 1
		}
		end := from.AddDate(0, 0, horizon-1)
		to = &end
	}

	if to.Before(*from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", to.Format(dayLayout), from.Format(dayLayout))
	}
	return *from, *to, nil
}
