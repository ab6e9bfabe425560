package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"EventScanner/internal/config"
	"EventScanner/internal/domain"
	"EventScanner/internal/enrich"
	"EventScanner/internal/infrastructure/geocode"
	"EventScanner/internal/infrastructure/listing"
	"EventScanner/internal/infrastructure/llm"
	"EventScanner/internal/infrastructure/scheduler"
	"EventScanner/internal/infrastructure/storage"
	"EventScanner/internal/logging"
	"EventScanner/internal/metrics"
	"EventScanner/internal/usecase"
)

// Options toggles optional stages for one application instance.
type Options struct {
	SkipGeocode bool
	SkipGenre   bool
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	db       *sql.DB
	store    *storage.Repository
	pipeline *usecase.Pipeline
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New opens the warehouse, applies migrations and builds the pipeline.
func New(ctx context.Context, cfg config.Config, opts Options, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := storage.Open(cfg.Warehouse.Driver, cfg.Warehouse.DSN)
	if err != nil {
		return nil, err
	}
	store := storage.NewRepository(db, cfg.Warehouse.Driver)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate warehouse: %w", err)
	}

	m := metrics.New()
	loc := cfg.Scheduler.Location()

	source := listing.NewClient(cfg.Source, loc, nil, m, baseLogger.With("component", "listing"))
	crawler := usecase.NewCrawler(usecase.CrawlerDeps{
		Source:       source,
		RequestDelay: cfg.Source.RequestDelay,
		MaxPages:     cfg.Source.MaxPages,
		Metrics:      m,
		Logger:       baseLogger.With("component", "crawler"),
	})

	var geocoder *enrich.GeocodeEnricher
	if cfg.Geocoding.Enabled && !opts.SkipGeocode {
		geocoder = enrich.NewGeocodeEnricher(geocode.NewClient(cfg.Geocoding, nil, m), enrich.GeocodeOptions{
			RequestDelay:     cfg.Geocoding.RequestDelay,
			RateLimitBackoff: cfg.Geocoding.RateLimitBackoff,
			Metrics:          m,
			Logger:           baseLogger.With("component", "geocoder"),
		})
	}

	var genres *enrich.GenreEnricher
	if cfg.Classifier.Enabled && !opts.SkipGenre {
		genres = enrich.NewGenreEnricher(llm.NewChatClient(cfg.Classifier, nil, m), enrich.GenreOptions{
			Prompt:      cfg.Classifier.Prompt,
			MaxAttempts: cfg.Classifier.MaxAttempts,
			RetryDelay:  cfg.Classifier.RetryDelay,
			JitterMin:   cfg.Classifier.JitterMin,
			JitterMax:   cfg.Classifier.JitterMax,
			Metrics:     m,
			Logger:      baseLogger.With("component", "classifier"),
		})
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Crawler:        crawler,
		Geocoder:       geocoder,
		Genres:         genres,
		ClassifierKeys: cfg.Classifier.APIKeys,
		Store:          store,
		Metrics:        m,
		Logger:         baseLogger.With("component", "pipeline"),
	})

	return &Application{
		cfg:      cfg,
		db:       db,
		store:    store,
		pipeline: pipeline,
		metrics:  m,
		logger:   baseLogger,
	}, nil
}

// Run performs a single pipeline execution over [from, to].
func (a *Application) Run(ctx context.Context, from, to time.Time) (domain.Dataset, error) {
	return a.pipeline.Run(ctx, from, to)
}

// RunDaemon re-runs the pipeline on the scheduler interval until ctx is done.
func (a *Application) RunDaemon(ctx context.Context) error {
	driver := scheduler.NewTickerScheduler(a.cfg.Scheduler.Interval)
	sched := usecase.NewScheduler(driver, a.pipeline, a.cfg.Scheduler.HorizonDays, a.cfg.Scheduler.Location(),
		a.logger.With("component", "scheduler"))

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("daemon started", "interval", a.cfg.Scheduler.Interval, "horizonDays", a.cfg.Scheduler.HorizonDays)

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	return nil
}

// ServeMetrics exposes Prometheus metrics on addr until ctx is done.
func (a *Application) ServeMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	go func() {
		if err := a.metrics.Serve(ctx, addr); err != nil {
			a.logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
}

// Query reads stored events.
func (a *Application) Query(ctx context.Context, filter domain.EventFilter) (domain.EventPage, error) {
	return a.store.Query(ctx, filter)
}

// Close releases the warehouse connection.
func (a *Application) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	if err := a.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
