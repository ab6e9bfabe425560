package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"EventScanner/internal/credentials"
	"EventScanner/internal/dataset"
	"EventScanner/internal/domain"
	"EventScanner/internal/enrich"
	"EventScanner/internal/metrics"
	"EventScanner/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
// Nil enrichers or store disable their stage.
type PipelineDeps struct {
	Crawler        *Crawler
	Geocoder       *enrich.GeocodeEnricher
	Genres         *enrich.GenreEnricher
	ClassifierKeys []string
	Store          ports.DatasetStore
	Clock          func() time.Time
	NewRunID       func() string
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// Pipeline implements crawl, assembly, enrichment and hand-off to the warehouse.
type Pipeline struct {
	crawler  *Crawler
	geocoder *enrich.GeocodeEnricher
	genres   *enrich.GenreEnricher
	keys     []string
	store    ports.DatasetStore
	clock    func() time.Time
	newRunID func() string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		crawler:  deps.Crawler,
		geocoder: deps.Geocoder,
		genres:   deps.Genres,
		keys:     deps.ClassifierKeys,
		store:    deps.Store,
		clock:    deps.Clock,
		newRunID: deps.NewRunID,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	if p.newRunID == nil {
		p.newRunID = uuid.NewString
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Run processes every day in [from, to] and returns the enriched dataset.
// External service failures degrade individual values; only cancellation and
// store errors fail the run.
func (p *Pipeline) Run(ctx context.Context, from, to time.Time) (domain.Dataset, error) {
	if p.crawler == nil {
		return domain.Dataset{}, errors.New("pipeline has no crawler")
	}
	runID := p.newRunID()
	logger := p.logger.With("run", runID)
	logger.Info("run started", "from", from.Format("2006-01-02"), "to", to.Format("2006-01-02"))

	start := time.Now()
	days, err := p.crawler.CrawlRange(ctx, from, to)
	p.metrics.ObserveStage("crawl", start)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("crawl: %w", err)
	}

	assembledAt := p.clock()
	rows := dataset.Assemble(days, assembledAt)
	dataset.ApplyPopularity(rows)
	dataset.ApplyRepeatVisits(rows)
	out := domain.Dataset{RunID: runID, AssembledAt: assembledAt, Rows: rows}
	logger.Info("dataset assembled", "days", len(days), "rows", len(rows))

	if p.geocoder != nil {
		start = time.Now()
		err := p.geocoder.Enrich(ctx, rows)
		p.metrics.ObserveStage("geocode", start)
		if err != nil {
			return out, fmt.Errorf("geocode: %w", err)
		}
	}

	if p.genres != nil {
		if err := p.classify(ctx, rows, logger); err != nil {
			return out, err
		}
	}

	if p.store != nil {
		start = time.Now()
		err := p.store.SaveDataset(ctx, out)
		p.metrics.ObserveStage("store", start)
		if err != nil {
			return out, fmt.Errorf("store dataset: %w", err)
		}
	}

	p.metrics.RunSucceeded(p.clock())
	logger.Info("run finished", "rows", len(rows))
	return out, nil
}

func (p *Pipeline) classify(ctx context.Context, rows []domain.Row, logger *slog.Logger) error {
	pool, err := credentials.NewPool(p.keys)
	if err != nil {
		logger.Warn("genre classification skipped", "error", err)
		return nil
	}

	start := time.Now()
	artists := dataset.DistinctArtists(rows)
	labels := p.genres.ClassifyAll(ctx, artists, pool)
	p.metrics.ObserveStage("classify", start)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	enrich.ApplyGenres(rows, labels)
	logger.Info("genres classified", "artists", len(artists), "credentials", pool.Len())
	return nil
}
