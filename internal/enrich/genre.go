package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"EventScanner/internal/credentials"
	"EventScanner/internal/domain"
	"EventScanner/internal/metrics"
	"EventScanner/internal/pacing"
	"EventScanner/internal/ports"
)

// GenreOptions configures retries and pacing of the classification stage.
type GenreOptions struct {
	Prompt      func(artist string) string
	MaxAttempts int
	RetryDelay  time.Duration
	JitterMin   time.Duration
	JitterMax   time.Duration
	Sleep       pacing.SleepFunc
	Jitter      func(lo, hi time.Duration) time.Duration
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// GenreEnricher classifies artists with one worker per pool credential.
type GenreEnricher struct {
	classifier ports.GenreClassifier
	opts       GenreOptions
	logger     *slog.Logger
}

// NewGenreEnricher builds the enricher around a classifier.
func NewGenreEnricher(classifier ports.GenreClassifier, opts GenreOptions) *GenreEnricher {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = pacing.Sleep
	}
	if opts.Jitter == nil {
		opts.Jitter = pacing.Jitter
	}
	if opts.Prompt == nil {
		opts.Prompt = func(artist string) string { return artist }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &GenreEnricher{classifier: classifier, opts: opts, logger: opts.Logger}
}

// Shard splits artists round-robin: shard i gets artists i, i+k, i+2k, ...
func Shard(artists []string, k int) [][]string {
	if k < 1 {
		return nil
	}
	shards := make([][]string, k)
	for i, artist := range artists {
		shards[i%k] = append(shards[i%k], artist)
	}
	return shards
}

// ClassifyAll returns a label for every artist. Artists whose classification
// failed, or whose shard worker died, get domain.GenreUnavailable.
func (e *GenreEnricher) ClassifyAll(ctx context.Context, artists []string, pool *credentials.Pool) map[string]string {
	creds := pool.All()
	shards := Shard(artists, len(creds))
	partial := make([]map[string]string, len(shards))

	var wg sync.WaitGroup
	for i := range shards {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			partial[i] = map[string]string{}
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("classification worker panicked", "credential", creds[i].Name, "panic", fmt.Sprint(r))
				}
			}()
			e.runShard(ctx, creds[i], shards[i], partial[i])
		}(i)
	}
	wg.Wait()

	merged := make(map[string]string, len(artists))
	for _, shard := range partial {
		for artist, label := range shard {
			merged[artist] = label
		}
	}
	for _, artist := range artists {
		if _, ok := merged[artist]; !ok {
			merged[artist] = domain.GenreUnavailable
		}
	}
	for _, label := range merged {
		if label == domain.GenreUnavailable {
			e.opts.Metrics.GenreFallback()
		}
	}
	return merged
}

func (e *GenreEnricher) runShard(ctx context.Context, cred credentials.Credential, artists []string, out map[string]string) {
	logger := e.logger.With("credential", cred.Name, "key", cred.Redacted())
	logger.Debug("shard started", "artists", len(artists))

	for i, artist := range artists {
		if i > 0 {
			if err := e.opts.Sleep(ctx, e.opts.Jitter(e.opts.JitterMin, e.opts.JitterMax)); err != nil {
				logger.Warn("shard cancelled", "remaining", len(artists)-i)
				return
			}
		}
		out[artist] = e.classifyOne(ctx, cred, artist, logger)
	}
	logger.Debug("shard finished", "artists", len(artists))
}

func (e *GenreEnricher) classifyOne(ctx context.Context, cred credentials.Credential, artist string, logger *slog.Logger) string {
	prompt := e.opts.Prompt(artist)
	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		reply, err := e.classifier.Classify(ctx, cred.APIKey, prompt)
		if err == nil {
			return NormalizeLabel(reply)
		}
		if !errors.Is(err, domain.ErrQuotaExhausted) || attempt == e.opts.MaxAttempts {
			logger.Warn("classification failed", "artist", artist, "attempt", attempt, "error", err)
			return domain.GenreUnavailable
		}
		logger.Debug("quota exhausted, retrying", "artist", artist, "attempt", attempt)
		if err := e.opts.Sleep(ctx, e.opts.RetryDelay); err != nil {
			return domain.GenreUnavailable
		}
	}
	return domain.GenreUnavailable
}

// NormalizeLabel keeps the first non-empty line of a model reply.
func NormalizeLabel(reply string) string {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimRight(line, ".")
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return domain.GenreUnavailable
}

// ApplyGenres maps the unavailable sentinel to domain.GenreUnknown and left-joins
// labels onto rows by artist name. Artists without a label keep a nil Genre.
func ApplyGenres(rows []domain.Row, labels map[string]string) {
	for i := range rows {
		label, ok := labels[rows[i].ArtistName]
		if !ok {
			continue
		}
		if label == domain.GenreUnavailable {
			label = domain.GenreUnknown
		}
		rows[i].Genre = &label
	}
}
