package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"EventScanner/internal/domain"
	"EventScanner/internal/metrics"
	"EventScanner/internal/pacing"
	"EventScanner/internal/ports"
)

// CrawlerDeps wires the crawler collaborators.
type CrawlerDeps struct {
	Source       ports.ListingSource
	RequestDelay time.Duration
	MaxPages     int // 0 disables the per-day page cap
	Sleep        pacing.SleepFunc
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Crawler walks the listing pages of each day until the source stops yielding new events.
type Crawler struct {
	source   ports.ListingSource
	delay    time.Duration
	maxPages int
	sleep    pacing.SleepFunc
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewCrawler constructs a crawler.
func NewCrawler(deps CrawlerDeps) *Crawler {
	sleep := deps.Sleep
	if sleep == nil {
		sleep = pacing.Sleep
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		source:   deps.Source,
		delay:    deps.RequestDelay,
		maxPages: deps.MaxPages,
		sleep:    sleep,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// CrawlDay collects every page of day. The upstream API keeps answering past the
// last real page by repeating it, so a page without unseen identities ends the day.
// Fetch errors end the day too and are reported in the result, never returned.
func (c *Crawler) CrawlDay(ctx context.Context, day time.Time) domain.DayResult {
	window := domain.DayWindow(day)
	result := domain.DayResult{Window: window}
	seen := map[string]struct{}{}

	for page := 1; ; page++ {
		events, err := c.source.FetchPage(ctx, window, page)
		if err != nil {
			c.metrics.PageFetched("error")
			c.metrics.DayFailed()
			result.Err = fmt.Errorf("fetch %s page %d: %w", window.Day(), page, err)
			c.logger.Warn("day crawl stopped on fetch error", "day", window.Day(), "page", page, "error", err)
			return result
		}
		if len(events) == 0 {
			c.metrics.PageFetched("empty")
			c.logger.Debug("empty page, day complete", "day", window.Day(), "page", page)
			return result
		}

		fresh := make([]domain.Event, 0, len(events))
		for _, event := range events {
			if event.ID != "" {
				if _, ok := seen[event.ID]; ok {
					continue
				}
				seen[event.ID] = struct{}{}
			}
			fresh = append(fresh, event)
		}
		c.metrics.DuplicatesDropped(len(events) - len(fresh))

		if len(fresh) == 0 {
			c.metrics.PageFetched("repeated")
			c.logger.Debug("page repeats known events, day complete", "day", window.Day(), "page", page)
			return result
		}

		c.metrics.PageFetched("ok")
		c.metrics.EventsCollected(len(fresh))
		result.Pages = append(result.Pages, domain.Page{Window: window, Number: page, Events: fresh})
		result.LastPage = page
		c.logger.Debug("page collected", "day", window.Day(), "page", page, "new", len(fresh), "received", len(events))

		if c.maxPages > 0 && page >= c.maxPages {
			c.logger.Warn("page ceiling reached", "day", window.Day(), "maxPages", c.maxPages)
			return result
		}

		if err := c.sleep(ctx, c.delay); err != nil {
			result.Err = err
			return result
		}
	}
}

// CrawlRange crawls every day in [from, to] in order. A failed day never blocks
// the next one; only context cancellation aborts the range.
func (c *Crawler) CrawlRange(ctx context.Context, from, to time.Time) ([]domain.DayResult, error) {
	var results []domain.DayResult
	for day := startOfDay(from); !day.After(to); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := c.CrawlDay(ctx, day)
		results = append(results, result)
		c.logger.Info("day crawled",
			"day", result.Window.Day(),
			"pages", len(result.Pages),
			"lastPage", result.LastPage,
			"events", len(result.Events()),
			"failed", result.Err != nil)

		if err := ctx.Err(); err != nil {
			return results, err
		}
	}
	return results, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
