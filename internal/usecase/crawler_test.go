package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EventScanner/internal/domain"
)

// pagedSource serves pages per day; pages past the last one repeat the last page.
type pagedSource struct {
	mu     sync.Mutex
	pages  map[string][][]domain.Event
	errs   map[string]error
	repeat bool
	calls  []string
}

func (s *pagedSource) FetchPage(ctx context.Context, window domain.Window, page int) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf("%s#%d", window.Day(), page))

	if err := s.errs[window.Day()]; err != nil {
		return nil, err
	}
	pages := s.pages[window.Day()]
	if page <= len(pages) {
		return pages[page-1], nil
	}
	if s.repeat && len(pages) > 0 {
		return pages[len(pages)-1], nil
	}
	return nil, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func events(prefix string, n int) []domain.Event {
	out := make([]domain.Event, n)
	for i := range out {
		out[i] = domain.Event{ID: fmt.Sprintf("https://e/%s/%d", prefix, i), ArtistName: prefix}
	}
	return out
}

func TestCrawlDayStopsWhenPageRepeats(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, time.October, 8, 0, 0, 0, 0, time.UTC)
	src := &pagedSource{pages: map[string][][]domain.Event{"2024-10-08": {events("a", 5)}}, repeat: true}
	crawler := NewCrawler(CrawlerDeps{Source: src, Sleep: noSleep})

	result := crawler.CrawlDay(context.Background(), day)

	require.NoError(t, result.Err)
	assert.Equal(t, 1, result.LastPage)
	assert.Len(t, result.Events(), 5)
	assert.Equal(t, []string{"2024-10-08#1", "2024-10-08#2"}, src.calls)
}

func TestCrawlDayRepeatedLastPageAfterSeveralPages(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, time.October, 9, 0, 0, 0, 0, time.UTC)
	src := &pagedSource{
		pages:  map[string][][]domain.Event{"2024-10-09": {events("a", 3), events("b", 3), events("c", 2)}},
		repeat: true,
	}
	crawler := NewCrawler(CrawlerDeps{Source: src, Sleep: noSleep})

	result := crawler.CrawlDay(context.Background(), day)

	assert.Equal(t, 3, result.LastPage)
	assert.Len(t, result.Events(), 8)
	// exactly one repeated observation
	assert.Len(t, src.calls, 4)
}

func TestCrawlDayEmptyPageStops(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, time.October, 10, 0, 0, 0, 0, time.UTC)
	src := &pagedSource{pages: map[string][][]domain.Event{"2024-10-10": {events("a", 2)}}}
	crawler := NewCrawler(CrawlerDeps{Source: src, Sleep: noSleep})

	result := crawler.CrawlDay(context.Background(), day)

	assert.Equal(t, 1, result.LastPage)
	assert.Len(t, src.calls, 2)
}

func TestCrawlDayDedupWithinPageAndKeepsUnknownIDs(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, time.October, 11, 0, 0, 0, 0, time.UTC)
	page := []domain.Event{
		{ID: "https://e/1"},
		{ID: "https://e/1"},
		{ID: ""},
		{ID: ""},
	}
	src := &pagedSource{pages: map[string][][]domain.Event{"2024-10-11": {page}}}
	crawler := NewCrawler(CrawlerDeps{Source: src, Sleep: noSleep})

	result := crawler.CrawlDay(context.Background(), day)

	assert.Len(t, result.Events(), 3)
}

func TestCrawlDayPageOfOnlyUnknownIDsNeverRepeatsAsDuplicate(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, time.October, 12, 0, 0, 0, 0, time.UTC)
	src := &pagedSource{pages: map[string][][]domain.Event{"2024-10-12": {{{ID: ""}}}}, repeat: true}
	crawler := NewCrawler(CrawlerDeps{Source: src, Sleep: noSleep, MaxPages: 4})

	result := crawler.CrawlDay(context.Background(), day)

	assert.Equal(t, 4, result.LastPage)
	assert.Len(t, src.calls, 4)
}

func TestCrawlDaySleepsBetweenPages(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, time.October, 13, 0, 0, 0, 0, time.UTC)
	src := &pagedSource{pages: map[string][][]domain.Event{"2024-10-13": {events("a", 1), events("b", 1)}}}
	var slept []time.Duration
	crawler := NewCrawler(CrawlerDeps{
		Source:       src,
		RequestDelay: 5 * time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	})

	crawler.CrawlDay(context.Background(), day)

	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, slept)
}

func TestCrawlRangeFailedDayDoesNotBlockNext(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, time.October, 8, 12, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.October, 10, 0, 0, 0, 0, time.UTC)
	src := &pagedSource{
		pages: map[string][][]domain.Event{
			"2024-10-08": {events("a", 2)},
			"2024-10-10": {events("c", 1)},
		},
		errs: map[string]error{"2024-10-09": &domain.StatusError{Service: "listing", Code: 503}},
	}
	crawler := NewCrawler(CrawlerDeps{Source: src, Sleep: noSleep})

	results, err := crawler.CrawlRange(context.Background(), from, to)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Empty(t, results[1].Pages)
	assert.Len(t, results[2].Events(), 1)
}

func TestCrawlRangeCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	src := &pagedSource{pages: map[string][][]domain.Event{"2024-10-08": {events("a", 1), events("b", 1)}}}
	crawler := NewCrawler(CrawlerDeps{
		Source: src,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})

	day := time.Date(2024, time.October, 8, 0, 0, 0, 0, time.UTC)
	results, err := crawler.CrawlRange(ctx, day, day.AddDate(0, 0, 5))

	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].LastPage)
}

func TestProperty_CrawledDayHasUniqueIdentities(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("no two accumulated events share a non-empty identity", prop.ForAll(
		func(ids [][]int) bool {
			pages := make([][]domain.Event, 0, len(ids))
			for _, pageIDs := range ids {
				page := make([]domain.Event, 0, len(pageIDs))
				for _, id := range pageIDs {
					page = append(page, domain.Event{ID: fmt.Sprintf("https://e/%d", id)})
				}
				pages = append(pages, page)
			}

			src := &pagedSource{pages: map[string][][]domain.Event{"2024-10-08": pages}, repeat: true}
			crawler := NewCrawler(CrawlerDeps{Source: src, Sleep: noSleep, MaxPages: 50})
			result := crawler.CrawlDay(context.Background(), time.Date(2024, 10, 8, 0, 0, 0, 0, time.UTC))

			seen := map[string]bool{}
			for _, ev := range result.Events() {
				if seen[ev.ID] {
					return false
				}
				seen[ev.ID] = true
			}
			return true
		},
		gen.SliceOf(gen.SliceOf(gen.IntRange(0, 20))),
	))

	properties.TestingRun(t)
}
