package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EventScanner/internal/domain"
	"EventScanner/internal/enrich"
)

type memoryStore struct {
	saved []domain.Dataset
	err   error
}

func (m *memoryStore) SaveDataset(ctx context.Context, dataset domain.Dataset) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, dataset)
	return nil
}

func (m *memoryStore) Query(ctx context.Context, filter domain.EventFilter) (domain.EventPage, error) {
	return domain.EventPage{}, nil
}

type staticGeocoder struct{ calls int }

func (g *staticGeocoder) Geocode(ctx context.Context, query string) (domain.Coordinates, bool, error) {
	g.calls++
	if query == "Pub, Leeds" {
		return domain.Coordinates{}, false, nil
	}
	return domain.Coordinates{Longitude: -0.1, Latitude: 51.5}, true, nil
}

type cannedClassifier struct{}

func (cannedClassifier) Classify(ctx context.Context, apiKey, prompt string) (string, error) {
	if prompt == "Mystery" {
		return "", &domain.StatusError{Service: "classifier", Code: 500}
	}
	return "Jazz", nil
}

func pipelineFixture(store *memoryStore, keys []string) (*Pipeline, *staticGeocoder) {
	starts := time.Date(2024, 10, 12, 20, 0, 0, 0, time.UTC)
	src := &pagedSource{
		pages: map[string][][]domain.Event{
			"2024-10-08": {{
				{ID: "https://e/1", ArtistName: "Nina", VenueName: "Koko", LocationText: "London", StartsAt: &starts, RSVPCount: ptrInt(120)},
				{ID: "https://e/2", ArtistName: "Mystery", VenueName: "Pub", LocationText: "Leeds", StartsAtRaw: "tbc"},
			}},
		},
		repeat: true,
	}
	geo := &staticGeocoder{}
	p := NewPipeline(PipelineDeps{
		Crawler:        NewCrawler(CrawlerDeps{Source: src, Sleep: noSleep}),
		Geocoder:       enrich.NewGeocodeEnricher(geo, enrich.GeocodeOptions{Sleep: noSleep}),
		Genres:         enrich.NewGenreEnricher(cannedClassifier{}, enrich.GenreOptions{MaxAttempts: 3, Sleep: noSleep}),
		ClassifierKeys: keys,
		Store:          store,
		Clock:          func() time.Time { return time.Date(2024, 10, 8, 9, 0, 0, 0, time.UTC) },
		NewRunID:       func() string { return "run-fixed" },
	})
	return p, geo
}

func ptrInt(v int) *int { return &v }

func TestPipelineRunEnrichesAndStores(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	p, geo := pipelineFixture(store, []string{"k1", "k2"})
	day := time.Date(2024, 10, 8, 0, 0, 0, 0, time.UTC)

	out, err := p.Run(context.Background(), day, day)
	require.NoError(t, err)

	assert.Equal(t, "run-fixed", out.RunID)
	require.Len(t, out.Rows, 2)
	require.Len(t, store.saved, 1)
	assert.Equal(t, 2, geo.calls)

	nina := out.Rows[0]
	assert.Equal(t, domain.PopularityHigh, *nina.Popularity)
	assert.Equal(t, 4, *nina.DaysBeforeEvent)
	assert.Equal(t, 1, nina.RepeatVisitCount)
	assert.Equal(t, 51.5, *nina.Latitude)
	assert.Equal(t, "Jazz", *nina.Genre)

	mystery := out.Rows[1]
	assert.Nil(t, mystery.Popularity)
	assert.Nil(t, mystery.Latitude)
	assert.Equal(t, domain.GenreUnknown, *mystery.Genre)
	assert.Equal(t, 0, mystery.RepeatVisitCount)
}

func TestPipelineSkipsClassificationWithoutKeys(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	p, _ := pipelineFixture(store, nil)
	day := time.Date(2024, 10, 8, 0, 0, 0, 0, time.UTC)

	out, err := p.Run(context.Background(), day, day)
	require.NoError(t, err)
	for _, row := range out.Rows {
		assert.Nil(t, row.Genre)
	}
}

func TestPipelineStoreErrorFailsRun(t *testing.T) {
	t.Parallel()

	store := &memoryStore{err: errors.New("disk full")}
	p, _ := pipelineFixture(store, []string{"k"})
	day := time.Date(2024, 10, 8, 0, 0, 0, 0, time.UTC)

	_, err := p.Run(context.Background(), day, day)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestPipelineWithoutCrawler(t *testing.T) {
	t.Parallel()

	_, err := NewPipeline(PipelineDeps{}).Run(context.Background(), time.Now(), time.Now())
	assert.Error(t, err)
}

func TestSchedulerWindow(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("BST", 3600)
	s := NewScheduler(nil, nil, 7, loc, nil)
	// 23:30 UTC is already the next day in BST
	from, to := s.Window(time.Date(2024, 10, 7, 23, 30, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, 10, 8, 0, 0, 0, 0, loc), from)
	assert.Equal(t, time.Date(2024, 10, 14, 0, 0, 0, 0, loc), to)
	assert.NoError(t, s.Start(context.Background()))
}
