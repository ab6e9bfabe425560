package dataset

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EventScanner/internal/domain"
)

func ptrTime(t time.Time) *time.Time { return &t }
func ptrInt(v int) *int { return &v }

func TestAssembleDerivesCalendarColumns(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.October, 1, 12, 0, 0, 0, time.UTC)
	// Saturday 2024-10-12
	starts := time.Date(2024, time.October, 12, 20, 0, 0, 0, time.UTC)
	ends := starts.Add(150 * time.Minute)

	day := domain.DayWindow(starts)
	rows := Assemble([]domain.DayResult{{
		Window: day,
		Pages: []domain.Page{{Window: day, Number: 1, Events: []domain.Event{
			{ID: "a", StartsAt: &starts, EndsAt: &ends},
			{ID: "b", StartsAtRaw: "soon"},
		}}},
	}}, now)

	require.Len(t, rows, 2)
	first := rows[0]
	require.NotNil(t, first.IsWeekend)
	assert.True(t, *first.IsWeekend)
	assert.Equal(t, 41, *first.WeekNumber)
	assert.Equal(t, 10, *first.Month)
	assert.Equal(t, 11, *first.DaysBeforeEvent)
	assert.InDelta(t, 2.5, *first.EventDurationHours, 1e-9)

	second := rows[1]
	assert.Equal(t, "soon", second.StartsAtRaw)
	assert.Nil(t, second.IsWeekend)
	assert.Nil(t, second.WeekNumber)
	assert.Nil(t, second.Month)
	assert.Nil(t, second.DaysBeforeEvent)
	assert.Nil(t, second.EventDurationHours)
}

func TestAssembleDaysBeforeEventIsDeterministicAndFloors(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.October, 8, 18, 0, 0, 0, time.UTC)
	cases := []struct {
		starts time.Time
		want   int
	}{
		{time.Date(2024, time.October, 8, 20, 0, 0, 0, time.UTC), 0},
		{time.Date(2024, time.October, 10, 17, 0, 0, 0, time.UTC), 1},
		{time.Date(2024, time.October, 8, 10, 0, 0, 0, time.UTC), -1},
	}
	for _, tc := range cases {
		row := deriveRow(domain.Event{StartsAt: ptrTime(tc.starts)}, now)
		again := deriveRow(domain.Event{StartsAt: ptrTime(tc.starts)}, now)
		assert.Equal(t, tc.want, *row.DaysBeforeEvent, tc.starts.String())
		assert.Equal(t, *row.DaysBeforeEvent, *again.DaysBeforeEvent)
	}
}

func TestAssembleOrdersByDayThenPage(t *testing.T) {
	t.Parallel()

	d1 := domain.DayWindow(time.Date(2024, 10, 8, 0, 0, 0, 0, time.UTC))
	d2 := domain.DayWindow(time.Date(2024, 10, 9, 0, 0, 0, 0, time.UTC))
	rows := Assemble([]domain.DayResult{
		{Window: d2, Pages: []domain.Page{{Window: d2, Number: 1, Events: []domain.Event{{ID: "d2p1"}}}}},
		{Window: d1, Pages: []domain.Page{
			{Window: d1, Number: 2, Events: []domain.Event{{ID: "d1p2"}}},
			{Window: d1, Number: 1, Events: []domain.Event{{ID: "d1p1a"}, {ID: "d1p1b"}}},
		}},
	}, time.Now())

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"d1p1a", "d1p1b", "d1p2", "d2p1"}, ids)
}

func TestPopularityBoundaries(t *testing.T) {
	t.Parallel()

	cases := map[int]domain.Popularity{
		0:     domain.PopularityLow,
		1:     domain.PopularityLow,
		2:     domain.PopularityMedium,
		49:    domain.PopularityMedium,
		50:    domain.PopularityHigh,
		199:   domain.PopularityHigh,
		200:   domain.PopularityVeryHigh,
		10000: domain.PopularityVeryHigh,
	}
	for count, want := range cases {
		got := PopularityFor(ptrInt(count))
		require.NotNil(t, got, count)
		assert.Equal(t, want, *got, count)
	}

	assert.Nil(t, PopularityFor(nil))
	assert.Nil(t, PopularityFor(ptrInt(-1)))
}

func TestProperty_PopularityIsMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	rank := map[domain.Popularity]int{
		domain.PopularityLow:      0,
		domain.PopularityMedium:   1,
		domain.PopularityHigh:     2,
		domain.PopularityVeryHigh: 3,
	}

	properties.Property("a larger count never gets a lower bucket", prop.ForAll(
		func(a, b int) bool {
			if a > b {
				a, b = b, a
			}
			pa, pb := PopularityFor(&a), PopularityFor(&b)
			return pa != nil && pb != nil && rank[*pa] <= rank[*pb]
		},
		gen.IntRange(0, 100000),
		gen.IntRange(0, 100000),
	))

	properties.TestingRun(t)
}

func TestApplyRepeatVisits(t *testing.T) {
	t.Parallel()

	d1 := time.Date(2024, 10, 8, 19, 0, 0, 0, time.UTC)
	d1late := time.Date(2024, 10, 8, 22, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 10, 9, 19, 0, 0, 0, time.UTC)

	rows := []domain.Row{
		{Event: domain.Event{ArtistName: "X", VenueName: "Koko", StartsAt: &d1}},
		{Event: domain.Event{ArtistName: "X", VenueName: "Koko", StartsAt: &d1late}},
		{Event: domain.Event{ArtistName: "X", VenueName: "Koko", StartsAt: &d2}},
		{Event: domain.Event{ArtistName: "X", VenueName: "Koko", StartsAt: &d2}},
		{Event: domain.Event{ArtistName: "X", VenueName: "Koko"}},
		{Event: domain.Event{ArtistName: "X", VenueName: "Roundhouse", StartsAt: &d1}},
		{Event: domain.Event{ArtistName: "Y", VenueName: "Pub"}},
	}

	ApplyRepeatVisits(rows)

	for i := 0; i < 5; i++ {
		assert.Equal(t, 2, rows[i].RepeatVisitCount, i)
	}
	assert.Equal(t, 1, rows[5].RepeatVisitCount)
	assert.Equal(t, 0, rows[6].RepeatVisitCount)
}

func TestApplyPopularity(t *testing.T) {
	t.Parallel()

	rows := []domain.Row{
		{Event: domain.Event{RSVPCount: ptrInt(60)}},
		{Event: domain.Event{}},
	}
	ApplyPopularity(rows)

	require.NotNil(t, rows[0].Popularity)
	assert.Equal(t, domain.PopularityHigh, *rows[0].Popularity)
	assert.Nil(t, rows[1].Popularity)
}

func TestDistinctArtists(t *testing.T) {
	t.Parallel()

	rows := []domain.Row{
		{Event: domain.Event{ArtistName: "B"}},
		{Event: domain.Event{ArtistName: "A"}},
		{Event: domain.Event{ArtistName: "B"}},
		{Event: domain.Event{ArtistName: "  "}},
	}
	assert.Equal(t, []string{"B", "A"}, DistinctArtists(rows))
}
