package dataset

import (
	"strings"

	"EventScanner/internal/domain"
)

// popularity thresholds are lower bounds of left-closed intervals.
var popularityBuckets = []struct {
	min   int
	label domain.Popularity
}{
	{200, domain.PopularityVeryHigh},
	{50, domain.PopularityHigh},
	{2, domain.PopularityMedium},
	{0, domain.PopularityLow},
}

// PopularityFor buckets an RSVP count. Missing or negative counts have no bucket.
func PopularityFor(count *int) *domain.Popularity {
	if count == nil || *count < 0 {
		return nil
	}
	for _, b := range popularityBuckets {
		if *count >= b.min {
			label := b.label
			return &label
		}
	}
	return nil
}

// ApplyPopularity sets the Popularity column on every row.
func ApplyPopularity(rows []domain.Row) {
	for i := range rows {
		rows[i].Popularity = PopularityFor(rows[i].RSVPCount)
	}
}

type artistVenue struct {
	artist string
	venue  string
}

// ApplyRepeatVisits counts, per (artist, venue), the distinct calendar dates
// with a known start and stores that count on every row of the group.
func ApplyRepeatVisits(rows []domain.Row) {
	dates := map[artistVenue]map[string]struct{}{}
	for _, row := range rows {
		key := artistVenue{artist: row.ArtistName, venue: row.VenueName}
		if dates[key] == nil {
			dates[key] = map[string]struct{}{}
		}
		if row.StartsAt != nil {
			dates[key][row.StartsAt.Format("2006-01-02")] = struct{}{}
		}
	}
	for i := range rows {
		key := artistVenue{artist: rows[i].ArtistName, venue: rows[i].VenueName}
		rows[i].RepeatVisitCount = len(dates[key])
	}
}

// DistinctArtists returns non-blank artist names in first-seen order.
func DistinctArtists(rows []domain.Row) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, row := range rows {
		name := row.ArtistName
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
