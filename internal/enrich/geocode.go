package enrich

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"EventScanner/internal/domain"
	"EventScanner/internal/metrics"
	"EventScanner/internal/pacing"
	"EventScanner/internal/ports"
)

// GeocodeOptions configures pacing of the geocoding stage.
type GeocodeOptions struct {
	RequestDelay     time.Duration
	RateLimitBackoff time.Duration
	Sleep            pacing.SleepFunc
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
}

// GeocodeEnricher resolves each distinct (venue, location) pair once per run.
type GeocodeEnricher struct {
	geocoder ports.Geocoder
	delay    time.Duration
	backoff  time.Duration
	sleep    pacing.SleepFunc
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewGeocodeEnricher builds the enricher around a geocoder.
func NewGeocodeEnricher(geocoder ports.Geocoder, opts GeocodeOptions) *GeocodeEnricher {
	if opts.Sleep == nil {
		opts.Sleep = pacing.Sleep
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &GeocodeEnricher{
		geocoder: geocoder,
		delay:    opts.RequestDelay,
		backoff:  opts.RateLimitBackoff,
		sleep:    opts.Sleep,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// DistinctLocations returns the lookup keys of rows in first-seen order.
// Keys whose venue and location are both blank are skipped.
func DistinctLocations(rows []domain.Row) []domain.LocationKey {
	seen := map[domain.LocationKey]struct{}{}
	var keys []domain.LocationKey
	for _, row := range rows {
		key := row.LocationKey()
		if strings.TrimSpace(key.Venue) == "" && strings.TrimSpace(key.Location) == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// Resolve looks up every distinct location sequentially and returns the cache of
// resolved keys. Unresolved keys are simply absent. A 429 answer is retried after
// the backoff for as long as it takes; only ctx cancellation ends that wait.
func (e *GeocodeEnricher) Resolve(ctx context.Context, rows []domain.Row) (map[domain.LocationKey]domain.Coordinates, error) {
	keys := DistinctLocations(rows)
	cache := make(map[domain.LocationKey]domain.Coordinates, len(keys))

	for i, key := range keys {
		if i > 0 {
			if err := e.sleep(ctx, e.delay); err != nil {
				return cache, err
			}
		}

		coords, found, err := e.lookup(ctx, key)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return cache, ctxErr
			}
			e.metrics.LocationUnresolved()
			e.logger.Warn("location unresolved", "venue", key.Venue, "location", key.Location, "error", err)
			continue
		}
		if !found {
			e.metrics.LocationUnresolved()
			e.logger.Debug("location has no match", "venue", key.Venue, "location", key.Location)
			continue
		}
		cache[key] = coords
	}

	e.logger.Info("geocoding finished", "locations", len(keys), "resolved", len(cache))
	return cache, nil
}

func (e *GeocodeEnricher) lookup(ctx context.Context, key domain.LocationKey) (domain.Coordinates, bool, error) {
	for {
		coords, found, err := e.geocoder.Geocode(ctx, key.Query())
		if err == nil || !errors.Is(err, domain.ErrRateLimited) {
			return coords, found, err
		}
		e.logger.Warn("geocoding rate limited, backing off", "venue", key.Venue, "backoff", e.backoff)
		if sleepErr := e.sleep(ctx, e.backoff); sleepErr != nil {
			return domain.Coordinates{}, false, sleepErr
		}
	}
}

// Enrich resolves locations and joins the coordinates onto rows in place.
func (e *GeocodeEnricher) Enrich(ctx context.Context, rows []domain.Row) error {
	cache, err := e.Resolve(ctx, rows)
	ApplyCoordinates(rows, cache)
	return err
}

// ApplyCoordinates copies cached coordinates onto every row sharing the key.
func ApplyCoordinates(rows []domain.Row, cache map[domain.LocationKey]domain.Coordinates) {
	for i := range rows {
		coords, ok := cache[rows[i].LocationKey()]
		if !ok {
			continue
		}
		lon, lat := coords.Longitude, coords.Latitude
		rows[i].Longitude = &lon
		rows[i].Latitude = &lat
	}
}
