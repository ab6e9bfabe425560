package ports

import (
	"context"
	"time"

	"EventScanner/internal/domain"
)

// ListingSource fetches one page of events for a day window.
type ListingSource interface {
	FetchPage(ctx context.Context, window domain.Window, page int) ([]domain.Event, error)
}

// Geocoder resolves a free-text place query. found is false when the service
// answered without any match.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (coords domain.Coordinates, found bool, err error)
}

// GenreClassifier asks a language model for the genre of an artist using one credential.
type GenreClassifier interface {
	Classify(ctx context.Context, apiKey, prompt string) (string, error)
}

// DatasetStore persists assembled datasets and serves filtered reads.
type DatasetStore interface {
	SaveDataset(ctx context.Context, dataset domain.Dataset) error
	Query(ctx context.Context, filter domain.EventFilter) (domain.EventPage, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
