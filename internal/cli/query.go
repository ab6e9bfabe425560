package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"EventScanner/internal/domain"
	"EventScanner/internal/infrastructure/storage"
	"EventScanner/internal/ports"
)

// Execute implements the go-flags Commander interface for QueryCommand.
func (c *QueryCommand) Execute(args []string) error {
	cfg := loadConfig(c.globals)

	filter, err := c.filter(cfg.Scheduler.Location())
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.Warehouse.Driver, cfg.Warehouse.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := storage.NewRepository(db, cfg.Warehouse.Driver)
	if err := repo.Migrate(context.Background()); err != nil {
		return fmt.Errorf("migrate warehouse: %w", err)
	}

	return c.executeWithStore(context.Background(), repo, filter, os.Stdout)
}

func (c *QueryCommand) executeWithStore(ctx context.Context, store ports.DatasetStore, filter domain.EventFilter, w io.Writer) error {
	page, err := store.Query(ctx, filter)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(page)
}

func (c *QueryCommand) filter(loc *time.Location) (domain.EventFilter, error) {
	filter := domain.EventFilter{
		RunID:  c.Run,
		Artist: c.Artist,
		Venue:  c.Venue,
		Genres: c.Genre,
		Page:   c.Page,
		Size:   c.Size,
	}

	var err error
	if filter.From, err = parseDay(c.From, loc); err != nil {
		return filter, err
	}
	if filter.To, err = parseDay(c.To, loc); err != nil {
		return filter, err
	}

	for _, raw := range c.Popularity {
		p, err := parsePopularity(raw)
		if err != nil {
			return filter, err
		}
		filter.Popularity = append(filter.Popularity, p)
	}

	switch c.Weekend {
	case "true":
		v := true
		filter.Weekend = &v
	case "false":
		v := false
		filter.Weekend = &v
	}

	if c.DaysAhead >= 0 {
		days := c.DaysAhead
		filter.DaysAhead = &days
	}
	if c.MinDuration >= 0 {
		minHours := c.MinDuration
		filter.MinDurationHrs = &minHours
	}
	if c.MaxDuration >= 0 {
		maxHours := c.MaxDuration
		filter.MaxDurationHrs = &maxHours
	}
	return filter, nil
}

func parsePopularity(raw string) (domain.Popularity, error) {
	for _, p := range []domain.Popularity{domain.PopularityLow, domain.PopularityMedium, domain.PopularityHigh, domain.PopularityVeryHigh} {
		if strings.EqualFold(strings.TrimSpace(raw), string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown popularity %q", raw)
}
