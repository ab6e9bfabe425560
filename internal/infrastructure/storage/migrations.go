package storage

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

type migration struct {
	Version int
	Name    string
	Stmts   func(d dialect) []string
}

var migrations = []migration{
	{Version: 1, Name: "events_schema", Stmts: schemaV001},
}

func schemaV001(d dialect) []string {
	ts := d.timestampType()
	return []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id       TEXT PRIMARY KEY,
			assembled_at ` + ts + ` NOT NULL,
			row_count    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			run_id               TEXT NOT NULL REFERENCES runs(run_id),
			row_index            INTEGER NOT NULL,
			event_url            TEXT,
			title                TEXT NOT NULL,
			artist_name          TEXT NOT NULL,
			venue_name           TEXT NOT NULL,
			location_text        TEXT NOT NULL,
			starts_at_raw        TEXT NOT NULL,
			starts_at            ` + ts + `,
			starts_on            TEXT,
			ends_at              ` + ts + `,
			rsvp_count           INTEGER,
			is_weekend           BOOLEAN,
			week_number          INTEGER,
			month                INTEGER,
			days_before_event    INTEGER,
			event_duration_hours DOUBLE PRECISION,
			popularity           TEXT,
			repeat_visit_count   INTEGER NOT NULL,
			longitude            DOUBLE PRECISION,
			latitude             DOUBLE PRECISION,
			genre                TEXT,
			PRIMARY KEY (run_id, row_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_starts_on ON events (run_id, starts_on)`,
		`CREATE INDEX IF NOT EXISTS idx_events_genre ON events (run_id, genre)`,
	}
}

// Migrate creates the tracking table and applies pending migrations in order.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := r.isApplied(ctx, m.Version)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (r *Repository) isApplied(ctx context.Context, version int) (bool, error) {
	query, args, err := r.builder.Select("COUNT(*)").From("schema_migrations").Where(sq.Eq{"version": version}).ToSql()
	if err != nil {
		return false, err
	}
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) apply(ctx context.Context, m migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.Stmts(r.dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}

	query, args, err := r.builder.Insert("schema_migrations").Columns("version", "name").Values(m.Version, m.Name).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
