package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"EventScanner/internal/domain"
	"EventScanner/internal/ports"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ErrNoRuns is returned by reads that need a run while none is stored yet.
var ErrNoRuns = errors.New("no dataset has been stored yet")

type dialect string

const (
	dialectSQLite   dialect = "sqlite3"
	dialectPostgres dialect = "pgx"
)

func (d dialect) timestampType() string {
	if d == dialectPostgres {
		return "TIMESTAMPTZ"
	}
	return "TIMESTAMP"
}

var eventColumns = []string{
	"run_id", "row_index", "event_url", "title", "artist_name", "venue_name", "location_text",
	"starts_at_raw", "starts_at", "starts_on", "ends_at", "rsvp_count", "is_weekend", "week_number",
	"month", "days_before_event", "event_duration_hours", "popularity", "repeat_visit_count",
	"longitude", "latitude", "genre",
}

// Repository stores assembled datasets in SQLite or Postgres.
type Repository struct {
	db      *sql.DB
	dialect dialect
	builder sq.StatementBuilderType
}

var _ ports.DatasetStore = (*Repository)(nil)

// Open connects to the warehouse; driver is "sqlite3" or "pgx".
func Open(driver, dsn string) (*sql.DB, error) {
	switch dialect(driver) {
	case dialectSQLite, dialectPostgres:
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if dialect(driver) == dialectSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// NewRepository wires a sql.DB implementation for the given driver name.
func NewRepository(db *sql.DB, driver string) *Repository {
	d := dialect(driver)
	var placeholder sq.PlaceholderFormat = sq.Question
	if d == dialectPostgres {
		placeholder = sq.Dollar
	}
	return &Repository{
		db:      db,
		dialect: d,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// SaveDataset writes the run header and every row in one transaction.
func (r *Repository) SaveDataset(ctx context.Context, dataset domain.Dataset) error {
	if r.db == nil {
		return nil
	}
	if dataset.RunID == "" {
		return errors.New("dataset has no run id")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.builder.Insert("runs").
		Columns("run_id", "assembled_at", "row_count").
		Values(dataset.RunID, dataset.AssembledAt.UTC(), len(dataset.Rows)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, row := range dataset.Rows {
		query, args, err := r.builder.Insert("events").
			Columns(eventColumns...).
			Values(rowValues(dataset.RunID, i, row)...).
			ToSql()
		if err != nil {
			return fmt.Errorf("build row insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func rowValues(runID string, index int, row domain.Row) []any {
	var popularity sql.NullString
	if row.Popularity != nil {
		popularity = sql.NullString{String: string(*row.Popularity), Valid: true}
	}
	var startsOn sql.NullString
	if row.StartsAt != nil {
		startsOn = sql.NullString{String: row.StartsAt.Format("2006-01-02"), Valid: true}
	}
	return []any{
		runID,
		index,
		nullString(row.ID),
		row.Title,
		row.ArtistName,
		row.VenueName,
		row.LocationText,
		row.StartsAtRaw,
		nullTime(row.StartsAt),
		startsOn,
		nullTime(row.EndsAt),
		nullInt(row.RSVPCount),
		nullBool(row.IsWeekend),
		nullInt(row.WeekNumber),
		nullInt(row.Month),
		nullInt(row.DaysBeforeEvent),
		nullFloat(row.EventDurationHours),
		popularity,
		row.RepeatVisitCount,
		nullFloat(row.Longitude),
		nullFloat(row.Latitude),
		nullStringPtr(row.Genre),
	}
}

// LatestRun returns the id of the most recently assembled dataset.
func (r *Repository) LatestRun(ctx context.Context) (string, error) {
	query, args, err := r.builder.Select("run_id").From("runs").OrderBy("assembled_at DESC").Limit(1).ToSql()
	if err != nil {
		return "", fmt.Errorf("build latest run: %w", err)
	}
	var runID string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoRuns
		}
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return runID, nil
}

// Query returns one page of events matching filter. Without a run id the latest run is read.
func (r *Repository) Query(ctx context.Context, filter domain.EventFilter) (domain.EventPage, error) {
	page, size := normalizePaging(filter.Page, filter.Size)
	result := domain.EventPage{Events: []domain.StoredEvent{}, Page: page, Size: size}

	if filter.RunID == "" {
		runID, err := r.LatestRun(ctx)
		if err != nil {
			if errors.Is(err, ErrNoRuns) {
				return result, nil
			}
			return result, err
		}
		filter.RunID = runID
	}

	where := predicates(filter)

	countQuery, countArgs, err := r.builder.Select("COUNT(*)").From("events").Where(where).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("count events: %w", err)
	}
	result.TotalPages = (result.Total + size - 1) / size

	query, args, err := r.builder.Select(eventColumns...).
		From("events").
		Where(where).
		OrderBy("row_index").
		Limit(uint64(size)).
		Offset(uint64((page - 1) * size)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return result, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return result, fmt.Errorf("scan event: %w", err)
		}
		result.Events = append(result.Events, event)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

func normalizePaging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func predicates(f domain.EventFilter) sq.And {
	where := sq.And{sq.Eq{"run_id": f.RunID}}

	if artist := strings.TrimSpace(f.Artist); artist != "" {
		where = append(where, sq.Like{"LOWER(artist_name)": "%" + strings.ToLower(artist) + "%"})
	}
	if venue := strings.TrimSpace(f.Venue); venue != "" {
		where = append(where, sq.Like{"LOWER(venue_name)": "%" + strings.ToLower(venue) + "%"})
	}
	if f.From != nil {
		where = append(where, sq.GtOrEq{"starts_on": f.From.Format("2006-01-02")})
	}
	if f.To != nil {
		where = append(where, sq.LtOrEq{"starts_on": f.To.Format("2006-01-02")})
	}
	if len(f.Genres) > 0 {
		where = append(where, sq.Eq{"genre": f.Genres})
	}
	if len(f.Popularity) > 0 {
		labels := make([]string, len(f.Popularity))
		for i, p := range f.Popularity {
			labels[i] = string(p)
		}
		where = append(where, sq.Eq{"popularity": labels})
	}
	if f.Weekend != nil {
		where = append(where, sq.Eq{"is_weekend": *f.Weekend})
	}
	if f.DaysAhead != nil {
		where = append(where,
			sq.GtOrEq{"days_before_event": 0},
			sq.LtOrEq{"days_before_event": *f.DaysAhead})
	}
	if f.MinDurationHrs != nil {
		where = append(where, sq.GtOrEq{"event_duration_hours": *f.MinDurationHrs})
	}
	if f.MaxDurationHrs != nil {
		where = append(where, sq.LtOrEq{"event_duration_hours": *f.MaxDurationHrs})
	}
	return where
}

func scanEvent(rows *sql.Rows) (domain.StoredEvent, error) {
	var (
		event                                 domain.StoredEvent
		rowIndex                              int
		eventURL, startsOn, popularity, genre sql.NullString
		startsAt, endsAt                      sql.NullTime
		rsvp, week, month, days               sql.NullInt64
		weekend                               sql.NullBool
		duration, lon, lat                    sql.NullFloat64
	)
	err := rows.Scan(
		&event.RunID, &rowIndex, &eventURL, &event.Title, &event.ArtistName, &event.VenueName,
		&event.LocationText, &event.StartsAtRaw, &startsAt, &startsOn, &endsAt, &rsvp, &weekend, &week,
		&month, &days, &duration, &popularity, &event.RepeatVisitCount, &lon, &lat, &genre,
	)
	if err != nil {
		return event, err
	}

	event.EventURL = eventURL.String
	event.StartsAt = timePtr(startsAt)
	event.EndsAt = timePtr(endsAt)
	event.RSVPCount = intPtr(rsvp)
	event.IsWeekend = boolPtr(weekend)
	event.WeekNumber = intPtr(week)
	event.Month = intPtr(month)
	event.DaysBeforeEvent = intPtr(days)
	event.EventDurationHours = floatPtr(duration)
	event.Popularity = stringPtr(popularity)
	event.Longitude = floatPtr(lon)
	event.Latitude = floatPtr(lat)
	event.Genre = stringPtr(genre)
	return event, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullStringPtr(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func boolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
