package domain

import "time"

// Popularity is the RSVP-derived bucket label.
type Popularity string

const (
	PopularityLow      Popularity = "Faible"
	PopularityMedium   Popularity = "Moyenne"
	PopularityHigh     Popularity = "Haute"
	PopularityVeryHigh Popularity = "Très Haute"
)

// Genre labels produced by the classifier.
const (
	GenreUnavailable = "Information non disponible"
	GenreUnknown     = "Inconnu"
)

// Coordinates is a resolved geocoding point.
type Coordinates struct {
	Longitude float64
	Latitude  float64
}

// LocationKey identifies a geocoding lookup.
type LocationKey struct {
	Venue    string
	Location string
}

// Query renders the free-text geocoding query for the key.
func (k LocationKey) Query() string {
	return k.Venue + ", " + k.Location
}

// Row is an event plus every derived column. Nil pointers mean absent.
type Row struct {
	Event

	IsWeekend          *bool
	WeekNumber         *int
	Month              *int
	DaysBeforeEvent    *int
	EventDurationHours *float64
	Popularity         *Popularity
	RepeatVisitCount   int
	Longitude          *float64
	Latitude           *float64
	Genre              *string
}

// LocationKey returns the geocoding key of the row.
func (r Row) LocationKey() LocationKey {
	return LocationKey{Venue: r.VenueName, Location: r.LocationText}
}

// Dataset is the assembled output of one run.
type Dataset struct {
	RunID       string
	AssembledAt time.Time
	Rows        []Row
}

// EventFilter narrows warehouse queries. Zero values disable a predicate.
type EventFilter struct {
	RunID          string
	Artist         string
	Venue          string
	From           *time.Time
	To             *time.Time
	Genres         []string
	Popularity     []Popularity
	Weekend        *bool
	DaysAhead      *int
	MinDurationHrs *float64
	MaxDurationHrs *float64
	Page           int
	Size           int
}

// StoredEvent is a warehouse row as returned by queries.
type StoredEvent struct {
	RunID              string     `json:"run_id"`
	EventURL           string     `json:"event_url,omitempty"`
	Title              string     `json:"title"`
	ArtistName         string     `json:"artist_name"`
	VenueName          string     `json:"venue_name"`
	LocationText       string     `json:"location_text"`
	StartsAtRaw        string     `json:"starts_at_raw"`
	StartsAt           *time.Time `json:"starts_at,omitempty"`
	EndsAt             *time.Time `json:"ends_at,omitempty"`
	RSVPCount          *int       `json:"rsvp_count,omitempty"`
	IsWeekend          *bool      `json:"is_weekend,omitempty"`
	WeekNumber         *int       `json:"week_number,omitempty"`
	Month              *int       `json:"month,omitempty"`
	DaysBeforeEvent    *int       `json:"days_before_event,omitempty"`
	EventDurationHours *float64   `json:"event_duration_hours,omitempty"`
	Popularity         *string    `json:"popularity,omitempty"`
	RepeatVisitCount   int        `json:"repeat_visit_count"`
	Longitude          *float64   `json:"longitude,omitempty"`
	Latitude           *float64   `json:"latitude,omitempty"`
	Genre              *string    `json:"genre,omitempty"`
}

// EventPage is one page of query results with pagination metadata.
type EventPage struct {
	Events     []StoredEvent `json:"events"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	Size       int           `json:"size"`
	TotalPages int           `json:"total_pages"`
}
