package domain

import "time"

// WireTimeLayout is the timestamp layout the listing API expects in date windows.
const WireTimeLayout = "2006-01-02T15:04:05"

// Event is a single listing as returned by the source.
// ID is the source event URL; an empty ID means the identity is unknown.
type Event struct {
	ID           string
	Title        string
	ArtistName   string
	VenueName    string
	LocationText string
	StartsAtRaw  string
	StartsAt     *time.Time
	EndsAt       *time.Time
	RSVPCount    *int
}

// Window is the inclusive time range of one crawled calendar day.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns [00:00:00, 23:59:59] of day in day's location.
func DayWindow(day time.Time) Window {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return Window{
		Start: start,
		End:   time.Date(y, m, d, 23, 59, 59, 0, day.Location()),
	}
}

// Day returns the window's calendar day formatted as YYYY-MM-DD.
func (w Window) Day() string {
	return w.Start.Format("2006-01-02")
}

// Page holds the events captured for one (day, page number).
type Page struct {
	Window Window
	Number int
	Events []Event
}

// DayResult summarises the crawl of a single day.
type DayResult struct {
	Window   Window
	Pages    []Page
	LastPage int
	Err      error
}

// Events flattens the captured pages in page order.
func (r DayResult) Events() []Event {
	var out []Event
	for _, p := range r.Pages {
		out = append(out, p.Events...)
	}
	return out
}
