package dataset

import (
	"math"
	"sort"
	"time"

	"EventScanner/internal/domain"
)

// Assemble merges crawled days into rows, in (day, page) order, and derives the
// calendar columns. now is the reference clock for DaysBeforeEvent, which makes
// that column a snapshot of the assembly moment.
func Assemble(days []domain.DayResult, now time.Time) []domain.Row {
	pages := make([]domain.Page, 0)
	for _, day := range days {
		pages = append(pages, day.Pages...)
	}
	sort.SliceStable(pages, func(i, j int) bool {
		if !pages[i].Window.Start.Equal(pages[j].Window.Start) {
			return pages[i].Window.Start.Before(pages[j].Window.Start)
		}
		return pages[i].Number < pages[j].Number
	})

	var rows []domain.Row
	for _, page := range pages {
		for _, event := range page.Events {
			rows = append(rows, deriveRow(event, now))
		}
	}
	return rows
}

func deriveRow(event domain.Event, now time.Time) domain.Row {
	row := domain.Row{Event: event}
	if event.StartsAt == nil {
		return row
	}
	starts := *event.StartsAt

	weekday := starts.Weekday()
	weekend := weekday == time.Saturday || weekday == time.Sunday
	_, week := starts.ISOWeek()
	month := int(starts.Month())
	days := int(math.Floor(starts.Sub(now).Hours() / 24))

	row.IsWeekend = &weekend
	row.WeekNumber = &week
	row.Month = &month
	row.DaysBeforeEvent = &days

	if event.EndsAt != nil {
		hours := event.EndsAt.Sub(starts).Hours()
		row.EventDurationHours = &hours
	}
	return row
}
