// Package calendar loads raw provider events from files or Google Calendar.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/lifely/lifely/internal/models"
)

// Source yields the raw events of one calendar year.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Fetch returns every event overlapping year. Recurring events are
	// expected as individual occurrences.
	Fetch(ctx context.Context, year int) ([]models.RawEvent, error)
}

// YearRange returns the UTC bounds [start, end) used when querying a
// provider for year.
func YearRange(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

func validYear(year int) error {
	if year < 1970 || year > 9999 {
		return fmt.Errorf("invalid year %d", year)
	}
	return nil
}
