// Package normalize converts provider-shaped calendar records into canonical,
// timezone-resolved events.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/lifely/lifely/internal/models"
)

// DefaultTimezone is used when Options carries no location.
const DefaultTimezone = "America/New_York"

// Options controls normalization.
type Options struct {
	// Location is the zone all instants are converted to. All-day dates are
	// anchored at local midnight here. Nil means DefaultTimezone.
	Location *time.Location
}

// Report counts what happened to the input records.
type Report struct {
	Input             int `json:"input"`
	Kept              int `json:"kept"`
	Cancelled         int `json:"cancelled"`
	Unparseable       int `json:"unparseable"`
	NegativeDurations int `json:"negative_durations"`
}

// LoadLocation resolves an IANA zone name, falling back to DefaultTimezone for
// an empty name.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Normalize converts raw records in order. Cancelled records and records
// whose start or end cannot be parsed are dropped. An end before the start is
// clamped to a zero duration and counted in the report.
func Normalize(raw []models.RawEvent, userEmail string, opts Options) ([]models.NormalizedEvent, Report) {
	loc := opts.Location
	if loc == nil {
		var err error
		if loc, err = LoadLocation(DefaultTimezone); err != nil {
			loc = time.UTC
		}
	}

	self := strings.ToLower(strings.TrimSpace(userEmail))
	report := Report{Input: len(raw)}
	events := make([]models.NormalizedEvent, 0, len(raw))

	for _, r := range raw {
		if r.Status == models.EventStatusCancelled {
			report.Cancelled++
			continue
		}

		start, allDay, ok := parseEventTime(r.Start, loc)
		if !ok {
			report.Unparseable++
			continue
		}
		end, _, ok := parseEventTime(r.End, loc)
		if !ok {
			report.Unparseable++
			continue
		}

		minutes := end.Sub(start).Minutes()
		if minutes < 0 {
			report.NegativeDurations++
			minutes = 0
		}

		event := models.NormalizedEvent{
			ID:               r.ID,
			Summary:          r.Summary,
			Description:      r.Description,
			Start:            start,
			End:              end,
			AllDay:           allDay,
			DurationMinutes:  minutes,
			Attendees:        normalizeAttendees(r.Attendees, self),
			LocationRaw:      r.Location,
			Created:          parseTimestamp(r.Created),
			Updated:          parseTimestamp(r.Updated),
			RecurringEventID: r.RecurringEventID,
		}
		if r.Organizer != nil {
			event.OrganizerEmail = strings.ToLower(r.Organizer.Email)
		}

		events = append(events, event)
	}

	report.Kept = len(events)
	return events, report
}

// FilterYear keeps events whose local start falls in year. Year 0 keeps all.
func FilterYear(events []models.NormalizedEvent, year int, loc *time.Location) []models.NormalizedEvent {
	if year == 0 {
		return events
	}
	if loc == nil {
		loc = time.UTC
	}

	out := make([]models.NormalizedEvent, 0, len(events))
	for _, e := range events {
		if e.Start.In(loc).Year() == year {
			out = append(out, e)
		}
	}
	return out
}

// NegativeDurations counts events whose end precedes their start and whose
// duration was therefore clamped to zero.
func NegativeDurations(events []models.NormalizedEvent) int {
	n := 0
	for _, e := range events {
		if e.End.Before(e.Start) {
			n++
		}
	}
	return n
}

const localDateTimeLayout = "2006-01-02T15:04:05"

func parseEventTime(t models.RawEventTime, loc *time.Location) (time.Time, bool, bool) {
	if t.Date != "" {
		d, err := time.ParseInLocation(models.DateLayout, t.Date, loc)
		if err != nil {
			return time.Time{}, false, false
		}
		return d, true, true
	}

	if t.DateTime == "" {
		return time.Time{}, false, false
	}

	if ts, err := time.Parse(time.RFC3339Nano, t.DateTime); err == nil {
		return ts.In(loc), false, true
	}

	// Offset-less timestamps are read in the record's own zone when it names one.
	zone := loc
	if t.TimeZone != "" {
		if z, err := time.LoadLocation(t.TimeZone); err == nil {
			zone = z
		}
	}
	ts, err := time.ParseInLocation(localDateTimeLayout, t.DateTime, zone)
	if err != nil {
		return time.Time{}, false, false
	}
	return ts.In(loc), false, true
}

func normalizeAttendees(raw []models.RawAttendee, selfEmail string) []models.NormalizedAttendee {
	if len(raw) == 0 {
		return nil
	}

	attendees := make([]models.NormalizedAttendee, 0, len(raw))
	for _, a := range raw {
		email := strings.ToLower(strings.TrimSpace(a.Email))
		attendees = append(attendees, models.NormalizedAttendee{
			Email:          email,
			DisplayName:    a.DisplayName,
			IsSelf:         a.Self || (selfEmail != "" && email == selfEmail),
			ResponseStatus: models.ResponseStatus(a.ResponseStatus),
		})
	}
	return attendees
}

func parseTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	return &ts
}
