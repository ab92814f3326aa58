package models

import (
	"math"
	"time"
)

// RawEvent mirrors a calendar provider event record as delivered by the
// Google Calendar events.list endpoint (singleEvents=true).
type RawEvent struct {
	ID               string        `json:"id"`
	Status           string        `json:"status,omitempty"`
	Summary          string        `json:"summary,omitempty"`
	Description      string        `json:"description,omitempty"`
	Location         string        `json:"location,omitempty"`
	Start            RawEventTime  `json:"start"`
	End              RawEventTime  `json:"end"`
	Attendees        []RawAttendee `json:"attendees,omitempty"`
	Organizer        *RawOrganizer `json:"organizer,omitempty"`
	Created          string        `json:"created,omitempty"`
	Updated          string        `json:"updated,omitempty"`
	RecurringEventID string        `json:"recurringEventId,omitempty"`
}

// RawEventTime holds either a bare date (all-day events) or an RFC 3339 timestamp.
type RawEventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// IsZero reports whether neither a date nor a timestamp is present.
func (t RawEventTime) IsZero() bool {
	return t.Date == "" && t.DateTime == ""
}

// RawAttendee is a provider attendee record.
type RawAttendee struct {
	Email          string `json:"email,omitempty"`
	DisplayName    string `json:"displayName,omitempty"`
	Self           bool   `json:"self,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

// RawOrganizer is a provider organizer record.
type RawOrganizer struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Self        bool   `json:"self,omitempty"`
}

// EventStatusCancelled marks provider events that were cancelled.
const EventStatusCancelled = "cancelled"

// ResponseStatus is an attendee's reply to an invitation.
type ResponseStatus string

const (
	ResponseAccepted    ResponseStatus = "accepted"
	ResponseDeclined    ResponseStatus = "declined"
	ResponseTentative   ResponseStatus = "tentative"
	ResponseNeedsAction ResponseStatus = "needsAction"
)

// NormalizedAttendee is an attendee keyed by lower-cased email.
type NormalizedAttendee struct {
	Email          string         `json:"email"`
	DisplayName    string         `json:"display_name,omitempty"`
	IsSelf         bool           `json:"is_self"`
	ResponseStatus ResponseStatus `json:"response_status,omitempty"`
}

// NormalizedEvent is a canonical, timezone-resolved calendar occurrence.
// Values are treated as immutable once produced by the normalizer.
type NormalizedEvent struct {
	ID               string               `json:"id"`
	Summary          string               `json:"summary,omitempty"`
	Description      string               `json:"description,omitempty"`
	Start            time.Time            `json:"start"`
	End              time.Time            `json:"end"`
	AllDay           bool                 `json:"all_day"`
	DurationMinutes  float64              `json:"duration_minutes"`
	Attendees        []NormalizedAttendee `json:"attendees,omitempty"`
	OrganizerEmail   string               `json:"organizer_email,omitempty"`
	LocationRaw      string               `json:"location_raw,omitempty"`
	Created          *time.Time           `json:"created,omitempty"`
	Updated          *time.Time           `json:"updated,omitempty"`
	RecurringEventID string               `json:"recurring_event_id,omitempty"`
}

// Hours returns the unrounded duration in hours.
func (e NormalizedEvent) Hours() float64 {
	return e.DurationMinutes / 60
}

// Date returns the local calendar date of the event start (YYYY-MM-DD).
func (e NormalizedEvent) Date() string {
	return e.Start.Format(DateLayout)
}

// DateLayout is the calendar-date layout used for day keys.
const DateLayout = "2006-01-02"

// RoundHours rounds an hour total to one decimal place. Aggregates accumulate
// raw values and round once at the point of storage.
func RoundHours(hours float64) float64 {
	return math.Round(hours*10) / 10
}
