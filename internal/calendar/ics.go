package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/lifely/lifely/internal/models"
)

const (
	icsDateLayout      = "20060102"
	icsLocalLayout     = "20060102T150405"
	icsUTCLayout       = "20060102T150405Z"
	maxOccurrences     = 5000
	expansionSlackDays = 1
)

// Properties referenced by name; not every library version exports them.
const (
	propertyRecurrenceID = ical.ComponentProperty("RECURRENCE-ID")
	propertyRRule        = ical.ComponentProperty("RRULE")
	propertyExDate       = ical.ComponentProperty("EXDATE")
	propertyCreated      = ical.ComponentProperty("CREATED")
	propertyLastModified = ical.ComponentProperty("LAST-MODIFIED")
)

// vevent is a converted VEVENT plus what recurrence expansion needs.
type vevent struct {
	raw          models.RawEvent
	start        time.Time
	end          time.Time
	allDay       bool
	rrule        string
	exdates      []time.Time
	recurrenceID *time.Time
}

// ParseICS converts the VEVENTs of an iCalendar payload into provider-shaped
// events. When year is non-zero, RRULE series are expanded into the
// occurrences falling in that year, minus EXDATEs and instances replaced by
// a RECURRENCE-ID override. With year 0 each VEVENT yields one event.
// Events without a UID or a start are skipped.
func ParseICS(r io.Reader, year int) ([]models.RawEvent, error) {
	if year != 0 {
		if err := validYear(year); err != nil {
			return nil, err
		}
	}

	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	parsed := make([]vevent, 0, len(cal.Events()))
	overridden := make(map[string]map[int64]bool)
	for _, ve := range cal.Events() {
		ev, ok := convertVEvent(ve)
		if !ok {
			continue
		}
		parsed = append(parsed, ev)
		if ev.recurrenceID != nil {
			uid := ev.raw.RecurringEventID
			if overridden[uid] == nil {
				overridden[uid] = make(map[int64]bool)
			}
			overridden[uid][ev.recurrenceID.Unix()] = true
		}
	}

	var from, to time.Time
	if year != 0 {
		from, to = YearRange(year)
		from = from.AddDate(0, 0, -expansionSlackDays)
		to = to.AddDate(0, 0, expansionSlackDays)
	}

	events := make([]models.RawEvent, 0, len(parsed))
	for _, ev := range parsed {
		if year == 0 || ev.rrule == "" || ev.recurrenceID != nil {
			events = append(events, ev.raw)
			continue
		}
		occurrences, err := ev.occurrences(from, to, overridden[ev.raw.ID])
		if err != nil {
			// Unusable rule: keep the first instance.
			events = append(events, ev.raw)
			continue
		}
		events = append(events, occurrences...)
	}
	return events, nil
}

// occurrences expands the series between from and to. Instants listed in
// skip have an override event of their own.
func (ev vevent) occurrences(from, to time.Time, skip map[int64]bool) ([]models.RawEvent, error) {
	rule, err := rrule.StrToRRule(ev.rrule)
	if err != nil {
		return nil, fmt.Errorf("parse rrule %q: %w", ev.rrule, err)
	}
	rule.DTStart(ev.start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.exdates {
		set.ExDate(ex.In(ev.start.Location()))
	}

	loc := ev.start.Location()
	starts := set.Between(from.In(loc), to.In(loc), true)
	if len(starts) > maxOccurrences {
		starts = starts[:maxOccurrences]
	}

	duration := ev.end.Sub(ev.start)
	out := make([]models.RawEvent, 0, len(starts))
	for _, start := range starts {
		if skip[start.Unix()] {
			continue
		}
		occ := ev.raw
		occ.RecurringEventID = ev.raw.ID
		end := start.Add(duration)
		if ev.allDay {
			occ.ID = ev.raw.ID + "_" + start.Format(icsDateLayout)
			occ.Start = models.RawEventTime{Date: start.Format(models.DateLayout)}
			occ.End = models.RawEventTime{Date: end.Format(models.DateLayout)}
		} else {
			occ.ID = ev.raw.ID + "_" + start.UTC().Format(icsUTCLayout)
			occ.Start = models.RawEventTime{DateTime: start.Format(time.RFC3339), TimeZone: ev.raw.Start.TimeZone}
			occ.End = models.RawEventTime{DateTime: end.Format(time.RFC3339), TimeZone: ev.raw.End.TimeZone}
		}
		out = append(out, occ)
	}
	return out, nil
}

func convertVEvent(ve *ical.VEvent) (vevent, bool) {
	var ev vevent
	out := &ev.raw

	out.ID = propertyValue(ve, ical.ComponentPropertyUniqueId)
	if out.ID == "" {
		return ev, false
	}

	out.Summary = propertyValue(ve, ical.ComponentPropertySummary)
	out.Description = propertyValue(ve, ical.ComponentPropertyDescription)
	out.Location = propertyValue(ve, ical.ComponentPropertyLocation)
	if strings.EqualFold(propertyValue(ve, ical.ComponentPropertyStatus), "CANCELLED") {
		out.Status = models.EventStatusCancelled
	}

	start := ve.GetProperty(ical.ComponentPropertyDtStart)
	if start == nil || start.Value == "" {
		return ev, false
	}

	if isDateValue(start) {
		day, err := time.Parse(icsDateLayout, start.Value[:min(len(start.Value), len(icsDateLayout))])
		if err != nil {
			return ev, false
		}
		out.Start = models.RawEventTime{Date: day.Format(models.DateLayout)}

		endDay := day.AddDate(0, 0, 1)
		if end := ve.GetProperty(ical.ComponentPropertyDtEnd); end != nil && len(end.Value) >= len(icsDateLayout) {
			if parsed, err := time.Parse(icsDateLayout, end.Value[:len(icsDateLayout)]); err == nil {
				endDay = parsed
			}
		}
		out.End = models.RawEventTime{Date: endDay.Format(models.DateLayout)}
		ev.start, ev.end, ev.allDay = day, endDay, true
	} else {
		startAt, err := ve.GetStartAt()
		if err != nil {
			return ev, false
		}
		endAt, err := ve.GetEndAt()
		if err != nil {
			endAt = startAt
		}
		out.Start = models.RawEventTime{DateTime: startAt.Format(time.RFC3339), TimeZone: tzid(start)}
		out.End = models.RawEventTime{DateTime: endAt.Format(time.RFC3339), TimeZone: tzid(ve.GetProperty(ical.ComponentPropertyDtEnd))}
		ev.start, ev.end = startAt, endAt
	}

	if p := ve.GetProperty(propertyRecurrenceID); p != nil && p.Value != "" {
		out.RecurringEventID = out.ID
		out.ID = out.ID + "_" + strings.TrimSpace(p.Value)
		if t, err := icsTime(p, ev.start.Location()); err == nil {
			ev.recurrenceID = &t
		}
	}
	ev.rrule = propertyValue(ve, propertyRRule)
	for _, p := range ve.GetProperties(propertyExDate) {
		for _, value := range strings.Split(p.Value, ",") {
			single := *p
			single.Value = strings.TrimSpace(value)
			if t, err := icsTime(&single, ev.start.Location()); err == nil {
				ev.exdates = append(ev.exdates, t)
			}
		}
	}

	if organizer := ve.GetProperty(ical.ComponentPropertyOrganizer); organizer != nil {
		out.Organizer = &models.RawOrganizer{
			Email:       mailto(organizer.Value),
			DisplayName: parameter(organizer, "CN"),
		}
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		email := mailto(p.Value)
		if email == "" {
			continue
		}
		out.Attendees = append(out.Attendees, models.RawAttendee{
			Email:          email,
			DisplayName:    parameter(p, "CN"),
			ResponseStatus: string(responseStatus(parameter(p, "PARTSTAT"))),
		})
	}

	out.Created = timestampValue(ve, propertyCreated)
	out.Updated = timestampValue(ve, propertyLastModified)
	return ev, true
}

// icsTime parses a DATE, floating, TZID-qualified or UTC DATE-TIME value.
// Floating and unknown-zone values are read in fallback.
func icsTime(p *ical.IANAProperty, fallback *time.Location) (time.Time, error) {
	v := strings.TrimSpace(p.Value)
	switch {
	case len(v) == len(icsDateLayout):
		return time.Parse(icsDateLayout, v)
	case strings.HasSuffix(v, "Z"):
		return time.Parse(icsUTCLayout, v)
	}

	loc := fallback
	if name := tzid(p); name != "" {
		if l, err := time.LoadLocation(name); err == nil {
			loc = l
		}
	}
	return time.ParseInLocation(icsLocalLayout, v, loc)
}

func propertyValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func parameter(p *ical.IANAProperty, name string) string {
	if p == nil || p.ICalParameters == nil {
		return ""
	}
	if values := p.ICalParameters[name]; len(values) > 0 {
		return strings.Trim(values[0], `"`)
	}
	return ""
}

func isDateValue(p *ical.IANAProperty) bool {
	return strings.EqualFold(parameter(p, "VALUE"), "DATE") || !strings.Contains(p.Value, "T")
}

func tzid(p *ical.IANAProperty) string {
	return parameter(p, "TZID")
}

func mailto(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		v = v[7:]
	}
	return strings.TrimSpace(v)
}

func responseStatus(partstat string) models.ResponseStatus {
	switch strings.ToUpper(partstat) {
	case "ACCEPTED":
		return models.ResponseAccepted
	case "DECLINED":
		return models.ResponseDeclined
	case "TENTATIVE":
		return models.ResponseTentative
	default:
		return models.ResponseNeedsAction
	}
}

// timestampValue converts an iCalendar UTC timestamp to RFC 3339.
func timestampValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	v := propertyValue(ve, prop)
	if v == "" {
		return ""
	}
	t, err := time.Parse("20060102T150405Z", v)
	if err != nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
