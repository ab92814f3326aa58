package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/lifely/lifely/internal/models"
)

func TestLoadJSONShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int
	}{
		{"Array", `[{"id":"a","start":{"date":"2025-01-01"},"end":{"date":"2025-01-02"}}]`, 1},
		{"Events list page", `{"kind":"calendar#events","items":[{"id":"a"},{"id":"b"}]}`, 2},
		{"Empty array", `[]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := LoadJSON(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("LoadJSON: %v", err)
			}
			if len(events) != tt.count {
				t.Errorf("got %d events, want %d", len(events), tt.count)
			}
		})
	}
}

func TestLoadJSONErrors(t *testing.T) {
	for _, input := range []string{"", "   ", "{", "42"} {
		if _, err := LoadJSON(strings.NewReader(input)); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestLoadJSONProviderFields(t *testing.T) {
	input := `[{
		"id": "evt1",
		"status": "confirmed",
		"summary": "Dinner with Masha",
		"location": "Lilia",
		"start": {"dateTime": "2025-03-14T19:00:00-04:00", "timeZone": "America/New_York"},
		"end": {"dateTime": "2025-03-14T21:00:00-04:00"},
		"attendees": [{"email": "Masha@Example.com", "displayName": "Masha", "responseStatus": "accepted"}, {"email": "me@example.com", "self": true}],
		"organizer": {"email": "me@example.com"},
		"recurringEventId": "series1"
	}]`

	events, err := LoadJSON(strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	e := events[0]
	if e.Start.TimeZone != "America/New_York" || e.RecurringEventID != "series1" {
		t.Errorf("unexpected event %+v", e)
	}
	if len(e.Attendees) != 2 || !e.Attendees[1].Self || e.Attendees[0].ResponseStatus != "accepted" {
		t.Errorf("unexpected attendees %+v", e.Attendees)
	}
	if e.Organizer == nil || e.Organizer.Email != "me@example.com" {
		t.Errorf("unexpected organizer %+v", e.Organizer)
	}
}

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//lifely//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:dinner-1\r\n" +
	"SUMMARY:Dinner with Masha\r\n" +
	"LOCATION:Lilia\r\n" +
	"DTSTART:20250314T230000Z\r\n" +
	"DTEND:20250315T010000Z\r\n" +
	"ORGANIZER;CN=Me:mailto:me@example.com\r\n" +
	"ATTENDEE;CN=Masha;PARTSTAT=ACCEPTED:mailto:masha@example.com\r\n" +
	"ATTENDEE;CN=Bob;PARTSTAT=DECLINED:mailto:bob@example.com\r\n" +
	"CREATED:20250301T120000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:holiday-1\r\n" +
	"SUMMARY:Vacation\r\n" +
	"DTSTART;VALUE=DATE:20250704\r\n" +
	"DTEND;VALUE=DATE:20250707\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:cancelled-1\r\n" +
	"SUMMARY:Cancelled\r\n" +
	"STATUS:CANCELLED\r\n" +
	"DTSTART:20250101T100000Z\r\n" +
	"DTEND:20250101T110000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"SUMMARY:No uid\r\n" +
	"DTSTART:20250101T100000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICS(t *testing.T) {
	events, err := ParseICS(strings.NewReader(sampleICS), 0)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	dinner := events[0]
	if dinner.ID != "dinner-1" || dinner.Summary != "Dinner with Masha" || dinner.Location != "Lilia" {
		t.Errorf("unexpected dinner %+v", dinner)
	}
	if dinner.Start.DateTime != "2025-03-14T23:00:00Z" || dinner.End.DateTime != "2025-03-15T01:00:00Z" {
		t.Errorf("unexpected times %+v / %+v", dinner.Start, dinner.End)
	}
	if len(dinner.Attendees) != 2 {
		t.Fatalf("unexpected attendees %+v", dinner.Attendees)
	}
	if dinner.Attendees[0].Email != "masha@example.com" || dinner.Attendees[0].DisplayName != "Masha" {
		t.Errorf("unexpected attendee %+v", dinner.Attendees[0])
	}
	if dinner.Attendees[1].ResponseStatus != string(models.ResponseDeclined) {
		t.Errorf("PARTSTAT not mapped: %+v", dinner.Attendees[1])
	}
	if dinner.Organizer == nil || dinner.Organizer.Email != "me@example.com" {
		t.Errorf("unexpected organizer %+v", dinner.Organizer)
	}
	if dinner.Created != "2025-03-01T12:00:00Z" {
		t.Errorf("Created = %q", dinner.Created)
	}

	vacation := events[1]
	if vacation.Start.Date != "2025-07-04" || vacation.End.Date != "2025-07-07" || vacation.Start.DateTime != "" {
		t.Errorf("unexpected all-day event %+v / %+v", vacation.Start, vacation.End)
	}

	if events[2].Status != models.EventStatusCancelled {
		t.Errorf("expected cancelled status, got %q", events[2].Status)
	}
}

const recurringICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//lifely//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:yoga\r\n" +
	"SUMMARY:Yoga\r\n" +
	"DTSTART:20250106T170000Z\r\n" +
	"DTEND:20250106T180000Z\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=4\r\n" +
	"EXDATE:20250113T170000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:yoga\r\n" +
	"SUMMARY:Yoga (moved)\r\n" +
	"RECURRENCE-ID:20250120T170000Z\r\n" +
	"DTSTART:20250120T190000Z\r\n" +
	"DTEND:20250120T200000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup\r\n" +
	"SUMMARY:Standup\r\n" +
	"DTSTART:20230102T090000Z\r\n" +
	"DTEND:20230102T091500Z\r\n" +
	"RRULE:FREQ=YEARLY;BYMONTH=1;BYMONTHDAY=2\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICSExpandsRecurrence(t *testing.T) {
	events, err := ParseICS(strings.NewReader(recurringICS), 2025)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}

	var ids []string
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	want := []string{
		"yoga_20250106T170000Z",
		"yoga_20250127T170000Z",
		"yoga_20250120T170000Z",
		"standup_20250102T090000Z",
	}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Fatalf("ids = %v, want %v", ids, want)
	}

	last := events[1]
	if last.RecurringEventID != "yoga" || last.Start.DateTime != "2025-01-27T17:00:00Z" || last.End.DateTime != "2025-01-27T18:00:00Z" {
		t.Errorf("unexpected occurrence %+v", last)
	}
	if moved := events[2]; moved.Summary != "Yoga (moved)" || moved.Start.DateTime != "2025-01-20T19:00:00Z" {
		t.Errorf("override not kept: %+v", moved)
	}
}

func TestParseICSWithoutYearKeepsSeries(t *testing.T) {
	events, err := ParseICS(strings.NewReader(recurringICS), 0)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 3 || events[0].ID != "yoga" {
		t.Errorf("expected one event per VEVENT, got %+v", events)
	}
}

func TestParseICSRejectsBadYear(t *testing.T) {
	if _, err := ParseICS(strings.NewReader(recurringICS), 12); err == nil {
		t.Error("expected an error for year 12")
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	icsPath := filepath.Join(dir, "calendar.ICS")
	if err := os.WriteFile(icsPath, []byte(sampleICS), 0o600); err != nil {
		t.Fatalf("write ics: %v", err)
	}

	events, err := FileSource{Path: icsPath}.Fetch(context.Background(), 2025)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("expected ics events, got %d", len(events))
	}

	if _, err := (FileSource{Path: filepath.Join(dir, "missing.json")}).Fetch(context.Background(), 2025); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

type countingSource struct {
	calls  int
	events []models.RawEvent
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Fetch(_ context.Context, _ int) ([]models.RawEvent, error) {
	s.calls++
	return s.events, nil
}

func TestCachedSource(t *testing.T) {
	ctx := context.Background()
	inner := &countingSource{events: []models.RawEvent{{ID: "a"}}}
	src := CachedSource{Source: inner, DataDir: filepath.Join(t.TempDir(), "data")}

	for i := 0; i < 2; i++ {
		events, err := src.Fetch(ctx, 2025)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if len(events) != 1 || events[0].ID != "a" {
			t.Fatalf("unexpected events %+v", events)
		}
	}
	if inner.calls != 1 {
		t.Errorf("second fetch should read the file, got %d provider calls", inner.calls)
	}

	src.Refresh = true
	if _, err := src.Fetch(ctx, 2025); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("refresh should hit the provider, got %d calls", inner.calls)
	}
}

func TestGoogleSourcePaginates(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users/me/calendarList/primary":
			json.NewEncoder(w).Encode(map[string]any{"id": "me@example.com", "primary": true})
		case "/calendars/primary/events":
			queries = append(queries, r.URL.RawQuery)
			if r.URL.Query().Get("singleEvents") != "true" {
				t.Errorf("recurring events should be expanded: %s", r.URL.RawQuery)
			}
			if r.URL.Query().Get("pageToken") == "" {
				json.NewEncoder(w).Encode(map[string]any{
					"items": []map[string]any{{
						"id":        "a",
						"summary":   "Dinner",
						"start":     map[string]any{"dateTime": "2025-03-14T19:00:00-04:00"},
						"end":       map[string]any{"dateTime": "2025-03-14T21:00:00-04:00"},
						"attendees": []map[string]any{{"email": "masha@example.com", "responseStatus": "accepted"}},
						"organizer": map[string]any{"email": "me@example.com", "self": true},
					}},
					"nextPageToken": "page2",
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{{"id": "b", "start": map[string]any{"date": "2025-07-04"}, "end": map[string]any{"date": "2025-07-05"}}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	service, err := gcal.NewService(ctx, option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	src := NewGoogleSourceFromService(service, "", nil)

	events, err := src.Fetch(ctx, 2025)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 || len(queries) != 2 {
		t.Fatalf("expected 2 events over 2 pages, got %d events, %d requests", len(events), len(queries))
	}
	if events[0].Attendees[0].Email != "masha@example.com" || !events[0].Organizer.Self {
		t.Errorf("unexpected first event %+v", events[0])
	}
	if events[1].Start.Date != "2025-07-04" {
		t.Errorf("unexpected all-day event %+v", events[1])
	}

	email, err := src.UserEmail(ctx)
	if err != nil || email != "me@example.com" {
		t.Errorf("UserEmail = %q, %v", email, err)
	}

	if _, err := src.Fetch(ctx, 0); err == nil {
		t.Error("expected invalid year error")
	}
}

func TestLoadToken(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "token.json")
	os.WriteFile(valid, []byte(`{"token":"ya29","refresh_token":"1//r","client_id":"id","client_secret":"s"}`), 0o600)
	empty := filepath.Join(dir, "empty.json")
	os.WriteFile(empty, []byte(`{"client_id":"id"}`), 0o600)

	tok, err := LoadToken(valid)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if tok.accessToken() != "ya29" {
		t.Errorf("access token = %q", tok.accessToken())
	}
	if _, err := LoadToken(empty); err == nil {
		t.Error("expected error for token file without credentials")
	}
	if _, err := LoadToken(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
