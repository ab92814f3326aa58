package stats

import (
	"math"
	"testing"
	"time"

	"github.com/lifely/lifely/internal/models"
)

func event(id string, start time.Time, minutes float64, attendees ...models.NormalizedAttendee) models.NormalizedEvent {
	return models.NormalizedEvent{
		ID:              id,
		Summary:         "Event " + id,
		Start:           start,
		End:             start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		Attendees:       attendees,
	}
}

func attendee(email string) models.NormalizedAttendee {
	return models.NormalizedAttendee{Email: email, ResponseStatus: models.ResponseAccepted}
}

var base = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

func TestComputeFriendStatsExclusions(t *testing.T) {
	self := models.NormalizedAttendee{Email: "me@example.com", IsSelf: true}
	declined := models.NormalizedAttendee{Email: "declined@example.com", ResponseStatus: models.ResponseDeclined}
	room := attendee("c_123@resource.calendar.google.com")
	bot := attendee("noreply@calendly.com")

	events := []models.NormalizedEvent{
		event("a", base, 60, self, declined, room, bot, attendee("masha@example.com")),
	}

	friends := ComputeFriendStats(events, 1)
	if len(friends) != 1 || friends[0].Email != "masha@example.com" {
		t.Fatalf("expected only masha, got %+v", friends)
	}
}

func TestComputeFriendStatsOrdering(t *testing.T) {
	events := []models.NormalizedEvent{
		event("1", base, 60, attendee("bob@example.com"), attendee("zoe@example.com"), attendee("amy@example.com")),
		event("2", base.Add(24*time.Hour), 120, attendee("bob@example.com")),
		event("3", base.Add(48*time.Hour), 30, attendee("zoe@example.com")),
		event("4", base.Add(72*time.Hour), 60, attendee("amy@example.com")),
	}

	friends := ComputeFriendStats(events, 1)
	want := []string{"bob@example.com", "amy@example.com", "zoe@example.com"}
	if len(friends) != len(want) {
		t.Fatalf("expected %d friends, got %d", len(want), len(friends))
	}
	for i, email := range want {
		if friends[i].Email != email {
			t.Errorf("position %d = %s, want %s", i, friends[i].Email, email)
		}
	}
	if friends[0].TotalHours != 3 || friends[0].EventCount != 2 {
		t.Errorf("unexpected bob totals %+v", friends[0])
	}

	for i := 1; i < len(friends); i++ {
		prev, cur := friends[i-1], friends[i]
		if prev.EventCount < cur.EventCount ||
			(prev.EventCount == cur.EventCount && prev.TotalHours < cur.TotalHours) {
			t.Errorf("friends not sorted at %d: %+v before %+v", i, prev, cur)
		}
	}
}

func TestComputeFriendStatsTiesAreDeterministic(t *testing.T) {
	events := []models.NormalizedEvent{
		event("1", base, 60, attendee("carol@example.com"), attendee("alice@example.com"), attendee("bob@example.com")),
	}

	for run := 0; run < 5; run++ {
		friends := ComputeFriendStats(events, 1)
		if friends[0].Email != "alice@example.com" || friends[2].Email != "carol@example.com" {
			t.Fatalf("run %d: tie order not stable: %+v", run, friends)
		}
	}
}

func TestComputeFriendStatsDisplayNameAndMinEvents(t *testing.T) {
	first := models.NormalizedAttendee{Email: "masha@example.com", DisplayName: "Masha"}
	second := models.NormalizedAttendee{Email: "masha@example.com", DisplayName: "Masha K"}
	nameless := models.NormalizedAttendee{Email: "masha@example.com"}

	events := []models.NormalizedEvent{
		event("1", base, 60, first, attendee("once@example.com")),
		event("2", base, 60, second),
		event("3", base, 60, nameless),
	}

	friends := ComputeFriendStats(events, 2)
	if len(friends) != 1 {
		t.Fatalf("minEvents should drop single-event friends, got %+v", friends)
	}
	if friends[0].DisplayName != "Masha K" {
		t.Errorf("expected last non-empty display name, got %q", friends[0].DisplayName)
	}
}

func TestComputeFriendStatsRoundsOnce(t *testing.T) {
	var events []models.NormalizedEvent
	for i := 0; i < 3; i++ {
		events = append(events, event(string(rune('a'+i)), base, 20, attendee("pat@example.com")))
	}

	friends := ComputeFriendStats(events, 1)
	if friends[0].TotalHours != 1 {
		t.Errorf("three 20-minute events should total 1.0h, got %v", friends[0].TotalHours)
	}
	if friends[0].Events[0].Hours != 0.3 {
		t.Errorf("per-event hours should round to 0.3, got %v", friends[0].Events[0].Hours)
	}
}

func TestComputeTimeStats(t *testing.T) {
	events := []models.NormalizedEvent{
		event("1", time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC), 60),
		event("2", time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC), 90),
		event("3", time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC), 150),
		event("4", time.Date(2025, 2, 2, 9, 0, 0, 0, time.UTC), 20),
	}

	ts := ComputeTimeStats(events)
	if ts.TotalEvents != 4 {
		t.Errorf("TotalEvents = %d, want 4", ts.TotalEvents)
	}
	if ts.TotalHours != 5.3 {
		t.Errorf("TotalHours = %v, want 5.3", ts.TotalHours)
	}
	if ts.EventsPerMonth[1] != 2 || ts.EventsPerMonth[2] != 2 {
		t.Errorf("unexpected events per month %v", ts.EventsPerMonth)
	}
	if ts.EventsPerWeekday["Mon"] != 2 || ts.EventsPerWeekday["Sat"] != 1 || ts.EventsPerWeekday["Sun"] != 1 {
		t.Errorf("unexpected events per weekday %v", ts.EventsPerWeekday)
	}
	if ts.BusiestDay == nil {
		t.Fatal("expected a busiest day")
	}
	// Jan 6 and Feb 1 both sum to 2.5h; the first seen wins.
	if ts.BusiestDay.Date != "2025-01-06" || ts.BusiestDay.EventCount != 2 || ts.BusiestDay.Hours != 2.5 {
		t.Errorf("unexpected busiest day %+v", ts.BusiestDay)
	}
}

func TestComputeTimeStatsMonthlyHoursSumToTotal(t *testing.T) {
	var events []models.NormalizedEvent
	for i := 0; i < 40; i++ {
		start := time.Date(2025, time.Month(i%12+1), i%28+1, 10, 0, 0, 0, time.UTC)
		events = append(events, event("e", start, float64(7+i*13%97)))
	}

	ts := ComputeTimeStats(events)
	var sum float64
	for _, h := range ts.HoursPerMonth {
		sum += h
	}
	// Each month rounds independently, so allow half a tenth per month.
	if diff := math.Abs(sum - ts.TotalHours); diff > 0.05*12+1e-9 {
		t.Errorf("sum of monthly hours %v differs from total %v by %v", sum, ts.TotalHours, diff)
	}
}

func TestComputeTimeStatsEmpty(t *testing.T) {
	ts := ComputeTimeStats(nil)
	if ts.BusiestDay != nil || ts.TotalEvents != 0 {
		t.Errorf("expected empty stats, got %+v", ts)
	}
	if ts.EventsPerMonth == nil || ts.HoursPerWeekday == nil {
		t.Error("maps should be non-nil")
	}
}

func ptr[T any](v T) *T { return &v }

func TestComputeLocationStatsFromLookup(t *testing.T) {
	lookup := map[string]models.LocationEnrichment{
		"1": {EventID: "1", VenueName: ptr("Via Carota"), Neighborhood: ptr("West Village"), Cuisine: ptr("Italian"), Latitude: ptr(40.73322), Longitude: ptr(-74.00411)},
		"2": {EventID: "2", VenueName: ptr("Via Carota"), Neighborhood: ptr("West Village"), Cuisine: ptr("Italian"), Latitude: ptr(40.73324), Longitude: ptr(-74.00409)},
		"3": {EventID: "3", VenueName: ptr("Equinox"), Neighborhood: ptr("Flatiron")},
		"4": {EventID: "4"},
	}

	ls := ComputeLocationStats(nil, lookup, 5)
	if ls.TotalWithLocation != 3 {
		t.Errorf("TotalWithLocation = %d, want 3", ls.TotalWithLocation)
	}
	if len(ls.TopVenues) != 2 || ls.TopVenues[0] != (models.NamedCount{Name: "Via Carota", Count: 2}) {
		t.Errorf("unexpected venues %+v", ls.TopVenues)
	}
	if ls.TopVenues[1].Name != "Equinox" {
		t.Errorf("unexpected second venue %+v", ls.TopVenues[1])
	}
	if len(ls.TopCuisines) != 1 || ls.TopCuisines[0].Count != 2 {
		t.Errorf("unexpected cuisines %+v", ls.TopCuisines)
	}
	if len(ls.MapPoints) != 1 {
		t.Fatalf("near-duplicate coordinates should merge, got %+v", ls.MapPoints)
	}
	if ls.MapPoints[0].Count != 2 || ls.MapPoints[0].Label != "Via Carota" {
		t.Errorf("unexpected map point %+v", ls.MapPoints[0])
	}
}

func TestComputeLocationStatsFallbackDeduplicates(t *testing.T) {
	shared := models.FriendEvent{ID: "dinner", VenueName: ptr("Lilia"), Neighborhood: ptr("Williamsburg")}
	friends := []models.FriendStats{
		{Email: "a@example.com", Events: []models.FriendEvent{shared}},
		{Email: "b@example.com", Events: []models.FriendEvent{shared, {ID: "walk"}}},
	}

	ls := ComputeLocationStats(friends, nil, 0)
	if ls.TotalWithLocation != 1 {
		t.Errorf("shared event should count once, got %d", ls.TotalWithLocation)
	}
	if len(ls.TopNeighborhoods) != 1 || ls.TopNeighborhoods[0].Count != 1 {
		t.Errorf("unexpected neighborhoods %+v", ls.TopNeighborhoods)
	}
	if ls.MapPoints == nil || len(ls.MapPoints) != 0 {
		t.Errorf("fallback has no coordinates, got %+v", ls.MapPoints)
	}
}

func TestRankTopN(t *testing.T) {
	ranked := Rank(map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}, 3)
	want := []models.NamedCount{{Name: "c", Count: 5}, {Name: "a", Count: 2}, {Name: "b", Count: 2}}
	if len(ranked) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), ranked)
	}
	for i := range want {
		if ranked[i] != want[i] {
			t.Errorf("position %d = %+v, want %+v", i, ranked[i], want[i])
		}
	}
}

func TestApplyEnrichmentsDoesNotMutateInput(t *testing.T) {
	friends := []models.FriendStats{{
		Email:  "a@example.com",
		Events: []models.FriendEvent{{ID: "1"}, {ID: "2"}},
	}}
	lookup := map[string]models.LocationEnrichment{
		"1": {EventID: "1", VenueName: ptr("Lilia"), Cuisine: ptr("Italian")},
	}

	enriched := ApplyEnrichments(friends, lookup)
	if models.Deref(enriched[0].Events[0].VenueName) != "Lilia" {
		t.Errorf("expected venue applied, got %+v", enriched[0].Events[0])
	}
	if enriched[0].Events[1].VenueName != nil {
		t.Error("unmatched event should stay empty")
	}
	if friends[0].Events[0].VenueName != nil {
		t.Error("input should not be mutated")
	}
}

func TestSuggestMerges(t *testing.T) {
	inferred := []models.InferredFriend{
		{Name: "Masha", NormalizedName: "masha"},
		{Name: "Bob", NormalizedName: "bob"},
		{Name: "Quinn", NormalizedName: "quinn"},
	}
	friends := []models.FriendStats{
		{Email: "masha.k@example.com", DisplayName: "Masha Kowalski"},
		{Email: "bobby@example.com"},
	}

	got := SuggestMerges(inferred, friends)
	if len(got) != 2 {
		t.Fatalf("expected two suggestions, got %+v", got)
	}
	if got[0].SuggestedEmail != "masha.k@example.com" || got[0].Confidence != models.MergeConfidenceHigh {
		t.Errorf("unexpected first suggestion %+v", got[0])
	}
	if got[1].SuggestedEmail != "bobby@example.com" || got[1].Confidence != models.MergeConfidenceMedium {
		t.Errorf("unexpected second suggestion %+v", got[1])
	}
}

func TestIsSystemEmail(t *testing.T) {
	tests := map[string]bool{
		"room@resource.calendar.google.com": true,
		"No-Reply@service.io":               true,
		"MAILER-DAEMON@example.com":         true,
		"meet@google.com":                   true,
		"friend@gmail.com":                  false,
		"someone@example.com":               false,
	}

	for email, want := range tests {
		if got := IsSystemEmail(email); got != want {
			t.Errorf("IsSystemEmail(%q) = %v, want %v", email, got, want)
		}
	}
}
