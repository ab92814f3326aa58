package enrichment

import (
	"context"
	"strings"
	"testing"

	"github.com/lifely/lifely/internal/batch"
	"github.com/lifely/lifely/internal/models"
)

var testBatch = batch.Config{Size: 30, Workers: 2}

func mashaResponder(operation string, items []promptItem) (string, error) {
	var out []map[string]any
	for _, item := range items {
		switch operation {
		case OperationLocations:
			out = append(out, map[string]any{
				"event_id":     item.EventID,
				"venue_name":   "Lilia",
				"neighborhood": "Williamsburg",
				"city":         "Brooklyn",
				"cuisine":      "Italian",
				"latitude":     40.71755,
				"longitude":    -73.95246,
			})
		case OperationClassify:
			if strings.Contains(strings.ToLower(item.Summary), "masha") {
				out = append(out, map[string]any{"event_id": item.EventID, "type": "SOCIAL", "names": []string{"Masha"}})
			} else {
				out = append(out, map[string]any{"event_id": item.EventID, "type": "ACTIVITY", "category": "Fitness", "activity": "gym"})
			}
		}
	}
	return "```json\n" + results(out...) + "\n```", nil
}

func TestMashaScenario(t *testing.T) {
	ctx := context.Background()
	events := mashaEvents(t)
	gen := newFakeGenerator(mashaResponder)
	cache := NewCache(newMemStore(), nil, nil)

	lookup, outcome, err := NewLocationEnricher(gen, cache, testBatch, nil, nil).Enrich(ctx, events, nil)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if outcome.Requested != 1 || gen.Calls(OperationLocations) != 1 {
		t.Errorf("expected one location request, got %d items in %d calls", outcome.Requested, gen.Calls(OperationLocations))
	}
	if got := cache.Stats().Locations; got != 1 {
		t.Errorf("expected one location key, got %d", got)
	}
	if len(lookup) != 2 || models.Deref(lookup["e2"].VenueName) != "Lilia" {
		t.Errorf("both dinners should share the enrichment: %+v", lookup)
	}
	if _, ok := lookup["e3"]; ok {
		t.Error("event without location should not be enriched")
	}

	classified, _, err := NewClassifier(gen, cache, batch.Config{Size: 15, Workers: 2}, 5, nil, nil).Classify(ctx, events, lookup, nil)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got := len(gen.Items(OperationClassify)); got != 2 {
		t.Errorf("expected two distinct titles sent, got %d", got)
	}
	if got := cache.Stats().Classifications; got != 2 {
		t.Errorf("expected two classification keys, got %d", got)
	}

	if len(classified.InferredFriends) != 1 {
		t.Fatalf("expected one inferred friend, got %+v", classified.InferredFriends)
	}
	masha := classified.InferredFriends[0]
	if masha.NormalizedName != "masha" || masha.EventCount != 2 {
		t.Errorf("unexpected friend %+v", masha)
	}
	if masha.TotalHours != 3.5 {
		t.Errorf("TotalHours = %v, want 3.5", masha.TotalHours)
	}
	if len(masha.TopVenues) != 1 || masha.TopVenues[0] != (models.NamedCount{Name: "Lilia", Count: 2}) {
		t.Errorf("unexpected venues %+v", masha.TopVenues)
	}

	if len(classified.Activities) != 1 || classified.Activities[0].Category != "fitness" {
		t.Fatalf("unexpected activities %+v", classified.Activities)
	}
}

func TestEnrichWarmCacheIssuesNoCalls(t *testing.T) {
	ctx := context.Background()
	events := mashaEvents(t)
	store := newMemStore()

	first := NewCache(store, nil, nil)
	gen := newFakeGenerator(mashaResponder)
	if _, _, err := NewLocationEnricher(gen, first, testBatch, nil, nil).Enrich(ctx, events, nil); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	writes := store.Writes()

	warm := NewCache(store, nil, nil)
	if err := warm.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	again := newFakeGenerator(mashaResponder)
	lookup, outcome, err := NewLocationEnricher(again, warm, testBatch, nil, nil).Enrich(ctx, events, nil)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}

	if again.Calls(OperationLocations) != 0 || outcome.Requested != 0 {
		t.Errorf("warm cache should not call the service, got %d calls", again.Calls(OperationLocations))
	}
	if store.Writes() != writes {
		t.Errorf("warm run wrote %d times", store.Writes()-writes)
	}
	if len(lookup) != 2 {
		t.Errorf("expected cached lookup for both dinners, got %d", len(lookup))
	}
}

func TestEnrichCachesUnansweredAsNoResult(t *testing.T) {
	ctx := context.Background()
	events := []models.NormalizedEvent{
		testEvent(t, "e1", "Dinner", "Lilia", 60),
		testEvent(t, "e2", "Home", "My apartment", 60),
	}
	gen := newFakeGenerator(func(_ string, items []promptItem) (string, error) {
		return results(map[string]any{"event_id": "e1", "venue_name": "Lilia", "neighborhood": "null"}), nil
	})
	cache := NewCache(nil, nil, nil)
	enricher := NewLocationEnricher(gen, cache, testBatch, nil, nil)

	lookup, _, err := enricher.Enrich(ctx, events, nil)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if _, ok := lookup["e2"]; ok {
		t.Error("unanswered event should not be enriched")
	}
	if lookup["e1"].Neighborhood != nil {
		t.Error("placeholder neighborhood should be nil")
	}
	if entry, ok := cache.Location(LocationKey("My apartment")); !ok || !entry.NoResult {
		t.Errorf("expected no-result sentinel, got %+v", entry)
	}

	if _, _, err := enricher.Enrich(ctx, events, nil); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if gen.Calls(OperationLocations) != 1 {
		t.Errorf("sentinel should prevent re-querying, got %d calls", gen.Calls(OperationLocations))
	}
}

func TestEnrichFailedChunkBecomesWarning(t *testing.T) {
	ctx := context.Background()
	events := []models.NormalizedEvent{
		testEvent(t, "e1", "Dinner", "Lilia", 60),
		testEvent(t, "e2", "Drinks", "Maison Premiere", 60),
	}
	gen := newFakeGenerator(func(_ string, items []promptItem) (string, error) {
		if items[0].EventID == "e1" {
			return "I could not find anything useful.", nil
		}
		return "", errUnavailable
	})
	cache := NewCache(nil, nil, nil)

	lookup, outcome, err := NewLocationEnricher(gen, cache, batch.Config{Size: 1, Workers: 1}, nil, nil).Enrich(ctx, events, nil)
	if err != nil {
		t.Fatalf("chunk failures should not be returned as errors: %v", err)
	}
	if len(lookup) != 0 {
		t.Errorf("expected empty lookup, got %+v", lookup)
	}
	if len(outcome.Warnings) != 2 {
		t.Fatalf("expected two warnings, got %v", outcome.Warnings)
	}
	if cache.Stats().Locations != 0 {
		t.Error("failed chunks must not write sentinels")
	}
}

func TestClassifyNormalizesAnswers(t *testing.T) {
	ctx := context.Background()
	events := []models.NormalizedEvent{
		testEvent(t, "e1", "Coffee w/ John & Sarah", "", 60),
		testEvent(t, "e2", "Yoga @ Vital", "", 60),
		testEvent(t, "e3", "Team standup", "", 30),
		testEvent(t, "e4", "Lunch with ???", "", 60),
		testEvent(t, "e5", "Untitled", "", 60),
	}
	gen := newFakeGenerator(func(_ string, _ []promptItem) (string, error) {
		return results(
			map[string]any{"event_id": "e1", "type": "social", "names": []string{" John ", "Sarah", ""}},
			map[string]any{"event_id": "e2", "type": "ACTIVITY", "category": "fitness", "activity_type": "yoga", "venue": "Vital", "interesting": true},
			map[string]any{"event_id": "e3", "type": "OTHER"},
			map[string]any{"event_id": "e4", "type": "SOCIAL", "names": []string{}},
		), nil
	})
	cache := NewCache(nil, nil, nil)

	classified, _, err := NewClassifier(gen, cache, testBatch, 5, nil, nil).Classify(ctx, events, nil, nil)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if got := classified.ByEvent["e4"].Type; got != models.EventTypeOther {
		t.Errorf("social without names should be OTHER, got %s", got)
	}
	if _, ok := classified.ByEvent["e5"]; ok {
		t.Error("unanswered title should be skipped")
	}
	if entry, _ := cache.Classification(TitleKey("Untitled")); !entry.Skip {
		t.Error("expected skip sentinel")
	}

	if len(classified.InferredFriends) != 2 {
		t.Fatalf("expected John and Sarah, got %+v", classified.InferredFriends)
	}
	if classified.InferredFriends[0].Name != "John" {
		t.Errorf("equal friends should sort by name, got %q first", classified.InferredFriends[0].Name)
	}

	yoga := classified.Activities[0]
	if yoga.Category != "fitness" || !yoga.Interesting || yoga.Events[0].Activity != "yoga" {
		t.Errorf("unexpected activity %+v", yoga)
	}
	if models.Deref(yoga.Events[0].VenueName) != "Vital" {
		t.Errorf("title venue should be used, got %v", yoga.Events[0].VenueName)
	}
}
