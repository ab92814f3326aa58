package enrichment

import (
	"context"
	"errors"
	"testing"

	"github.com/lifely/lifely/internal/models"
)

func TestCacheFirstWriterWins(t *testing.T) {
	cache := NewCache(nil, nil, nil)

	if !cache.PutLocation("lilia", LocationEntry{VenueName: models.StringPtr("Lilia")}) {
		t.Fatal("first put should store")
	}
	if cache.PutLocation("lilia", LocationEntry{VenueName: models.StringPtr("Other")}) {
		t.Error("second put should be ignored")
	}
	entry, ok := cache.Location("lilia")
	if !ok || models.Deref(entry.VenueName) != "Lilia" {
		t.Errorf("unexpected entry %+v", entry)
	}

	cache.PutClassification("gym", ClassificationEntry{Skip: true})
	if cache.PutClassification("gym", ClassificationEntry{Type: models.EventTypeActivity}) {
		t.Error("skip sentinel should not be overwritten")
	}
}

func TestCacheRoundTripAndDirtyTracking(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	cache := NewCache(store, nil, nil)
	cache.PutLocation("lilia", LocationEntry{VenueName: models.StringPtr("Lilia")})
	cache.PutLocation("home", LocationEntry{NoResult: true})

	written, err := cache.Save(ctx)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if written != 1 {
		t.Errorf("only the locations map changed, wrote %d", written)
	}
	if written, _ = cache.Save(ctx); written != 0 {
		t.Errorf("clean cache should not write, wrote %d", written)
	}

	reloaded := NewCache(store, nil, nil)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if entry, ok := reloaded.Location("home"); !ok || !entry.NoResult {
		t.Errorf("sentinel lost on reload: %+v", entry)
	}
	if got := reloaded.Stats(); got.Locations != 2 || got.Classifications != 0 {
		t.Errorf("unexpected stats %+v", got)
	}
}

func TestCacheDiscardsIncompatiblePayloads(t *testing.T) {
	tests := map[string]string{
		"Old version": `{"version":1,"entries":{"lilia":{"venue_name":"Lilia"}}}`,
		"Malformed":   `{"version":`,
		"Wrong shape": `["lilia"]`,
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			store.data[LocationsKey] = []byte(payload)

			cache := NewCache(store, nil, nil)
			if err := cache.Load(context.Background()); err != nil {
				t.Fatalf("Load should not fail on bad payloads: %v", err)
			}
			if cache.Stats().Locations != 0 {
				t.Error("bad payload should be discarded")
			}
		})
	}
}

func TestCacheLoadStoreError(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("disk gone")

	if err := NewCache(store, nil, nil).Load(context.Background()); err == nil {
		t.Fatal("expected store error")
	}
}

func TestCacheClear(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cache := NewCache(store, nil, nil)
	cache.PutInsights("digest", InsightsEntry{Story: "A year."})
	if _, err := cache.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	reloaded := NewCache(store, nil, nil)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.Stats(); got != (CacheStats{}) {
		t.Errorf("expected empty cache, got %+v", got)
	}
}
