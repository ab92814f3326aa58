package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lifely/lifely/internal/logging"
	"github.com/lifely/lifely/internal/metrics"
	"github.com/lifely/lifely/internal/models"
)

// Store is the persistence boundary for the cache: a flat key-value space.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Store keys and the envelope version they are written with. Bump the
// version when an entry shape changes incompatibly.
const (
	LocationsKey       = "lifely:locations"
	ClassificationsKey = "lifely:classifications"
	InsightsKey        = "lifely:insights"
	CacheVersion       = 2
)

// LocationEntry is a cached location answer. NoResult marks text the
// service was asked about but returned nothing for.
type LocationEntry struct {
	VenueName    *string  `json:"venue_name,omitempty"`
	Neighborhood *string  `json:"neighborhood,omitempty"`
	City         *string  `json:"city,omitempty"`
	Cuisine      *string  `json:"cuisine,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	NoResult     bool     `json:"no_result,omitempty"`
}

// Enrichment converts the entry into a per-event record.
func (e LocationEntry) Enrichment(eventID string) models.LocationEnrichment {
	return models.LocationEnrichment{
		EventID:      eventID,
		VenueName:    e.VenueName,
		Neighborhood: e.Neighborhood,
		City:         e.City,
		Cuisine:      e.Cuisine,
		Latitude:     e.Latitude,
		Longitude:    e.Longitude,
	}
}

// ClassificationEntry is a cached title classification. Skip marks titles
// the service did not classify.
type ClassificationEntry struct {
	Type         models.EventType `json:"type,omitempty"`
	Names        []string         `json:"names,omitempty"`
	Category     string           `json:"category,omitempty"`
	Activity     string           `json:"activity,omitempty"`
	Venue        string           `json:"venue,omitempty"`
	Neighborhood string           `json:"neighborhood,omitempty"`
	Interesting  bool             `json:"interesting,omitempty"`
	Skip         bool             `json:"skip,omitempty"`
}

// Classification converts the entry into a per-event record.
func (e ClassificationEntry) Classification(eventID string) models.Classification {
	typ := e.Type
	if typ == "" || e.Skip {
		typ = models.EventTypeOther
	}
	return models.Classification{
		EventID:      eventID,
		Type:         typ,
		Names:        e.Names,
		Category:     e.Category,
		Activity:     e.Activity,
		Venue:        e.Venue,
		Neighborhood: e.Neighborhood,
		Interesting:  e.Interesting,
	}
}

// InsightsEntry caches generated story output by a digest of its input.
type InsightsEntry struct {
	Story       string                  `json:"story"`
	Patterns    []models.Insight        `json:"patterns"`
	Experiments []models.ExperimentIdea `json:"experiments"`
}

type envelope[T any] struct {
	Version int          `json:"version"`
	Entries map[string]T `json:"entries"`
}

// CacheStats reports cache sizes.
type CacheStats struct {
	Locations       int `json:"locations"`
	Classifications int `json:"classifications"`
	Insights        int `json:"insights"`
}

// Cache deduplicates enrichment work across events and runs. It is loaded
// once per run and written back with Save. Each key is written at most once:
// later puts for an existing key are ignored.
type Cache struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Collector

	mu              sync.RWMutex
	locations       map[string]LocationEntry
	classifications map[string]ClassificationEntry
	insights        map[string]InsightsEntry
	dirty           map[string]bool
	writes          int
}

// NewCache returns an empty cache over store. A nil store keeps the cache in
// memory only.
func NewCache(store Store, logger *slog.Logger, collector *metrics.Collector) *Cache {
	return &Cache{
		store:           store,
		logger:          logging.OrDiscard(logger),
		metrics:         collector,
		locations:       make(map[string]LocationEntry),
		classifications: make(map[string]ClassificationEntry),
		insights:        make(map[string]InsightsEntry),
		dirty:           make(map[string]bool),
	}
}

// Load reads all maps from the store. Payloads with an unknown version or an
// unreadable shape are discarded and logged; only store failures are
// returned.
func (c *Cache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	locations, err := loadMap[LocationEntry](ctx, c.store, LocationsKey, c.logger)
	if err != nil {
		return err
	}
	classifications, err := loadMap[ClassificationEntry](ctx, c.store, ClassificationsKey, c.logger)
	if err != nil {
		return err
	}
	insights, err := loadMap[InsightsEntry](ctx, c.store, InsightsKey, c.logger)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.locations = locations
	c.classifications = classifications
	c.insights = insights
	c.dirty = make(map[string]bool)
	return nil
}

func loadMap[T any](ctx context.Context, store Store, key string, logger *slog.Logger) (map[string]T, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load cache %s: %w", key, err)
	}
	empty := make(map[string]T)
	if !ok || len(raw) == 0 {
		return empty, nil
	}

	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Warn("discarding unreadable cache payload", "key", key, "error", err)
		return empty, nil
	}
	if env.Version != CacheVersion {
		logger.Warn("discarding cache payload with incompatible version",
			"key", key,
			"version", env.Version,
			"want", CacheVersion)
		return empty, nil
	}
	if env.Entries == nil {
		return empty, nil
	}
	return env.Entries, nil
}

// Location returns the cached entry for a location key.
func (c *Cache) Location(key string) (LocationEntry, bool) {
	c.mu.RLock()
	entry, ok := c.locations[key]
	c.mu.RUnlock()
	c.metrics.CacheLookup("locations", ok)
	return entry, ok
}

// PutLocation stores entry under key unless the key is already present. It
// reports whether the entry was stored.
func (c *Cache) PutLocation(key string, entry LocationEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.locations[key]; exists {
		return false
	}
	c.locations[key] = entry
	c.dirty[LocationsKey] = true
	return true
}

// MergeLocation fills the fields missing from the entry under key with those
// of entry. A missing or no-result entry is replaced outright. It reports
// whether the stored entry changed.
func (c *Cache) MergeLocation(key string, entry LocationEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, exists := c.locations[key]
	merged := entry
	if exists {
		merged = current.merge(entry)
	}
	if exists && merged == current {
		return false
	}
	c.locations[key] = merged
	c.dirty[LocationsKey] = true
	return true
}

// Classification returns the cached entry for a title key.
func (c *Cache) Classification(key string) (ClassificationEntry, bool) {
	c.mu.RLock()
	entry, ok := c.classifications[key]
	c.mu.RUnlock()
	c.metrics.CacheLookup("classifications", ok)
	return entry, ok
}

// PutClassification stores entry under key unless the key is already
// present.
func (c *Cache) PutClassification(key string, entry ClassificationEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.classifications[key]; exists {
		return false
	}
	c.classifications[key] = entry
	c.dirty[ClassificationsKey] = true
	return true
}

// Insights returns cached story output for digest.
func (c *Cache) Insights(digest string) (InsightsEntry, bool) {
	c.mu.RLock()
	entry, ok := c.insights[digest]
	c.mu.RUnlock()
	c.metrics.CacheLookup("insights", ok)
	return entry, ok
}

// PutInsights stores story output unless digest is already present.
func (c *Cache) PutInsights(digest string, entry InsightsEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.insights[digest]; exists {
		return false
	}
	c.insights[digest] = entry
	c.dirty[InsightsKey] = true
	return true
}

// Save writes every map changed since the last Load or Save. It returns the
// number of store writes performed.
func (c *Cache) Save(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	payloads := make(map[string]any, len(c.dirty))
	if c.dirty[LocationsKey] {
		payloads[LocationsKey] = envelope[LocationEntry]{Version: CacheVersion, Entries: c.locations}
	}
	if c.dirty[ClassificationsKey] {
		payloads[ClassificationsKey] = envelope[ClassificationEntry]{Version: CacheVersion, Entries: c.classifications}
	}
	if c.dirty[InsightsKey] {
		payloads[InsightsKey] = envelope[InsightsEntry]{Version: CacheVersion, Entries: c.insights}
	}

	written := 0
	for _, key := range []string{LocationsKey, ClassificationsKey, InsightsKey} {
		payload, ok := payloads[key]
		if !ok {
			continue
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return written, fmt.Errorf("encode cache %s: %w", key, err)
		}
		if err := c.store.Set(ctx, key, data); err != nil {
			return written, fmt.Errorf("save cache %s: %w", key, err)
		}
		delete(c.dirty, key)
		written++
	}
	c.writes += written
	return written, nil
}

// Writes returns the total number of store writes made by Save.
func (c *Cache) Writes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.writes
}

// Stats returns entry counts.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Locations:       len(c.locations),
		Classifications: len(c.classifications),
		Insights:        len(c.insights),
	}
}

// Clear empties every map and persists the empty state.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.locations = make(map[string]LocationEntry)
	c.classifications = make(map[string]ClassificationEntry)
	c.insights = make(map[string]InsightsEntry)
	c.dirty = map[string]bool{LocationsKey: true, ClassificationsKey: true, InsightsKey: true}
	c.mu.Unlock()

	_, err := c.Save(ctx)
	return err
}
