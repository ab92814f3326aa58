package enrichment

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lifely/lifely/internal/batch"
	"github.com/lifely/lifely/internal/logging"
	"github.com/lifely/lifely/internal/metrics"
	"github.com/lifely/lifely/internal/models"
)

type locationItem struct {
	EventID  string `json:"event_id"`
	Summary  string `json:"summary,omitempty"`
	Location string `json:"location"`

	key string
}

type locationResult struct {
	EventID      string   `json:"event_id"`
	VenueName    *string  `json:"venue_name"`
	Neighborhood *string  `json:"neighborhood"`
	City         *string  `json:"city"`
	Cuisine      *string  `json:"cuisine"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

func (r locationResult) entry() LocationEntry {
	lat := validCoordinate(r.Latitude, 90)
	lng := validCoordinate(r.Longitude, 180)
	if lat == nil || lng == nil {
		lat, lng = nil, nil
	}
	return LocationEntry{
		VenueName:    cleanString(r.VenueName),
		Neighborhood: cleanString(r.Neighborhood),
		City:         cleanString(r.City),
		Cuisine:      cleanString(r.Cuisine),
		Latitude:     lat,
		Longitude:    lng,
	}
}

// Outcome is what an enrichment phase hands back to the pipeline. Warnings
// describe chunks that failed; their events simply stay unenriched.
type Outcome struct {
	Requested int
	Warnings  []string
}

// LocationEnricher resolves raw location text into venue details.
type LocationEnricher struct {
	generator Generator
	cache     *Cache
	places    *PlaceResolver
	prompts   *PromptTemplates
	batch     batch.Config
	logger    *slog.Logger
	metrics   *metrics.Collector
}

// NewLocationEnricher builds an enricher. cfg sizes the request chunks.
func NewLocationEnricher(generator Generator, cache *Cache, cfg batch.Config, logger *slog.Logger, collector *metrics.Collector) *LocationEnricher {
	return &LocationEnricher{
		generator: generator,
		cache:     cache,
		prompts:   NewPromptTemplates(),
		batch:     cfg,
		logger:    logging.OrDiscard(logger),
		metrics:   collector,
	}
}

// WithPlaces routes Maps links through r before the model and fills in
// coordinates the model left empty. A nil r disables both.
func (e *LocationEnricher) WithPlaces(r *PlaceResolver) *LocationEnricher {
	e.places = r
	return e
}

// Enrich returns the location lookup keyed by event id. Events sharing a
// location key are resolved by a single request for one representative;
// keys the service does not answer are cached as having no result. The
// cache is saved once after all chunks finish.
func (e *LocationEnricher) Enrich(ctx context.Context, events []models.NormalizedEvent, progress batch.ProgressFunc) (map[string]models.LocationEnrichment, Outcome, error) {
	groups := make(map[string][]string)
	raw := make(map[string]string)
	var order []string
	var pending []locationItem
	changed := false

	for _, event := range events {
		key := LocationKey(event.LocationRaw)
		if key == "" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
			raw[key] = strings.TrimSpace(event.LocationRaw)
			if _, cached := e.cache.Location(key); !cached {
				if e.resolveMapsURL(ctx, key, raw[key]) {
					changed = true
					groups[key] = append(groups[key], event.ID)
					continue
				}
				pending = append(pending, locationItem{
					EventID:  event.ID,
					Summary:  ShortenTitle(event.Summary),
					Location: ShortenLocation(event.LocationRaw),
					key:      key,
				})
			}
		}
		groups[key] = append(groups[key], event.ID)
	}

	outcome := Outcome{Requested: len(pending)}
	e.logger.Info("enriching locations",
		"unique_locations", len(order),
		"uncached", len(pending))

	var runErr error
	if len(pending) > 0 {
		result, err := batch.Run(ctx, pending, e.batch, e.enrichChunk, progress)
		for _, failure := range result.Failures {
			e.metrics.BatchDone(string(models.PhaseEnrichingLocations), failure)
			outcome.Warnings = append(outcome.Warnings, "location enrichment "+failure.Error())
		}
		changed = true
		runErr = err
	}
	if runErr == nil && e.fillCoordinates(ctx, order, raw) {
		changed = true
	}

	if changed {
		if _, saveErr := e.cache.Save(ctx); saveErr != nil {
			e.logger.Warn("failed to save location cache", "error", saveErr)
			outcome.Warnings = append(outcome.Warnings, "location cache not saved: "+saveErr.Error())
		}
	}
	if runErr != nil {
		return nil, outcome, runErr
	}

	lookup := make(map[string]models.LocationEnrichment)
	for _, key := range order {
		entry, ok := e.cache.Location(key)
		if !ok || entry.NoResult {
			continue
		}
		for _, id := range groups[key] {
			lookup[id] = entry.Enrichment(id)
		}
	}
	return lookup, outcome, nil
}

// resolveMapsURL caches a Places answer for a Maps link so the model never
// sees it. Lookup failures fall through to the model.
func (e *LocationEnricher) resolveMapsURL(ctx context.Context, key, location string) bool {
	if e.places == nil || !IsMapsURL(location) {
		return false
	}
	entry, ok, err := e.places.Resolve(ctx, location)
	if err != nil {
		e.logger.Warn("places lookup failed", "error", err)
		return false
	}
	if !ok {
		return false
	}
	return e.cache.PutLocation(key, entry)
}

// fillCoordinates looks up address-like keys whose entries lack coordinates
// and merges the answer into the cached entry. It reports whether any entry
// changed.
func (e *LocationEnricher) fillCoordinates(ctx context.Context, order []string, raw map[string]string) bool {
	if e.places == nil {
		return false
	}
	changed := false
	for _, key := range order {
		if ctx.Err() != nil {
			break
		}
		entry, cached := e.cache.Location(key)
		if cached && entry.hasCoordinates() {
			continue
		}
		if !geocodable(raw[key]) {
			continue
		}
		resolved, ok, err := e.places.Resolve(ctx, raw[key])
		if err != nil {
			e.logger.Warn("places lookup failed", "error", err)
			continue
		}
		if !ok || !resolved.hasCoordinates() {
			continue
		}
		if e.cache.MergeLocation(key, resolved) {
			changed = true
		}
	}
	return changed
}

func (e *LocationEnricher) enrichChunk(ctx context.Context, chunk []locationItem) error {
	results, err := generateResults[locationResult](ctx, e.generator, OperationLocations, e.prompts.Location, chunk)
	if err != nil {
		return err
	}
	e.metrics.BatchDone(string(models.PhaseEnrichingLocations), nil)

	answered := make(map[string]locationResult, len(results))
	for _, r := range results {
		if _, dup := answered[r.EventID]; !dup {
			answered[r.EventID] = r
		}
	}

	for _, item := range chunk {
		r, ok := answered[item.EventID]
		if !ok {
			e.cache.PutLocation(item.key, LocationEntry{NoResult: true})
			continue
		}
		e.cache.PutLocation(item.key, r.entry())
	}
	return nil
}
