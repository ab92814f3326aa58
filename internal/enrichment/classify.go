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

type classifyItem struct {
	EventID      string `json:"event_id"`
	Summary      string `json:"summary"`
	LocationHint string `json:"location_hint,omitempty"`

	key string
}

type classifyResult struct {
	EventID      string   `json:"event_id"`
	Type         string   `json:"type"`
	Names        []string `json:"names"`
	Category     string   `json:"category"`
	Activity     string   `json:"activity"`
	ActivityType string   `json:"activity_type"`
	Venue        *string  `json:"venue"`
	Neighborhood *string  `json:"neighborhood"`
	Interesting  bool     `json:"interesting"`
}

func (r classifyResult) entry() ClassificationEntry {
	entry := ClassificationEntry{Type: models.EventTypeOther}

	switch models.EventType(strings.ToUpper(strings.TrimSpace(r.Type))) {
	case models.EventTypeSocial:
		entry.Type = models.EventTypeSocial
		for _, name := range r.Names {
			if name = strings.TrimSpace(name); name != "" {
				entry.Names = append(entry.Names, name)
			}
		}
		if len(entry.Names) == 0 {
			entry.Type = models.EventTypeOther
		}
	case models.EventTypeActivity:
		entry.Type = models.EventTypeActivity
		entry.Category = strings.ToLower(strings.TrimSpace(r.Category))
		entry.Activity = strings.TrimSpace(r.Activity)
		if entry.Activity == "" {
			entry.Activity = strings.TrimSpace(r.ActivityType)
		}
		entry.Venue = models.Deref(cleanString(r.Venue))
		entry.Neighborhood = models.Deref(cleanString(r.Neighborhood))
	}
	entry.Interesting = r.Interesting
	return entry
}

// Classification is the output of the classifying phase.
type Classification struct {
	ByEvent         map[string]models.Classification
	InferredFriends []models.InferredFriend
	Activities      []models.ActivityCategoryStats
}

// Classifier labels events by title and aggregates the social and activity
// buckets.
type Classifier struct {
	generator Generator
	cache     *Cache
	prompts   *PromptTemplates
	batch     batch.Config
	topN      int
	logger    *slog.Logger
	metrics   *metrics.Collector
}

// NewClassifier builds a classifier. topN bounds per-category rankings.
func NewClassifier(generator Generator, cache *Cache, cfg batch.Config, topN int, logger *slog.Logger, collector *metrics.Collector) *Classifier {
	return &Classifier{
		generator: generator,
		cache:     cache,
		prompts:   NewPromptTemplates(),
		batch:     cfg,
		topN:      topN,
		logger:    logging.OrDiscard(logger),
		metrics:   collector,
	}
}

// Classify labels every titled event. lookup supplies venues for events
// whose title names none and may be nil.
func (c *Classifier) Classify(ctx context.Context, events []models.NormalizedEvent, lookup map[string]models.LocationEnrichment, progress batch.ProgressFunc) (Classification, Outcome, error) {
	groups := make(map[string][]string)
	var order []string
	var pending []classifyItem

	for _, event := range events {
		key := TitleKey(event.Summary)
		if key == "" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
			if _, cached := c.cache.Classification(key); !cached {
				pending = append(pending, classifyItem{
					EventID:      event.ID,
					Summary:      ShortenTitle(event.Summary),
					LocationHint: ShortenLocation(event.LocationRaw),
					key:          key,
				})
			}
		}
		groups[key] = append(groups[key], event.ID)
	}

	outcome := Outcome{Requested: len(pending)}
	c.logger.Info("classifying events",
		"unique_titles", len(order),
		"uncached", len(pending))

	if len(pending) > 0 {
		result, err := batch.Run(ctx, pending, c.batch, c.classifyChunk, progress)
		for _, failure := range result.Failures {
			c.metrics.BatchDone(string(models.PhaseClassifyingEvents), failure)
			outcome.Warnings = append(outcome.Warnings, "event classification "+failure.Error())
		}
		if _, saveErr := c.cache.Save(ctx); saveErr != nil {
			c.logger.Warn("failed to save classification cache", "error", saveErr)
			outcome.Warnings = append(outcome.Warnings, "classification cache not saved: "+saveErr.Error())
		}
		if err != nil {
			return Classification{}, outcome, err
		}
	}

	byEvent := make(map[string]models.Classification)
	for _, key := range order {
		entry, ok := c.cache.Classification(key)
		if !ok || entry.Skip {
			continue
		}
		for _, id := range groups[key] {
			byEvent[id] = entry.Classification(id)
		}
	}

	return Classification{
		ByEvent:         byEvent,
		InferredFriends: AggregateInferredFriends(events, byEvent, lookup, c.topN),
		Activities:      AggregateActivities(events, byEvent, lookup, c.topN),
	}, outcome, nil
}

func (c *Classifier) classifyChunk(ctx context.Context, chunk []classifyItem) error {
	results, err := generateResults[classifyResult](ctx, c.generator, OperationClassify, c.prompts.Classification, chunk)
	if err != nil {
		return err
	}
	c.metrics.BatchDone(string(models.PhaseClassifyingEvents), nil)

	answered := make(map[string]classifyResult, len(results))
	for _, r := range results {
		if _, dup := answered[r.EventID]; !dup {
			answered[r.EventID] = r
		}
	}

	for _, item := range chunk {
		r, ok := answered[item.EventID]
		if !ok {
			c.cache.PutClassification(item.key, ClassificationEntry{Skip: true})
			continue
		}
		c.cache.PutClassification(item.key, r.entry())
	}
	return nil
}
