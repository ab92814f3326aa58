// Package pipeline sequences normalization, statistics and the best-effort
// enrichment phases into one year-in-review result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/lifely/lifely/internal/batch"
	"github.com/lifely/lifely/internal/enrichment"
	"github.com/lifely/lifely/internal/inference"
	"github.com/lifely/lifely/internal/logging"
	"github.com/lifely/lifely/internal/metrics"
	"github.com/lifely/lifely/internal/models"
	"github.com/lifely/lifely/internal/normalize"
	"github.com/lifely/lifely/internal/stats"
)

// Config holds per-run settings.
type Config struct {
	Year            int
	UserEmail       string
	Location        *time.Location
	MinFriendEvents int
	TopN            int
	LocationBatch   batch.Config
	ClassifyBatch   batch.Config
}

// DefaultConfig returns the batch sizes and ranking depth used by the CLI.
func DefaultConfig() Config {
	return Config{
		MinFriendEvents: 1,
		TopN:            stats.DefaultTopN,
		LocationBatch:   batch.Config{Size: 30, Workers: 2},
		ClassifyBatch:   batch.Config{Size: 15, Workers: 2},
	}
}

// Pipeline runs the year-in-review phases. A nil generator means no
// inference credentials are configured and only basic stats are produced.
type Pipeline struct {
	config    Config
	generator enrichment.Generator
	cache     *enrichment.Cache
	places    *enrichment.PlaceResolver
	logger    *slog.Logger
	metrics   *metrics.Collector
	newID     func() string
}

// New creates a pipeline. cache may be nil, in which case an in-memory
// cache is used for the run.
func New(cfg Config, generator enrichment.Generator, cache *enrichment.Cache, logger *slog.Logger, collector *metrics.Collector) *Pipeline {
	logger = logging.OrDiscard(logger)
	if cache == nil {
		cache = enrichment.NewCache(nil, logger, collector)
	}
	if cfg.TopN <= 0 {
		cfg.TopN = stats.DefaultTopN
	}
	if cfg.MinFriendEvents <= 0 {
		cfg.MinFriendEvents = 1
	}
	if cfg.Location == nil {
		loc, err := normalize.LoadLocation("")
		if err != nil {
			logger.Warn("default timezone unavailable, using UTC", "error", err)
			loc = time.UTC
		}
		cfg.Location = loc
	}
	return &Pipeline{
		config:    cfg,
		generator: generator,
		cache:     cache,
		logger:    logger,
		metrics:   collector,
		newID:     uuid.NewString,
	}
}

// WithPlaces adds Google Places lookups to location enrichment.
func (p *Pipeline) WithPlaces(r *enrichment.PlaceResolver) *Pipeline {
	p.places = r
	return p
}

// Enabled reports whether enrichment phases will run.
func (p *Pipeline) Enabled() bool {
	return p.generator != nil
}

// Run turns raw events into a Result. Enrichment failures become warnings;
// the only returned errors come from the local phases or a cancelled ctx.
func (p *Pipeline) Run(ctx context.Context, raw []models.RawEvent, progress models.ProgressFunc) (*models.Result, error) {
	runID := p.newID()
	ctx = inference.WithRunID(ctx, runID)
	logger := p.logger.With("run_id", runID, "year", p.config.Year)
	rep := newReporter(progress)
	var warn warnings

	result := models.NewResult(p.config.Year)
	result.RunID = runID

	// normalizing
	phaseStart := time.Now()
	rep.start(models.PhaseNormalizing, fmt.Sprintf("Normalizing %d events", len(raw)))
	events, report := normalize.Normalize(raw, p.config.UserEmail, normalize.Options{Location: p.config.Location})
	if p.config.Year != 0 {
		events = normalize.FilterYear(events, p.config.Year, p.config.Location)
	}
	if negative := normalize.NegativeDurations(events); negative > 0 {
		warn.add(fmt.Sprintf("%d events end before they start; their duration was counted as zero", negative))
	}
	logger.Info("normalized events",
		"input", report.Input,
		"kept", report.Kept,
		"cancelled", report.Cancelled,
		"unparseable", report.Unparseable,
		"in_year", len(events))
	p.metrics.ObservePhase(string(models.PhaseNormalizing), time.Since(phaseStart))

	// computing_stats
	phaseStart = time.Now()
	rep.start(models.PhaseComputingStats, "Computing statistics")
	result.TimeStats = stats.ComputeTimeStats(events)
	friends := stats.ComputeFriendStats(events, p.config.MinFriendEvents)
	result.FriendStats = friends
	result.LocationStats = stats.ComputeLocationStats(friends, nil, p.config.TopN)
	p.metrics.ObservePhase(string(models.PhaseComputingStats), time.Since(phaseStart))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !p.Enabled() {
		logger.Info("inference not configured, returning basic stats")
		result.Warnings = warn.items()
		rep.report(models.PhaseComplete, 100, "Done (basic stats only)")
		return result, nil
	}
	result.Enriched = true

	// enriching_locations
	lookup := map[string]models.LocationEnrichment{}
	err := p.phase(ctx, logger, models.PhaseEnrichingLocations, &warn, func() ([]string, error) {
		rep.start(models.PhaseEnrichingLocations, "Enriching locations")
		enricher := enrichment.NewLocationEnricher(p.generator, p.cache, p.config.LocationBatch, logger, p.metrics).WithPlaces(p.places)
		found, outcome, err := enricher.Enrich(ctx, events, rep.batch(models.PhaseEnrichingLocations, "locations"))
		if err != nil {
			return outcome.Warnings, err
		}
		lookup = found
		return outcome.Warnings, nil
	})
	if err != nil {
		return nil, err
	}

	if len(lookup) > 0 {
		result.FriendStats = stats.ApplyEnrichments(friends, lookup)
		result.LocationStats = stats.ComputeLocationStats(result.FriendStats, lookup, p.config.TopN)
	}

	// classifying_events
	var classified enrichment.Classification
	err = p.phase(ctx, logger, models.PhaseClassifyingEvents, &warn, func() ([]string, error) {
		rep.start(models.PhaseClassifyingEvents, "Classifying events")
		classifier := enrichment.NewClassifier(p.generator, p.cache, p.config.ClassifyBatch, p.config.TopN, logger, p.metrics)
		out, outcome, err := classifier.Classify(ctx, events, lookup, rep.batch(models.PhaseClassifyingEvents, "titles"))
		if err != nil {
			return outcome.Warnings, err
		}
		classified = out
		return outcome.Warnings, nil
	})
	if err != nil {
		return nil, err
	}
	if classified.InferredFriends != nil {
		result.InferredFriends = classified.InferredFriends
	}
	if classified.Activities != nil {
		result.ActivityStats = classified.Activities
	}
	result.MergeSuggestions = stats.SuggestMerges(result.InferredFriends, result.FriendStats)
	result.Coverage = coverage(events, lookup, classified.ByEvent)

	// generating_insights
	err = p.phase(ctx, logger, models.PhaseGeneratingInsights, &warn, func() ([]string, error) {
		rep.start(models.PhaseGeneratingInsights, "Writing your year story")
		teller := enrichment.NewStoryteller(p.generator, p.cache, logger)
		story, err := teller.Generate(ctx, enrichment.NewStoryContext(result, p.config.TopN))
		if err != nil {
			return nil, err
		}
		result.Narrative = story.Narrative
		result.Patterns = story.Patterns
		result.Experiments = story.Experiments
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	result.Warnings = warn.items()
	rep.report(models.PhaseComplete, 100, "Done")
	logger.Info("pipeline complete",
		"friends", len(result.FriendStats),
		"inferred_friends", len(result.InferredFriends),
		"activities", len(result.ActivityStats),
		"warnings", len(result.Warnings))
	return result, nil
}

// phase runs one best-effort enrichment phase. Errors and panics become
// warnings; only cancellation of ctx is returned.
func (p *Pipeline) phase(ctx context.Context, logger *slog.Logger, phase models.Phase, warn *warnings, fn func() ([]string, error)) error {
	start := time.Now()
	defer func() {
		p.metrics.ObservePhase(string(phase), time.Since(start))
	}()

	phaseWarnings, phaseErr := recoverPhase(fn)
	for _, w := range phaseWarnings {
		if warn.add(w) {
			p.metrics.Warning(string(phase))
		}
	}

	if phaseErr == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(phaseErr, ctxErr) {
		return ctxErr
	}

	var pe *panicError
	if errors.As(phaseErr, &pe) {
		logger.Error("enrichment phase panicked", "phase", phase, "error", pe, "stack", string(pe.stack))
	} else {
		logger.Warn("enrichment phase failed", "phase", phase, "error", phaseErr)
	}
	if warn.add(fmt.Sprintf("%s failed: %v", phaseLabel(phase), phaseErr)) {
		p.metrics.Warning(string(phase))
	}
	return nil
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func recoverPhase(fn func() ([]string, error)) (warnings []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return fn()
}

func phaseLabel(phase models.Phase) string {
	switch phase {
	case models.PhaseEnrichingLocations:
		return "Location enrichment"
	case models.PhaseClassifyingEvents:
		return "Event classification"
	case models.PhaseGeneratingInsights:
		return "Story generation"
	default:
		return string(phase)
	}
}

func coverage(events []models.NormalizedEvent, lookup map[string]models.LocationEnrichment, classifications map[string]models.Classification) models.Coverage {
	var c models.Coverage
	for _, e := range events {
		if l, ok := lookup[e.ID]; ok && l.HasPlace() {
			c.EventsWithLocation++
		}
		if class, ok := classifications[e.ID]; ok {
			if class.Type != models.EventTypeOther {
				c.EventsClassified++
			}
			if class.Interesting {
				c.EventsInteresting++
			}
		}
	}
	return c
}
