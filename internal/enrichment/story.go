package enrichment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lifely/lifely/internal/logging"
	"github.com/lifely/lifely/internal/models"
)

// MaxGeneratedItems caps patterns and experiments.
const MaxGeneratedItems = 3

// StoryContext is the compact statistics payload the story is written from.
type StoryContext struct {
	Year           int             `json:"year"`
	TotalEvents    int             `json:"total_events"`
	TotalHours     float64         `json:"total_hours"`
	BusiestMonth   string          `json:"busiest_month,omitempty"`
	BusiestWeekday string          `json:"busiest_weekday,omitempty"`
	TopFriends     []storyPerson   `json:"top_friends"`
	TopInferred    []storyPerson   `json:"top_inferred_friends"`
	Neighborhoods  []string        `json:"top_neighborhoods"`
	Venues         []string        `json:"top_venues"`
	Cuisines       []string        `json:"top_cuisines"`
	Activities     []storyActivity `json:"activities"`
}

type storyPerson struct {
	Name          string   `json:"name"`
	Events        int      `json:"events"`
	Hours         float64  `json:"hours"`
	Venues        []string `json:"venues,omitempty"`
	Neighborhoods []string `json:"neighborhoods,omitempty"`
}

type storyActivity struct {
	Category   string   `json:"category"`
	Events     int      `json:"events"`
	Hours      float64  `json:"hours"`
	Activities []string `json:"top_activities,omitempty"`
	Venues     []string `json:"top_venues,omitempty"`
}

// NewStoryContext condenses result into the story payload, keeping topN
// people of each kind.
func NewStoryContext(result *models.Result, topN int) StoryContext {
	ctx := StoryContext{
		Year:          result.Year,
		TotalEvents:   result.TimeStats.TotalEvents,
		TotalHours:    result.TimeStats.TotalHours,
		TopFriends:    []storyPerson{},
		TopInferred:   []storyPerson{},
		Neighborhoods: names(result.LocationStats.TopNeighborhoods, topN),
		Venues:        names(result.LocationStats.TopVenues, topN),
		Cuisines:      names(result.LocationStats.TopCuisines, topN),
		Activities:    []storyActivity{},
	}

	if month := busiestKey(result.TimeStats.EventsPerMonth); month != 0 {
		ctx.BusiestMonth = time.Month(month).String()[:3]
	}
	ctx.BusiestWeekday = busiestKey(result.TimeStats.EventsPerWeekday)

	for i, f := range result.FriendStats {
		if i == topN {
			break
		}
		ctx.TopFriends = append(ctx.TopFriends, person(f.Name(), f.EventCount, f.TotalHours, f.Events))
	}
	for i, f := range result.InferredFriends {
		if i == topN {
			break
		}
		ctx.TopInferred = append(ctx.TopInferred, person(f.Name, f.EventCount, f.TotalHours, f.Events))
	}
	for _, a := range result.ActivityStats {
		ctx.Activities = append(ctx.Activities, storyActivity{
			Category:   a.Category,
			Events:     a.EventCount,
			Hours:      a.TotalHours,
			Activities: names(a.TopActivities, 2),
			Venues:     names(a.TopVenues, 2),
		})
	}
	return ctx
}

// Digest identifies the context for caching.
func (c StoryContext) Digest() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func person(name string, events int, hours float64, details []models.FriendEvent) storyPerson {
	p := storyPerson{Name: name, Events: events, Hours: hours}
	seenHood := make(map[string]bool)
	for _, e := range details {
		if v := models.Deref(e.VenueName); v != "" && len(p.Venues) < 3 && !contains(p.Venues, v) {
			p.Venues = append(p.Venues, v)
		}
		if n := models.Deref(e.Neighborhood); n != "" && len(p.Neighborhoods) < 3 && !seenHood[n] {
			seenHood[n] = true
			p.Neighborhoods = append(p.Neighborhoods, n)
		}
	}
	return p
}

func names(ranked []models.NamedCount, n int) []string {
	out := make([]string, 0, len(ranked))
	for i, r := range ranked {
		if i == n {
			break
		}
		out = append(out, r.Name)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// busiestKey returns the key with the highest count, breaking ties by the
// smaller key.
func busiestKey[K int | string](counts map[K]int) K {
	keys := make([]K, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var best K
	bestCount := 0
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}

// Story is the generated narrative output.
type Story struct {
	Narrative   *models.Narrative
	Patterns    []models.Insight
	Experiments []models.ExperimentIdea
	Cached      bool
}

type storyResponse struct {
	Story       string                  `json:"story"`
	Patterns    []models.Insight        `json:"patterns"`
	Experiments []models.ExperimentIdea `json:"experiments"`
}

// Storyteller writes the year narrative, patterns and experiments in one
// request.
type Storyteller struct {
	generator Generator
	cache     *Cache
	prompts   *PromptTemplates
	logger    *slog.Logger
}

// NewStoryteller builds a storyteller. A nil cache disables caching.
func NewStoryteller(generator Generator, cache *Cache, logger *slog.Logger) *Storyteller {
	return &Storyteller{
		generator: generator,
		cache:     cache,
		prompts:   NewPromptTemplates(),
		logger:    logging.OrDiscard(logger),
	}
}

// Generate returns the story for sc. Identical contexts are served from the
// cache.
func (s *Storyteller) Generate(ctx context.Context, sc StoryContext) (Story, error) {
	digest, err := sc.Digest()
	if err != nil {
		return Story{}, fmt.Errorf("digest story context: %w", err)
	}

	if s.cache != nil {
		if entry, ok := s.cache.Insights(digest); ok {
			story := storyFrom(entry.Story, entry.Patterns, entry.Experiments)
			story.Cached = true
			return story, nil
		}
	}

	data, err := json.Marshal(sc)
	if err != nil {
		return Story{}, fmt.Errorf("encode story context: %w", err)
	}

	parsed, err := s.generator.GenerateJSON(ctx, OperationStory, s.prompts.Story, "Context:\n"+string(data))
	if err != nil {
		return Story{}, err
	}
	var resp storyResponse
	if err := parsed.Decode(&resp); err != nil {
		return Story{}, fmt.Errorf("parse %s response: %w", OperationStory, err)
	}

	story := storyFrom(resp.Story, resp.Patterns, resp.Experiments)
	if story.Narrative == nil && len(story.Patterns) == 0 && len(story.Experiments) == 0 {
		return story, fmt.Errorf("%s response was empty", OperationStory)
	}

	if s.cache != nil {
		entry := InsightsEntry{Patterns: story.Patterns, Experiments: story.Experiments}
		if story.Narrative != nil {
			entry.Story = story.Narrative.Story
		}
		s.cache.PutInsights(digest, entry)
		if _, err := s.cache.Save(ctx); err != nil {
			s.logger.Warn("failed to save insights cache", "error", err)
		}
	}
	return story, nil
}

func storyFrom(text string, patterns []models.Insight, experiments []models.ExperimentIdea) Story {
	story := Story{
		Patterns:    make([]models.Insight, 0, MaxGeneratedItems),
		Experiments: make([]models.ExperimentIdea, 0, MaxGeneratedItems),
	}
	if text = strings.TrimSpace(text); text != "" {
		story.Narrative = &models.Narrative{Story: text}
	}
	for _, p := range patterns {
		if len(story.Patterns) == MaxGeneratedItems {
			break
		}
		if p.Title = strings.TrimSpace(p.Title); p.Title != "" || strings.TrimSpace(p.Detail) != "" {
			story.Patterns = append(story.Patterns, p)
		}
	}
	for _, e := range experiments {
		if len(story.Experiments) == MaxGeneratedItems {
			break
		}
		if e.Title = strings.TrimSpace(e.Title); e.Title != "" || strings.TrimSpace(e.Description) != "" {
			story.Experiments = append(story.Experiments, e)
		}
	}
	return story
}
