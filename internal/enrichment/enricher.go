// Package enrichment attaches place and category labels to calendar events
// through a text-generation service, deduplicating requests through a
// persistent cache.
package enrichment

import (
	"context"
	"fmt"
	"strings"

	"github.com/lifely/lifely/internal/inference"
)

// Generator is the part of the inference client the enrichment phases use.
type Generator interface {
	GenerateJSON(ctx context.Context, operation, instructions, input string) (inference.ParseResult, error)
}

// Operation names recorded with every inference call.
const (
	OperationLocations = "enrich_locations"
	OperationClassify  = "classify_events"
	OperationStory     = "generate_insights"
)

// generateResults sends one chunk and decodes the {"results": [...]} answer.
// Transport failures and unparseable answers are both returned as errors so
// the batch runner records the chunk as failed.
func generateResults[T any](ctx context.Context, gen Generator, operation, instructions string, items any) ([]T, error) {
	input, err := eventsInput(items)
	if err != nil {
		return nil, err
	}

	parsed, err := gen.GenerateJSON(ctx, operation, instructions, input)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Results []T `json:"results"`
	}
	if err := parsed.Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", operation, err)
	}
	return payload.Results, nil
}

// cleanString trims s and maps the placeholder answers models produce for
// "unknown" to nil.
func cleanString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	switch strings.ToLower(v) {
	case "", "null", "none", "n/a", "unknown":
		return nil
	}
	return &v
}

func validCoordinate(v *float64, limit float64) *float64 {
	if v == nil || *v < -limit || *v > limit {
		return nil
	}
	return v
}
