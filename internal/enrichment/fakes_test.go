package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lifely/lifely/internal/inference"
	"github.com/lifely/lifely/internal/models"
)

// memStore is a Store that counts writes.
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	writes int
	getErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	s.writes++
	return nil
}

func (s *memStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type promptItem struct {
	EventID      string `json:"event_id"`
	Summary      string `json:"summary"`
	Location     string `json:"location"`
	LocationHint string `json:"location_hint"`
}

// fakeGenerator answers each request with respond(operation, items).
type fakeGenerator struct {
	mu      sync.Mutex
	calls   map[string]int
	items   map[string][]promptItem
	respond func(operation string, items []promptItem) (string, error)
}

func newFakeGenerator(respond func(operation string, items []promptItem) (string, error)) *fakeGenerator {
	return &fakeGenerator{
		calls:   make(map[string]int),
		items:   make(map[string][]promptItem),
		respond: respond,
	}
}

func (g *fakeGenerator) GenerateJSON(_ context.Context, operation, _ string, input string) (inference.ParseResult, error) {
	var items []promptItem
	if rest, ok := strings.CutPrefix(input, "Events:\n"); ok {
		if err := json.Unmarshal([]byte(rest), &items); err != nil {
			return inference.ParseResult{}, err
		}
	}

	g.mu.Lock()
	g.calls[operation]++
	g.items[operation] = append(g.items[operation], items...)
	g.mu.Unlock()

	text, err := g.respond(operation, items)
	if err != nil {
		return inference.ParseResult{Err: err}, err
	}
	return inference.ParseJSON(text), nil
}

func (g *fakeGenerator) Calls(operation string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[operation]
}

func (g *fakeGenerator) Items(operation string) []promptItem {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]promptItem(nil), g.items[operation]...)
}

var errUnavailable = errors.New("service unavailable")

func results(v ...map[string]any) string {
	data, _ := json.Marshal(map[string]any{"results": v})
	return string(data)
}

func testEvent(t *testing.T, id, summary, location string, minutes float64) models.NormalizedEvent {
	t.Helper()
	return models.NormalizedEvent{
		ID:              id,
		Summary:         summary,
		LocationRaw:     location,
		Start:           time.Date(2025, 3, 14, 19, 0, 0, 0, time.UTC),
		DurationMinutes: minutes,
	}
}

// mashaEvents are two dinners at the same place written differently and a
// gym session with no location.
func mashaEvents(t *testing.T) []models.NormalizedEvent {
	return []models.NormalizedEvent{
		testEvent(t, "e1", "Dinner with Masha", "Lilia, 567 Union Ave, Brooklyn", 120),
		testEvent(t, "e2", "dinner with  masha", "  LILIA,  567 Union Ave,   Brooklyn ", 90),
		testEvent(t, "e3", "Gym", "", 60),
	}
}
