package models

// Phase is a pipeline stage reported through progress callbacks.
type Phase string

const (
	PhaseNormalizing        Phase = "normalizing"
	PhaseComputingStats     Phase = "computing_stats"
	PhaseEnrichingLocations Phase = "enriching_locations"
	PhaseClassifyingEvents  Phase = "classifying_events"
	PhaseGeneratingInsights Phase = "generating_insights"
	PhaseComplete           Phase = "complete"
)

// Phases lists every phase in execution order.
var Phases = []Phase{
	PhaseNormalizing,
	PhaseComputingStats,
	PhaseEnrichingLocations,
	PhaseClassifyingEvents,
	PhaseGeneratingInsights,
	PhaseComplete,
}

// Order returns the position of p in Phases, or -1 for unknown phases.
func (p Phase) Order() int {
	for i, phase := range Phases {
		if phase == p {
			return i
		}
	}
	return -1
}

// Progress is a (phase, percent, message) tuple. Percent is 0-100 and never
// decreases within a run.
type Progress struct {
	Phase   Phase  `json:"phase"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// ProgressFunc receives progress updates. Callers must not assume a fixed
// number of invocations.
type ProgressFunc func(Progress)

// Coverage counts how much of the year the enrichment phases reached.
type Coverage struct {
	EventsWithLocation int `json:"events_with_location"`
	EventsClassified   int `json:"events_classified"`
	EventsInteresting  int `json:"events_interesting"`
}

// Result is the single aggregate handed to the presentation layer. Slices are
// never nil so the shape is deterministic.
type Result struct {
	RunID            string                  `json:"run_id"`
	Year             int                     `json:"year"`
	TimeStats        TimeStats               `json:"time_stats"`
	FriendStats      []FriendStats           `json:"friend_stats"`
	LocationStats    LocationStats           `json:"location_stats"`
	InferredFriends  []InferredFriend        `json:"inferred_friends"`
	ActivityStats    []ActivityCategoryStats `json:"activity_stats"`
	MergeSuggestions []MergeSuggestion       `json:"merge_suggestions"`
	Narrative        *Narrative              `json:"narrative"`
	Patterns         []Insight               `json:"patterns"`
	Experiments      []ExperimentIdea        `json:"experiments"`
	Coverage         Coverage                `json:"coverage"`
	Warnings         []string                `json:"warnings"`
	Enriched         bool                    `json:"enriched"`
}

// NewResult returns a Result with every collection initialised to empty.
func NewResult(year int) *Result {
	return &Result{
		Year:             year,
		FriendStats:      []FriendStats{},
		LocationStats:    EmptyLocationStats(),
		InferredFriends:  []InferredFriend{},
		ActivityStats:    []ActivityCategoryStats{},
		MergeSuggestions: []MergeSuggestion{},
		Patterns:         []Insight{},
		Experiments:      []ExperimentIdea{},
		Warnings:         []string{},
	}
}

// EmptyLocationStats returns LocationStats with non-nil empty rankings.
func EmptyLocationStats() LocationStats {
	return LocationStats{
		TopNeighborhoods: []NamedCount{},
		TopVenues:        []NamedCount{},
		TopCuisines:      []NamedCount{},
		MapPoints:        []MapPoint{},
	}
}
