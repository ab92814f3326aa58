package models

// EventType is the classification bucket assigned to an event title.
type EventType string

const (
	EventTypeSocial   EventType = "SOCIAL"
	EventTypeActivity EventType = "ACTIVITY"
	EventTypeOther    EventType = "OTHER"
)

// Classification is the per-event result of title classification.
type Classification struct {
	EventID      string    `json:"event_id"`
	Type         EventType `json:"type"`
	Names        []string  `json:"names,omitempty"`
	Category     string    `json:"category,omitempty"`
	Activity     string    `json:"activity,omitempty"`
	Venue        string    `json:"venue,omitempty"`
	Neighborhood string    `json:"neighborhood,omitempty"`
	Interesting  bool      `json:"interesting,omitempty"`
}

// InferredFriend is a person identified only by a name extracted from event
// titles. NormalizedName is the lower-cased, trimmed identity key.
type InferredFriend struct {
	Name           string        `json:"name"`
	NormalizedName string        `json:"normalized_name"`
	EventCount     int           `json:"event_count"`
	TotalHours     float64       `json:"total_hours"`
	TopVenues      []NamedCount  `json:"top_venues"`
	Events         []FriendEvent `json:"events"`
}

// ActivityEvent is one event counted toward an activity category.
type ActivityEvent struct {
	ID           string  `json:"id"`
	Summary      string  `json:"summary,omitempty"`
	Date         string  `json:"date"`
	Hours        float64 `json:"hours"`
	Category     string  `json:"category"`
	Activity     string  `json:"activity,omitempty"`
	VenueName    *string `json:"venue_name"`
	Neighborhood *string `json:"neighborhood"`
	Interesting  bool    `json:"interesting,omitempty"`
}

// ActivityCategoryStats aggregates events sharing a free-form category.
type ActivityCategoryStats struct {
	Category      string          `json:"category"`
	EventCount    int             `json:"event_count"`
	TotalHours    float64         `json:"total_hours"`
	TopVenues     []NamedCount    `json:"top_venues"`
	TopActivities []NamedCount    `json:"top_activities"`
	Interesting   bool            `json:"interesting"`
	Events        []ActivityEvent `json:"events"`
}

// Narrative is the generated year story.
type Narrative struct {
	Story string `json:"story"`
}

// Insight is a generated pattern observation.
type Insight struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// ExperimentIdea is a generated suggestion for next year.
type ExperimentIdea struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// MergeConfidence rates how likely an inferred name and an email friend are
// the same person.
type MergeConfidence string

const (
	MergeConfidenceHigh   MergeConfidence = "high"
	MergeConfidenceMedium MergeConfidence = "medium"
)

// MergeSuggestion links an inferred friend to an attendee email.
type MergeSuggestion struct {
	InferredName   string          `json:"inferred_name"`
	SuggestedEmail string          `json:"suggested_email"`
	Confidence     MergeConfidence `json:"confidence"`
	Reason         string          `json:"reason"`
}
