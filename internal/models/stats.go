package models

// FriendEvent is a single event shared with a person. Venue fields are filled
// in after location enrichment.
type FriendEvent struct {
	ID           string  `json:"id"`
	Summary      string  `json:"summary,omitempty"`
	Date         string  `json:"date"`
	Hours        float64 `json:"hours"`
	LocationRaw  string  `json:"location_raw,omitempty"`
	VenueName    *string `json:"venue_name"`
	Neighborhood *string `json:"neighborhood"`
	Cuisine      *string `json:"cuisine"`
}

// FriendStats aggregates time spent with one attendee, keyed by email.
type FriendStats struct {
	Email       string        `json:"email"`
	DisplayName string        `json:"display_name,omitempty"`
	EventCount  int           `json:"event_count"`
	TotalHours  float64       `json:"total_hours"`
	Events      []FriendEvent `json:"events"`
}

// Name returns the display name, falling back to the email local part.
func (f FriendStats) Name() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	for i := 0; i < len(f.Email); i++ {
		if f.Email[i] == '@' {
			return f.Email[:i]
		}
	}
	return f.Email
}

// BusiestDay is the calendar day with the largest summed hours.
type BusiestDay struct {
	Date       string  `json:"date"`
	EventCount int     `json:"event_count"`
	Hours      float64 `json:"hours"`
}

// TimeStats holds time-based aggregates for the year. Months are 1-12 and
// weekdays use three-letter English names (Mon..Sun).
type TimeStats struct {
	TotalEvents      int                `json:"total_events"`
	TotalHours       float64            `json:"total_hours"`
	EventsPerMonth   map[int]int        `json:"events_per_month"`
	HoursPerMonth    map[int]float64    `json:"hours_per_month"`
	EventsPerWeekday map[string]int     `json:"events_per_weekday"`
	HoursPerWeekday  map[string]float64 `json:"hours_per_weekday"`
	BusiestDay       *BusiestDay        `json:"busiest_day"`
}

// LocationEnrichment is the resolved place for one event. Nil fields mean
// "unknown", not "unprocessed".
type LocationEnrichment struct {
	EventID      string   `json:"event_id"`
	VenueName    *string  `json:"venue_name"`
	Neighborhood *string  `json:"neighborhood"`
	City         *string  `json:"city"`
	Cuisine      *string  `json:"cuisine"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

// HasPlace reports whether a venue or neighborhood was resolved.
func (l LocationEnrichment) HasPlace() bool {
	return l.VenueName != nil || l.Neighborhood != nil
}

// HasCoordinates reports whether both coordinates are known.
func (l LocationEnrichment) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// NamedCount is a (name, count) pair in a ranking.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// MapPoint is a coordinate cluster. Coordinates are rounded so near-duplicate
// pins collapse into one point.
type MapPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label,omitempty"`
	Count     int     `json:"count"`
}

// LocationStats ranks places visited during the year.
type LocationStats struct {
	TopNeighborhoods  []NamedCount `json:"top_neighborhoods"`
	TopVenues         []NamedCount `json:"top_venues"`
	TopCuisines       []NamedCount `json:"top_cuisines"`
	MapPoints         []MapPoint   `json:"map_points"`
	TotalWithLocation int          `json:"total_with_location"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
