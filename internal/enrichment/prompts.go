package enrichment

import (
	"encoding/json"
	"fmt"
)

// PromptTemplates holds the instruction text for each enrichment request.
type PromptTemplates struct {
	Location       string
	Classification string
	Story          string
}

// NewPromptTemplates returns the default prompts.
func NewPromptTemplates() *PromptTemplates {
	return &PromptTemplates{
		Location:       buildLocationPrompt(),
		Classification: buildClassificationPrompt(),
		Story:          buildStoryPrompt(),
	}
}

func buildLocationPrompt() string {
	return `You extract place details from calendar event locations.

Output ONLY a JSON object. Do not add commentary.

For each event, return:
- venue_name: business or place name ("Thai Villa", "Equinox", "AMC Theater")
- neighborhood: neighborhood or district, inferred from the street address when possible ("6th Ave & 32nd St" is "Koreatown")
- city: borough or city
- cuisine: food type when the venue is a restaurant or bar, otherwise null
- latitude, longitude: only when you are confident, otherwise null

Rules:
- Use null for anything you cannot tell
- Skip private addresses (apartments, homes) and video call links by leaving them out of the results

Format:
{"results": [{"event_id": "...", "venue_name": "...", "neighborhood": "...", "city": "...", "cuisine": null, "latitude": null, "longitude": null}]}`
}

func buildClassificationPrompt() string {
	return `You classify calendar events by title into SOCIAL, ACTIVITY or OTHER.

Output ONLY a JSON object. Do not add commentary.

SOCIAL: time with specific people (friends, family, dates).
  Extract "names", the people mentioned. "Dinner with Masha" gives ["Masha"]; "Coffee w/ John & Sarah" gives ["John", "Sarah"].
ACTIVITY: something done solo or at a venue.
  Extract "category" (fitness, wellness, health, personal_care, learning, entertainment, or a short new label),
  "activity" (yoga, climbing, haircut...) and "venue" when the title names one ("Yoga @ Vital" gives "Vital").
OTHER: work, reminders, travel logistics, chores.

Set "interesting": true for events that stand out from a routine week (a concert, a trip, a first class).
A location_hint may be given; use it only to disambiguate.

Format:
{"results": [
  {"event_id": "...", "type": "SOCIAL", "names": ["..."]},
  {"event_id": "...", "type": "ACTIVITY", "category": "...", "activity": "...", "venue": "...", "interesting": false},
  {"event_id": "...", "type": "OTHER"}
]}`
}

func buildStoryPrompt() string {
	return `You are a warm, data-grounded concierge summarizing someone's year from calendar statistics.

Output ONLY a JSON object. Do not add commentary.

- story: 3 to 5 sentences. Ground every claim in the data. Mention people, venues, neighborhoods and activities sparingly but specifically. No emojis or hashtags.
- patterns: at most 3 observations, each detail under 140 characters. Prefer streaks, shifts between early and late year, and notable pairs of person and place.
- experiments: at most 3 suggestions for next year, specific to the data, each description under 140 characters.

Format:
{"story": "...", "patterns": [{"title": "...", "detail": "..."}], "experiments": [{"title": "...", "description": "..."}]}`
}

// eventsInput renders the per-request payload sent alongside the
// instructions.
func eventsInput(items any) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode events: %w", err)
	}
	return "Events:\n" + string(data), nil
}
