package enrichment

import (
	"sort"
	"strings"

	"github.com/lifely/lifely/internal/models"
	"github.com/lifely/lifely/internal/stats"
)

const defaultCategory = "other"

// AggregateInferredFriends groups SOCIAL events by extracted name. Names are
// matched case-insensitively; the first spelling seen is kept for display.
// Friends are ordered by event count, then hours, then name.
func AggregateInferredFriends(events []models.NormalizedEvent, classifications map[string]models.Classification, lookup map[string]models.LocationEnrichment, topN int) []models.InferredFriend {
	type acc struct {
		friend models.InferredFriend
		hours  float64
		venues map[string]int
	}
	byName := make(map[string]*acc)
	var order []string

	for _, event := range events {
		class, ok := classifications[event.ID]
		if !ok || class.Type != models.EventTypeSocial {
			continue
		}
		enrichment, hasPlace := lookup[event.ID]

		seen := make(map[string]bool, len(class.Names))
		for _, name := range class.Names {
			key := strings.ToLower(strings.TrimSpace(name))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true

			a, exists := byName[key]
			if !exists {
				a = &acc{
					friend: models.InferredFriend{Name: strings.TrimSpace(name), NormalizedName: key},
					venues: make(map[string]int),
				}
				byName[key] = a
				order = append(order, key)
			}

			fe := models.FriendEvent{
				ID:          event.ID,
				Summary:     event.Summary,
				Date:        event.Date(),
				Hours:       models.RoundHours(event.Hours()),
				LocationRaw: event.LocationRaw,
			}
			if hasPlace {
				fe.VenueName = enrichment.VenueName
				fe.Neighborhood = enrichment.Neighborhood
				fe.Cuisine = enrichment.Cuisine
			}
			if venue := venueFor(class, enrichment, hasPlace); venue != "" {
				a.venues[venue]++
			}

			a.friend.Events = append(a.friend.Events, fe)
			a.friend.EventCount++
			a.hours += event.Hours()
		}
	}

	friends := make([]models.InferredFriend, 0, len(order))
	for _, key := range order {
		a := byName[key]
		a.friend.TotalHours = models.RoundHours(a.hours)
		a.friend.TopVenues = stats.Rank(a.venues, topN)
		friends = append(friends, a.friend)
	}

	sort.SliceStable(friends, func(i, j int) bool {
		if friends[i].EventCount != friends[j].EventCount {
			return friends[i].EventCount > friends[j].EventCount
		}
		if friends[i].TotalHours != friends[j].TotalHours {
			return friends[i].TotalHours > friends[j].TotalHours
		}
		return friends[i].NormalizedName < friends[j].NormalizedName
	})
	return friends
}

// AggregateActivities groups ACTIVITY events by category. A venue named in
// the title wins over the enriched venue. Categories are ordered by event
// count, then hours, then name.
func AggregateActivities(events []models.NormalizedEvent, classifications map[string]models.Classification, lookup map[string]models.LocationEnrichment, topN int) []models.ActivityCategoryStats {
	type acc struct {
		stats      models.ActivityCategoryStats
		hours      float64
		venues     map[string]int
		activities map[string]int
	}
	byCategory := make(map[string]*acc)
	var order []string

	for _, event := range events {
		class, ok := classifications[event.ID]
		if !ok || class.Type != models.EventTypeActivity {
			continue
		}
		category := class.Category
		if category == "" {
			category = defaultCategory
		}

		a, exists := byCategory[category]
		if !exists {
			a = &acc{
				stats:      models.ActivityCategoryStats{Category: category},
				venues:     make(map[string]int),
				activities: make(map[string]int),
			}
			byCategory[category] = a
			order = append(order, category)
		}

		enrichment, hasPlace := lookup[event.ID]
		venue := venueFor(class, enrichment, hasPlace)
		neighborhood := models.StringPtr(class.Neighborhood)
		if neighborhood == nil && hasPlace {
			neighborhood = enrichment.Neighborhood
		}

		a.stats.Events = append(a.stats.Events, models.ActivityEvent{
			ID:           event.ID,
			Summary:      event.Summary,
			Date:         event.Date(),
			Hours:        models.RoundHours(event.Hours()),
			Category:     category,
			Activity:     class.Activity,
			VenueName:    models.StringPtr(venue),
			Neighborhood: neighborhood,
			Interesting:  class.Interesting,
		})
		a.stats.EventCount++
		a.stats.Interesting = a.stats.Interesting || class.Interesting
		a.hours += event.Hours()
		if venue != "" {
			a.venues[venue]++
		}
		if class.Activity != "" {
			a.activities[class.Activity]++
		}
	}

	out := make([]models.ActivityCategoryStats, 0, len(order))
	for _, category := range order {
		a := byCategory[category]
		a.stats.TotalHours = models.RoundHours(a.hours)
		a.stats.TopVenues = stats.Rank(a.venues, topN)
		a.stats.TopActivities = stats.Rank(a.activities, topN)
		out = append(out, a.stats)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EventCount != out[j].EventCount {
			return out[i].EventCount > out[j].EventCount
		}
		if out[i].TotalHours != out[j].TotalHours {
			return out[i].TotalHours > out[j].TotalHours
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func venueFor(class models.Classification, enrichment models.LocationEnrichment, hasPlace bool) string {
	if class.Venue != "" {
		return class.Venue
	}
	if hasPlace {
		return models.Deref(enrichment.VenueName)
	}
	return ""
}
