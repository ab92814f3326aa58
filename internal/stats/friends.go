// Package stats computes deterministic aggregates over normalized events.
// Every function here is pure: no I/O and no shared state.
package stats

import (
	"sort"
	"strings"

	"github.com/lifely/lifely/internal/models"
)

// systemEmailPatterns mark bot, resource and conferencing accounts.
var systemEmailPatterns = []string{
	"@resource.calendar.google.com",
	"noreply",
	"no-reply",
	"calendar-notification",
	"@zoom.us",
	"@calendly.com",
	"mailer-daemon",
	"@google.com",
}

// IsSystemEmail reports whether email belongs to a non-human account.
func IsSystemEmail(email string) bool {
	lower := strings.ToLower(email)
	for _, pattern := range systemEmailPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

type friendAccumulator struct {
	displayName string
	count       int
	hours       float64
	events      []models.FriendEvent
}

// ComputeFriendStats groups events by attendee email, skipping self, declined
// and system attendees. People with fewer than minEvents events are dropped.
// The result is sorted by event count, then total hours, both descending, and
// finally by email so equal entries have a stable order.
func ComputeFriendStats(events []models.NormalizedEvent, minEvents int) []models.FriendStats {
	byEmail := make(map[string]*friendAccumulator)

	for _, event := range events {
		hours := event.Hours()
		for _, attendee := range event.Attendees {
			if attendee.IsSelf || attendee.ResponseStatus == models.ResponseDeclined {
				continue
			}
			if attendee.Email == "" || IsSystemEmail(attendee.Email) {
				continue
			}

			acc, ok := byEmail[attendee.Email]
			if !ok {
				acc = &friendAccumulator{}
				byEmail[attendee.Email] = acc
			}
			acc.count++
			acc.hours += hours
			acc.events = append(acc.events, models.FriendEvent{
				ID:          event.ID,
				Summary:     event.Summary,
				Date:        event.Date(),
				Hours:       models.RoundHours(hours),
				LocationRaw: event.LocationRaw,
			})
			if attendee.DisplayName != "" {
				acc.displayName = attendee.DisplayName
			}
		}
	}

	friends := make([]models.FriendStats, 0, len(byEmail))
	for email, acc := range byEmail {
		if acc.count < minEvents {
			continue
		}
		friends = append(friends, models.FriendStats{
			Email:       email,
			DisplayName: acc.displayName,
			EventCount:  acc.count,
			TotalHours:  models.RoundHours(acc.hours),
			Events:      acc.events,
		})
	}

	sort.Slice(friends, func(i, j int) bool {
		a, b := friends[i], friends[j]
		if a.EventCount != b.EventCount {
			return a.EventCount > b.EventCount
		}
		if a.TotalHours != b.TotalHours {
			return a.TotalHours > b.TotalHours
		}
		return a.Email < b.Email
	})

	return friends
}

// ApplyEnrichments returns a copy of friends with venue, neighborhood and
// cuisine filled in from lookup. Events absent from lookup are left as-is.
func ApplyEnrichments(friends []models.FriendStats, lookup map[string]models.LocationEnrichment) []models.FriendStats {
	out := make([]models.FriendStats, len(friends))
	for i, friend := range friends {
		events := make([]models.FriendEvent, len(friend.Events))
		copy(events, friend.Events)
		for j := range events {
			enrichment, ok := lookup[events[j].ID]
			if !ok {
				continue
			}
			events[j].VenueName = enrichment.VenueName
			events[j].Neighborhood = enrichment.Neighborhood
			events[j].Cuisine = enrichment.Cuisine
		}
		friend.Events = events
		out[i] = friend
	}
	return out
}
