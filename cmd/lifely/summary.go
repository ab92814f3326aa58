package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lifely/lifely/internal/models"
)

const summaryListSize = 5

// writeSummary renders the headline numbers of a result for a terminal.
func writeSummary(w io.Writer, r *models.Result) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Your %d in review\n", r.Year)
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", 19))

	ts := r.TimeStats
	fmt.Fprintf(&b, "%d events, %.1f hours\n", ts.TotalEvents, ts.TotalHours)
	if ts.BusiestDay != nil {
		fmt.Fprintf(&b, "Busiest day: %s (%d events, %.1f hours)\n", ts.BusiestDay.Date, ts.BusiestDay.EventCount, ts.BusiestDay.Hours)
	}
	if month, ok := busiestMonth(ts.HoursPerMonth); ok {
		fmt.Fprintf(&b, "Busiest month: %s\n", month)
	}

	if len(r.FriendStats) > 0 {
		b.WriteString("\nPeople you saw most\n")
		for i, f := range r.FriendStats {
			if i == summaryListSize {
				break
			}
			fmt.Fprintf(&b, "  %d. %s: %d events, %.1f hours\n", i+1, f.Name(), f.EventCount, f.TotalHours)
		}
	}

	if len(r.InferredFriends) > 0 {
		b.WriteString("\nNamed in your event titles\n")
		for i, f := range r.InferredFriends {
			if i == summaryListSize {
				break
			}
			fmt.Fprintf(&b, "  %d. %s: %d events, %.1f hours\n", i+1, f.Name, f.EventCount, f.TotalHours)
		}
	}

	if venues := r.LocationStats.TopVenues; len(venues) > 0 {
		b.WriteString("\nFavorite places\n")
		for i, v := range venues {
			if i == summaryListSize {
				break
			}
			fmt.Fprintf(&b, "  %d. %s (%d)\n", i+1, v.Name, v.Count)
		}
	}

	if len(r.ActivityStats) > 0 {
		b.WriteString("\nActivities\n")
		for i, a := range r.ActivityStats {
			if i == summaryListSize {
				break
			}
			fmt.Fprintf(&b, "  %s: %d events, %.1f hours\n", a.Category, a.EventCount, a.TotalHours)
		}
	}

	if r.Narrative != nil {
		fmt.Fprintf(&b, "\n%s\n", r.Narrative.Story)
	}
	for _, p := range r.Patterns {
		fmt.Fprintf(&b, "  * %s: %s\n", p.Title, p.Detail)
	}
	if len(r.Experiments) > 0 {
		b.WriteString("\nTry next year\n")
		for _, e := range r.Experiments {
			fmt.Fprintf(&b, "  * %s: %s\n", e.Title, e.Description)
		}
	}

	if !r.Enriched {
		b.WriteString("\nSet OPENAI_API_KEY to add places, inferred friends and a story.\n")
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\nWarnings\n")
		for _, warning := range r.Warnings {
			fmt.Fprintf(&b, "  ! %s\n", warning)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func busiestMonth(hours map[int]float64) (string, bool) {
	best, bestHours := 0, 0.0
	for m := 1; m <= 12; m++ {
		if hours[m] > bestHours {
			best, bestHours = m, hours[m]
		}
	}
	if best == 0 {
		return "", false
	}
	return time.Month(best).String(), true
}
