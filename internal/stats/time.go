package stats

import (
	"time"

	"github.com/lifely/lifely/internal/models"
)

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "Mon",
	time.Tuesday:   "Tue",
	time.Wednesday: "Wed",
	time.Thursday:  "Thu",
	time.Friday:    "Fri",
	time.Saturday:  "Sat",
	time.Sunday:    "Sun",
}

type dayAccumulator struct {
	count int
	hours float64
}

// ComputeTimeStats accumulates per-month and per-weekday totals and finds the
// busiest day by summed hours. Ties go to the day seen first. A year with no
// positive-duration day has no busiest day.
func ComputeTimeStats(events []models.NormalizedEvent) models.TimeStats {
	var totalHours float64
	eventsPerMonth := make(map[int]int)
	rawHoursPerMonth := make(map[int]float64)
	eventsPerWeekday := make(map[string]int)
	rawHoursPerWeekday := make(map[string]float64)

	days := make(map[string]*dayAccumulator)
	var dayOrder []string

	for _, event := range events {
		hours := event.Hours()
		totalHours += hours

		month := int(event.Start.Month())
		weekday := weekdayNames[event.Start.Weekday()]
		eventsPerMonth[month]++
		rawHoursPerMonth[month] += hours
		eventsPerWeekday[weekday]++
		rawHoursPerWeekday[weekday] += hours

		date := event.Date()
		day, ok := days[date]
		if !ok {
			day = &dayAccumulator{}
			days[date] = day
			dayOrder = append(dayOrder, date)
		}
		day.count++
		day.hours += hours
	}

	var busiest *models.BusiestDay
	var maxHours float64
	for _, date := range dayOrder {
		day := days[date]
		if day.hours > maxHours {
			maxHours = day.hours
			busiest = &models.BusiestDay{
				Date:       date,
				EventCount: day.count,
				Hours:      models.RoundHours(day.hours),
			}
		}
	}

	return models.TimeStats{
		TotalEvents:      len(events),
		TotalHours:       models.RoundHours(totalHours),
		EventsPerMonth:   eventsPerMonth,
		HoursPerMonth:    roundAll(rawHoursPerMonth),
		EventsPerWeekday: eventsPerWeekday,
		HoursPerWeekday:  roundAll(rawHoursPerWeekday),
		BusiestDay:       busiest,
	}
}

func roundAll[K comparable](raw map[K]float64) map[K]float64 {
	out := make(map[K]float64, len(raw))
	for k, v := range raw {
		out[k] = models.RoundHours(v)
	}
	return out
}
