package stats

import (
	"math"
	"sort"

	"github.com/lifely/lifely/internal/models"
)

// DefaultTopN is the ranking length used when callers pass a non-positive n.
const DefaultTopN = 5

// MaxMapPoints bounds the coordinate clusters returned for a year.
const MaxMapPoints = 200

// coordinatePrecision rounds to four decimal places, roughly 11 m.
const coordinatePrecision = 1e4

// Rank orders counts by count descending, then name ascending, and keeps the
// first n entries.
func Rank(counts map[string]int, n int) []models.NamedCount {
	ranked := make([]models.NamedCount, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, models.NamedCount{Name: name, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Name < ranked[j].Name
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

type locationCounter struct {
	neighborhoods map[string]int
	venues        map[string]int
	cuisines      map[string]int
	points        map[[2]float64]*pointAccumulator
	withLocation  int
}

type pointAccumulator struct {
	order  int
	count  int
	labels map[string]int
}

func newLocationCounter() *locationCounter {
	return &locationCounter{
		neighborhoods: make(map[string]int),
		venues:        make(map[string]int),
		cuisines:      make(map[string]int),
		points:        make(map[[2]float64]*pointAccumulator),
	}
}

func (c *locationCounter) add(venue, neighborhood, cuisine *string, lat, lng *float64) {
	if venue != nil || neighborhood != nil {
		c.withLocation++
	}
	if neighborhood != nil {
		c.neighborhoods[*neighborhood]++
	}
	if venue != nil {
		c.venues[*venue]++
	}
	if cuisine != nil {
		c.cuisines[*cuisine]++
	}
	if lat == nil || lng == nil {
		return
	}

	key := [2]float64{roundCoordinate(*lat), roundCoordinate(*lng)}
	point, ok := c.points[key]
	if !ok {
		point = &pointAccumulator{order: len(c.points), labels: make(map[string]int)}
		c.points[key] = point
	}
	point.count++
	if venue != nil {
		point.labels[*venue]++
	}
}

func (c *locationCounter) stats(topN int) models.LocationStats {
	out := models.EmptyLocationStats()
	out.TopNeighborhoods = Rank(c.neighborhoods, topN)
	out.TopVenues = Rank(c.venues, topN)
	out.TopCuisines = Rank(c.cuisines, topN)
	out.TotalWithLocation = c.withLocation

	type keyed struct {
		key   [2]float64
		point *pointAccumulator
	}
	points := make([]keyed, 0, len(c.points))
	for k, p := range c.points {
		points = append(points, keyed{k, p})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].point.count != points[j].point.count {
			return points[i].point.count > points[j].point.count
		}
		return points[i].point.order < points[j].point.order
	})
	if len(points) > MaxMapPoints {
		points = points[:MaxMapPoints]
	}

	for _, p := range points {
		label := ""
		if top := Rank(p.point.labels, 1); len(top) == 1 {
			label = top[0].Name
		}
		out.MapPoints = append(out.MapPoints, models.MapPoint{
			Latitude:  p.key[0],
			Longitude: p.key[1],
			Label:     label,
			Count:     p.point.count,
		})
	}

	return out
}

// ComputeLocationStats ranks neighborhoods, venues and cuisines. When lookup
// is non-empty it is taken to cover every event and is used directly.
// Otherwise the place fields already present on friend events are used, with
// each event counted once even if it is shared by several friends.
func ComputeLocationStats(friends []models.FriendStats, lookup map[string]models.LocationEnrichment, topN int) models.LocationStats {
	if topN <= 0 {
		topN = DefaultTopN
	}
	counter := newLocationCounter()

	if len(lookup) > 0 {
		ids := make([]string, 0, len(lookup))
		for id := range lookup {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			e := lookup[id]
			counter.add(e.VenueName, e.Neighborhood, e.Cuisine, e.Latitude, e.Longitude)
		}
		return counter.stats(topN)
	}

	seen := make(map[string]struct{})
	for _, friend := range friends {
		for _, event := range friend.Events {
			if _, dup := seen[event.ID]; dup {
				continue
			}
			seen[event.ID] = struct{}{}
			counter.add(event.VenueName, event.Neighborhood, event.Cuisine, nil, nil)
		}
	}
	return counter.stats(topN)
}

func roundCoordinate(v float64) float64 {
	return math.Round(v*coordinatePrecision) / coordinatePrecision
}
