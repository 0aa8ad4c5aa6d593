package accesspoint

import (
	"math"
	"sort"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/dpup/trailguide/server/internal/lib/geo"
)

// Category values that qualify as vehicle/pedestrian transfer points
const (
	CategoryParking   = "parking"
	CategoryTrailhead = "trailhead"
)

// AccessPoint is a named transfer location. Values are immutable reference data.
type AccessPoint struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Coordinate geo.Point `json:"coordinate"`
}

// IsTransferPoint reports whether the access point may be used between a car leg and a foot leg
func (a AccessPoint) IsTransferPoint() bool {
	return a.Category == CategoryParking || a.Category == CategoryTrailhead
}

// Match is a located access point and its distance from the query coordinate
type Match struct {
	AccessPoint
	DistanceKm float64 `json:"distance_km"`
}

type entry struct {
	point AccessPoint
	s2    s2.Point
}

// Catalog is an immutable set of access points built once at startup and
// safe for concurrent lookups without locking
type Catalog struct {
	entries []entry
	byID    map[int64]int
}

// NewCatalog copies points into a new catalog ordered by id. Entries with
// invalid coordinates are dropped; when ids repeat the first occurrence wins.
func NewCatalog(points []AccessPoint) *Catalog {
	sorted := make([]AccessPoint, 0, len(points))
	for _, p := range points {
		if geo.IsValid(p.Coordinate) {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	c := &Catalog{
		entries: make([]entry, 0, len(sorted)),
		byID:    make(map[int64]int, len(sorted)),
	}
	for _, p := range sorted {
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.byID[p.ID] = len(c.entries)
		c.entries = append(c.entries, entry{
			point: p,
			s2:    s2.PointFromLatLng(s2.LatLngFromDegrees(p.Coordinate.Latitude, p.Coordinate.Longitude)),
		})
	}
	return c
}

// Len returns the number of catalog entries
func (c *Catalog) Len() int {
	return len(c.entries)
}

// All returns a copy of every access point ordered by id
func (c *Catalog) All() []AccessPoint {
	out := make([]AccessPoint, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.point
	}
	return out
}

// Get looks up an access point by id
func (c *Catalog) Get(id int64) (AccessPoint, bool) {
	i, ok := c.byID[id]
	if !ok {
		return AccessPoint{}, false
	}
	return c.entries[i].point, true
}

// FindNearest returns the closest parking or trailhead entry to coordinate.
// A positive maxDistanceKm excludes anything farther away; zero or negative
// means no radius limit. Ties go to the lowest id. A nil result is a normal
// outcome, not an error.
func (c *Catalog) FindNearest(coordinate geo.Point, maxDistanceKm float64) *Match {
	if !geo.IsValid(coordinate) || len(c.entries) == 0 {
		return nil
	}

	center := s2.PointFromLatLng(s2.LatLngFromDegrees(coordinate.Latitude, coordinate.Longitude))
	limited := maxDistanceKm > 0
	var searchCap s2.Cap
	if limited {
		// Cap is widened slightly; the exact radius check uses haversine below
		angle := s1.Angle(maxDistanceKm*1000/geo.EarthRadiusMeters) * 1.001
		searchCap = s2.CapFromCenterAngle(center, angle)
	}

	utils := geo.NewGeoUtils()
	var best *Match
	for _, e := range c.entries {
		if !e.point.IsTransferPoint() {
			continue
		}
		if limited && !searchCap.ContainsPoint(e.s2) {
			continue
		}

		meters, err := utils.PointToPoint(coordinate, e.point.Coordinate)
		if err != nil {
			continue
		}
		km := meters / 1000
		if limited && km > maxDistanceKm {
			continue
		}
		// Entries are ordered by id, so strict less-than keeps the lowest id on ties
		if best == nil || km < best.DistanceKm {
			best = &Match{AccessPoint: e.point, DistanceKm: km}
		}
	}

	if best != nil {
		best.DistanceKm = math.Round(best.DistanceKm*1000) / 1000
	}
	return best
}
