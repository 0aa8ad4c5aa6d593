package routing

import (
	"context"
	"math"

	"github.com/dpup/trailguide/server/internal/lib/accesspoint"
	"github.com/dpup/trailguide/server/internal/lib/geo"
)

// Mode is the travel modality of a route or feature
type Mode string

const (
	ModeCar  Mode = "car"
	ModeFoot Mode = "foot"
)

// Valid reports whether m is a supported travel mode
func (m Mode) Valid() bool {
	return m == ModeCar || m == ModeFoot
}

// Feature is one line geometry tagged with the mode it is travelled in
type Feature struct {
	Mode     Mode         `json:"mode"`
	Geometry geo.Polyline `json:"geometry"`
}

// RouteLeg is a collection of mode-tagged features with aggregate distance and duration
type RouteLeg struct {
	Features    []Feature `json:"features"`
	DistanceKm  float64   `json:"distance_km"`
	DurationMin float64   `json:"duration_min"`
}

// Modes returns the distinct feature modes in order of first appearance
func (l *RouteLeg) Modes() []Mode {
	var modes []Mode
	seen := make(map[Mode]bool)
	for _, f := range l.Features {
		if !seen[f.Mode] {
			seen[f.Mode] = true
			modes = append(modes, f.Mode)
		}
	}
	return modes
}

// Geometry returns the leg's polylines without mode tags
func (l *RouteLeg) Geometry() []geo.Polyline {
	out := make([]geo.Polyline, len(l.Features))
	for i, f := range l.Features {
		out[i] = f.Geometry
	}
	return out
}

// HybridLeg is a RouteLeg that may pass through an access point. UsedAccessPoint
// is nil when the destination was reached directly by car.
type HybridLeg struct {
	RouteLeg
	UsedAccessPoint *accesspoint.AccessPoint `json:"used_access_point"`
}

// Estimate is the distance/duration summary of a two-point route
type Estimate struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
}

// RouteFetcher obtains a single-mode route through an ordered coordinate list.
// Failures are returned as *RouteError.
type RouteFetcher interface {
	FetchRoute(ctx context.Context, coordinates []geo.Point, mode Mode) (*RouteLeg, error)
}

// AccessPointFinder locates the nearest transfer point within an optional radius.
// A nil result means none was found.
type AccessPointFinder interface {
	FindNearest(coordinate geo.Point, maxDistanceKm float64) *accesspoint.Match
}

// AccessibilityPolicy decides whether a destination is reachable directly by car
type AccessibilityPolicy func(category string, tags map[string]string) bool

// RoundOneDecimal rounds display values (km, minutes) to one decimal place
func RoundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
