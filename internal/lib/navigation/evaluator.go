package navigation

import (
	"github.com/dpup/trailguide/server/internal/lib/geo"
)

// ArrivalMode controls whether an arrival already delivered for a stop is emitted again
type ArrivalMode int

const (
	// ArrivalRepeat emits ProximityArrival on every update inside the arrival band
	ArrivalRepeat ArrivalMode = iota
	// ArrivalOnce suppresses ProximityArrival for stops in the triggered set
	ArrivalOnce
)

// ParseArrivalMode maps "once" to ArrivalOnce; anything else is ArrivalRepeat
func ParseArrivalMode(s string) ArrivalMode {
	if s == "once" {
		return ArrivalOnce
	}
	return ArrivalRepeat
}

// Evaluator classifies a position against an active route and the next stop.
// It holds no per-session state; trigger memory is passed in by the caller.
type Evaluator struct {
	geoUtils    geo.GeoUtils
	arrivalMode ArrivalMode
}

// NewEvaluator creates an Evaluator
func NewEvaluator(geoUtils geo.GeoUtils, arrivalMode ArrivalMode) *Evaluator {
	if geoUtils == nil {
		geoUtils = geo.NewGeoUtils()
	}
	return &Evaluator{geoUtils: geoUtils, arrivalMode: arrivalMode}
}

// Evaluate runs the deviation and proximity checks for one location update.
// Both checks always run, so a call can yield a reroute and a proximity event
// together; the reroute is listed first.
func (e *Evaluator) Evaluate(current geo.Point, route ActiveRoute, stops []Stop, thresholds Thresholds, triggered map[string]bool) Evaluation {
	result := Evaluation{OffRouteDistance: -1, NextStopDistance: -1}

	if next := NextStop(stops); next != nil {
		stop := *next
		result.NextStop = &stop
	}

	validLocation := geo.IsValid(current)

	if validLocation {
		if d, err := e.geoUtils.PointToPolyline(current, route.Features); err == nil {
			result.OffRouteDistance = d
		}
	}
	if result.OffRouteDistance < 0 || result.OffRouteDistance > thresholds.OffRouteMeters {
		result.Events = append(result.Events, RerouteRequested{
			Reason:                ReasonOffRoute,
			DistanceToRouteMeters: result.OffRouteDistance,
		})
	}

	if result.NextStop == nil || !validLocation {
		return result
	}

	d, err := e.geoUtils.PointToPoint(current, result.NextStop.Coordinate)
	if err != nil {
		return result
	}
	result.NextStopDistance = d

	switch {
	case d < thresholds.ArrivalMeters:
		if e.arrivalMode == ArrivalOnce && triggered[result.NextStop.ID] {
			break
		}
		result.Events = append(result.Events, ProximityArrival{StopID: result.NextStop.ID, DistanceMeters: d})
	case d < thresholds.ApproachMeters:
		result.Events = append(result.Events, ProximityApproach{StopID: result.NextStop.ID, DistanceMeters: d})
	}

	return result
}

// NextStop returns the earliest unvisited stop, or nil
func NextStop(stops []Stop) *Stop {
	for i := range stops {
		if !stops[i].Visited {
			return &stops[i]
		}
	}
	return nil
}
