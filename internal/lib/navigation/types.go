package navigation

import (
	"fmt"

	"github.com/dpup/trailguide/server/internal/lib/geo"
)

// Stop is one entry of an ordered itinerary. Visited is owned by the caller.
type Stop struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Coordinate geo.Point `json:"coordinate"`
	Visited    bool      `json:"visited"`
}

// Thresholds are the distance bands, in meters, used by the evaluator
type Thresholds struct {
	OffRouteMeters float64 `json:"off_route_m" koanf:"off_route_m" yaml:"off_route_m"`
	ApproachMeters float64 `json:"approach_m" koanf:"approach_m" yaml:"approach_m"`
	ArrivalMeters  float64 `json:"arrival_m" koanf:"arrival_m" yaml:"arrival_m"`
}

// DefaultThresholds returns 50 m off route, 200 m approach, 30 m arrival
func DefaultThresholds() Thresholds {
	return Thresholds{OffRouteMeters: 50, ApproachMeters: 200, ArrivalMeters: 30}
}

// Validate checks that every band is positive and arrival sits inside approach
func (t Thresholds) Validate() error {
	if t.OffRouteMeters <= 0 || t.ApproachMeters <= 0 || t.ArrivalMeters <= 0 {
		return fmt.Errorf("thresholds must be positive: off_route=%v approach=%v arrival=%v",
			t.OffRouteMeters, t.ApproachMeters, t.ArrivalMeters)
	}
	if t.ArrivalMeters >= t.ApproachMeters {
		return fmt.Errorf("arrival threshold (%v m) must be less than approach threshold (%v m)",
			t.ArrivalMeters, t.ApproachMeters)
	}
	return nil
}

// ActiveRoute is the geometry currently being navigated
type ActiveRoute struct {
	Features []geo.Polyline `json:"features"`
}

// EventType names a navigation event variant
type EventType string

const (
	EventRerouteRequested  EventType = "reroute_requested"
	EventProximityApproach EventType = "proximity_approach"
	EventProximityArrival  EventType = "proximity_arrival"
)

// ReasonOffRoute is the only reroute reason currently emitted
const ReasonOffRoute = "off_route"

// Event is a transient navigation signal. The concrete types are
// RerouteRequested, ProximityApproach and ProximityArrival.
type Event interface {
	Type() EventType
	isEvent()
}

// RerouteRequested signals that the traveler is away from the active route.
// DistanceToRouteMeters is -1 when the distance could not be measured.
type RerouteRequested struct {
	Reason                string  `json:"reason"`
	DistanceToRouteMeters float64 `json:"distance_to_route_m"`
}

// ProximityApproach signals entry into the approach band of the next stop
type ProximityApproach struct {
	StopID         string  `json:"stop_id"`
	DistanceMeters float64 `json:"distance_m"`
}

// ProximityArrival signals entry into the arrival band of the next stop
type ProximityArrival struct {
	StopID         string  `json:"stop_id"`
	DistanceMeters float64 `json:"distance_m"`
}

func (RerouteRequested) Type() EventType  { return EventRerouteRequested }
func (ProximityApproach) Type() EventType { return EventProximityApproach }
func (ProximityArrival) Type() EventType  { return EventProximityArrival }

func (RerouteRequested) isEvent()  {}
func (ProximityApproach) isEvent() {}
func (ProximityArrival) isEvent()  {}

// Evaluation is the result of one location update
type Evaluation struct {
	Events []Event `json:"-"`
	// NextStop is nil once every stop has been visited
	NextStop *Stop `json:"next_stop"`
	// OffRouteDistance is -1 when the route has no measurable geometry
	OffRouteDistance float64 `json:"off_route_distance_m"`
	// NextStopDistance is -1 when there is no next stop
	NextStopDistance float64 `json:"next_stop_distance_m"`
}

// HasEvent reports whether the evaluation contains an event of type t
func (e Evaluation) HasEvent(t EventType) bool {
	for _, ev := range e.Events {
		if ev.Type() == t {
			return true
		}
	}
	return false
}
