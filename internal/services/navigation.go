package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/google/uuid"

	"github.com/dpup/trailguide/server/internal/config"
	"github.com/dpup/trailguide/server/internal/events"
	"github.com/dpup/trailguide/server/internal/lib/geo"
	"github.com/dpup/trailguide/server/internal/lib/navigation"
	"github.com/dpup/trailguide/server/internal/lib/routing"
	"github.com/dpup/trailguide/server/internal/metrics"
)

var (
	// ErrSessionNotFound is returned for unknown or ended session ids
	ErrSessionNotFound = errors.New("navigation session not found")
	// ErrSessionExists is returned when starting a session with an id in use
	ErrSessionExists = errors.New("navigation session already exists")
)

// Rerouter recomputes guidance after a deviation
type Rerouter interface {
	CalculateReroute(ctx context.Context, current geo.Point, remaining []geo.Point, mode routing.Mode) (*routing.RouteLeg, error)
}

// NavigationService holds the caller-owned state the evaluator needs: stop
// progress, the active route and the delivered-arrival set. Updates for one
// session are serialized; different sessions proceed in parallel.
type NavigationService struct {
	evaluator *navigation.Evaluator
	rerouter  Rerouter
	publisher events.Publisher
	config    config.NavigationConfig
	geoUtils  geo.GeoUtils

	mutex    sync.Mutex
	sessions map[string]*session
}

type session struct {
	mutex     sync.Mutex
	id        string
	mode      routing.Mode
	stops     []navigation.Stop
	route     navigation.ActiveRoute
	triggered map[string]bool
	updates   int
	createdAt time.Time
	ended     bool
}

// StartSessionRequest describes a new navigation session. An empty ID is
// replaced by a generated one.
type StartSessionRequest struct {
	ID    string
	Mode  routing.Mode
	Stops []navigation.Stop
	Route navigation.ActiveRoute
}

// SessionSnapshot is a copy of a session's state
type SessionSnapshot struct {
	ID        string                 `json:"id"`
	Mode      routing.Mode           `json:"mode"`
	Stops     []navigation.Stop      `json:"stops"`
	Route     navigation.ActiveRoute `json:"route"`
	Triggered []string               `json:"triggered_stop_ids"`
	Updates   int                    `json:"updates"`
	CreatedAt time.Time              `json:"created_at"`
}

// UpdateResult is the outcome of one location update
type UpdateResult struct {
	navigation.Evaluation
	// AdvancedStop is the stop marked visited by this update, if any
	AdvancedStop *navigation.Stop
	// Reroute is the replacement route when an automatic reroute succeeded
	Reroute *routing.RouteLeg
	// RerouteError is set when an automatic reroute was attempted and failed.
	// The events are still delivered.
	RerouteError error
}

// NewNavigationService creates a NavigationService. rerouter and publisher may be nil.
func NewNavigationService(evaluator *navigation.Evaluator, rerouter Rerouter, publisher events.Publisher, cfg config.NavigationConfig) *NavigationService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &NavigationService{
		evaluator: evaluator,
		rerouter:  rerouter,
		publisher: publisher,
		config:    cfg,
		geoUtils:  geo.NewGeoUtils(),
		sessions:  make(map[string]*session),
	}
}

// StartSession registers a session and returns its initial snapshot
func (s *NavigationService) StartSession(ctx context.Context, req StartSessionRequest) (*SessionSnapshot, error) {
	ctx = logging.EnsureLogger(ctx)
	if !req.Mode.Valid() {
		return nil, routing.Errorf(routing.InvalidInput, "start_session", "unsupported travel mode %q", req.Mode)
	}
	if len(req.Stops) == 0 {
		return nil, routing.Errorf(routing.InvalidInput, "start_session", "at least one stop required")
	}
	seen := make(map[string]bool, len(req.Stops))
	for i, stop := range req.Stops {
		if stop.ID == "" {
			return nil, routing.Errorf(routing.InvalidInput, "start_session", "stop %d has no id", i)
		}
		if seen[stop.ID] {
			return nil, routing.Errorf(routing.InvalidInput, "start_session", "duplicate stop id %q", stop.ID)
		}
		seen[stop.ID] = true
		if !geo.IsValid(stop.Coordinate) {
			return nil, routing.NewError(routing.InvalidInput, "start_session", fmt.Errorf("stop %q: %w", stop.ID, geo.ErrInvalidCoordinate))
		}
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	sess := &session{
		id:        id,
		mode:      req.Mode,
		stops:     append([]navigation.Stop(nil), req.Stops...),
		route:     copyRoute(req.Route),
		triggered: make(map[string]bool),
		createdAt: time.Now(),
	}

	s.mutex.Lock()
	if _, exists := s.sessions[id]; exists {
		s.mutex.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	s.sessions[id] = sess
	s.mutex.Unlock()

	metrics.ActiveSessions.Inc()
	logging.Infow(ctx, "Navigation session started", "session_id", id, "mode", req.Mode, "stops", len(req.Stops))

	return sess.snapshot(), nil
}

// UpdateLocation evaluates one position report for a session
func (s *NavigationService) UpdateLocation(ctx context.Context, id string, location geo.Point) (*UpdateResult, error) {
	ctx = logging.EnsureLogger(ctx)
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.mutex.Lock()
	defer sess.mutex.Unlock()

	// The session may have ended while this update waited for the lock
	if sess.ended {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.updates++

	evaluation := s.evaluator.Evaluate(location, sess.route, sess.stops, s.config.Thresholds, sess.triggered)
	result := &UpdateResult{Evaluation: evaluation}

	for _, ev := range evaluation.Events {
		metrics.NavigationEvents.WithLabelValues(string(ev.Type())).Inc()

		arrival, ok := ev.(navigation.ProximityArrival)
		if !ok {
			continue
		}
		sess.triggered[arrival.StopID] = true
		if s.config.AutoAdvance {
			if stop := sess.markVisited(arrival.StopID); stop != nil {
				result.AdvancedStop = stop
				logging.Infow(ctx, "Navigation stop reached", "session_id", id, "stop_id", stop.ID)
			}
		}
	}

	// The evaluation saw the stop before it was marked visited
	if result.AdvancedStop != nil {
		s.refreshNextStop(sess, location, result)
	}

	if evaluation.HasEvent(navigation.EventRerouteRequested) {
		s.reroute(ctx, sess, location, result)
	}

	if err := s.publisher.Publish(ctx, id, location, evaluation.Events); err != nil {
		logging.Warnw(ctx, "Navigation events not published", "session_id", id, "events", len(evaluation.Events), "error", err)
	}

	return result, nil
}

// reroute replaces the session's route when automatic rerouting is enabled
func (s *NavigationService) reroute(ctx context.Context, sess *session, location geo.Point, result *UpdateResult) {
	if !s.config.AutoReroute || s.rerouter == nil || !geo.IsValid(location) {
		return
	}

	remaining := sess.remainingCoordinates()
	if len(remaining) == 0 {
		return
	}

	leg, err := s.rerouter.CalculateReroute(ctx, location, remaining, sess.mode)
	if err != nil {
		result.RerouteError = err
		logging.Warnw(ctx, "Navigation reroute failed", "session_id", sess.id, "retryable", routing.IsRetryable(err), "error", err)
		return
	}

	sess.route = navigation.ActiveRoute{Features: leg.Geometry()}
	result.Reroute = leg
	logging.Infow(ctx, "Navigation rerouted", "session_id", sess.id,
		"off_route_m", result.OffRouteDistance, "distance_km", leg.DistanceKm)
}

// refreshNextStop points the result at the first unvisited stop after an advance
func (s *NavigationService) refreshNextStop(sess *session, location geo.Point, result *UpdateResult) {
	result.NextStop = nil
	result.NextStopDistance = -1
	next := navigation.NextStop(sess.stops)
	if next == nil {
		return
	}
	stop := *next
	result.NextStop = &stop
	if !geo.IsValid(location) {
		return
	}
	if d, err := s.geoUtils.PointToPoint(location, result.NextStop.Coordinate); err == nil {
		result.NextStopDistance = d
	}
}

// Session returns a snapshot of a session
func (s *NavigationService) Session(id string) (*SessionSnapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mutex.Lock()
	defer sess.mutex.Unlock()
	return sess.snapshot(), nil
}

// EndSession discards a session
func (s *NavigationService) EndSession(ctx context.Context, id string) error {
	ctx = logging.EnsureLogger(ctx)
	s.mutex.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mutex.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sess.mutex.Lock()
	sess.ended = true
	updates := sess.updates
	sess.mutex.Unlock()

	metrics.ActiveSessions.Dec()
	logging.Infow(ctx, "Navigation session ended", "session_id", id, "updates", updates)
	return nil
}

// SessionCount returns the number of open sessions
func (s *NavigationService) SessionCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.sessions)
}

func (s *NavigationService) lookup(id string) (*session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

func (sess *session) markVisited(stopID string) *navigation.Stop {
	for i := range sess.stops {
		if sess.stops[i].ID == stopID && !sess.stops[i].Visited {
			sess.stops[i].Visited = true
			stop := sess.stops[i]
			return &stop
		}
	}
	return nil
}

func (sess *session) remainingCoordinates() []geo.Point {
	var coords []geo.Point
	for _, stop := range sess.stops {
		if !stop.Visited {
			coords = append(coords, stop.Coordinate)
		}
	}
	return coords
}

func (sess *session) snapshot() *SessionSnapshot {
	triggered := make([]string, 0, len(sess.triggered))
	for _, stop := range sess.stops {
		if sess.triggered[stop.ID] {
			triggered = append(triggered, stop.ID)
		}
	}
	return &SessionSnapshot{
		ID:        sess.id,
		Mode:      sess.mode,
		Stops:     append([]navigation.Stop(nil), sess.stops...),
		Route:     copyRoute(sess.route),
		Triggered: triggered,
		Updates:   sess.updates,
		CreatedAt: sess.createdAt,
	}
}

func copyRoute(route navigation.ActiveRoute) navigation.ActiveRoute {
	features := make([]geo.Polyline, len(route.Features))
	for i, f := range route.Features {
		features[i] = geo.Polyline{
			EncodedPolyline: f.EncodedPolyline,
			Points:          append([]geo.Point(nil), f.Points...),
		}
	}
	return navigation.ActiveRoute{Features: features}
}
