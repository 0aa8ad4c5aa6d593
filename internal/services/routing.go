package services

import (
	"context"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/trailguide/server/internal/lib/accesspoint"
	"github.com/dpup/trailguide/server/internal/lib/geo"
	"github.com/dpup/trailguide/server/internal/lib/routing"
	"github.com/dpup/trailguide/server/internal/metrics"
	"github.com/dpup/trailguide/server/internal/report"
)

// RoutingService exposes the composer with a per-request deadline, logging,
// and error reporting
type RoutingService struct {
	composer *routing.Composer
	catalog  *accesspoint.Catalog
	reporter report.Reporter
	timeout  time.Duration
	// used when a hybrid request does not set a radius
	maxAccessPointDistanceKm float64
}

// NewRoutingService creates a new RoutingService
func NewRoutingService(composer *routing.Composer, catalog *accesspoint.Catalog, reporter report.Reporter, timeout time.Duration, maxAccessPointDistanceKm float64) *RoutingService {
	if reporter == nil {
		reporter = report.Nop{}
	}
	return &RoutingService{
		composer:                 composer,
		catalog:                  catalog,
		reporter:                 reporter,
		timeout:                  timeout,
		maxAccessPointDistanceKm: maxAccessPointDistanceKm,
	}
}

// Itinerary routes through every waypoint, optionally closing the loop
func (s *RoutingService) Itinerary(ctx context.Context, waypoints []geo.Point, mode routing.Mode, roundTrip bool) (*routing.RouteLeg, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	leg, err := s.composer.CalculateFullItineraryRoute(ctx, waypoints, mode, roundTrip)
	if err != nil {
		s.handleError(ctx, "itinerary", mode, err)
		return nil, err
	}
	logging.Infow(ctx, "Itinerary route computed",
		"mode", mode, "waypoints", len(waypoints), "round_trip", roundTrip,
		"distance_km", leg.DistanceKm, "duration_min", leg.DurationMin)
	return leg, nil
}

// Estimate returns distance and duration between two points
func (s *RoutingService) Estimate(ctx context.Context, origin, destination geo.Point, mode routing.Mode) (*routing.Estimate, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	estimate, err := s.composer.GetDistanceAndDuration(ctx, origin, destination, mode)
	if err != nil {
		s.handleError(ctx, "estimate", mode, err)
		return nil, err
	}
	return estimate, nil
}

// Hybrid computes a car leg, or a car and foot leg through an access point.
// A nil radius uses the configured default.
func (s *RoutingService) Hybrid(ctx context.Context, req routing.HybridRequest, maxAccessPointDistanceKm *float64) (*routing.HybridLeg, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req.MaxAccessPointDistanceKm = s.maxAccessPointDistanceKm
	if maxAccessPointDistanceKm != nil {
		req.MaxAccessPointDistanceKm = *maxAccessPointDistanceKm
	}

	leg, err := s.composer.CalculateHybridLeg(ctx, req)
	if err != nil {
		metrics.HybridLegs.WithLabelValues("failed").Inc()
		s.handleError(ctx, "hybrid", "", err)
		return nil, err
	}

	if leg.UsedAccessPoint == nil {
		metrics.HybridLegs.WithLabelValues("direct").Inc()
		logging.Infow(ctx, "Hybrid leg computed without transfer",
			"category", req.DestinationCategory, "distance_km", leg.DistanceKm)
	} else {
		metrics.HybridLegs.WithLabelValues("transfer").Inc()
		logging.Infow(ctx, "Hybrid leg computed via access point",
			"category", req.DestinationCategory, "access_point_id", leg.UsedAccessPoint.ID,
			"access_point", leg.UsedAccessPoint.Name, "distance_km", leg.DistanceKm,
			"duration_min", leg.DurationMin)
	}
	return leg, nil
}

// CalculateReroute routes from the current location through the remaining waypoints
func (s *RoutingService) CalculateReroute(ctx context.Context, current geo.Point, remaining []geo.Point, mode routing.Mode) (*routing.RouteLeg, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	leg, err := s.composer.CalculateReroute(ctx, current, remaining, mode)
	if err != nil {
		s.handleError(ctx, "reroute", mode, err)
		return nil, err
	}
	return leg, nil
}

// AccessPoints returns every catalog entry in id order
func (s *RoutingService) AccessPoints() []accesspoint.AccessPoint {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.All()
}

// NearestAccessPoint returns the closest transfer point within maxDistanceKm
// (non-positive for no limit), or nil
func (s *RoutingService) NearestAccessPoint(coordinate geo.Point, maxDistanceKm float64) *accesspoint.Match {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.FindNearest(coordinate, maxDistanceKm)
}

// withTimeout applies the request deadline and makes sure ctx carries a logger
func (s *RoutingService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = logging.EnsureLogger(ctx)
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// handleError logs every failure and reports the ones that indicate a bug or
// an engine contract change
func (s *RoutingService) handleError(ctx context.Context, op string, mode routing.Mode, err error) {
	kind := routing.KindOf(err)
	logging.Warnw(ctx, "Routing request failed",
		"op", op, "mode", mode, "kind", kind, "retryable", routing.IsRetryable(err), "error", err)

	if kind == routing.MalformedResponse || kind == "" {
		s.reporter.Report(err, report.Options{
			Tags:         map[string]string{"op": op, "kind": string(kind)},
			ExtraContext: map[string]interface{}{"mode": string(mode)},
		})
	}
}
