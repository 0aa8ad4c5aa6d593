package routing

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dpup/trailguide/server/internal/lib/access"
	"github.com/dpup/trailguide/server/internal/lib/accesspoint"
	"github.com/dpup/trailguide/server/internal/lib/geo"
)

// Composer builds single-mode, hybrid, and reroute legs on top of a RouteFetcher
type Composer struct {
	fetcher    RouteFetcher
	locator    AccessPointFinder
	policy     AccessibilityPolicy
	concurrent bool
}

// ComposerOption customizes a Composer
type ComposerOption func(*Composer)

// WithPolicy replaces the default accessibility policy
func WithPolicy(policy AccessibilityPolicy) ComposerOption {
	return func(c *Composer) { c.policy = policy }
}

// WithConcurrentSubLegs controls whether the car and foot sub-legs of a hybrid
// leg are fetched concurrently
func WithConcurrentSubLegs(enabled bool) ComposerOption {
	return func(c *Composer) { c.concurrent = enabled }
}

// NewComposer creates a Composer. Sub-legs are fetched concurrently by default.
func NewComposer(fetcher RouteFetcher, locator AccessPointFinder, opts ...ComposerOption) *Composer {
	c := &Composer{
		fetcher:    fetcher,
		locator:    locator,
		policy:     access.IsDirectlyVehicleAccessible,
		concurrent: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CalculateFullItineraryRoute routes through every waypoint in one fetch. When
// roundTrip is set and there is more than one waypoint, the first waypoint is
// appended to close the loop.
func (c *Composer) CalculateFullItineraryRoute(ctx context.Context, waypoints []geo.Point, mode Mode, roundTrip bool) (*RouteLeg, error) {
	const op = "calculate_itinerary_route"

	if err := validateRequest(op, waypoints, mode); err != nil {
		return nil, err
	}

	coords := make([]geo.Point, len(waypoints), len(waypoints)+1)
	copy(coords, waypoints)
	if roundTrip && len(waypoints) > 1 {
		coords = append(coords, waypoints[0])
	}

	return c.fetcher.FetchRoute(ctx, coords, mode)
}

// GetDistanceAndDuration returns the distance/duration of a two-point route
func (c *Composer) GetDistanceAndDuration(ctx context.Context, origin, destination geo.Point, mode Mode) (*Estimate, error) {
	const op = "get_distance_and_duration"

	if err := validateRequest(op, []geo.Point{origin, destination}, mode); err != nil {
		return nil, err
	}

	leg, err := c.fetcher.FetchRoute(ctx, []geo.Point{origin, destination}, mode)
	if err != nil {
		return nil, err
	}
	return &Estimate{DistanceKm: leg.DistanceKm, DurationMin: leg.DurationMin}, nil
}

// HybridRequest describes a leg whose destination may require an access point transfer
type HybridRequest struct {
	Origin                   geo.Point
	Destination              geo.Point
	DestinationCategory      string
	DestinationTags          map[string]string
	MaxAccessPointDistanceKm float64
}

// CalculateHybridLeg drives straight to destinations the policy allows; otherwise
// it drives to the access point nearest the origin and walks from there. No
// partial result is ever returned: any sub-leg failure fails the whole leg.
func (c *Composer) CalculateHybridLeg(ctx context.Context, req HybridRequest) (*HybridLeg, error) {
	const op = "calculate_hybrid_leg"

	if err := validateRequest(op, []geo.Point{req.Origin, req.Destination}, ModeCar); err != nil {
		return nil, err
	}

	if c.policy(req.DestinationCategory, req.DestinationTags) {
		leg, err := c.fetcher.FetchRoute(ctx, []geo.Point{req.Origin, req.Destination}, ModeCar)
		if err != nil {
			return nil, err
		}
		return &HybridLeg{RouteLeg: *leg}, nil
	}

	if c.locator == nil {
		return nil, Errorf(NoAccessPointAvailable, op, "no access point catalog configured")
	}
	match := c.locator.FindNearest(req.Origin, req.MaxAccessPointDistanceKm)
	if match == nil {
		return nil, Errorf(NoAccessPointAvailable, op, "no access point within %.1f km of origin", req.MaxAccessPointDistanceKm)
	}
	point := match.AccessPoint

	carLeg, footLeg, err := c.fetchSubLegs(ctx, req.Origin, point.Coordinate, req.Destination)
	if err != nil {
		return nil, err
	}

	return composeHybrid(carLeg, footLeg, point), nil
}

// CalculateReroute routes from the current location through the remaining
// waypoints without closing the loop
func (c *Composer) CalculateReroute(ctx context.Context, currentLocation geo.Point, remainingWaypoints []geo.Point, mode Mode) (*RouteLeg, error) {
	const op = "calculate_reroute"

	coords := make([]geo.Point, 0, len(remainingWaypoints)+1)
	coords = append(coords, currentLocation)
	coords = append(coords, remainingWaypoints...)

	if err := validateRequest(op, coords, mode); err != nil {
		return nil, err
	}
	return c.fetcher.FetchRoute(ctx, coords, mode)
}

// fetchSubLegs returns the car leg origin->transfer and the foot leg transfer->destination.
// In concurrent mode the first failure cancels the sibling request.
func (c *Composer) fetchSubLegs(ctx context.Context, origin, transfer, destination geo.Point) (carLeg, footLeg *RouteLeg, err error) {
	if !c.concurrent {
		carLeg, err = c.fetcher.FetchRoute(ctx, []geo.Point{origin, transfer}, ModeCar)
		if err != nil {
			return nil, nil, err
		}
		footLeg, err = c.fetcher.FetchRoute(ctx, []geo.Point{transfer, destination}, ModeFoot)
		if err != nil {
			return nil, nil, err
		}
		return carLeg, footLeg, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		leg, err := c.fetcher.FetchRoute(gctx, []geo.Point{origin, transfer}, ModeCar)
		carLeg = leg
		return err
	})
	g.Go(func() error {
		leg, err := c.fetcher.FetchRoute(gctx, []geo.Point{transfer, destination}, ModeFoot)
		footLeg = leg
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return carLeg, footLeg, nil
}

// composeHybrid sums the sub-legs and concatenates features car first, retagging
// each feature with the sub-leg's mode
func composeHybrid(carLeg, footLeg *RouteLeg, point accesspoint.AccessPoint) *HybridLeg {
	features := make([]Feature, 0, len(carLeg.Features)+len(footLeg.Features))
	for _, f := range carLeg.Features {
		f.Mode = ModeCar
		features = append(features, f)
	}
	for _, f := range footLeg.Features {
		f.Mode = ModeFoot
		features = append(features, f)
	}

	used := point
	return &HybridLeg{
		RouteLeg: RouteLeg{
			Features:    features,
			DistanceKm:  RoundOneDecimal(carLeg.DistanceKm + footLeg.DistanceKm),
			DurationMin: RoundOneDecimal(carLeg.DurationMin + footLeg.DurationMin),
		},
		UsedAccessPoint: &used,
	}
}

func validateRequest(op string, coords []geo.Point, mode Mode) error {
	if !mode.Valid() {
		return Errorf(InvalidInput, op, "unsupported travel mode %q", mode)
	}
	if len(coords) < 2 {
		return Errorf(InvalidInput, op, "at least 2 coordinates required, got %d", len(coords))
	}
	for i, p := range coords {
		if !geo.IsValid(p) {
			return NewError(InvalidInput, op, fmt.Errorf("coordinate %d: %w", i, geo.ErrInvalidCoordinate))
		}
	}
	return nil
}
