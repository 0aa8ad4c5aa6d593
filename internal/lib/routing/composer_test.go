package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpup/trailguide/server/internal/lib/accesspoint"
	"github.com/dpup/trailguide/server/internal/lib/geo"
)

// MockFetcher is a mock implementation of RouteFetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchRoute(ctx context.Context, coordinates []geo.Point, mode Mode) (*RouteLeg, error) {
	args := m.Called(ctx, coordinates, mode)
	leg, _ := args.Get(0).(*RouteLeg)
	return leg, args.Error(1)
}

// MockLocator is a mock implementation of AccessPointFinder
type MockLocator struct {
	mock.Mock
}

func (m *MockLocator) FindNearest(coordinate geo.Point, maxDistanceKm float64) *accesspoint.Match {
	args := m.Called(coordinate, maxDistanceKm)
	match, _ := args.Get(0).(*accesspoint.Match)
	return match
}

var (
	hotel    = geo.Point{Latitude: 33.4996, Longitude: 126.5312}
	peak     = geo.Point{Latitude: 33.3617, Longitude: 126.5292}
	falls    = geo.Point{Latitude: 33.2460, Longitude: 126.5540}
	trailEnd = accesspoint.AccessPoint{
		ID:         1,
		Name:       "Gwaneumsa Trailhead",
		Category:   accesspoint.CategoryTrailhead,
		Coordinate: geo.Point{Latitude: 33.4230, Longitude: 126.5510},
	}
)

func leg(mode Mode, km, min float64, points ...geo.Point) *RouteLeg {
	return &RouteLeg{
		Features:    []Feature{{Mode: mode, Geometry: geo.Polyline{Points: points}}},
		DistanceKm:  km,
		DurationMin: min,
	}
}

func TestCalculateFullItineraryRoute_RoundTrip(t *testing.T) {
	fetcher := &MockFetcher{}
	expected := leg(ModeCar, 30, 40, hotel, peak, hotel)
	fetcher.On("FetchRoute", mock.Anything, []geo.Point{hotel, peak, hotel}, ModeCar).Return(expected, nil).Once()

	composer := NewComposer(fetcher, nil)
	got, err := composer.CalculateFullItineraryRoute(context.Background(), []geo.Point{hotel, peak}, ModeCar, true)

	require.NoError(t, err)
	assert.Same(t, expected, got)
	fetcher.AssertExpectations(t)
	fetcher.AssertNumberOfCalls(t, "FetchRoute", 1)
}

func TestCalculateFullItineraryRoute_OneWay(t *testing.T) {
	fetcher := &MockFetcher{}
	fetcher.On("FetchRoute", mock.Anything, []geo.Point{hotel, peak, falls}, ModeFoot).Return(leg(ModeFoot, 5, 80), nil).Once()

	composer := NewComposer(fetcher, nil)
	waypoints := []geo.Point{hotel, peak, falls}
	_, err := composer.CalculateFullItineraryRoute(context.Background(), waypoints, ModeFoot, false)

	require.NoError(t, err)
	assert.Len(t, waypoints, 3, "input slice must not be modified")
	fetcher.AssertExpectations(t)
}

func TestCalculateFullItineraryRoute_InvalidInput(t *testing.T) {
	fetcher := &MockFetcher{}
	composer := NewComposer(fetcher, nil)

	tests := []struct {
		name      string
		waypoints []geo.Point
		mode      Mode
		roundTrip bool
	}{
		{"single waypoint round trip", []geo.Point{hotel}, ModeCar, true},
		{"empty", nil, ModeCar, false},
		{"bad coordinate", []geo.Point{hotel, {Latitude: 91}}, ModeCar, false},
		{"bad mode", []geo.Point{hotel, peak}, Mode("bike"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := composer.CalculateFullItineraryRoute(context.Background(), tt.waypoints, tt.mode, tt.roundTrip)
			assert.Equal(t, InvalidInput, KindOf(err))
		})
	}
	fetcher.AssertNotCalled(t, "FetchRoute", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetDistanceAndDuration(t *testing.T) {
	fetcher := &MockFetcher{}
	fetcher.On("FetchRoute", mock.Anything, []geo.Point{hotel, peak}, ModeCar).Return(leg(ModeCar, 18.4, 27.5), nil)

	composer := NewComposer(fetcher, nil)
	estimate, err := composer.GetDistanceAndDuration(context.Background(), hotel, peak, ModeCar)

	require.NoError(t, err)
	assert.Equal(t, &Estimate{DistanceKm: 18.4, DurationMin: 27.5}, estimate)

	_, err = composer.GetDistanceAndDuration(context.Background(), hotel, geo.Point{Longitude: 200}, ModeCar)
	assert.Equal(t, InvalidInput, KindOf(err))
	fetcher.AssertNumberOfCalls(t, "FetchRoute", 1)
}

func TestCalculateHybridLeg_Transfer(t *testing.T) {
	for _, concurrent := range []bool{true, false} {
		fetcher := &MockFetcher{}
		locator := &MockLocator{}
		locator.On("FindNearest", hotel, 15.0).Return(&accesspoint.Match{AccessPoint: trailEnd, DistanceKm: 8.6})
		fetcher.On("FetchRoute", mock.Anything, []geo.Point{hotel, trailEnd.Coordinate}, ModeCar).
			Return(leg(ModeCar, 10.0, 15.0, hotel, trailEnd.Coordinate), nil)
		fetcher.On("FetchRoute", mock.Anything, []geo.Point{trailEnd.Coordinate, peak}, ModeFoot).
			Return(leg(ModeFoot, 2.0, 30.0, trailEnd.Coordinate, peak), nil)

		composer := NewComposer(fetcher, locator, WithConcurrentSubLegs(concurrent))
		hybrid, err := composer.CalculateHybridLeg(context.Background(), HybridRequest{
			Origin:                   hotel,
			Destination:              peak,
			DestinationCategory:      "mountain",
			MaxAccessPointDistanceKm: 15,
		})

		require.NoError(t, err, "concurrent=%v", concurrent)
		assert.Equal(t, 12.0, hybrid.DistanceKm)
		assert.Equal(t, 45.0, hybrid.DurationMin)
		require.Len(t, hybrid.Features, 2)
		assert.Equal(t, ModeCar, hybrid.Features[0].Mode)
		assert.Equal(t, ModeFoot, hybrid.Features[1].Mode)
		assert.Equal(t, []Mode{ModeCar, ModeFoot}, hybrid.Modes())
		require.NotNil(t, hybrid.UsedAccessPoint)
		assert.Equal(t, trailEnd.ID, hybrid.UsedAccessPoint.ID)

		fetcher.AssertExpectations(t)
		locator.AssertExpectations(t)
	}
}

func TestCalculateHybridLeg_DirectNeverLocates(t *testing.T) {
	fetcher := &MockFetcher{}
	locator := &MockLocator{}
	fetcher.On("FetchRoute", mock.Anything, []geo.Point{hotel, falls}, ModeCar).Return(leg(ModeCar, 40, 50, hotel, falls), nil)

	composer := NewComposer(fetcher, locator)
	hybrid, err := composer.CalculateHybridLeg(context.Background(), HybridRequest{
		Origin:              hotel,
		Destination:         falls,
		DestinationCategory: "waterfall",
		DestinationTags:     map[string]string{"access": "road"},
	})

	require.NoError(t, err)
	assert.Nil(t, hybrid.UsedAccessPoint)
	assert.Equal(t, 40.0, hybrid.DistanceKm)
	locator.AssertNotCalled(t, "FindNearest", mock.Anything, mock.Anything)
}

func TestCalculateHybridLeg_NoAccessPoint(t *testing.T) {
	fetcher := &MockFetcher{}
	locator := &MockLocator{}
	locator.On("FindNearest", hotel, 2.0).Return(nil)

	composer := NewComposer(fetcher, locator)
	hybrid, err := composer.CalculateHybridLeg(context.Background(), HybridRequest{
		Origin:                   hotel,
		Destination:              peak,
		DestinationCategory:      "mountain",
		MaxAccessPointDistanceKm: 2,
	})

	assert.Nil(t, hybrid)
	assert.Equal(t, NoAccessPointAvailable, KindOf(err))
	fetcher.AssertNotCalled(t, "FetchRoute", mock.Anything, mock.Anything, mock.Anything)
}

func TestCalculateHybridLeg_NilLocator(t *testing.T) {
	composer := NewComposer(&MockFetcher{}, nil)
	_, err := composer.CalculateHybridLeg(context.Background(), HybridRequest{
		Origin:              hotel,
		Destination:         peak,
		DestinationCategory: "mountain",
	})
	assert.Equal(t, NoAccessPointAvailable, KindOf(err))
}

func TestCalculateHybridLeg_SubLegFailurePropagates(t *testing.T) {
	for _, concurrent := range []bool{true, false} {
		fetcher := &MockFetcher{}
		locator := &MockLocator{}
		locator.On("FindNearest", hotel, 15.0).Return(&accesspoint.Match{AccessPoint: trailEnd})
		fetcher.On("FetchRoute", mock.Anything, []geo.Point{hotel, trailEnd.Coordinate}, ModeCar).
			Return(leg(ModeCar, 10, 15), nil).Maybe()
		fetcher.On("FetchRoute", mock.Anything, []geo.Point{trailEnd.Coordinate, peak}, ModeFoot).
			Return(nil, Errorf(EngineRejected, "fetch_route", "NoRoute"))

		composer := NewComposer(fetcher, locator, WithConcurrentSubLegs(concurrent))
		hybrid, err := composer.CalculateHybridLeg(context.Background(), HybridRequest{
			Origin:                   hotel,
			Destination:              peak,
			DestinationCategory:      "mountain",
			MaxAccessPointDistanceKm: 15,
		})

		assert.Nil(t, hybrid, "no partial hybrid result, concurrent=%v", concurrent)
		assert.Equal(t, EngineRejected, KindOf(err))
	}
}

// orderedFetcher finishes the car leg after the foot leg to check assembly order
type orderedFetcher struct {
	mu    sync.Mutex
	order []Mode
}

func (f *orderedFetcher) FetchRoute(ctx context.Context, coordinates []geo.Point, mode Mode) (*RouteLeg, error) {
	if mode == ModeCar {
		time.Sleep(20 * time.Millisecond)
	}
	f.mu.Lock()
	f.order = append(f.order, mode)
	f.mu.Unlock()
	return leg(mode, 1, 1, coordinates...), nil
}

func TestCalculateHybridLeg_OrderIndependentOfCompletion(t *testing.T) {
	fetcher := &orderedFetcher{}
	locator := &MockLocator{}
	locator.On("FindNearest", hotel, 0.0).Return(&accesspoint.Match{AccessPoint: trailEnd})

	composer := NewComposer(fetcher, locator)
	hybrid, err := composer.CalculateHybridLeg(context.Background(), HybridRequest{
		Origin:              hotel,
		Destination:         peak,
		DestinationCategory: "mountain",
	})

	require.NoError(t, err)
	assert.Equal(t, []Mode{ModeFoot, ModeCar}, fetcher.order, "foot leg completes first")
	assert.Equal(t, ModeCar, hybrid.Features[0].Mode)
	assert.Equal(t, hotel, hybrid.Features[0].Geometry.Points[0])
	assert.Equal(t, ModeFoot, hybrid.Features[1].Mode)
}

func TestCalculateHybridLeg_CustomPolicy(t *testing.T) {
	fetcher := &MockFetcher{}
	fetcher.On("FetchRoute", mock.Anything, []geo.Point{hotel, peak}, ModeCar).Return(leg(ModeCar, 20, 30), nil)

	composer := NewComposer(fetcher, nil, WithPolicy(func(string, map[string]string) bool { return true }))
	hybrid, err := composer.CalculateHybridLeg(context.Background(), HybridRequest{
		Origin:              hotel,
		Destination:         peak,
		DestinationCategory: "mountain",
	})

	require.NoError(t, err)
	assert.Nil(t, hybrid.UsedAccessPoint)
}

func TestCalculateReroute(t *testing.T) {
	fetcher := &MockFetcher{}
	current := geo.Point{Latitude: 33.45, Longitude: 126.54}
	fetcher.On("FetchRoute", mock.Anything, []geo.Point{current, peak, falls}, ModeFoot).Return(leg(ModeFoot, 9, 160), nil)

	composer := NewComposer(fetcher, nil)
	got, err := composer.CalculateReroute(context.Background(), current, []geo.Point{peak, falls}, ModeFoot)

	require.NoError(t, err)
	assert.Equal(t, 9.0, got.DistanceKm)

	_, err = composer.CalculateReroute(context.Background(), current, nil, ModeFoot)
	assert.Equal(t, InvalidInput, KindOf(err))
	fetcher.AssertNumberOfCalls(t, "FetchRoute", 1)
}

func TestRouteError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewError(TransportError, "fetch_route", cause)
	err.Mode = ModeFoot

	assert.True(t, err.Retryable())
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "fetch_route (foot): transport_error: dial tcp: connection refused", err.Error())

	assert.False(t, Errorf(EngineRejected, "fetch_route", "NoRoute").Retryable())
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}
