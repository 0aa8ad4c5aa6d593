package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpup/trailguide/server/internal/lib/geo"
	"github.com/dpup/trailguide/server/internal/lib/routing"
)

// MockFetcher is a mock implementation of routing.RouteFetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchRoute(ctx context.Context, coordinates []geo.Point, mode routing.Mode) (*routing.RouteLeg, error) {
	args := m.Called(ctx, coordinates, mode)
	leg, _ := args.Get(0).(*routing.RouteLeg)
	return leg, args.Error(1)
}

var coords = []geo.Point{
	{Latitude: 33.4996, Longitude: 126.5312},
	{Latitude: 33.4230, Longitude: 126.5510},
}

func testLeg() *routing.RouteLeg {
	return &routing.RouteLeg{
		Features: []routing.Feature{{
			Mode:     routing.ModeCar,
			Geometry: geo.Polyline{Points: append([]geo.Point(nil), coords...)},
		}},
		DistanceKm:  9.3,
		DurationMin: 14.2,
	}
}

func TestRouteKey(t *testing.T) {
	assert.Equal(t, "route:car:33.499600,126.531200:33.423000,126.551000", RouteKey(coords, routing.ModeCar))
	assert.NotEqual(t, RouteKey(coords, routing.ModeCar), RouteKey(coords, routing.ModeFoot))

	reversed := []geo.Point{coords[1], coords[0]}
	assert.NotEqual(t, RouteKey(coords, routing.ModeCar), RouteKey(reversed, routing.ModeCar))
}

func TestCachedFetcher_HitAfterMiss(t *testing.T) {
	next := &MockFetcher{}
	next.On("FetchRoute", mock.Anything, coords, routing.ModeCar).Return(testLeg(), nil).Once()

	fetcher := NewCachedFetcher(next, NewCache(), time.Minute)

	first, err := fetcher.FetchRoute(context.Background(), coords, routing.ModeCar)
	require.NoError(t, err)
	second, err := fetcher.FetchRoute(context.Background(), coords, routing.ModeCar)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	next.AssertNumberOfCalls(t, "FetchRoute", 1)

	// Callers own their copy
	second.Features[0].Geometry.Points[0].Latitude = 0
	third, err := fetcher.FetchRoute(context.Background(), coords, routing.ModeCar)
	require.NoError(t, err)
	assert.Equal(t, 33.4996, third.Features[0].Geometry.Points[0].Latitude)
}

func TestCachedFetcher_FailuresNotCached(t *testing.T) {
	next := &MockFetcher{}
	next.On("FetchRoute", mock.Anything, coords, routing.ModeFoot).
		Return(nil, routing.Errorf(routing.TransportError, "fetch_route", "connection reset")).Once()
	next.On("FetchRoute", mock.Anything, coords, routing.ModeFoot).Return(testLeg(), nil).Once()

	fetcher := NewCachedFetcher(next, NewCache(), time.Minute)

	_, err := fetcher.FetchRoute(context.Background(), coords, routing.ModeFoot)
	assert.Equal(t, routing.TransportError, routing.KindOf(err))

	leg, err := fetcher.FetchRoute(context.Background(), coords, routing.ModeFoot)
	require.NoError(t, err)
	assert.Equal(t, 9.3, leg.DistanceKm)
	next.AssertExpectations(t)
}

func TestCachedFetcher_Expiry(t *testing.T) {
	c, clock := newTestCache()
	next := &MockFetcher{}
	next.On("FetchRoute", mock.Anything, coords, routing.ModeCar).Return(testLeg(), nil).Twice()

	fetcher := NewCachedFetcher(next, c, time.Minute)

	_, err := fetcher.FetchRoute(context.Background(), coords, routing.ModeCar)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)
	_, err = fetcher.FetchRoute(context.Background(), coords, routing.ModeCar)
	require.NoError(t, err)

	next.AssertExpectations(t)
}

func TestCachedFetcher_DisabledPassesThrough(t *testing.T) {
	next := &MockFetcher{}
	next.On("FetchRoute", mock.Anything, coords, routing.ModeCar).Return(testLeg(), nil)

	fetcher := NewCachedFetcher(next, NewCache(), 0)
	for i := 0; i < 3; i++ {
		_, err := fetcher.FetchRoute(context.Background(), coords, routing.ModeCar)
		require.NoError(t, err)
	}
	next.AssertNumberOfCalls(t, "FetchRoute", 3)
}
