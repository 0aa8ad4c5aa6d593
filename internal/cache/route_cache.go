package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/trailguide/server/internal/lib/geo"
	"github.com/dpup/trailguide/server/internal/lib/routing"
	"github.com/dpup/trailguide/server/internal/metrics"
)

const routeSource = "route_engine"

// RouteKey identifies a routing request by mode and coordinates rounded to 6 decimals
func RouteKey(coordinates []geo.Point, mode routing.Mode) string {
	var b strings.Builder
	b.WriteString("route:")
	b.WriteString(string(mode))
	for _, p := range coordinates {
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(p.Latitude, 'f', 6, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Longitude, 'f', 6, 64))
	}
	return b.String()
}

// CachedFetcher decorates a RouteFetcher with a TTL cache. Only successful
// legs are cached; failures always reach the caller and are retried next time.
type CachedFetcher struct {
	next  routing.RouteFetcher
	cache *Cache
	ttl   time.Duration
}

// NewCachedFetcher wraps next. A non-positive ttl disables caching.
func NewCachedFetcher(next routing.RouteFetcher, cache *Cache, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{next: next, cache: cache, ttl: ttl}
}

// FetchRoute returns a cached leg when a fresh one exists, otherwise delegates
func (f *CachedFetcher) FetchRoute(ctx context.Context, coordinates []geo.Point, mode routing.Mode) (*routing.RouteLeg, error) {
	if f.ttl <= 0 {
		return f.next.FetchRoute(ctx, coordinates, mode)
	}

	ctx = logging.EnsureLogger(ctx)
	key := RouteKey(coordinates, mode)

	var cached routing.RouteLeg
	found, err := f.cache.Get(key, &cached)
	if err != nil {
		logging.Warnw(ctx, "Route cache: failed to read entry", "key", key, "error", err)
	}
	if found {
		metrics.RouteCacheLookups.WithLabelValues("hit").Inc()
		return &cached, nil
	}
	metrics.RouteCacheLookups.WithLabelValues("miss").Inc()

	leg, err := f.next.FetchRoute(ctx, coordinates, mode)
	if err != nil {
		return nil, err
	}

	if err := f.cache.Set(key, leg, f.ttl, routeSource); err != nil {
		logging.Warnw(ctx, "Route cache: failed to store entry", "key", key, "error", err)
	}
	return leg, nil
}
