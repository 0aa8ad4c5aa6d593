package osrm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dpup/trailguide/server/internal/lib/geo"
	"github.com/dpup/trailguide/server/internal/lib/routing"
	"github.com/dpup/trailguide/server/internal/metrics"
)

const opFetchRoute = "fetch_route"

// HTTPDoer interface for HTTP client dependency injection
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Endpoints holds the route service base URL for each travel mode, e.g.
// "http://localhost:5000/route/v1/driving"
type Endpoints struct {
	Car  string
	Foot string
}

func (e Endpoints) forMode(mode routing.Mode) (string, bool) {
	switch mode {
	case routing.ModeCar:
		return e.Car, e.Car != ""
	case routing.ModeFoot:
		return e.Foot, e.Foot != ""
	}
	return "", false
}

// Client fetches single-mode routes from OSRM-compatible engines
type Client struct {
	endpoints  Endpoints
	httpClient HTTPDoer
	geoUtils   geo.GeoUtils
}

// NewClient creates a new OSRM client with a bounded request timeout
func NewClient(endpoints Endpoints, timeout time.Duration) *Client {
	return NewClientWithHTTPDoer(endpoints, &http.Client{Timeout: timeout})
}

// NewClientWithHTTPDoer creates a new OSRM client with a custom HTTP client (for testing)
func NewClientWithHTTPDoer(endpoints Endpoints, httpClient HTTPDoer) *Client {
	return &Client{
		endpoints:  endpoints,
		httpClient: httpClient,
		geoUtils:   geo.NewGeoUtils(),
	}
}

// FetchRoute requests one route through coordinates in order. Every failure is
// a *routing.RouteError.
func (c *Client) FetchRoute(ctx context.Context, coordinates []geo.Point, mode routing.Mode) (*routing.RouteLeg, error) {
	start := time.Now()
	leg, err := c.fetchRoute(ctx, coordinates, mode)

	outcome := "ok"
	if err != nil {
		outcome = string(routing.KindOf(err))
	}
	metrics.RouteFetches.WithLabelValues(string(mode), outcome).Inc()
	metrics.RouteFetchDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())

	return leg, err
}

func (c *Client) fetchRoute(ctx context.Context, coordinates []geo.Point, mode routing.Mode) (*routing.RouteLeg, error) {
	if len(coordinates) < 2 {
		return nil, routeErr(routing.InvalidInput, mode, fmt.Errorf("at least 2 coordinates required, got %d", len(coordinates)))
	}
	for i, p := range coordinates {
		if !geo.IsValid(p) {
			return nil, routeErr(routing.InvalidInput, mode, fmt.Errorf("coordinate %d: %w", i, geo.ErrInvalidCoordinate))
		}
	}
	endpoint, ok := c.endpoints.forMode(mode)
	if !ok {
		return nil, routeErr(routing.InvalidInput, mode, fmt.Errorf("no routing engine configured for mode %q", mode))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, buildURL(endpoint, coordinates), nil)
	if err != nil {
		return nil, routeErr(routing.InvalidInput, mode, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, routeErr(routing.Timeout, mode, err)
		}
		return nil, routeErr(routing.TransportError, mode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, routeErr(routing.TransportError, mode, fmt.Errorf("engine returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	// OSRM reports rejected requests (NoRoute, InvalidQuery...) with a 4xx
	// status and a JSON body carrying the code, so decode before judging status.
	var response routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		if isTimeout(ctx, err) {
			return nil, routeErr(routing.Timeout, mode, err)
		}
		return nil, routeErr(routing.MalformedResponse, mode, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err))
	}

	if response.Code != "Ok" {
		if response.Code == "" {
			return nil, routeErr(routing.MalformedResponse, mode, fmt.Errorf("response has no code (status %d)", resp.StatusCode))
		}
		return nil, routeErr(routing.EngineRejected, mode, fmt.Errorf("%s: %s", response.Code, response.Message))
	}
	if len(response.Routes) == 0 {
		return nil, routeErr(routing.EngineRejected, mode, errors.New("no routes in response"))
	}

	return c.processRoute(response.Routes[0], mode)
}

// processRoute converts the first OSRM route into a single-feature RouteLeg
func (c *Client) processRoute(route osrmRoute, mode routing.Mode) (*routing.RouteLeg, error) {
	points, err := c.geoUtils.DecodePolyline(route.Geometry)
	if err != nil {
		return nil, routeErr(routing.MalformedResponse, mode, err)
	}

	return &routing.RouteLeg{
		Features: []routing.Feature{{
			Mode: mode,
			Geometry: geo.Polyline{
				EncodedPolyline: route.Geometry,
				Points:          points,
			},
		}},
		DistanceKm:  routing.RoundOneDecimal(route.Distance / 1000),
		DurationMin: routing.RoundOneDecimal(route.Duration / 60),
	}, nil
}

// buildURL formats coordinates as lon,lat pairs joined by ';'
func buildURL(endpoint string, coordinates []geo.Point) string {
	parts := make([]string, len(coordinates))
	for i, p := range coordinates {
		parts[i] = strconv.FormatFloat(p.Longitude, 'f', 6, 64) + "," + strconv.FormatFloat(p.Latitude, 'f', 6, 64)
	}
	return strings.TrimRight(endpoint, "/") + "/" + strings.Join(parts, ";") +
		"?overview=full&geometries=polyline&steps=false"
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func routeErr(kind routing.ErrorKind, mode routing.Mode, err error) *routing.RouteError {
	e := routing.NewError(kind, opFetchRoute, err)
	e.Mode = mode
	return e
}

// routeResponse represents the OSRM route service response structure
type routeResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message,omitempty"`
	Routes  []osrmRoute `json:"routes"`
}

// osrmRoute is one route alternative; distance in meters, duration in seconds
type osrmRoute struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Geometry string  `json:"geometry"`
}
