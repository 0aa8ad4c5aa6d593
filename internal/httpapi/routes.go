// Package httpapi is the JSON-over-HTTP surface for routing and navigation
package httpapi

import (
	"net/http"
	"time"

	"github.com/dpup/prefab/logging"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dpup/trailguide/server/internal/services"
)

// Handler serves the /v1 API
type Handler struct {
	routing     *services.RoutingService
	navigation  *services.NavigationService
	environment string
	version     string
	handler     http.Handler
}

// NewHandler creates a Handler backed by the routing and navigation services
func NewHandler(routing *services.RoutingService, navigation *services.NavigationService, environment, version string) *Handler {
	h := &Handler{
		routing:     routing,
		navigation:  navigation,
		environment: environment,
		version:     version,
	}
	h.handler = h.routes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) routes() http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", h.healthcheckHandler)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	router.HandlerFunc(http.MethodPost, "/v1/routes/itinerary", h.itineraryHandler)
	router.HandlerFunc(http.MethodPost, "/v1/routes/estimate", h.estimateHandler)
	router.HandlerFunc(http.MethodPost, "/v1/routes/hybrid", h.hybridHandler)
	router.HandlerFunc(http.MethodPost, "/v1/routes/reroute", h.rerouteHandler)

	router.HandlerFunc(http.MethodGet, "/v1/access-points", h.accessPointsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/access-points/nearest", h.nearestAccessPointHandler)

	router.HandlerFunc(http.MethodPost, "/v1/sessions", h.startSessionHandler)
	router.HandlerFunc(http.MethodGet, "/v1/sessions/:id", h.sessionHandler)
	router.HandlerFunc(http.MethodPost, "/v1/sessions/:id/locations", h.updateLocationHandler)
	router.HandlerFunc(http.MethodDelete, "/v1/sessions/:id", h.endSessionHandler)

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorBody(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path, false)
	})

	return sentryMiddleware(withLogger(router))
}

// withLogger makes sure every request context carries a prefab logger
func withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(logging.EnsureLogger(r.Context())))
	})
}

func sentryMiddleware(next http.Handler) http.Handler {
	sentryHandler := sentryhttp.New(sentryhttp.Options{
		Repanic:         true,
		WaitForDelivery: true,
		Timeout:         2 * time.Second,
	})
	return sentryHandler.Handle(next)
}
