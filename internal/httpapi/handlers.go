package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dpup/prefab/logging"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/julienschmidt/httprouter"

	"github.com/dpup/trailguide/server/internal/export"
	"github.com/dpup/trailguide/server/internal/lib/accesspoint"
	"github.com/dpup/trailguide/server/internal/lib/geo"
	"github.com/dpup/trailguide/server/internal/lib/navigation"
	"github.com/dpup/trailguide/server/internal/lib/routing"
	"github.com/dpup/trailguide/server/internal/services"
)

// Request bodies are small coordinate lists
const maxBodyBytes = 1 << 20

// HealthStatus is the /v1/healthcheck response
type HealthStatus struct {
	Status         string `json:"status"`
	Environment    string `json:"environment"`
	Version        string `json:"version"`
	AccessPoints   int    `json:"access_points"`
	ActiveSessions int    `json:"active_sessions"`
	Ready          bool   `json:"ready"`
}

func (h *Handler) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:         "available",
		Environment:    h.environment,
		Version:        h.version,
		AccessPoints:   len(h.routing.AccessPoints()),
		ActiveSessions: h.navigation.SessionCount(),
		Ready:          true,
	}
	writeJSON(w, http.StatusOK, status)
}

type itineraryRequest struct {
	Waypoints []geo.Point  `json:"waypoints"`
	Mode      routing.Mode `json:"mode"`
	RoundTrip bool         `json:"round_trip"`
}

func (h *Handler) itineraryHandler(w http.ResponseWriter, r *http.Request) {
	var req itineraryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	leg, err := h.routing.Itinerary(r.Context(), req.Waypoints, req.Mode, req.RoundTrip)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leg)
}

type estimateRequest struct {
	Origin      *geo.Point   `json:"origin"`
	Destination *geo.Point   `json:"destination"`
	Mode        routing.Mode `json:"mode"`
}

func (h *Handler) estimateHandler(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if !decodeBody(w, r, &req) || !requirePoint(w, "origin", req.Origin) || !requirePoint(w, "destination", req.Destination) {
		return
	}
	estimate, err := h.routing.Estimate(r.Context(), *req.Origin, *req.Destination, req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

type hybridRequest struct {
	Origin                   *geo.Point        `json:"origin"`
	Destination              *geo.Point        `json:"destination"`
	Name                     string            `json:"name"`
	Category                 string            `json:"category"`
	Tags                     map[string]string `json:"tags"`
	MaxAccessPointDistanceKm *float64          `json:"max_access_point_distance_km"`
}

// hybridHandler returns JSON by default, or a map document with ?format=kml
// or ?format=geojson
func (h *Handler) hybridHandler(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	switch format {
	case "", "json", "kml", "geojson":
	default:
		writeErrorBody(w, http.StatusBadRequest, string(routing.InvalidInput), fmt.Sprintf("unsupported format %q", format), false)
		return
	}

	var req hybridRequest
	if !decodeBody(w, r, &req) || !requirePoint(w, "origin", req.Origin) || !requirePoint(w, "destination", req.Destination) {
		return
	}

	leg, err := h.routing.Hybrid(r.Context(), routing.HybridRequest{
		Origin:              *req.Origin,
		Destination:         *req.Destination,
		DestinationCategory: req.Category,
		DestinationTags:     req.Tags,
	}, req.MaxAccessPointDistanceKm)
	if err != nil {
		writeError(w, err)
		return
	}

	switch format {
	case "kml":
		name := req.Name
		if name == "" {
			name = "Route"
		}
		w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
		if err := export.WriteKML(w, name, &leg.RouteLeg, leg.UsedAccessPoint); err != nil {
			logging.Errorw(r.Context(), "Failed to write KML", "error", err)
		}
	case "geojson":
		w.Header().Set("Content-Type", "application/geo+json")
		if err := export.WriteGeoJSON(w, &leg.RouteLeg, leg.UsedAccessPoint); err != nil {
			logging.Errorw(r.Context(), "Failed to write GeoJSON", "error", err)
		}
	default:
		writeJSON(w, http.StatusOK, leg)
	}
}

type rerouteRequest struct {
	Current   *geo.Point   `json:"current"`
	Remaining []geo.Point  `json:"remaining"`
	Mode      routing.Mode `json:"mode"`
}

func (h *Handler) rerouteHandler(w http.ResponseWriter, r *http.Request) {
	var req rerouteRequest
	if !decodeBody(w, r, &req) || !requirePoint(w, "current", req.Current) {
		return
	}
	leg, err := h.routing.CalculateReroute(r.Context(), *req.Current, req.Remaining, req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leg)
}

func (h *Handler) accessPointsHandler(w http.ResponseWriter, r *http.Request) {
	points := h.routing.AccessPoints()
	if points == nil {
		points = []accesspoint.AccessPoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_points": points})
}

// nearestAccessPointHandler takes ?lat=&lng= and an optional ?max_km=
func (h *Handler) nearestAccessPointHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	lat, latErr := strconv.ParseFloat(query.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(query.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		writeErrorBody(w, http.StatusBadRequest, string(routing.InvalidInput), "lat and lng query parameters are required", false)
		return
	}
	point, err := geo.NewPoint(lat, lng)
	if err != nil {
		writeErrorBody(w, http.StatusBadRequest, string(routing.InvalidInput), err.Error(), false)
		return
	}

	var maxKm float64
	if raw := query.Get("max_km"); raw != "" {
		if maxKm, err = strconv.ParseFloat(raw, 64); err != nil {
			writeErrorBody(w, http.StatusBadRequest, string(routing.InvalidInput), "max_km must be a number", false)
			return
		}
	}

	match := h.routing.NearestAccessPoint(point, maxKm)
	if match == nil {
		writeErrorBody(w, http.StatusNotFound, string(routing.NoAccessPointAvailable), "no access point in range", false)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

type startSessionRequest struct {
	ID    string                 `json:"id"`
	Mode  routing.Mode           `json:"mode"`
	Stops []navigation.Stop      `json:"stops"`
	Route navigation.ActiveRoute `json:"route"`
}

func (h *Handler) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	snapshot, err := h.navigation.StartSession(r.Context(), services.StartSessionRequest{
		ID:    req.ID,
		Mode:  req.Mode,
		Stops: req.Stops,
		Route: req.Route,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

func (h *Handler) sessionHandler(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.navigation.Session(sessionID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type updateResponse struct {
	Events           []map[string]any  `json:"events"`
	NextStop         *navigation.Stop  `json:"next_stop"`
	OffRouteDistance float64           `json:"off_route_distance_m"`
	NextStopDistance float64           `json:"next_stop_distance_m"`
	AdvancedStop     *navigation.Stop  `json:"advanced_stop,omitempty"`
	Reroute          *routing.RouteLeg `json:"reroute,omitempty"`
	RerouteError     *errorDetail      `json:"reroute_error,omitempty"`
}

// locationRequest keeps lat and lng optional so an empty body is rejected
// rather than read as (0, 0)
type locationRequest struct {
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lng"`
}

func (h *Handler) updateLocationHandler(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeErrorBody(w, http.StatusBadRequest, string(routing.InvalidInput), "lat and lng are required", false)
		return
	}
	location := geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude}

	result, err := h.navigation.UpdateLocation(r.Context(), sessionID(r), location)
	if err != nil {
		writeError(w, err)
		return
	}

	events, err := eventViews(result.Events)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := updateResponse{
		Events:           events,
		NextStop:         result.NextStop,
		OffRouteDistance: result.OffRouteDistance,
		NextStopDistance: result.NextStopDistance,
		AdvancedStop:     result.AdvancedStop,
		Reroute:          result.Reroute,
	}
	if result.RerouteError != nil {
		_, detail := errorResponse(result.RerouteError)
		resp.RerouteError = &detail
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) endSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.navigation.EndSession(r.Context(), sessionID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sessionID(r *http.Request) string {
	return httprouter.ParamsFromContext(r.Context()).ByName("id")
}

// eventViews flattens each event's payload and adds its "type"
func eventViews(events []navigation.Event) ([]map[string]any, error) {
	views := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			return nil, err
		}
		view := map[string]any{}
		if err := json.Unmarshal(raw, &view); err != nil {
			return nil, err
		}
		view["type"] = ev.Type()
		views = append(views, view)
	}
	return views, nil
}

type errorDetail struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// errorResponse maps err onto an HTTP status and error body
func errorResponse(err error) (int, errorDetail) {
	var routeErr *routing.RouteError
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return http.StatusNotFound, errorDetail{Kind: "session_not_found", Message: err.Error()}
	case errors.Is(err, services.ErrSessionExists):
		return http.StatusConflict, errorDetail{Kind: "session_exists", Message: err.Error()}
	case errors.As(err, &routeErr):
		return runtime.HTTPStatusFromCode(routeErr.Code()), errorDetail{
			Kind:      string(routeErr.Kind),
			Message:   routeErr.Error(),
			Retryable: routeErr.Retryable(),
		}
	default:
		return http.StatusInternalServerError, errorDetail{Kind: "internal", Message: err.Error()}
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, detail := errorResponse(err)
	writeJSON(w, status, map[string]errorDetail{"error": detail})
}

func writeErrorBody(w http.ResponseWriter, status int, kind, message string, retryable bool) {
	writeJSON(w, status, map[string]errorDetail{"error": {Kind: kind, Message: message, Retryable: retryable}})
}

// requirePoint rejects a coordinate absent from the request body
func requirePoint(w http.ResponseWriter, field string, p *geo.Point) bool {
	if p == nil {
		writeErrorBody(w, http.StatusBadRequest, string(routing.InvalidInput), field+" is required", false)
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeErrorBody(w, http.StatusBadRequest, string(routing.InvalidInput), "invalid request body: "+err.Error(), false)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
