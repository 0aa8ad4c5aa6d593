package geo

import (
	"errors"
	"math"

	"github.com/twpayne/go-polyline"
)

// EarthRadiusMeters is the mean earth radius used by every distance in this package
const EarthRadiusMeters = 6371000

var (
	// ErrInvalidCoordinate is returned for latitudes outside [-90, 90] or longitudes outside [-180, 180]
	ErrInvalidCoordinate = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")

	// ErrNoGeometry is returned when a distance to route geometry cannot be measured
	ErrNoGeometry = errors.New("no line geometry to measure against")
)

// geoUtils implements the GeoUtils interface
type geoUtils struct{}

// NewGeoUtils creates a new GeoUtils implementation
func NewGeoUtils() GeoUtils {
	return &geoUtils{}
}

// PointToPoint calculates great-circle distance between two points using Haversine formula
func (g *geoUtils) PointToPoint(p1, p2 Point) (float64, error) {
	if !IsValid(p1) || !IsValid(p2) {
		return 0, ErrInvalidCoordinate
	}
	return haversine(p1, p2), nil
}

// PointToSegment projects point onto segment a-b in a local plane and returns the
// distance to the clamped projection
func (g *geoUtils) PointToSegment(point, a, b Point) (float64, error) {
	if !IsValid(point) || !IsValid(a) || !IsValid(b) {
		return 0, ErrInvalidCoordinate
	}
	return pointToSegment(point, a, b), nil
}

// PointToPolyline calculates minimum distance from point to every consecutive
// coordinate pair across all features
func (g *geoUtils) PointToPolyline(point Point, features []Polyline) (float64, error) {
	if !IsValid(point) {
		return 0, ErrInvalidCoordinate
	}

	minDistance := math.Inf(1)
	measured := false

	for _, feature := range features {
		switch len(feature.Points) {
		case 0:
			continue
		case 1:
			// Degenerate feature - distance to its only point
			if !IsValid(feature.Points[0]) {
				continue
			}
			minDistance = math.Min(minDistance, haversine(point, feature.Points[0]))
			measured = true
			continue
		}

		for i := 0; i < len(feature.Points)-1; i++ {
			start, end := feature.Points[i], feature.Points[i+1]
			if !IsValid(start) || !IsValid(end) {
				continue
			}
			distance := pointToSegment(point, start, end)
			if distance < minDistance {
				minDistance = distance
			}
			measured = true
		}
	}

	if !measured {
		return 0, ErrNoGeometry
	}
	return minDistance, nil
}

// DecodePolyline decodes polyline string to point sequence
func (g *geoUtils) DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{
			Latitude:  coord[0],
			Longitude: coord[1],
		}

		if !IsValid(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

// EncodePolyline encodes a point sequence as a polyline string
func (g *geoUtils) EncodePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !IsValid(point) {
		return Point{}, ErrInvalidCoordinate
	}
	return point, nil
}

// IsValid reports whether a point lies within WGS84 degree bounds.
// NaN coordinates are rejected.
func IsValid(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}

func haversine(p1, p2 Point) float64 {
	if p1 == p2 {
		return 0
	}

	lat1 := toRadians(p1.Latitude)
	lat2 := toRadians(p2.Latitude)
	dlat := lat2 - lat1
	dlon := toRadians(p2.Longitude - p1.Longitude)

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// pointToSegment uses an equirectangular projection around the segment's
// midpoint latitude, with a as the local origin
func pointToSegment(point, a, b Point) float64 {
	cosMid := math.Cos(toRadians((a.Latitude + b.Latitude) / 2))

	project := func(p Point) (x, y float64) {
		x = toRadians(wrapLongitude(p.Longitude-a.Longitude)) * cosMid * EarthRadiusMeters
		y = toRadians(p.Latitude-a.Latitude) * EarthRadiusMeters
		return x, y
	}

	bx, by := project(b)
	px, py := project(point)

	lengthSquared := bx*bx + by*by
	t := 0.0
	if lengthSquared > 0 {
		t = (px*bx + py*by) / lengthSquared
		t = math.Max(0, math.Min(1, t))
	}

	return math.Hypot(px-t*bx, py-t*by)
}

// wrapLongitude normalizes a longitude delta to [-180, 180] so segments across
// the antimeridian stay short
func wrapLongitude(delta float64) float64 {
	for delta > 180 {
		delta -= 360
	}
	for delta < -180 {
		delta += 360
	}
	return delta
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
