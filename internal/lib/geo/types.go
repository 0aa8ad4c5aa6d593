package geo

// Point represents a WGS84 coordinate in degrees
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Polyline is one line-geometry feature: an ordered coordinate sequence with
// its optional encoded form
type Polyline struct {
	EncodedPolyline string  `json:"encoded_polyline,omitempty"`
	Points          []Point `json:"points"`
}

// GeoUtils interface defines geographic calculation utilities
type GeoUtils interface {
	// Great-circle distance between two points in meters (haversine, spherical earth)
	PointToPoint(p1, p2 Point) (float64, error)

	// Distance in meters from point to segment a-b using a local equirectangular
	// projection centered on the segment's midpoint latitude
	PointToSegment(point, a, b Point) (float64, error)

	// Minimum distance in meters from point to any segment of any feature.
	// Returns ErrNoGeometry when there is nothing to measure against.
	PointToPolyline(point Point, features []Polyline) (float64, error)

	// Decode Google/OSRM polyline string (precision 5) to point sequence
	DecodePolyline(encoded string) ([]Point, error)

	// Encode point sequence as polyline string (precision 5)
	EncodePolyline(points []Point) string
}

// NewGeoUtils is implemented in geo.go
