package export

import (
	"encoding/json"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/dpup/trailguide/server/internal/lib/accesspoint"
	"github.com/dpup/trailguide/server/internal/lib/routing"
)

// GeoJSON renders leg as a FeatureCollection. Line features carry "mode" and
// "index" properties; the access point, if any, is a Point feature with
// "kind": "access_point".
func GeoJSON(leg *routing.RouteLeg, usedAccessPoint *accesspoint.AccessPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for i, feature := range leg.Features {
		line := make(orb.LineString, len(feature.Geometry.Points))
		for j, p := range feature.Geometry.Points {
			line[j] = orb.Point{p.Longitude, p.Latitude}
		}
		f := geojson.NewFeature(line)
		f.Properties["mode"] = string(feature.Mode)
		f.Properties["index"] = i
		fc.Append(f)
	}

	if usedAccessPoint != nil {
		f := geojson.NewFeature(orb.Point{usedAccessPoint.Coordinate.Longitude, usedAccessPoint.Coordinate.Latitude})
		f.ID = usedAccessPoint.ID
		f.Properties["kind"] = "access_point"
		f.Properties["name"] = usedAccessPoint.Name
		f.Properties["category"] = usedAccessPoint.Category
		fc.Append(f)
	}

	return fc
}

// WriteGeoJSON encodes GeoJSON(leg, usedAccessPoint) to w
func WriteGeoJSON(w io.Writer, leg *routing.RouteLeg, usedAccessPoint *accesspoint.AccessPoint) error {
	return json.NewEncoder(w).Encode(GeoJSON(leg, usedAccessPoint))
}
