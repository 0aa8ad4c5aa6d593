// Package export renders route legs in map interchange formats.
package export

import (
	"fmt"
	"image/color"
	"io"

	"github.com/twpayne/go-kml"

	"github.com/dpup/trailguide/server/internal/lib/accesspoint"
	"github.com/dpup/trailguide/server/internal/lib/geo"
	"github.com/dpup/trailguide/server/internal/lib/routing"
)

// Line colours per travel mode
var modeColors = map[routing.Mode]color.Color{
	routing.ModeCar:  color.RGBA{R: 0x1e, G: 0x63, B: 0xd6, A: 0xff},
	routing.ModeFoot: color.RGBA{R: 0x2e, G: 0xa0, B: 0x43, A: 0xff},
}

// WriteKML renders leg as a KML document: one shared line style per mode, one
// placemark per feature and a point placemark for the access point, if any
func WriteKML(w io.Writer, name string, leg *routing.RouteLeg, usedAccessPoint *accesspoint.AccessPoint) error {
	styles := make(map[routing.Mode]*kml.SharedElement, len(modeColors))
	children := []kml.Element{
		kml.Name(name),
		kml.Description(fmt.Sprintf("%.1f km, %.1f min", leg.DistanceKm, leg.DurationMin)),
	}
	for _, mode := range []routing.Mode{routing.ModeCar, routing.ModeFoot} {
		style := kml.SharedStyle("mode-"+string(mode),
			kml.LineStyle(
				kml.Color(modeColors[mode]),
				kml.Width(4),
			),
		)
		styles[mode] = style
		children = append(children, style)
	}

	for i, feature := range leg.Features {
		placemark := []kml.Element{
			kml.Name(fmt.Sprintf("%d %s", i+1, feature.Mode)),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(coordinates(feature.Geometry.Points)...),
			),
		}
		if style, ok := styles[feature.Mode]; ok {
			placemark = append([]kml.Element{kml.StyleURL(style.URL())}, placemark...)
		}
		children = append(children, kml.Placemark(placemark...))
	}

	if usedAccessPoint != nil {
		children = append(children, kml.Placemark(
			kml.Name(usedAccessPoint.Name),
			kml.Description(fmt.Sprintf("Access point %d (%s)", usedAccessPoint.ID, usedAccessPoint.Category)),
			kml.Point(
				kml.Coordinates(kml.Coordinate{Lon: usedAccessPoint.Coordinate.Longitude, Lat: usedAccessPoint.Coordinate.Latitude}),
			),
		))
	}

	return kml.KML(kml.Document(children...)).WriteIndent(w, "", "  ")
}

func coordinates(points []geo.Point) []kml.Coordinate {
	coords := make([]kml.Coordinate, len(points))
	for i, p := range points {
		coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
	}
	return coords
}
