package gps

import (
	"math"

	"github.com/relabs-tech/localizer/internal/geometry"
)

const earthRadiusMeters = 6371000.0

// Projector maps latitude/longitude onto the local map plane with an
// equirectangular approximation around an origin. Good enough for the few
// hundred meters a floor robot covers.
type Projector struct {
	OriginLat     float64
	OriginLon     float64
	UnitsPerMeter float64 // 100 for a map in centimeters
}

// Project returns the map point for lat/lon. X grows east, Y grows north.
func (p Projector) Project(lat, lon float64) geometry.Point {
	scale := p.UnitsPerMeter
	if scale == 0 {
		scale = 1
	}
	rad := math.Pi / 180
	dLat := (lat - p.OriginLat) * rad
	dLon := (lon - p.OriginLon) * rad
	return geometry.Point{
		X: earthRadiusMeters * dLon * math.Cos(p.OriginLat*rad) * scale,
		Y: earthRadiusMeters * dLat * scale,
	}
}
