package gps

import (
	"math"

	"github.com/relabs-tech/localizer/internal/geometry"
	"github.com/relabs-tech/localizer/internal/mcl"
)

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56"
	Date       string  `json:"date"`        // e.g. "06/12/25"
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void)
	Quality    string  `json:"quality"`     // GGA fix quality, "0" is no fix
	Satellites int64   `json:"satellites"`
	HDOP       float64 `json:"hdop"`
}

// Valid reports whether the receiver had a usable position.
func (f Fix) Valid() bool {
	return f.Validity == "A" && f.Quality != "0"
}

// Reading weighs a pose by its distance from the fix, projected with proj.
// sigma is the one standard deviation position error in pose units. An
// invalid fix carries no information and weighs every pose 1.
func (f Fix) Reading(proj Projector, sigma float64) mcl.Reading {
	if !f.Valid() || sigma <= 0 {
		return mcl.Uniform(1)
	}
	at := proj.Project(f.Latitude, f.Longitude)
	twoVar := 2 * sigma * sigma
	return func(p geometry.Pose) float64 {
		dx, dy := p.X-at.X, p.Y-at.Y
		return math.Exp(-(dx*dx + dy*dy) / twoVar)
	}
}
