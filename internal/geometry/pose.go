// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geometry

import (
	"fmt"
	"image/color"
	"math"

	"github.com/relabs-tech/localizer/internal/render"
	"github.com/relabs-tech/localizer/internal/wire"
)

// NoPoseSentinel in the x field of an estimate means "no pose available".
const NoPoseSentinel = -1

const (
	estimateTailLength = 3
	estimateAngleWidth = 10
)

var estimateColor = color.RGBA{R: 220, A: 255}

// Point is a location on the map plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pose is the canonical robot position and orientation.
// Heading is in degrees; Pose never rewrites it, use NormalizeHeading or
// WrapHeading when a specific range is needed.
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// NewPose returns a pose with its heading normalized into (-180, 180].
func NewPose(x, y, heading float64) Pose {
	return Pose{X: x, Y: y, Heading: NormalizeHeading(heading)}
}

// Location drops the heading.
func (p Pose) Location() Point {
	return Point{X: p.X, Y: p.Y}
}

// WithHeading returns a copy of p facing heading.
func (p Pose) WithHeading(heading float64) Pose {
	p.Heading = heading
	return p
}

// PointAt returns the point at distance along bearing (degrees).
func (p Pose) PointAt(distance, bearing float64) Point {
	rad := bearing * math.Pi / 180.0
	return Point{
		X: p.X + distance*math.Cos(rad),
		Y: p.Y + distance*math.Sin(rad),
	}
}

func (p Pose) String() string {
	return fmt.Sprintf("x=%.2f y=%.2f heading=%.2f", p.X, p.Y, p.Heading)
}

// NormalizeHeading maps degrees into (-180, 180] by whole turns.
func NormalizeHeading(h float64) float64 {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return h
	}
	h = math.Mod(h, 360)
	if h > 180 {
		h -= 360
	} else if h <= -180 {
		h += 360
	}
	return h
}

// WrapHeading maps degrees into [0, 360).
func WrapHeading(h float64) float64 {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return h
	}
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	// -tiny + 360 rounds to 360
	if h >= 360 {
		h = 0
	}
	return h
}

// Quantize rounds v to float32, the precision poses and weights have on the
// wire.
func Quantize(v float64) float64 {
	return float64(float32(v))
}

// Quantized returns p with every component rounded by Quantize.
func (p Pose) Quantized() Pose {
	return Pose{X: Quantize(p.X), Y: Quantize(p.Y), Heading: Quantize(p.Heading)}
}

// Encode writes x, y and heading as three floats.
func (p Pose) Encode(w *wire.Writer) error {
	w.Float32(p.X)
	w.Float32(p.Y)
	w.Float32(p.Heading)
	return w.Err()
}

// DecodePose reads the three floats written by Encode.
func DecodePose(r *wire.Reader) (Pose, error) {
	p := Pose{
		X:       r.Float32(),
		Y:       r.Float32(),
		Heading: r.Float32(),
	}
	return p, r.Err()
}

// EncodeEstimate writes an optional pose. A nil pose is written as the single
// sentinel float. A pose whose x would be read back as the sentinel is sent
// with x nudged to the next float32 towards zero.
func EncodeEstimate(w *wire.Writer, p *Pose) error {
	if p == nil {
		w.Float32(NoPoseSentinel)
		return w.Err()
	}
	est := *p
	if float32(est.X) == NoPoseSentinel {
		est.X = float64(math.Nextafter32(NoPoseSentinel, 0))
	}
	return est.Encode(w)
}

// DecodeEstimate reads an optional pose. It stops after the first float when
// that float is the sentinel.
func DecodeEstimate(r *wire.Reader) (*Pose, error) {
	x := r.Float32()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if x == NoPoseSentinel {
		return nil, nil
	}
	p := Pose{X: x, Y: r.Float32(), Heading: r.Float32()}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Render draws the pose as a red arrowhead pointing along its heading.
func (p Pose) Render(c *render.Canvas) {
	DrawArrow(c, p, estimateColor, estimateTailLength, estimateAngleWidth)
}

// DrawArrow draws a filled triangle with its tip at the pose location and its
// base tail units behind it.
func DrawArrow(c *render.Canvas, p Pose, col color.Color, tail, halfAngle float64) {
	left := p.PointAt(tail, p.Heading+180-halfAngle)
	right := p.PointAt(tail, p.Heading+180+halfAngle)
	c.FillPolygon(col,
		[]float64{p.X, left.X, right.X},
		[]float64{p.Y, left.Y, right.Y},
	)
}
