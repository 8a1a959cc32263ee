// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package surface models the printed floor map the robot drives on. It is the
// map oracle for the filter and the source of color-sensor readings.
package surface

import (
	"image"
	_ "image/png"
	"io"
	"os"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"

	"github.com/relabs-tech/localizer/internal/geometry"
	"github.com/relabs-tech/localizer/internal/mcl"
	"github.com/relabs-tech/localizer/internal/render"
)

// Defaults.
const (
	DefaultRatio          = 1.0
	DefaultMismatchWeight = 0.1
)

// Option configures a Map.
type Option func(*Map)

// WithRatio sets how many image pixels make one pose unit.
func WithRatio(r float64) Option {
	return func(m *Map) { m.ratio = r }
}

// WithMismatchWeight sets the weight of a particle whose map color differs
// from the sensed one.
func WithMismatchWeight(w float64) Option {
	return func(m *Map) { m.mismatch = w }
}

// WithSampler sets the sampler used by RandomPoint.
func WithSampler(s mcl.Sampler) Option {
	return func(m *Map) { m.sampler = s }
}

// Map is a decoded floor image.
type Map struct {
	img      image.Image
	ratio    float64
	mismatch float64
	sampler  mcl.Sampler
}

// New wraps an already decoded image.
func New(img image.Image, opts ...Option) (*Map, error) {
	m := &Map{
		img:      img,
		ratio:    DefaultRatio,
		mismatch: DefaultMismatchWeight,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ratio <= 0 {
		return nil, errors.Errorf("surface: display ratio must be positive, got %v", m.ratio)
	}
	if m.mismatch < 0 || m.mismatch > 1 {
		return nil, errors.Errorf("surface: mismatch weight must be in [0,1], got %v", m.mismatch)
	}
	if img.Bounds().Empty() {
		return nil, errors.New("surface: empty map image")
	}
	if m.sampler == nil {
		m.sampler = mcl.NewTimeSampler()
	}
	return m, nil
}

// Decode reads a PNG or BMP map.
func Decode(r io.Reader, opts ...Option) (*Map, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "surface: decode map")
	}
	if format != "png" && format != "bmp" {
		return nil, errors.Errorf("surface: unsupported map format %q", format)
	}
	return New(img, opts...)
}

// Load reads the map at path.
func Load(path string, opts ...Option) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "surface: open map")
	}
	defer f.Close()
	return Decode(f, opts...)
}

// Size returns the map extent in pose units.
func (m *Map) Size() (width, height float64) {
	b := m.img.Bounds()
	return float64(b.Dx()) / m.ratio, float64(b.Dy()) / m.ratio
}

func (m *Map) pixel(p geometry.Point) (image.Point, bool) {
	b := m.img.Bounds()
	if p.X < 0 || p.Y < 0 {
		return image.Point{}, false
	}
	px := image.Pt(b.Min.X+int(p.X*m.ratio), b.Min.Y+int(p.Y*m.ratio))
	return px, px.In(b)
}

// Contains reports whether p lies on the map.
func (m *Map) Contains(p geometry.Point) bool {
	_, ok := m.pixel(p)
	return ok
}

// ColorAt returns the sensor color printed at p, or ColorNone off the map.
func (m *Map) ColorAt(p geometry.Point) Color {
	px, ok := m.pixel(p)
	if !ok {
		return ColorNone
	}
	return Classify(m.img.At(px.X, px.Y))
}

// RandomPoint returns a uniform point on the map.
func (m *Map) RandomPoint() geometry.Point {
	w, h := m.Size()
	return geometry.Point{X: w * m.sampler.Uniform(), Y: h * m.sampler.Uniform()}
}

// Reading weighs a pose by comparing the map color under it with sensed.
// Poses off the map weigh 0.
func (m *Map) Reading(sensed Color) mcl.Reading {
	return func(p geometry.Pose) float64 {
		switch m.ColorAt(p.Location()) {
		case ColorNone:
			return 0
		case sensed:
			return 1
		default:
			return m.mismatch
		}
	}
}

// Render scales the map onto the canvas.
func (m *Map) Render(c *render.Canvas) {
	w, h := m.Size()
	dr := image.Rect(0, 0, int(w*c.Ratio), int(h*c.Ratio)).Add(c.Dst.Bounds().Min)
	xdraw.NearestNeighbor.Scale(c.Dst, dr, m.img, m.img.Bounds(), xdraw.Src, nil)
}
