// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mcl

import (
	"github.com/relabs-tech/localizer/internal/geometry"
)

// Reading maps a hypothesised pose to a weight in [0, 1]. It is called once
// per particle per update and must not mutate shared state.
type Reading func(p geometry.Pose) float64

// MapOracle supplies random valid map locations for uninformed
// initialization.
type MapOracle interface {
	RandomPoint() geometry.Point
}

// MapOracleFunc adapts a function to MapOracle.
type MapOracleFunc func() geometry.Point

// RandomPoint calls f.
func (f MapOracleFunc) RandomPoint() geometry.Point {
	return f()
}

// Rect is a MapOracle that draws uniformly inside an axis-aligned box.
type Rect struct {
	Min, Max geometry.Point
	Sampler  Sampler
}

// RandomPoint returns a uniform point inside r.
func (r Rect) RandomPoint() geometry.Point {
	return geometry.Point{
		X: r.Min.X + (r.Max.X-r.Min.X)*r.Sampler.Uniform(),
		Y: r.Min.Y + (r.Max.Y-r.Min.Y)*r.Sampler.Uniform(),
	}
}

// Uniform is a Reading that carries no information.
func Uniform(weight float64) Reading {
	return func(geometry.Pose) float64 { return weight }
}

func clampWeight(w float64) float64 {
	switch {
	case w != w: // NaN
		return 0
	case w < 0:
		return 0
	case w > 1:
		return 1
	}
	return w
}
