// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mcl

import (
	"image/color"
	"math"

	"github.com/relabs-tech/localizer/internal/geometry"
	"github.com/relabs-tech/localizer/internal/render"
	"github.com/relabs-tech/localizer/internal/wire"
)

// RotationBias is added to every noisy heading update, in degrees.
const RotationBias = 0.5

const (
	particleTailLength = 2
	particleAngleWidth = 10
)

var particleColor = color.RGBA{B: 200, A: 255}

// Particle is one weighted pose hypothesis.
type Particle struct {
	Pose   geometry.Pose `json:"pose"`
	Weight float64       `json:"weight"`
}

// ApplyMotion returns the particle moved by distance along its own heading and
// turned by angle. Noise is Gaussian with a standard deviation proportional to
// each motion component, so longer moves accumulate more absolute error.
// The heading gets a fixed RotationBias and is wrapped into [0, 360).
// Weight carries over unchanged.
func (p Particle) ApplyMotion(s Sampler, distance, angle, distanceNoiseFactor, angleNoiseFactor float64) Particle {
	moved := p.shift(s, distance, distanceNoiseFactor)
	moved.Pose.Heading = noisyHeading(s, moved.Pose.Heading, angle, angleNoiseFactor)
	return moved
}

// Weigh returns the particle with its weight replaced by reading(pose).
func (p Particle) Weigh(reading Reading) Particle {
	p.Weight = geometry.Quantize(clampWeight(reading(p.Pose)))
	return p
}

func (p Particle) shift(s Sampler, distance, noiseFactor float64) Particle {
	theta := p.Pose.Heading * math.Pi / 180.0
	xm := distance * math.Cos(theta)
	ym := distance * math.Sin(theta)

	p.Pose = geometry.Pose{
		X:       geometry.Quantize(p.Pose.X + xm + noiseFactor*xm*s.Gaussian()),
		Y:       geometry.Quantize(p.Pose.Y + ym + noiseFactor*ym*s.Gaussian()),
		Heading: p.Pose.Heading,
	}
	return p
}

func (p Particle) rotate(s Sampler, angle, noiseFactor float64) Particle {
	p.Pose = p.Pose.WithHeading(noisyHeading(s, p.Pose.Heading, angle, noiseFactor))
	return p
}

func noisyHeading(s Sampler, heading, angle, noiseFactor float64) float64 {
	return wrappedQuantized(heading + angle + angle*noiseFactor*s.Gaussian() + RotationBias)
}

// wrappedQuantized wraps h into [0, 360) at wire precision.
func wrappedQuantized(h float64) float64 {
	h = geometry.Quantize(geometry.WrapHeading(h))
	// just below 360 can round up to it
	if h >= 360 {
		h = 0
	}
	return h
}

// Encode writes the weight followed by the pose.
func (p Particle) Encode(w *wire.Writer) error {
	w.Float32(p.Weight)
	return p.Pose.Encode(w)
}

// DecodeParticle reads a particle written by Encode.
func DecodeParticle(r *wire.Reader) (Particle, error) {
	weight := r.Float32()
	pose, err := geometry.DecodePose(r)
	if err != nil {
		return Particle{}, err
	}
	return Particle{Pose: pose, Weight: weight}, nil
}

// Render draws the particle as a small blue arrowhead.
func (p Particle) Render(c *render.Canvas) {
	geometry.DrawArrow(c, p.Pose, particleColor, particleTailLength, particleAngleWidth)
}
