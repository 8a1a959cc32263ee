// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mcl

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler is the source of every random draw the filter makes.
type Sampler interface {
	// Gaussian returns a standard normal draw (mean 0, std 1).
	Gaussian() float64
	// Uniform returns a draw in [0, 1).
	Uniform() float64
}

type distSampler struct {
	normal  distuv.Normal
	uniform distuv.Uniform
}

// NewSampler returns a reproducible sampler seeded with seed.
func NewSampler(seed uint64) Sampler {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &distSampler{
		normal:  distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		uniform: distuv.Uniform{Min: 0, Max: 1, Src: src},
	}
}

// NewTimeSampler returns a sampler seeded from the wall clock.
func NewTimeSampler() Sampler {
	return NewSampler(uint64(time.Now().UnixNano()))
}

func (s *distSampler) Gaussian() float64 {
	return s.normal.Rand()
}

func (s *distSampler) Uniform() float64 {
	return s.uniform.Rand()
}
