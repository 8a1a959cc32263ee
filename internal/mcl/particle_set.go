// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mcl implements a small Monte-Carlo localization filter: a fixed-size
// set of weighted pose hypotheses that is moved with noisy odometry, weighted
// by a sensor Reading and resampled after every completed move.
//
// A ParticleSet is not safe for concurrent mutation; callers confine it to one
// control loop.
package mcl

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/localizer/internal/geometry"
)

// Filter defaults.
const (
	DefaultParticleCount         = 5
	DefaultMaxResampleIterations = 1000
	DefaultStartingRadiusNoise   = 4
	DefaultStartingHeadingNoise  = 3
	DefaultDistanceNoiseFactor   = 0.008
	DefaultAngleNoiseFactor      = 0.04

	initialWeight    = 0.5
	uninformedWeight = 1
)

// Params tunes the filter.
type Params struct {
	Count                 int
	MaxResampleIterations int
	StartingRadiusNoise   float64
	StartingHeadingNoise  float64
	DistanceNoiseFactor   float64
	AngleNoiseFactor      float64
}

// DefaultParams returns the tuning used on the robot.
func DefaultParams() Params {
	return Params{
		Count:                 DefaultParticleCount,
		MaxResampleIterations: DefaultMaxResampleIterations,
		StartingRadiusNoise:   DefaultStartingRadiusNoise,
		StartingHeadingNoise:  DefaultStartingHeadingNoise,
		DistanceNoiseFactor:   DefaultDistanceNoiseFactor,
		AngleNoiseFactor:      DefaultAngleNoiseFactor,
	}
}

// Validate reports the first unusable field.
func (p Params) Validate() error {
	switch {
	case p.Count < 1:
		return errors.Errorf("particle count must be at least 1, got %d", p.Count)
	case p.MaxResampleIterations < 1:
		return errors.Errorf("max resample iterations must be at least 1, got %d", p.MaxResampleIterations)
	case p.StartingRadiusNoise < 0, p.StartingHeadingNoise < 0:
		return errors.New("starting noise must not be negative")
	case p.DistanceNoiseFactor < 0, p.AngleNoiseFactor < 0:
		return errors.New("noise factors must not be negative")
	}
	return nil
}

// Stats counts notable filter events since construction.
type Stats struct {
	Resamples           int `json:"resamples"`
	Degenerations       int `json:"degenerations"`
	Shortfalls          int `json:"shortfalls"`
	ZeroWeightEstimates int `json:"zero_weight_estimates"`
}

// ParticleSet owns exactly Params.Count particles.
type ParticleSet struct {
	params    Params
	particles []Particle
	sampler   Sampler
	oracle    MapOracle
	logger    *zap.Logger
	stats     Stats
}

// Option configures a ParticleSet.
type Option func(*ParticleSet)

// WithSampler replaces the time-seeded default sampler.
func WithSampler(s Sampler) Option {
	return func(ps *ParticleSet) { ps.sampler = s }
}

// WithLogger sets the logger used for resample diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(ps *ParticleSet) { ps.logger = l }
}

func newSet(params Params, oracle MapOracle, opts []Option) (*ParticleSet, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if oracle == nil {
		return nil, errors.New("map oracle is required")
	}
	ps := &ParticleSet{
		params: params,
		oracle: oracle,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ps)
	}
	if ps.sampler == nil {
		ps.sampler = NewTimeSampler()
	}
	return ps, nil
}

// NewAround returns a set clustered around center.
func NewAround(center geometry.Pose, params Params, oracle MapOracle, opts ...Option) (*ParticleSet, error) {
	ps, err := newSet(params, oracle, opts)
	if err != nil {
		return nil, err
	}
	ps.particles = ps.around(center)
	return ps, nil
}

// NewUninformed returns a set spread over the whole map.
func NewUninformed(params Params, oracle MapOracle, opts ...Option) (*ParticleSet, error) {
	ps, err := newSet(params, oracle, opts)
	if err != nil {
		return nil, err
	}
	ps.particles = ps.uninformed()
	return ps, nil
}

// around places each particle at a Gaussian radius and uniform bearing from
// center, with Gaussian heading noise and weight 0.5.
func (s *ParticleSet) around(center geometry.Pose) []Particle {
	out := make([]Particle, s.params.Count)
	for i := range out {
		rad := s.params.StartingRadiusNoise * s.sampler.Gaussian()
		theta := 2 * math.Pi * s.sampler.Uniform()
		out[i] = Particle{
			Pose: geometry.Pose{
				X:       center.X + rad*math.Cos(theta),
				Y:       center.Y + rad*math.Sin(theta),
				Heading: center.Heading + s.params.StartingHeadingNoise*s.sampler.Gaussian(),
			}.Quantized(),
			Weight: initialWeight,
		}
	}
	return out
}

// uninformed draws every particle from the map oracle with a uniform heading.
func (s *ParticleSet) uninformed() []Particle {
	out := make([]Particle, s.params.Count)
	for i := range out {
		pt := s.oracle.RandomPoint()
		out[i] = Particle{
			Pose: geometry.Pose{
				X:       geometry.Quantize(pt.X),
				Y:       geometry.Quantize(pt.Y),
				Heading: wrappedQuantized(360 * s.sampler.Uniform()),
			},
			Weight: uninformedWeight,
		}
	}
	return out
}

// Reset re-anchors the whole set around center.
func (s *ParticleSet) Reset(center geometry.Pose) {
	s.particles = s.around(center)
	s.logger.Info("particles reset", zap.Stringer("center", center))
}

// Len is always Params.Count.
func (s *ParticleSet) Len() int {
	return len(s.particles)
}

// Params returns the tuning of the set.
func (s *ParticleSet) Params() Params {
	return s.params
}

// Particles returns a copy of the current particles in order.
func (s *ParticleSet) Particles() []Particle {
	out := make([]Particle, len(s.particles))
	copy(out, s.particles)
	return out
}

// Stats returns the event counters.
func (s *ParticleSet) Stats() Stats {
	return s.stats
}

// Rotate turns every particle by angle degrees with proportional noise.
// A zero angle is an exact no-op.
func (s *ParticleSet) Rotate(angle float64) {
	if angle == 0 {
		return
	}
	for i, p := range s.particles {
		s.particles[i] = p.rotate(s.sampler, angle, s.params.AngleNoiseFactor)
	}
	s.logger.Debug("particles rotated", zap.Float64("angle", angle))
}

// Shift moves every particle distance units along its own heading with
// proportional noise. A zero distance is an exact no-op.
func (s *ParticleSet) Shift(distance float64) {
	if distance == 0 {
		return
	}
	for i, p := range s.particles {
		s.particles[i] = p.shift(s.sampler, distance, s.params.DistanceNoiseFactor)
	}
	s.logger.Debug("particles shifted", zap.Float64("distance", distance))
}

// ApplyMove translates along each particle's heading and then turns.
func (s *ParticleSet) ApplyMove(distance, angle float64) {
	s.Shift(distance)
	s.Rotate(angle)
}

// Weigh replaces every weight with reading(pose). Weights are not
// normalized; they only drive resample acceptance.
func (s *ParticleSet) Weigh(reading Reading) {
	for i, p := range s.particles {
		s.particles[i] = p.Weigh(reading)
	}
	s.logger.Debug("recalculated weights")
}

// Resample draws the next generation by scanning the current particles in
// order and keeping each one whose weight beats a fresh uniform draw. Passes
// repeat until Count particles are kept or MaxResampleIterations passes ran.
//
// With nothing kept the set is rebuilt from the map oracle. With a partial
// result the kept particles are repeated cyclically to fill the set.
func (s *ParticleSet) Resample() {
	n := s.params.Count
	next := make([]Particle, 0, n)

	for pass := 0; pass < s.params.MaxResampleIterations && len(next) < n; pass++ {
		for _, p := range s.particles {
			if p.Weight >= s.sampler.Uniform() {
				next = append(next, p)
				if len(next) == n {
					break
				}
			}
		}
	}
	s.stats.Resamples++

	accepted := len(next)
	switch {
	case accepted == 0:
		s.stats.Degenerations++
		s.particles = s.uninformed()
		s.logger.Warn("bad resample; regenerated all particles",
			zap.Int("iterations", s.params.MaxResampleIterations),
			zap.Int("degenerations", s.stats.Degenerations),
		)
		return
	case accepted < n:
		for i := accepted; i < n; i++ {
			next = append(next, next[i%accepted])
		}
		s.stats.Shortfalls++
		s.logger.Warn("bad resample; had to duplicate existing particles",
			zap.Int("accepted", accepted),
			zap.Int("wanted", n),
		)
	default:
		s.logger.Debug("successful particle resample")
	}
	s.particles = next
}

// Estimate returns the weighted mean pose of the set.
//
// Headings are averaged linearly and then normalized into (-180, 180], which
// is only a good circular mean while the particle headings are clustered.
// When the total weight is zero, negative or not finite the unweighted mean is
// used instead and the event is counted.
func (s *ParticleSet) Estimate() geometry.Pose {
	n := len(s.particles)
	xs := make([]float64, n)
	ys := make([]float64, n)
	hs := make([]float64, n)
	ws := make([]float64, n)
	for i, p := range s.particles {
		xs[i], ys[i], hs[i], ws[i] = p.Pose.X, p.Pose.Y, p.Pose.Heading, p.Weight
	}

	total := floats.Sum(ws)
	if !(total > 0) || math.IsInf(total, 0) {
		s.stats.ZeroWeightEstimates++
		s.logger.Warn("no usable particle weight; using unweighted mean", zap.Float64("total_weight", total))
		ws = nil
	}

	est := geometry.Pose{
		X:       stat.Mean(xs, ws),
		Y:       stat.Mean(ys, ws),
		Heading: geometry.NormalizeHeading(stat.Mean(hs, ws)),
	}.Quantized()
	// just above -180 can round down to it
	if est.Heading <= -180 {
		est.Heading = 180
	}
	return est
}

// Snapshot captures the particles together with an optional estimate.
func (s *ParticleSet) Snapshot(estimate *geometry.Pose) Snapshot {
	snap := Snapshot{Particles: s.Particles()}
	if estimate != nil {
		e := *estimate
		snap.Estimate = &e
	}
	return snap
}

// Restore replaces the particles with the ones in snap, which must hold
// exactly Count particles.
func (s *ParticleSet) Restore(snap Snapshot) error {
	if len(snap.Particles) != s.params.Count {
		return errors.Errorf("snapshot holds %d particles, set needs %d", len(snap.Particles), s.params.Count)
	}
	s.particles = make([]Particle, len(snap.Particles))
	copy(s.particles, snap.Particles)
	return nil
}
