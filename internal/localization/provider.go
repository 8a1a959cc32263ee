// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package localization exposes the particle filter as a pose provider driven
// by motion events.
package localization

import (
	"sync"

	"go.uber.org/zap"

	"github.com/relabs-tech/localizer/internal/geometry"
	"github.com/relabs-tech/localizer/internal/mcl"
)

// Move is one odometry report: distance travelled along the heading, then
// the angle turned, in degrees.
type Move struct {
	Distance float64 `json:"distance"`
	Angle    float64 `json:"angle"`
}

// MoveListener receives motion events.
type MoveListener interface {
	MoveStarted(m Move)
	MoveStopped(m Move)
}

// MotionSource is anything that reports moves to listeners.
type MotionSource interface {
	AddListener(l MoveListener)
}

// ReadingSource returns the sensor reading to weigh particles with right now.
type ReadingSource interface {
	Reading() mcl.Reading
}

// ReadingSourceFunc adapts a function to ReadingSource.
type ReadingSourceFunc func() mcl.Reading

// Reading calls f.
func (f ReadingSourceFunc) Reading() mcl.Reading {
	return f()
}

// Publisher receives the filter state after every fresh estimate. Publish
// must not block.
type Publisher interface {
	Publish(snap mcl.Snapshot)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(snap mcl.Snapshot)

// Publish calls f.
func (f PublisherFunc) Publish(snap mcl.Snapshot) {
	f(snap)
}

// Option configures a Provider.
type Option func(*Provider)

// WithReadingSource sets where readings come from. Without one every
// particle weighs 1.
func WithReadingSource(rs ReadingSource) Option {
	return func(p *Provider) { p.readings = rs }
}

// WithPublisher adds a publisher.
func WithPublisher(pub Publisher) Option {
	return func(p *Provider) { p.publishers = append(p.publishers, pub) }
}

// WithLogger sets the provider's logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// Provider owns a particle set and keeps a cached estimate that is marked
// stale while the robot moves.
type Provider struct {
	readings   ReadingSource
	publishers []Publisher
	logger     *zap.Logger

	mu       sync.Mutex
	set      *mcl.ParticleSet
	estimate *geometry.Pose
	fresh    bool
}

// New wraps set. The provider starts stale with no estimate.
func New(set *mcl.ParticleSet, opts ...Option) *Provider {
	p := &Provider{
		set:    set,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.readings == nil {
		p.readings = ReadingSourceFunc(func() mcl.Reading { return mcl.Uniform(1) })
	}
	return p
}

// AttachMotionSource subscribes the provider to src.
func (p *Provider) AttachMotionSource(src MotionSource) {
	src.AddListener(p)
}

// MoveStarted implements MoveListener.
func (p *Provider) MoveStarted(m Move) {
	p.ReportMoveStarted(m)
}

// MoveStopped implements MoveListener.
func (p *Provider) MoveStopped(m Move) {
	p.ReportMoveStopped(m)
}

// ReportMoveStarted marks the estimate stale.
func (p *Provider) ReportMoveStarted(Move) {
	p.mu.Lock()
	p.fresh = false
	p.mu.Unlock()
}

// ReportMoveStopped applies the move to every particle, then weighs,
// resamples and refreshes the estimate.
func (p *Provider) ReportMoveStopped(m Move) {
	p.mu.Lock()
	p.set.ApplyMove(m.Distance, m.Angle)
	snap := p.updateLocked()
	p.mu.Unlock()

	p.logger.Debug("move applied",
		zap.Float64("distance", m.Distance),
		zap.Float64("angle", m.Angle),
		zap.Stringer("estimate", snap.Estimate),
	)
	p.publish(snap)
}

// Pose returns the cached estimate, recomputing it first when stale.
func (p *Provider) Pose() geometry.Pose {
	p.mu.Lock()
	if p.fresh && p.estimate != nil {
		est := *p.estimate
		p.mu.Unlock()
		return est
	}
	snap := p.updateLocked()
	p.mu.Unlock()

	p.logger.Info("current pose", zap.Stringer("pose", snap.Estimate))
	p.publish(snap)
	return *snap.Estimate
}

// SetPose re-anchors the filter around pose and takes pose, at wire
// precision, as the estimate.
func (p *Provider) SetPose(pose geometry.Pose) {
	pose = pose.Quantized()
	p.mu.Lock()
	p.set.Reset(pose)
	p.estimate = &pose
	p.fresh = true
	snap := p.set.Snapshot(p.estimate)
	p.mu.Unlock()

	p.publish(snap)
}

// Fresh reports whether the cached estimate is current.
func (p *Provider) Fresh() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fresh
}

// Snapshot returns the cached estimate, if any, and the current particles.
func (p *Provider) Snapshot() mcl.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set.Snapshot(p.estimate)
}

// Stats returns the filter counters.
func (p *Provider) Stats() mcl.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set.Stats()
}

func (p *Provider) updateLocked() mcl.Snapshot {
	if r := p.readings.Reading(); r != nil {
		p.set.Weigh(r)
	}
	p.set.Resample()
	est := p.set.Estimate()
	p.estimate = &est
	p.fresh = true
	return p.set.Snapshot(p.estimate)
}

func (p *Provider) publish(snap mcl.Snapshot) {
	for _, pub := range p.publishers {
		pub.Publish(snap)
	}
}
