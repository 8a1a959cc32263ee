// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/relabs-tech/localizer/internal/geometry"
	"github.com/relabs-tech/localizer/internal/localization"
	"github.com/relabs-tech/localizer/internal/mcl"
	"github.com/relabs-tech/localizer/internal/surface"
)

const (
	DefaultSimStep = 10.0
	DefaultSimTurn = 90.0
)

// Bounds limits where the simulated robot may drive.
type Bounds interface {
	Contains(p geometry.Point) bool
}

// RectBounds is the box [0,Width)×[0,Height).
type RectBounds struct {
	Width, Height float64
}

func (r RectBounds) Contains(p geometry.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < r.Width && p.Y < r.Height
}

// SimulatedMotion drives a virtual robot around the map. It is both the
// motion source and the color sensor of the robot: it drives straight until
// the next step would leave the bounds, then turns in place.
type SimulatedMotion struct {
	StepDistance float64
	TurnAngle    float64
	Interval     time.Duration
	Clock        clock.Clock
	Surface      *surface.Map // nil disables color sensing
	Logger       *zap.Logger

	bounds Bounds

	mu        sync.Mutex
	truth     geometry.Pose
	listeners []localization.MoveListener
}

// NewSimulatedMotion places the virtual robot at start.
func NewSimulatedMotion(start geometry.Pose, bounds Bounds) *SimulatedMotion {
	return &SimulatedMotion{
		StepDistance: DefaultSimStep,
		TurnAngle:    DefaultSimTurn,
		Interval:     time.Second,
		Clock:        clock.New(),
		Logger:       zap.NewNop(),
		bounds:       bounds,
		truth:        start,
	}
}

// AddListener implements localization.MotionSource.
func (s *SimulatedMotion) AddListener(l localization.MoveListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Truth returns where the virtual robot really is.
func (s *SimulatedMotion) Truth() geometry.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truth
}

// Advance performs one move and notifies every listener.
func (s *SimulatedMotion) Advance() localization.Move {
	s.mu.Lock()
	move := s.nextMoveLocked()
	listeners := append([]localization.MoveListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l.MoveStarted(move)
	}

	s.mu.Lock()
	// shift first, then rotate, the order the filter applies a move in
	at := s.truth.PointAt(move.Distance, s.truth.Heading)
	s.truth = geometry.Pose{X: at.X, Y: at.Y, Heading: geometry.WrapHeading(s.truth.Heading + move.Angle)}
	truth := s.truth
	s.mu.Unlock()

	s.Logger.Debug("simulated move",
		zap.Float64("distance", move.Distance),
		zap.Float64("angle", move.Angle),
		zap.Stringer("truth", truth),
	)

	for _, l := range listeners {
		l.MoveStopped(move)
	}
	return move
}

func (s *SimulatedMotion) nextMoveLocked() localization.Move {
	ahead := s.truth.PointAt(s.StepDistance, s.truth.Heading)
	if s.bounds == nil || s.bounds.Contains(ahead) {
		return localization.Move{Distance: s.StepDistance}
	}
	return localization.Move{Angle: s.TurnAngle}
}

// Run advances once per Interval until ctx is done.
func (s *SimulatedMotion) Run(ctx context.Context) error {
	ticker := s.Clock.Ticker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Advance()
		}
	}
}

// Reading implements localization.ReadingSource with the color under the
// virtual robot. Without a surface map it returns nil.
func (s *SimulatedMotion) Reading() mcl.Reading {
	if s.Surface == nil {
		return nil
	}
	sensed := s.Surface.ColorAt(s.Truth().Location())
	return s.Surface.Reading(sensed)
}
