// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mcl

import (
	"github.com/pkg/errors"

	"github.com/relabs-tech/localizer/internal/geometry"
	"github.com/relabs-tech/localizer/internal/render"
	"github.com/relabs-tech/localizer/internal/wire"
)

// Snapshot is the transmissible state of a filter: the optional cached
// estimate followed by every particle in order.
type Snapshot struct {
	Estimate  *geometry.Pose `json:"estimate,omitempty"`
	Particles []Particle     `json:"particles"`
}

// Encode writes the estimate (or the no-pose sentinel) and the particles.
// The particle count is not written; the receiver must know it.
func (s Snapshot) Encode(w *wire.Writer) error {
	if err := geometry.EncodeEstimate(w, s.Estimate); err != nil {
		return err
	}
	for _, p := range s.Particles {
		if err := p.Encode(w); err != nil {
			return err
		}
	}
	return w.Err()
}

// DecodeSnapshot reads a snapshot holding n particles.
func DecodeSnapshot(r *wire.Reader, n int) (Snapshot, error) {
	if n < 0 {
		return Snapshot{}, errors.Errorf("negative particle count %d", n)
	}
	est, err := geometry.DecodeEstimate(r)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "decode estimate")
	}
	snap := Snapshot{Estimate: est, Particles: make([]Particle, n)}
	for i := range snap.Particles {
		p, err := DecodeParticle(r)
		if err != nil {
			return Snapshot{}, errors.Wrapf(err, "decode particle %d", i)
		}
		snap.Particles[i] = p
	}
	return snap, nil
}

// Render draws every particle and then the estimate on top.
func (s Snapshot) Render(c *render.Canvas) {
	for _, p := range s.Particles {
		p.Render(c)
	}
	if s.Estimate != nil {
		s.Estimate.Render(c)
	}
}
