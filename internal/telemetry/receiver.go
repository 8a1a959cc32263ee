// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/relabs-tech/localizer/internal/mcl"
	"github.com/relabs-tech/localizer/internal/wire"
)

// ErrUnknownEvent means a frame tag has no decoder. Frames carry no length,
// so the stream cannot be resynchronized after one.
var ErrUnknownEvent = errors.New("telemetry: unknown event type")

// DecodeFunc consumes the payload of one frame.
type DecodeFunc func(r *wire.Reader) error

// Receiver decodes the frame stream written by a Channel.
type Receiver struct {
	// OnLog is called for every LOG frame.
	OnLog func(message string)
	// OnParticles is called for every MCL_DATA frame.
	OnParticles func(snap mcl.Snapshot)

	r         *wire.Reader
	particles int
	decoders  map[wire.EventType]DecodeFunc
}

// NewReceiver reads frames from r. particles is the filter size the robot
// runs with; MCL_DATA frames do not carry it.
func NewReceiver(r io.Reader, particles int) *Receiver {
	return &Receiver{
		r:         wire.NewReader(bufio.NewReader(r)),
		particles: particles,
		decoders:  make(map[wire.EventType]DecodeFunc),
	}
}

// Handle registers fn for frames tagged event, replacing the built-in
// handling for LOG and MCL_DATA if event is one of those.
func (rc *Receiver) Handle(event wire.EventType, fn DecodeFunc) {
	rc.decoders[event] = fn
}

// Next reads and dispatches one frame. It returns io.EOF only when the
// stream ends cleanly between frames.
func (rc *Receiver) Next() (wire.EventType, error) {
	event := wire.EventType(rc.r.Byte())
	if err := rc.r.Err(); err != nil {
		return 0, err
	}

	err := rc.dispatch(event)
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return event, errors.Wrapf(err, "telemetry: %s frame", event)
	}
	return event, nil
}

func (rc *Receiver) dispatch(event wire.EventType) error {
	if fn, ok := rc.decoders[event]; ok {
		if err := fn(rc.r); err != nil {
			return err
		}
		return rc.r.Err()
	}

	switch event {
	case wire.EventLog:
		msg := rc.r.UTF()
		if err := rc.r.Err(); err != nil {
			return err
		}
		if rc.OnLog != nil {
			rc.OnLog(msg)
		}
	case wire.EventMCLData:
		snap, err := mcl.DecodeSnapshot(rc.r, rc.particles)
		if err != nil {
			return err
		}
		if rc.OnParticles != nil {
			rc.OnParticles(snap)
		}
	default:
		return errors.Wrapf(ErrUnknownEvent, "tag %d", byte(event))
	}
	return nil
}

// Run dispatches frames until the stream ends. A clean end returns nil.
func (rc *Receiver) Run() error {
	for {
		if _, err := rc.Next(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
