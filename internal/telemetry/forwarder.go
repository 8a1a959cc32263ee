// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/relabs-tech/localizer/internal/mcl"
	"github.com/relabs-tech/localizer/internal/wire"
)

// FrameSender is the part of Channel the Forwarder needs.
type FrameSender interface {
	Send(event wire.EventType, payload wire.Encoder) SendResult
}

// Forwarder sends filter snapshots from its own goroutine. Only the latest
// pending snapshot is kept; Publish never blocks.
type Forwarder struct {
	sender FrameSender
	logger *zap.Logger

	slot chan mcl.Snapshot
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	sent     atomic.Int64
	replaced atomic.Int64
}

// NewForwarder starts the send loop.
func NewForwarder(sender FrameSender, logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Forwarder{
		sender: sender,
		logger: logger,
		slot:   make(chan mcl.Snapshot, 1),
		done:   make(chan struct{}),
	}
	f.wg.Add(1)
	go f.loop()
	return f
}

// Publish queues snap, replacing any snapshot not yet sent.
func (f *Forwarder) Publish(snap mcl.Snapshot) {
	for {
		select {
		case <-f.done:
			return
		case f.slot <- snap:
			return
		default:
		}
		select {
		case <-f.slot:
			f.replaced.Add(1)
		default:
		}
	}
}

func (f *Forwarder) loop() {
	defer f.wg.Done()
	for {
		select {
		case <-f.done:
			return
		case snap := <-f.slot:
			res := f.sender.Send(wire.EventMCLData, snap)
			if res == Sent {
				f.sent.Add(1)
				continue
			}
			f.logger.Debug("snapshot not forwarded", zap.Stringer("result", res))
		}
	}
}

// Sent is the number of snapshots that reached the peer.
func (f *Forwarder) Sent() int64 {
	return f.sent.Load()
}

// Replaced is the number of snapshots dropped in favour of a newer one.
func (f *Forwarder) Replaced() int64 {
	return f.replaced.Load()
}

// Close stops the send loop. Pending snapshots are dropped.
func (f *Forwarder) Close() {
	f.once.Do(func() { close(f.done) })
	f.wg.Wait()
}
