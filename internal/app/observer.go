// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/localizer/internal/geometry"
	"github.com/relabs-tech/localizer/internal/mcl"
	"github.com/relabs-tech/localizer/internal/render"
	"github.com/relabs-tech/localizer/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // observer runs on a trusted network
	},
}

// ParticleJSON is one particle as served by /api/mcl.
type ParticleJSON struct {
	geometry.Pose
	Weight float64 `json:"weight"`
}

// SnapshotJSON is the latest filter state as served by /api/mcl and /ws.
type SnapshotJSON struct {
	Frame     int64          `json:"frame"`
	Estimate  *geometry.Pose `json:"estimate"`
	Particles []ParticleJSON `json:"particles"`
}

func snapshotJSON(frame int64, snap mcl.Snapshot) SnapshotJSON {
	out := SnapshotJSON{
		Frame:     frame,
		Estimate:  snap.Estimate,
		Particles: make([]ParticleJSON, len(snap.Particles)),
	}
	for i, p := range snap.Particles {
		out.Particles[i] = ParticleJSON{Pose: p.Pose, Weight: p.Weight}
	}
	return out
}

// Observer is the remote side of the telemetry link: it prints the robot's
// log lines and keeps the latest filter state for the web UI.
type Observer struct {
	// Out receives one line per LOG frame.
	Out io.Writer
	// SnapshotDir, when set, gets a PNG per MCL_DATA frame.
	SnapshotDir string
	// Background is drawn under the particles, typically the surface map.
	Background render.Renderer
	Width      int
	Height     int
	Ratio      float64
	Logger     *zap.Logger

	mu     sync.RWMutex
	latest *mcl.Snapshot
	frames int64
	subs   map[chan SnapshotJSON]struct{}
}

// NewObserver renders width×height pixel images at ratio pixels per unit.
func NewObserver(out io.Writer, width, height int, ratio float64, logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{
		Out:    out,
		Width:  width,
		Height: height,
		Ratio:  ratio,
		Logger: logger,
		subs:   make(map[chan SnapshotJSON]struct{}),
	}
}

// Attach routes rc's frames to o.
func (o *Observer) Attach(rc *telemetry.Receiver) {
	rc.OnLog = o.HandleLog
	rc.OnParticles = o.HandleParticles
}

// HandleLog prints a LOG frame.
func (o *Observer) HandleLog(message string) {
	fmt.Fprintf(o.Out, "[ROBOT] %s\n", message)
}

// HandleParticles stores snap and fans it out to websocket clients.
func (o *Observer) HandleParticles(snap mcl.Snapshot) {
	o.mu.Lock()
	o.frames++
	frame := o.frames
	o.latest = &snap
	msg := snapshotJSON(frame, snap)
	for ch := range o.subs {
		// latest only
		select {
		case <-ch:
		default:
		}
		ch <- msg
	}
	o.mu.Unlock()

	if o.SnapshotDir != "" {
		if err := o.writePNG(frame, snap); err != nil {
			o.Logger.Warn("snapshot write failed", zap.Int64("frame", frame), zap.Error(err))
		}
	}
}

// Latest returns the last snapshot received and its frame number.
func (o *Observer) Latest() (mcl.Snapshot, int64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.latest == nil {
		return mcl.Snapshot{}, 0, false
	}
	return *o.latest, o.frames, true
}

// Render draws the background and snap.
func (o *Observer) Render(snap mcl.Snapshot) *image.RGBA {
	c := render.NewCanvas(o.Width, o.Height, o.Ratio)
	if o.Background != nil {
		c.Draw(o.Background)
	}
	c.Draw(snap)
	return c.Dst.(*image.RGBA)
}

func (o *Observer) writePNG(frame int64, snap mcl.Snapshot) error {
	if err := os.MkdirAll(o.SnapshotDir, 0o755); err != nil {
		return errors.Wrap(err, "observer: snapshot dir")
	}
	path := filepath.Join(o.SnapshotDir, fmt.Sprintf("mcl_%05d.png", frame))
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "observer: create snapshot")
	}
	if err := png.Encode(f, o.Render(snap)); err != nil {
		f.Close()
		return errors.Wrapf(err, "observer: encode %s", path)
	}
	return errors.Wrap(f.Close(), "observer: close snapshot")
}

func (o *Observer) subscribe() chan SnapshotJSON {
	ch := make(chan SnapshotJSON, 1)
	o.mu.Lock()
	o.subs[ch] = struct{}{}
	if o.latest != nil {
		ch <- snapshotJSON(o.frames, *o.latest)
	}
	o.mu.Unlock()
	return ch
}

func (o *Observer) unsubscribe(ch chan SnapshotJSON) {
	o.mu.Lock()
	delete(o.subs, ch)
	o.mu.Unlock()
}

// Handler serves the JSON API, the websocket feed and a rendered PNG.
func (o *Observer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/mcl", o.handleAPI)
	mux.HandleFunc("/ws", o.handleWS)
	mux.HandleFunc("/snapshot.png", o.handlePNG)
	return mux
}

func (o *Observer) handleAPI(w http.ResponseWriter, r *http.Request) {
	snap, frame, ok := o.Latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshotJSON(frame, snap)); err != nil {
		o.Logger.Warn("json encode error", zap.Error(err))
	}
}

func (o *Observer) handlePNG(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := o.Latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, o.Render(snap)); err != nil {
		o.Logger.Warn("png encode error", zap.Error(err))
	}
}

func (o *Observer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.Logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := o.subscribe()
	defer o.unsubscribe(ch)

	// the client never sends; a read error means it went away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case msg := <-ch:
			if err := conn.WriteJSON(msg); err != nil {
				o.Logger.Debug("websocket write error", zap.Error(err))
				return
			}
		}
	}
}
