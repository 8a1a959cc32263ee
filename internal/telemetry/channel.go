// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry carries tagged binary frames between the robot and an
// observer over a single stream connection.
//
// The robot owns a Channel (server role) and accepts one observer at a time.
// The observer uses a Dialer to reach the robot and a Receiver to decode the
// frame stream.
package telemetry

import (
	"bytes"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/localizer/internal/wire"
)

// SendResult tells the caller what happened to a frame.
type SendResult int

const (
	// Sent means the whole frame was written and flushed.
	Sent SendResult = iota
	// NotConnected means there was no peer; nothing was written or queued.
	NotConnected
	// WriteFailed means the connection broke; the channel is now disconnected.
	WriteFailed
	// EncodeFailed means the payload could not be encoded; the connection was
	// not touched.
	EncodeFailed
)

func (r SendResult) String() string {
	switch r {
	case Sent:
		return "sent"
	case NotConnected:
		return "not connected"
	case WriteFailed:
		return "write failed"
	case EncodeFailed:
		return "encode failed"
	default:
		return "unknown"
	}
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the channel's logger. It must not forward into the channel
// itself.
func WithLogger(l *zap.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// WithWriteTimeout bounds each frame write. Zero disables the deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Channel) { c.writeTimeout = d }
}

// WithLostHandler registers fn to run once for every lost connection.
func WithLostHandler(fn func(session string, err error)) Option {
	return func(c *Channel) { c.onLost = fn }
}

// Channel is the robot side of the telemetry link. Send is safe for
// concurrent use; frames are never interleaved.
type Channel struct {
	listener     net.Listener
	logger       *zap.Logger
	writeTimeout time.Duration
	onLost       func(session string, err error)

	acceptMu sync.Mutex

	mu      sync.Mutex
	conn    net.Conn
	session string
}

// NewChannel returns a disconnected channel that accepts peers on l.
func NewChannel(l net.Listener, opts ...Option) *Channel {
	c := &Channel{
		listener: l,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Listen opens a TCP listener on addr and wraps it in a Channel.
func Listen(addr string, opts ...Option) (*Channel, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "telemetry: listen on %s", addr)
	}
	return NewChannel(l, opts...), nil
}

// Addr is the listening address.
func (c *Channel) Addr() net.Addr {
	return c.listener.Addr()
}

// Connected reports whether a peer is attached.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Session returns the id of the current connection, or "" when disconnected.
func (c *Channel) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Connect blocks until a peer connects. When a peer is already attached it
// logs a warning and returns immediately. Closing the channel ends a pending
// Connect with an error.
func (c *Channel) Connect() error {
	c.acceptMu.Lock()
	defer c.acceptMu.Unlock()

	if c.Connected() {
		c.logger.Warn("connect called while already connected", zap.String("session", c.Session()))
		return nil
	}

	c.logger.Info("waiting for telemetry peer", zap.Stringer("addr", c.listener.Addr()))
	conn, err := c.listener.Accept()
	if err != nil {
		return errors.Wrap(err, "telemetry: accept")
	}

	session := uuid.NewString()
	c.mu.Lock()
	c.conn = conn
	c.session = session
	c.mu.Unlock()

	c.logger.Info("telemetry peer connected",
		zap.String("session", session),
		zap.Stringer("remote", conn.RemoteAddr()),
	)
	return nil
}

// Send writes [tag][payload] and flushes it. A nil payload sends the bare tag.
func (c *Channel) Send(event wire.EventType, payload wire.Encoder) SendResult {
	// A payload error must not leave a partial frame on the wire.
	var frame bytes.Buffer
	w := wire.NewWriter(&frame)
	w.Byte(byte(event))
	if payload != nil {
		if err := payload.Encode(w); err != nil {
			c.logger.Error("telemetry: encode failed", zap.Stringer("event", event), zap.Error(err))
			return EncodeFailed
		}
	}

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return NotConnected
	}

	err := c.writeLocked(conn, frame.Bytes())
	if err == nil {
		c.mu.Unlock()
		return Sent
	}

	session := c.session
	c.conn = nil
	c.session = ""
	c.mu.Unlock()

	if cerr := conn.Close(); cerr != nil {
		err = multierr.Append(err, cerr)
	}
	c.logger.Error("telemetry connection lost",
		zap.String("session", session),
		zap.Stringer("event", event),
		zap.Error(err),
	)
	if c.onLost != nil {
		c.onLost(session, err)
	}
	return WriteFailed
}

func (c *Channel) writeLocked(conn net.Conn, b []byte) error {
	if c.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return errors.Wrap(err, "set write deadline")
		}
	}
	if _, err := conn.Write(b); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return nil
}

// SendLog sends message as a LOG frame.
func (c *Channel) SendLog(message string) SendResult {
	return c.Send(wire.EventLog, LogMessage(message))
}

// Close drops the current peer and closes the listener.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.session = ""
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = multierr.Append(err, conn.Close())
	}
	return multierr.Append(err, c.listener.Close())
}

// LogMessage is the LOG payload.
type LogMessage string

// Encode writes the message as a length-prefixed UTF-8 string.
func (m LogMessage) Encode(w *wire.Writer) error {
	w.UTF(string(m))
	return w.Err()
}
