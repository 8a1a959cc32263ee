// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogSender is the part of Channel the forwarding core needs.
type LogSender interface {
	SendLog(message string) SendResult
}

// forwardingCore ships every entry to the peer as a LOG frame and writes it
// to the fallback core only when the peer could not take it.
type forwardingCore struct {
	fallback zapcore.Core
	enc      zapcore.Encoder
	sender   LogSender
}

// NewForwardingCore returns a core that forwards entries through sender.
// Levels follow fallback.
//
// Forwarding is synchronous: the logging goroutine waits for the frame to be
// written. With a Channel sender a stalled peer holds it for at most the
// channel's write timeout, after which the connection is dropped and later
// entries go straight to fallback.
func NewForwardingCore(sender LogSender, fallback zapcore.Core) zapcore.Core {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = ""
	return &forwardingCore{
		fallback: fallback,
		enc:      zapcore.NewConsoleEncoder(cfg),
		sender:   sender,
	}
}

func (c *forwardingCore) Enabled(l zapcore.Level) bool {
	return c.fallback.Enabled(l)
}

func (c *forwardingCore) With(fields []zapcore.Field) zapcore.Core {
	enc := c.enc.Clone()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return &forwardingCore{
		fallback: c.fallback.With(fields),
		enc:      enc,
		sender:   c.sender,
	}
}

func (c *forwardingCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *forwardingCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(e, fields)
	if err != nil {
		return c.fallback.Write(e, fields)
	}
	line := strings.TrimSuffix(buf.String(), "\n")
	buf.Free()

	if c.sender.SendLog(line) == Sent {
		return nil
	}
	return c.fallback.Write(e, fields)
}

func (c *forwardingCore) Sync() error {
	return c.fallback.Sync()
}
