// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Dial retry defaults.
const (
	DefaultDialAttempts = 6
	DefaultDialDelay    = 3 * time.Second
)

// DialFunc opens a connection. net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DialError is returned once every attempt has failed.
type DialError struct {
	Address  string
	Attempts int
	Last     error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("telemetry: could not reach %s after %d attempts: %v", e.Address, e.Attempts, e.Last)
}

// Unwrap returns the error of the last attempt.
func (e *DialError) Unwrap() error {
	return e.Last
}

// Dialer is the observer side of the link: it retries with a fixed delay and
// a bounded number of attempts. The zero value of every field except Address
// falls back to a default.
type Dialer struct {
	Network  string
	Address  string
	Attempts int
	Delay    time.Duration
	Clock    clock.Clock
	DialFunc DialFunc
	Logger   *zap.Logger
}

// Dial tries to connect until it succeeds, attempts run out or ctx is done.
func (d *Dialer) Dial(ctx context.Context) (net.Conn, error) {
	network := d.Network
	if network == "" {
		network = "tcp"
	}
	attempts := d.Attempts
	if attempts <= 0 {
		attempts = DefaultDialAttempts
	}
	delay := d.Delay
	if delay <= 0 {
		delay = DefaultDialDelay
	}
	clk := d.Clock
	if clk == nil {
		clk = clock.New()
	}
	dial := d.DialFunc
	if dial == nil {
		var nd net.Dialer
		dial = nd.DialContext
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := dial(ctx, network, d.Address)
		if err == nil {
			logger.Info("connected", zap.String("address", d.Address), zap.Int("attempt", attempt))
			return conn, nil
		}
		last = err
		logger.Warn("connection attempt failed",
			zap.String("address", d.Address),
			zap.Int("attempt", attempt),
			zap.Int("of", attempts),
			zap.Error(err),
		)
		if attempt == attempts {
			break
		}

		t := clk.Timer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Wrap(ctx.Err(), "telemetry: dial cancelled")
		case <-t.C:
		}
	}
	return nil, &DialError{Address: d.Address, Attempts: attempts, Last: last}
}
