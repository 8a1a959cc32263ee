package telemetry

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRefused = errors.New("connection refused")

type dialResult struct {
	conn net.Conn
	err  error
}

// runDial drives the mock clock forward until Dial returns.
func runDial(t *testing.T, ctx context.Context, d *Dialer, mock *clock.Mock) dialResult {
	t.Helper()
	done := make(chan dialResult, 1)
	go func() {
		conn, err := d.Dial(ctx)
		done <- dialResult{conn, err}
	}()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case res := <-done:
			return res
		case <-deadline:
			t.Fatal("dial did not return")
		default:
			mock.Add(d.Delay)
		}
	}
}

func TestDialRetriesUntilSuccess(t *testing.T) {
	mock := clock.NewMock()
	var calls atomic.Int32
	server, client := net.Pipe()
	defer server.Close()

	d := &Dialer{
		Address:  "robot:7070",
		Attempts: DefaultDialAttempts,
		Delay:    DefaultDialDelay,
		Clock:    mock,
		DialFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
			assert.Equal(t, "tcp", network)
			assert.Equal(t, "robot:7070", address)
			if calls.Add(1) < 3 {
				return nil, errRefused
			}
			return client, nil
		},
	}

	res := runDial(t, context.Background(), d, mock)
	require.NoError(t, res.err)
	assert.Equal(t, client, res.conn)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDialGivesUp(t *testing.T) {
	mock := clock.NewMock()
	var calls atomic.Int32
	d := &Dialer{
		Address:  "robot:7070",
		Attempts: 4,
		Delay:    time.Second,
		Clock:    mock,
		DialFunc: func(context.Context, string, string) (net.Conn, error) {
			calls.Add(1)
			return nil, errRefused
		},
	}

	res := runDial(t, context.Background(), d, mock)
	require.Error(t, res.err)
	assert.Nil(t, res.conn)
	assert.Equal(t, int32(4), calls.Load())

	var dialErr *DialError
	require.True(t, errors.As(res.err, &dialErr))
	assert.Equal(t, 4, dialErr.Attempts)
	assert.Equal(t, "robot:7070", dialErr.Address)
	assert.True(t, errors.Is(res.err, errRefused))
}

func TestDialStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	d := &Dialer{
		Address: "robot:7070",
		Clock:   clock.NewMock(),
		DialFunc: func(context.Context, string, string) (net.Conn, error) {
			calls.Add(1)
			return nil, errRefused
		},
	}

	_, err := d.Dial(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDialErrorMessage(t *testing.T) {
	err := &DialError{Address: "a:1", Attempts: 6, Last: errRefused}
	assert.Equal(t, "telemetry: could not reach a:1 after 6 attempts: connection refused", err.Error())
}
