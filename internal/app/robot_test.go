package app

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/relabs-tech/localizer/internal/config"
	"github.com/relabs-tech/localizer/internal/telemetry"
)

func robotConfig() *config.Config {
	cfg := config.Default()
	cfg.TelemetryListenAddr = "127.0.0.1:0"
	cfg.RandomSeed = 42
	cfg.StartX = 20
	cfg.StartY = 20
	return cfg
}

func TestRobotStreamsToObserver(t *testing.T) {
	cfg := robotConfig()
	mock := clock.NewMock()
	robot, err := NewRobot(cfg, zaptest.NewLogger(t), WithClock(mock))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- robot.Run(ctx) }()

	dialer := &telemetry.Dialer{Address: robot.Channel().Addr().String(), Attempts: 1}
	conn, err := dialer.Dial(ctx)
	require.NoError(t, err)

	obs := NewObserver(&bytes.Buffer{}, 200, 150, 1, nil)
	rc := telemetry.NewReceiver(conn, cfg.ParticleCount)
	obs.Attach(rc)
	go rc.Run() //nolint:errcheck

	require.Eventually(t, robot.Channel().Connected, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		mock.Add(cfg.SimMoveInterval())
		_, frames, _ := obs.Latest()
		return frames >= 3
	}, 3*time.Second, 10*time.Millisecond)

	snap, _, ok := obs.Latest()
	require.True(t, ok)
	require.NotNil(t, snap.Estimate)
	assert.Len(t, snap.Particles, cfg.ParticleCount)

	truth := robot.Motion().Truth()
	pose := robot.Provider().Pose()
	assert.InDelta(t, truth.X, pose.X, 10)
	assert.InDelta(t, truth.Y, pose.Y, 10)

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("robot did not stop")
	}
	assert.False(t, robot.Channel().Connected())
	conn.Close()
}

func TestRobotWithoutTelemetry(t *testing.T) {
	cfg := robotConfig()
	cfg.TelemetryConnect = false
	mock := clock.NewMock()
	robot, err := NewRobot(cfg, zaptest.NewLogger(t), WithClock(mock))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- robot.Run(ctx) }()

	start := robot.Motion().Truth()
	assert.Eventually(t, func() bool {
		mock.Add(cfg.SimMoveInterval())
		return robot.Motion().Truth().X > start.X+15
	}, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, robot.Provider().Fresh, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-runErr)
	assert.NoError(t, robot.Close(), "second close is a no-op")
}

func TestNewRobotRejectsMissingMap(t *testing.T) {
	cfg := robotConfig()
	cfg.SurfaceMapPath = "does/not/exist.png"
	_, err := NewRobot(cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}
