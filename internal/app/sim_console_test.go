package app

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSimConsolePrintsTruthAndEstimate(t *testing.T) {
	cfg := robotConfig()
	cfg.TelemetryListenAddr = ""
	mock := clock.NewMock()
	var out syncBuffer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunSimConsole(ctx, cfg, &out, zap.NewNop(), WithClock(mock)) }()

	assert.Eventually(t, func() bool {
		mock.Add(cfg.SimMoveInterval())
		return strings.Count(out.String(), "\n") >= 4
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "TRUTH x="), line)
		assert.Contains(t, line, "EST x=")
		assert.Contains(t, line, "ERR=")
	}
	assert.True(t, cfg.TelemetryConnect, "caller config untouched")
}
