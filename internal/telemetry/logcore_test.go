package telemetry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeLogSender struct {
	mu     sync.Mutex
	result SendResult
	lines  []string
}

func (s *fakeLogSender) SendLog(m string) SendResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, m)
	return s.result
}

func TestForwardingCoreSendsToPeer(t *testing.T) {
	sender := &fakeLogSender{result: Sent}
	fallback, local := observer.New(zapcore.InfoLevel)
	logger := zap.New(NewForwardingCore(sender, fallback)).Named("mcl")

	logger.With(zap.String("session", "abc")).Info("particles resampled", zap.Int("accepted", 5))
	logger.Debug("below level")

	require.Len(t, sender.lines, 1)
	line := sender.lines[0]
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "mcl")
	assert.Contains(t, line, "particles resampled")
	assert.Contains(t, line, `"session": "abc"`)
	assert.Contains(t, line, `"accepted": 5`)
	assert.NotContains(t, line, "\n")
	assert.Equal(t, 0, local.Len())
}

func TestForwardingCoreFallsBackLocally(t *testing.T) {
	sender := &fakeLogSender{result: NotConnected}
	fallback, local := observer.New(zapcore.InfoLevel)
	logger := zap.New(NewForwardingCore(sender, fallback))

	logger.With(zap.String("session", "abc")).Warn("bad resample")

	require.Equal(t, 1, local.Len())
	entry := local.All()[0]
	assert.Equal(t, "bad resample", entry.Message)
	assert.Equal(t, "abc", entry.ContextMap()["session"])
	assert.Len(t, sender.lines, 1)
}
