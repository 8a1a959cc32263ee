package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"INFO":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestNewCoreFiltersAndFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := zap.New(NewCore(zapcore.WarnLevel, zapcore.AddSync(&buf))).Named("mcl")

	logger.Info("hidden")
	logger.Warn("bad resample", zap.Int("accepted", 2))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "mcl")
	assert.Contains(t, out, "bad resample")
	assert.Contains(t, out, `"accepted": 2`)
}
