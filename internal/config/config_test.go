package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/localizer/internal/mcl"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader("# nothing but a comment\n\n"))
	require.NoError(t, err)

	assert.Equal(t, mcl.DefaultParams(), cfg.FilterParams())
	assert.Equal(t, 2*time.Second, cfg.WriteTimeout())
	assert.Equal(t, 3*time.Second, cfg.DialDelay())
	assert.Equal(t, 6, cfg.DialAttempts)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.TelemetryConnect)
	assert.False(t, cfg.TelemetryReconnect)
}

func TestParseOverrides(t *testing.T) {
	input := `
PARTICLE_COUNT=50
MAX_RESAMPLE_ITERATIONS = 200
DISTANCE_NOISE_FACTOR=0.01
RANDOM_SEED=0x2a
START_X=12.5
SURFACE_MAP_PATH=/var/maps/floor.png
DISPLAY_RATIO=2
TELEMETRY_RECONNECT=true
TELEMETRY_WRITE_TIMEOUT_MS=500
MQTT_BROKER=tcp://localhost:1883
GPS_SERIAL_PORT=/dev/serial0
GPS_ORIGIN_LAT=45.07
SIM_MOVE_INTERVAL_MS=250
LOG_LEVEL=DEBUG
`
	cfg, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.ParticleCount)
	assert.Equal(t, 200, cfg.MaxResampleIterations)
	assert.Equal(t, 0.01, cfg.DistanceNoiseFactor)
	assert.Equal(t, uint64(42), cfg.RandomSeed)
	assert.Equal(t, 12.5, cfg.StartX)
	assert.Equal(t, "/var/maps/floor.png", cfg.SurfaceMapPath)
	assert.Equal(t, 2.0, cfg.DisplayRatio)
	assert.True(t, cfg.TelemetryReconnect)
	assert.Equal(t, 500*time.Millisecond, cfg.WriteTimeout())
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "/dev/serial0", cfg.GPSSerialPort)
	assert.Equal(t, 45.07, cfg.GPSOriginLat)
	assert.Equal(t, 250*time.Millisecond, cfg.SimMoveInterval())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"missing equals":      "PARTICLE_COUNT 5",
		"unknown key":         "IMU_LEFT_SPI_DEVICE=/dev/spidev0.0",
		"bad int":             "PARTICLE_COUNT=many",
		"bad float":           "ANGLE_NOISE_FACTOR=x",
		"bad bool":            "TELEMETRY_RECONNECT=sometimes",
		"zero particles":      "PARTICLE_COUNT=0",
		"negative noise":      "STARTING_RADIUS_NOISE=-1",
		"mismatch range":      "MISMATCH_WEIGHT=1.5",
		"ratio":               "DISPLAY_RATIO=0",
		"dial attempts":       "DIAL_ATTEMPTS=0",
		"log level":           "LOG_LEVEL=loud",
		"mqtt without topic":  "MQTT_BROKER=tcp://x:1883\nTOPIC_POSE_ESTIMATE=",
		"gps without baud":    "GPS_SERIAL_PORT=/dev/ttyUSB0\nGPS_BAUD_RATE=0",
		"listen addr missing": "TELEMETRY_LISTEN_ADDR=",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestLoadReportsLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localizer.config")
	require.NoError(t, os.WriteFile(path, []byte("PARTICLE_COUNT=5\nBOGUS=1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config line 2")

	_, err = Load(filepath.Join(t.TempDir(), "missing.config"))
	assert.Error(t, err)
}

func TestInitGlobal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localizer.config")
	require.NoError(t, os.WriteFile(path, []byte("PARTICLE_COUNT=7\n"), 0o644))

	require.NoError(t, InitGlobal(path))
	require.NotNil(t, Get())
	assert.Equal(t, 7, Get().ParticleCount)

	// later calls keep the first configuration
	require.NoError(t, InitGlobal(filepath.Join(t.TempDir(), "other.config")))
	assert.Equal(t, 7, Get().ParticleCount)
}
