package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/relabs-tech/localizer/internal/mcl"
)

// Config holds all application configuration values.
type Config struct {
	// Filter
	ParticleCount         int
	MaxResampleIterations int
	StartingRadiusNoise   float64
	StartingHeadingNoise  float64
	DistanceNoiseFactor   float64
	AngleNoiseFactor      float64
	RandomSeed            uint64 // 0 seeds from the clock

	// Start pose and map extent (used when no surface map is configured)
	StartX       float64
	StartY       float64
	StartHeading float64
	MapWidth     float64
	MapHeight    float64

	// Surface map
	SurfaceMapPath string
	DisplayRatio   float64 // map pixels per pose unit
	MismatchWeight float64

	// Telemetry
	TelemetryListenAddr     string // robot side
	TelemetryPeerAddr       string // observer side
	TelemetryConnect        bool
	TelemetryReconnect      bool
	TelemetryWriteTimeoutMS int
	DialAttempts            int
	DialDelayMS             int

	// MQTT
	MQTTBroker          string
	MQTTClientIDRobot   string
	MQTTClientIDConsole string
	TopicPoseEstimate   string

	// GPS
	GPSSerialPort string
	GPSBaudRate   int
	GPSOriginLat  float64
	GPSOriginLon  float64
	GPSSigmaCM    float64

	// Simulation
	SimMoveIntervalMS int

	// Observer web server
	WebServerPort int
	SnapshotDir   string

	// Logging: debug, info, warn or error
	LogLevel string
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access; Get takes the read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for any key the file leaves out.
func Default() *Config {
	p := mcl.DefaultParams()
	return &Config{
		ParticleCount:         p.Count,
		MaxResampleIterations: p.MaxResampleIterations,
		StartingRadiusNoise:   p.StartingRadiusNoise,
		StartingHeadingNoise:  p.StartingHeadingNoise,
		DistanceNoiseFactor:   p.DistanceNoiseFactor,
		AngleNoiseFactor:      p.AngleNoiseFactor,

		MapWidth:  200,
		MapHeight: 150,

		DisplayRatio:   1,
		MismatchWeight: 0.1,

		TelemetryListenAddr:     ":7070",
		TelemetryPeerAddr:       "localhost:7070",
		TelemetryConnect:        true,
		TelemetryWriteTimeoutMS: 2000,
		DialAttempts:            6,
		DialDelayMS:             3000,

		MQTTClientIDRobot:   "localizer-robot",
		MQTTClientIDConsole: "localizer-console",
		TopicPoseEstimate:   "localizer/pose",

		GPSBaudRate: 9600,
		GPSSigmaCM:  300,

		SimMoveIntervalMS: 1000,
		WebServerPort:     8080,
		LogLevel:          "info",
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default. Blank lines and lines
// starting with '#' are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseInt(key, value string, dst *int) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func parseFloat(key, value string, dst *float64) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func parseBool(key, value string, dst *bool) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Filter
	case "PARTICLE_COUNT":
		return parseInt(key, value, &c.ParticleCount)
	case "MAX_RESAMPLE_ITERATIONS":
		return parseInt(key, value, &c.MaxResampleIterations)
	case "STARTING_RADIUS_NOISE":
		return parseFloat(key, value, &c.StartingRadiusNoise)
	case "STARTING_HEADING_NOISE":
		return parseFloat(key, value, &c.StartingHeadingNoise)
	case "DISTANCE_NOISE_FACTOR":
		return parseFloat(key, value, &c.DistanceNoiseFactor)
	case "ANGLE_NOISE_FACTOR":
		return parseFloat(key, value, &c.AngleNoiseFactor)
	case "RANDOM_SEED":
		seed, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid RANDOM_SEED %q: %w", value, err)
		}
		c.RandomSeed = seed

	// Start pose and map extent
	case "START_X":
		return parseFloat(key, value, &c.StartX)
	case "START_Y":
		return parseFloat(key, value, &c.StartY)
	case "START_HEADING":
		return parseFloat(key, value, &c.StartHeading)
	case "MAP_WIDTH":
		return parseFloat(key, value, &c.MapWidth)
	case "MAP_HEIGHT":
		return parseFloat(key, value, &c.MapHeight)

	// Surface map
	case "SURFACE_MAP_PATH":
		c.SurfaceMapPath = value
	case "DISPLAY_RATIO":
		return parseFloat(key, value, &c.DisplayRatio)
	case "MISMATCH_WEIGHT":
		return parseFloat(key, value, &c.MismatchWeight)

	// Telemetry
	case "TELEMETRY_LISTEN_ADDR":
		c.TelemetryListenAddr = value
	case "TELEMETRY_PEER_ADDR":
		c.TelemetryPeerAddr = value
	case "TELEMETRY_CONNECT":
		return parseBool(key, value, &c.TelemetryConnect)
	case "TELEMETRY_RECONNECT":
		return parseBool(key, value, &c.TelemetryReconnect)
	case "TELEMETRY_WRITE_TIMEOUT_MS":
		return parseInt(key, value, &c.TelemetryWriteTimeoutMS)
	case "DIAL_ATTEMPTS":
		return parseInt(key, value, &c.DialAttempts)
	case "DIAL_DELAY_MS":
		return parseInt(key, value, &c.DialDelayMS)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_ROBOT":
		c.MQTTClientIDRobot = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "TOPIC_POSE_ESTIMATE":
		c.TopicPoseEstimate = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		return parseInt(key, value, &c.GPSBaudRate)
	case "GPS_ORIGIN_LAT":
		return parseFloat(key, value, &c.GPSOriginLat)
	case "GPS_ORIGIN_LON":
		return parseFloat(key, value, &c.GPSOriginLon)
	case "GPS_SIGMA_CM":
		return parseFloat(key, value, &c.GPSSigmaCM)

	// Simulation
	case "SIM_MOVE_INTERVAL_MS":
		return parseInt(key, value, &c.SimMoveIntervalMS)

	// Observer
	case "WEB_SERVER_PORT":
		return parseInt(key, value, &c.WebServerPort)
	case "SNAPSHOT_DIR":
		c.SnapshotDir = value

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks ranges and cross-field requirements.
func (c *Config) validate() error {
	if err := c.FilterParams().Validate(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if c.MapWidth <= 0 || c.MapHeight <= 0 {
		return fmt.Errorf("MAP_WIDTH and MAP_HEIGHT must be positive")
	}
	if c.DisplayRatio <= 0 {
		return fmt.Errorf("DISPLAY_RATIO must be positive, got %v", c.DisplayRatio)
	}
	if c.MismatchWeight < 0 || c.MismatchWeight > 1 {
		return fmt.Errorf("MISMATCH_WEIGHT must be in [0,1], got %v", c.MismatchWeight)
	}
	if c.TelemetryConnect && c.TelemetryListenAddr == "" {
		return fmt.Errorf("TELEMETRY_LISTEN_ADDR is required when TELEMETRY_CONNECT is true")
	}
	if c.TelemetryWriteTimeoutMS < 0 {
		return fmt.Errorf("TELEMETRY_WRITE_TIMEOUT_MS must not be negative")
	}
	if c.DialAttempts < 1 {
		return fmt.Errorf("DIAL_ATTEMPTS must be at least 1, got %d", c.DialAttempts)
	}
	if c.DialDelayMS < 0 {
		return fmt.Errorf("DIAL_DELAY_MS must not be negative")
	}
	if c.MQTTBroker != "" && c.TopicPoseEstimate == "" {
		return fmt.Errorf("TOPIC_POSE_ESTIMATE is required when MQTT_BROKER is set")
	}
	if c.GPSSerialPort != "" && c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE is required when GPS_SERIAL_PORT is set")
	}
	if c.SimMoveIntervalMS <= 0 {
		return fmt.Errorf("SIM_MOVE_INTERVAL_MS must be positive, got %d", c.SimMoveIntervalMS)
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return nil
}

// FilterParams returns the particle filter tuning.
func (c *Config) FilterParams() mcl.Params {
	return mcl.Params{
		Count:                 c.ParticleCount,
		MaxResampleIterations: c.MaxResampleIterations,
		StartingRadiusNoise:   c.StartingRadiusNoise,
		StartingHeadingNoise:  c.StartingHeadingNoise,
		DistanceNoiseFactor:   c.DistanceNoiseFactor,
		AngleNoiseFactor:      c.AngleNoiseFactor,
	}
}

// WriteTimeout is TelemetryWriteTimeoutMS as a duration.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.TelemetryWriteTimeoutMS) * time.Millisecond
}

// DialDelay is DialDelayMS as a duration.
func (c *Config) DialDelay() time.Duration {
	return time.Duration(c.DialDelayMS) * time.Millisecond
}

// SimMoveInterval is SimMoveIntervalMS as a duration.
func (c *Config) SimMoveInterval() time.Duration {
	return time.Duration(c.SimMoveIntervalMS) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
