// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"sync"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/localizer/internal/config"
	"github.com/relabs-tech/localizer/internal/geometry"
	"github.com/relabs-tech/localizer/internal/gps"
	"github.com/relabs-tech/localizer/internal/localization"
	"github.com/relabs-tech/localizer/internal/mcl"
	"github.com/relabs-tech/localizer/internal/surface"
	"github.com/relabs-tech/localizer/internal/telemetry"
)

// gpsUnitsPerMeter assumes maps drawn in centimeters.
const gpsUnitsPerMeter = 100

// RobotOption configures NewRobot.
type RobotOption func(*robotOptions)

type robotOptions struct {
	clock      clock.Clock
	publishers []localization.Publisher
}

// WithClock drives the simulated motion from clk.
func WithClock(clk clock.Clock) RobotOption {
	return func(o *robotOptions) { o.clock = clk }
}

// WithRobotPublisher adds pub to the provider's publishers.
func WithRobotPublisher(pub localization.Publisher) RobotOption {
	return func(o *robotOptions) { o.publishers = append(o.publishers, pub) }
}

// Robot wires the localizer together: particle filter, pose provider,
// telemetry channel, simulated motion and the optional MQTT and GPS sides.
type Robot struct {
	cfg    *config.Config
	logger *zap.Logger

	channel   *telemetry.Channel
	forwarder *telemetry.Forwarder
	provider  *localization.Provider
	motion    *SimulatedMotion
	gps       *GPSSource
	gpsPort   io.ReadWriteCloser
	mqtt      mqtt.Client
	mirror    *MQTTMirror

	lost      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewRobot builds every component from cfg. Nothing runs until Run.
func NewRobot(cfg *config.Config, logger *zap.Logger, opts ...RobotOption) (*Robot, error) {
	o := robotOptions{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Robot{cfg: cfg, logger: logger, lost: make(chan struct{}, 1)}
	start := geometry.NewPose(cfg.StartX, cfg.StartY, cfg.StartHeading)

	// ---- 1) Sampler, map and motion bounds ----
	var sampler mcl.Sampler
	if cfg.RandomSeed != 0 {
		sampler = mcl.NewSampler(cfg.RandomSeed)
	} else {
		sampler = mcl.NewTimeSampler()
	}

	var (
		oracle mcl.MapOracle
		bounds Bounds
		surf   *surface.Map
	)
	if cfg.SurfaceMapPath != "" {
		m, err := surface.Load(cfg.SurfaceMapPath,
			surface.WithRatio(cfg.DisplayRatio),
			surface.WithMismatchWeight(cfg.MismatchWeight),
			surface.WithSampler(sampler),
		)
		if err != nil {
			return nil, err
		}
		surf, oracle, bounds = m, m, m
		w, h := m.Size()
		logger.Info("surface map loaded", zap.String("path", cfg.SurfaceMapPath), zap.Float64("width", w), zap.Float64("height", h))
	} else {
		oracle = mcl.Rect{Max: geometry.Point{X: cfg.MapWidth, Y: cfg.MapHeight}, Sampler: sampler}
		bounds = RectBounds{Width: cfg.MapWidth, Height: cfg.MapHeight}
	}

	// ---- 2) Telemetry channel; the filter logs through it ----
	filterLogger := logger.Named("mcl")
	if cfg.TelemetryConnect {
		channel, err := telemetry.Listen(cfg.TelemetryListenAddr,
			telemetry.WithLogger(logger.Named("telemetry")),
			telemetry.WithWriteTimeout(cfg.WriteTimeout()),
			telemetry.WithLostHandler(func(string, error) {
				select {
				case r.lost <- struct{}{}:
				default:
				}
			}),
		)
		if err != nil {
			return nil, err
		}
		r.channel = channel
		filterLogger = zap.New(telemetry.NewForwardingCore(channel, logger.Core())).Named("mcl")
	}

	set, err := mcl.NewAround(start, cfg.FilterParams(), oracle,
		mcl.WithSampler(sampler),
		mcl.WithLogger(filterLogger),
	)
	if err != nil {
		return nil, multierr.Append(err, r.Close())
	}

	// ---- 3) Sensors ----
	r.motion = NewSimulatedMotion(start, bounds)
	r.motion.Interval = cfg.SimMoveInterval()
	r.motion.Clock = o.clock
	r.motion.Surface = surf
	r.motion.Logger = logger.Named("sim")
	readings := sensorFusion{r.motion}

	if cfg.GPSSerialPort != "" {
		port, err := OpenGPSPort(cfg)
		if err != nil {
			return nil, multierr.Append(err, r.Close())
		}
		r.gpsPort = port
		proj := gps.Projector{OriginLat: cfg.GPSOriginLat, OriginLon: cfg.GPSOriginLon, UnitsPerMeter: gpsUnitsPerMeter}
		r.gps = NewGPSSource(proj, cfg.GPSSigmaCM, logger.Named("gps"))
		readings = append(readings, r.gps)
		logger.Info("gps serial port opened", zap.String("port", cfg.GPSSerialPort), zap.Int("baud", cfg.GPSBaudRate))
	}

	// ---- 4) Publishers ----
	providerOpts := []localization.Option{
		localization.WithReadingSource(readings),
		localization.WithLogger(logger.Named("provider")),
	}
	for _, pub := range o.publishers {
		providerOpts = append(providerOpts, localization.WithPublisher(pub))
	}
	if r.channel != nil {
		r.forwarder = telemetry.NewForwarder(r.channel, logger.Named("forwarder"))
		providerOpts = append(providerOpts, localization.WithPublisher(r.forwarder))
	}
	if cfg.MQTTBroker != "" {
		client, err := ConnectMQTT(cfg, cfg.MQTTClientIDRobot)
		if err != nil {
			return nil, multierr.Append(err, r.Close())
		}
		r.mqtt = client
		r.mirror = NewMQTTMirror(client, cfg.TopicPoseEstimate, logger.Named("mqtt"))
		providerOpts = append(providerOpts, localization.WithPublisher(r.mirror))
		logger.Info("mirroring poses to MQTT", zap.String("broker", cfg.MQTTBroker), zap.String("topic", cfg.TopicPoseEstimate))
	}

	r.provider = localization.New(set, providerOpts...)
	r.provider.AttachMotionSource(r.motion)
	return r, nil
}

// Provider exposes the pose provider.
func (r *Robot) Provider() *localization.Provider { return r.provider }

// Motion exposes the simulated motion source.
func (r *Robot) Motion() *SimulatedMotion { return r.motion }

// Channel exposes the telemetry channel; nil when TELEMETRY_CONNECT is off.
func (r *Robot) Channel() *telemetry.Channel { return r.channel }

// Run localizes until ctx is done, then releases everything.
func (r *Robot) Run(ctx context.Context) error {
	if r.channel != nil {
		r.wg.Add(1)
		go r.acceptLoop(ctx)
	}
	if r.gps != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.gps.Consume(r.gpsPort); err != nil {
				r.logger.Warn("gps stream ended", zap.Error(err))
			}
		}()
	}

	r.logger.Info("localizer running", zap.Stringer("pose", r.provider.Pose()))
	err := r.motion.Run(ctx)

	stats := r.provider.Stats()
	r.logger.Info("localizer stopping",
		zap.Stringer("pose", r.provider.Pose()),
		zap.Int("resamples", stats.Resamples),
		zap.Int("degenerations", stats.Degenerations),
	)
	return multierr.Append(err, r.Close())
}

// acceptLoop waits for the observer, and again after each loss when
// reconnecting is enabled.
func (r *Robot) acceptLoop(ctx context.Context) {
	defer r.wg.Done()
	for {
		if err := r.channel.Connect(); err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("telemetry accept failed", zap.Error(err))
			}
			return
		}
		if !r.cfg.TelemetryReconnect {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-r.lost:
			r.logger.Info("telemetry peer lost; waiting for a new one")
		}
	}
}

// Close stops the forwarder and the MQTT mirror, then closes the channel,
// GPS port and MQTT client. Later calls return the first result.
func (r *Robot) Close() error {
	r.closeOnce.Do(func() {
		if r.forwarder != nil {
			r.forwarder.Close()
		}
		if r.channel != nil {
			r.closeErr = multierr.Append(r.closeErr, r.channel.Close())
		}
		if r.gpsPort != nil {
			r.closeErr = multierr.Append(r.closeErr, r.gpsPort.Close())
		}
		if r.mirror != nil {
			r.mirror.Close()
		}
		if r.mqtt != nil {
			r.mqtt.Disconnect(250)
		}
		r.wg.Wait()
	})
	return r.closeErr
}
