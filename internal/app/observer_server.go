package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/localizer/internal/config"
	"github.com/relabs-tech/localizer/internal/surface"
	"github.com/relabs-tech/localizer/internal/telemetry"
)

// NewObserverFromConfig sizes the rendered images to the surface map when
// one is configured, and to MAP_WIDTH×MAP_HEIGHT otherwise.
func NewObserverFromConfig(cfg *config.Config, out io.Writer, logger *zap.Logger) (*Observer, error) {
	width, height := cfg.MapWidth, cfg.MapHeight
	var background *surface.Map
	if cfg.SurfaceMapPath != "" {
		m, err := surface.Load(cfg.SurfaceMapPath, surface.WithRatio(cfg.DisplayRatio))
		if err != nil {
			return nil, err
		}
		background = m
		width, height = m.Size()
	}

	ratio := cfg.DisplayRatio
	o := NewObserver(out,
		int(math.Ceil(width*ratio)),
		int(math.Ceil(height*ratio)),
		ratio, logger)
	o.SnapshotDir = cfg.SnapshotDir
	if background != nil {
		o.Background = background
	}
	return o, nil
}

// RunObserver connects to the robot, prints its log lines and serves the
// filter state over HTTP until ctx is done.
func RunObserver(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) error {
	obs, err := NewObserverFromConfig(cfg, out, logger.Named("observer"))
	if err != nil {
		return err
	}

	// ---- 1) Web server ----
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           obs.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		logger.Info("web server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
		}
		close(srvErr)
	}()

	// ---- 2) Telemetry link ----
	dialer := &telemetry.Dialer{
		Address:  cfg.TelemetryPeerAddr,
		Attempts: cfg.DialAttempts,
		Delay:    cfg.DialDelay(),
		Logger:   logger.Named("dialer"),
	}
	linkErr := make(chan error, 1)
	go func() {
		linkErr <- followRobot(ctx, dialer, obs, cfg, logger)
	}()

	select {
	case <-ctx.Done():
		err = nil
	case err = <-srvErr:
	case err = <-linkErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return multierr.Append(err, srv.Shutdown(shutdownCtx))
}

// followRobot receives frames until the link ends, redialing after each
// drop when reconnecting is enabled. It returns nil once ctx is done.
func followRobot(ctx context.Context, dialer *telemetry.Dialer, obs *Observer, cfg *config.Config, logger *zap.Logger) error {
	for {
		conn, err := dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		err = receive(ctx, conn, obs, cfg.ParticleCount)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			logger.Warn("telemetry link broken", zap.Error(err))
		} else {
			logger.Info("robot closed the telemetry link")
		}
		if !cfg.TelemetryReconnect {
			return err
		}
	}
}

func receive(ctx context.Context, conn net.Conn, obs *Observer, particles int) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	rc := telemetry.NewReceiver(conn, particles)
	obs.Attach(rc)
	return rc.Run()
}
