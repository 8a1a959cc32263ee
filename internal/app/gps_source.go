package app

import (
	"bufio"
	"io"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/localizer/internal/config"
	"github.com/relabs-tech/localizer/internal/gps"
	"github.com/relabs-tech/localizer/internal/mcl"
)

// OpenGPSPort opens the receiver's serial port as configured.
func OpenGPSPort(cfg *config.Config) (io.ReadWriteCloser, error) {
	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "gps: open %s", cfg.GPSSerialPort)
	}
	return port, nil
}

// GPSSource turns an NMEA stream into filter readings.
type GPSSource struct {
	proj   gps.Projector
	sigma  float64
	logger *zap.Logger

	mu     sync.Mutex
	parser gps.Parser
	last   gps.Fix
	have   bool
}

// NewGPSSource weighs poses against fixes projected with proj; sigma is the
// fix error in pose units.
func NewGPSSource(proj gps.Projector, sigma float64, logger *zap.Logger) *GPSSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GPSSource{proj: proj, sigma: sigma, logger: logger}
}

// Consume reads sentences from r until it ends. A clean end returns nil.
func (g *GPSSource) Consume(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		g.mu.Lock()
		fix, ok, err := g.parser.Feed(scanner.Text())
		if ok {
			g.last = fix
			g.have = true
		}
		g.mu.Unlock()

		if err != nil {
			// noisy receivers emit partial sentences
			g.logger.Debug("dropping sentence", zap.Error(err))
			continue
		}
		if ok {
			g.logger.Debug("gps fix",
				zap.Float64("lat", fix.Latitude),
				zap.Float64("lon", fix.Longitude),
				zap.Bool("valid", fix.Valid()),
			)
		}
	}
	return errors.Wrap(scanner.Err(), "gps: read")
}

// Latest returns the most recent fix.
func (g *GPSSource) Latest() (gps.Fix, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.have
}

// Reading implements localization.ReadingSource. It is nil until the first
// fix arrives.
func (g *GPSSource) Reading() mcl.Reading {
	fix, ok := g.Latest()
	if !ok {
		return nil
	}
	return fix.Reading(g.proj, g.sigma)
}
