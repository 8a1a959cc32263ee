package gps

import (
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/pkg/errors"
)

// Parser accumulates NMEA sentences into a Fix.
//
// RMC sentences complete a fix; GGA sentences only refresh the quality
// fields of the next one.
type Parser struct {
	current Fix
}

// Feed parses one line. It returns the updated fix and true when line was an
// RMC sentence. Lines that are not NMEA sentences are ignored without error.
func (p *Parser) Feed(line string) (Fix, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "$") {
		return Fix{}, false, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, false, errors.Wrap(err, "gps: parse sentence")
	}

	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		p.current.Time = m.Time.String()
		p.current.Date = m.Date.String()
		p.current.Latitude = m.Latitude
		p.current.Longitude = m.Longitude
		p.current.SpeedKnots = m.Speed
		p.current.CourseDeg = m.Course
		p.current.Validity = string(m.Validity)
		return p.current, true, nil

	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		p.current.Quality = string(m.FixQuality)
		p.current.Satellites = m.NumSatellites
		p.current.HDOP = m.HDOP
	}
	return Fix{}, false, nil
}
