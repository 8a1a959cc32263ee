package app

import (
	"github.com/relabs-tech/localizer/internal/geometry"
	"github.com/relabs-tech/localizer/internal/localization"
	"github.com/relabs-tech/localizer/internal/mcl"
)

// sensorFusion multiplies the readings of independent sensors. Sources
// without a reading are skipped; with none at all Reading returns nil and
// the filter keeps its weights.
type sensorFusion []localization.ReadingSource

func (f sensorFusion) Reading() mcl.Reading {
	var readings []mcl.Reading
	for _, src := range f {
		if r := src.Reading(); r != nil {
			readings = append(readings, r)
		}
	}

	switch len(readings) {
	case 0:
		return nil
	case 1:
		return readings[0]
	}
	return func(p geometry.Pose) float64 {
		w := 1.0
		for _, r := range readings {
			w *= r(p)
		}
		return w
	}
}
