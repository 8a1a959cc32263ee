// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"math"

	"go.uber.org/zap"

	"github.com/relabs-tech/localizer/internal/config"
	"github.com/relabs-tech/localizer/internal/localization"
	"github.com/relabs-tech/localizer/internal/mcl"
)

// RunSimConsole runs the localizer offline and prints the true and estimated
// pose after every move. Telemetry and MQTT are disabled.
func RunSimConsole(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger, opts ...RobotOption) error {
	local := *cfg
	local.TelemetryConnect = false
	local.MQTTBroker = ""

	var robot *Robot
	printer := localization.PublisherFunc(func(snap mcl.Snapshot) {
		if snap.Estimate == nil || robot == nil {
			return
		}
		truth := robot.Motion().Truth()
		est := *snap.Estimate
		fmt.Fprintf(out,
			"TRUTH x=%7.2f y=%7.2f h=%7.2f  EST x=%7.2f y=%7.2f h=%7.2f  ERR=%6.2f\n",
			truth.X, truth.Y, truth.Heading,
			est.X, est.Y, est.Heading,
			math.Hypot(truth.X-est.X, truth.Y-est.Y),
		)
	})

	robot, err := NewRobot(&local, logger, append(opts, WithRobotPublisher(printer))...)
	if err != nil {
		return err
	}
	return robot.Run(ctx)
}
