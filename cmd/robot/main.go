// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/relabs-tech/localizer/internal/app"
	"github.com/relabs-tech/localizer/internal/config"
	"github.com/relabs-tech/localizer/internal/logging"
)

func main() {
	cliApp := &cli.App{
		Name:  "robot",
		Usage: "run the particle filter localizer and stream it to an observer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "localizer_config.txt",
				Usage:   "path to the KEY=VALUE configuration file",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "override RANDOM_SEED",
			},
		},
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(c *cli.Context) error {
	if err := config.InitGlobal(c.String("config")); err != nil {
		return err
	}
	cfg := config.Get()
	if c.IsSet("seed") {
		cfg.RandomSeed = c.Uint64("seed")
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New("robot", level)
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	robot, err := app.NewRobot(cfg, logger)
	if err != nil {
		return err
	}
	if ch := robot.Channel(); ch != nil {
		logger.Info("telemetry listening", zap.Stringer("addr", ch.Addr()))
	}
	logger.Info("starting localizer", zap.Int("particles", cfg.ParticleCount))
	return robot.Run(ctx)
}
