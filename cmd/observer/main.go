package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/relabs-tech/localizer/internal/app"
	"github.com/relabs-tech/localizer/internal/config"
	"github.com/relabs-tech/localizer/internal/logging"
)

func main() {
	cliApp := &cli.App{
		Name:  "observer",
		Usage: "connect to a robot, print its logs and serve its particle filter",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "localizer_config.txt",
				Usage:   "path to the KEY=VALUE configuration file",
			},
			&cli.StringFlag{
				Name:  "peer",
				Usage: "override TELEMETRY_PEER_ADDR",
			},
			&cli.StringFlag{
				Name:  "snapshots",
				Usage: "override SNAPSHOT_DIR",
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
	if c.IsSet("peer") {
		cfg.TelemetryPeerAddr = c.String("peer")
	}
	if c.IsSet("snapshots") {
		cfg.SnapshotDir = c.String("snapshots")
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New("observer", level)
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.RunObserver(ctx, cfg, os.Stdout, logger)
}
