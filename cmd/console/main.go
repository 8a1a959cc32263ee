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
		Name:  "console",
		Usage: "run the localizer offline and print true versus estimated pose",
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
		Action: func(c *cli.Context) error {
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
			logger := logging.New("console", level)
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.RunSimConsole(ctx, cfg, os.Stdout, logger)
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
