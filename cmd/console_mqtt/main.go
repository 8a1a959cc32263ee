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
		Name:  "console_mqtt",
		Usage: "print pose estimates published on MQTT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "localizer_config.txt",
				Usage:   "path to the KEY=VALUE configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			if err := config.InitGlobal(c.String("config")); err != nil {
				return err
			}
			cfg := config.Get()
			level, err := logging.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			logger := logging.New("console", level)
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.RunConsoleMQTT(cfg, os.Stdout, logger, ctx.Done())
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
