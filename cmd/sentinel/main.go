package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/kline-sentinel/internal/version"
)

func main() {
	cmd := &cli.Command{
		Name:    "sentinel",
		Usage:   "Watch exchange kline streams and alert on volume and price moves",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Connect to the stream and evaluate rules until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the YAML configuration file",
						Sources: cli.EnvVars("SENTINEL_CONFIG"),
					},
					&cli.StringFlag{
						Name:  "env-file",
						Usage: "Path to a .env file holding secrets (defaults to ./.env when present)",
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the configuration file",
				Action: schemaAction,
			},
			{
				Name:  "status",
				Usage: "Show subscriptions and processors of a running sentinel",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Base URL of the control API",
						Value: "http://localhost:8080",
					},
				},
				Action: statusAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
