package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/kline-sentinel/internal/app"
	"github.com/rxtech-lab/kline-sentinel/internal/config"
	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/internal/version"
	"github.com/rxtech-lab/kline-sentinel/pkg/schema"
)

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"), cmd.String("env-file"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLoggerWithConfig(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	defer func() { _ = log.Sync() }()

	log.Info("Starting sentinel",
		zap.String("version", version.GetVersion()),
		zap.Strings("symbols", cfg.Symbols),
		zap.Bool("telegram", cfg.TelegramEnabled()),
	)

	sentinel, err := app.New(cfg, log, app.Options{Dialer: nil, Fetcher: nil, Sinks: nil})
	if err != nil {
		return fmt.Errorf("failed to create sentinel: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sentinel.Run(ctx)
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	out, err := schema.ToIndentedJSONSchema(config.Config{})
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, out)

	return err
}
