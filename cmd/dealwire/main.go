package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dealwire-hq/dealwire/internal/app"
	"github.com/dealwire-hq/dealwire/internal/config"
	"github.com/dealwire-hq/dealwire/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dealwire start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Close()

	log.InfoObj("dealwire starting", "config", map[string]any{
		"app_env":       cfg.Env,
		"sources_file":  cfg.SourcesFile,
		"storage_type":  cfg.StorageType,
		"post_interval": cfg.PostInterval.String(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := app.NewBot(ctx, cfg, log)
	if err != nil {
		log.ErrorObj("failed to initialize bot", "error", err)
		return err
	}

	if err := bot.Run(ctx); err != nil {
		return fmt.Errorf("bot run: %w", err)
	}

	return nil
}
