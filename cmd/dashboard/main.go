package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dealwire-hq/dealwire/internal/config"
	"github.com/dealwire-hq/dealwire/internal/dashboard"
	"github.com/dealwire-hq/dealwire/internal/logger"
	"github.com/dealwire-hq/dealwire/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dashboard start failed: %v\n", err)
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

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	log.InfoObj("dashboard starting", "config", map[string]any{
		"addr":         cfg.DashboardAddr,
		"storage_type": cfg.StorageType,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := dashboard.New(cfg.DashboardAddr, store, log)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("dashboard run: %w", err)
	}

	return nil
}
