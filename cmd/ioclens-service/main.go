package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ioclens/internal/app"
	"ioclens/internal/config"
	"ioclens/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	boot, _ := zap.NewProduction()

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal("config", zap.Error(err))
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		boot.Fatal("logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if err := app.Run(ctx, cfg, log); err != nil {
		log.Fatal("app error", zap.Error(err))
	}
}
