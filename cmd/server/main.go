package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"taskscheduler-go/internal/app"
	"taskscheduler-go/internal/config"
	"taskscheduler-go/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Production())
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Infow("starting task scheduler", "env", cfg.AppEnv, "port", cfg.ServerPort)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatalw("failed to create application", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		logger.Infow("shutdown signal received")
		cancel()
	}()

	if err := application.Run(ctx); err != nil {
		logger.Fatalw("application failed", "error", err)
	}

	logger.Infow("application stopped")
}
