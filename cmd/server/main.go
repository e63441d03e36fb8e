package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/identity-service/internal/app"
	"github.com/utafrali/identity-service/internal/config"
	"github.com/utafrali/identity-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.ServiceName, cfg.LogLevel)
	log.Info("starting identity service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
	)

	if err := run(cfg, log); err != nil {
		log.Error("identity service exited", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("identity service stopped")
}

// run blocks until SIGINT or SIGTERM triggers a graceful shutdown.
func run(cfg *config.Config, log *slog.Logger) error {
	application, err := app.NewApp(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return application.Run(ctx)
}
