// Package main implements the entry point for the render API server,
// which accepts video generation requests and renders them asynchronously
// through a bounded worker pool.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/framecast/render-api/internal/config"
	"github.com/framecast/render-api/internal/platform/logger"
)

// main initializes configuration, logging, and application components, then
// runs the HTTP server until interrupted.
func main() {
	cfg, appLogger, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app, err := newApplication(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)

	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"worker_count", cfg.Scheduler.WorkerCount,
		"output_dir", cfg.Storage.OutputDir,
		"webhook_enabled", cfg.Webhook.URL != "")

	return cfg, appLogger, nil
}
