package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/framecast/render-api/internal/artifact"
	"github.com/framecast/render-api/internal/config"
	"github.com/framecast/render-api/internal/notify"
	"github.com/framecast/render-api/internal/platform/synthvid"
	"github.com/framecast/render-api/internal/store"
	"github.com/framecast/render-api/internal/task"
)

// application holds all initialized application components and their
// dependencies.
type application struct {
	config *config.Config
	logger *slog.Logger

	taskStore  *store.MemoryTaskStore
	scheduler  *task.Scheduler
	dispatcher *notify.WebhookDispatcher
	artifacts  *artifact.Resolver

	// sweepStop terminates the retention sweep goroutine.
	sweepStop chan struct{}
}

// newApplication creates an application instance with all dependencies
// initialized: task store, renderer, scheduler, webhook dispatcher, and
// artifact resolver. The scheduler's worker pool and the retention sweep
// are started before returning.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:    cfg,
		logger:    logger,
		sweepStop: make(chan struct{}),
	}

	app.taskStore = store.NewMemoryTaskStore(logger)

	renderer, err := synthvid.New(cfg.Storage.OutputDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize renderer: %w", err)
	}

	app.scheduler = task.NewScheduler(app.taskStore, renderer, task.SchedulerConfig{
		WorkerCount:   cfg.Scheduler.WorkerCount,
		MaxQueueDepth: cfg.Scheduler.MaxQueueDepth,
		TaskTimeout:   cfg.Scheduler.TaskTimeout,
	}, logger)

	app.dispatcher = notify.NewWebhookDispatcher(notify.WebhookConfig{
		URL:            cfg.Webhook.URL,
		Secret:         cfg.Webhook.Secret,
		MaxRetries:     cfg.Webhook.MaxRetries,
		RetryBaseDelay: cfg.Webhook.RetryBaseDelay,
	}, logger)
	if app.dispatcher.Enabled() {
		app.taskStore.Subscribe(app.dispatcher.OnTaskTerminal)
		logger.Info("Webhook dispatcher initialized",
			"max_retries", cfg.Webhook.MaxRetries)
	} else {
		logger.Info("Webhook delivery disabled, no URL configured")
	}

	app.artifacts = artifact.NewResolver(app.taskStore, cfg.Storage.OutputDir)

	app.scheduler.Start()
	app.startRetentionSweep()

	logger.Info("Application initialized successfully")
	return app, nil
}

// startRetentionSweep periodically evicts terminal task records older than
// the configured retention age.
func (app *application) startRetentionSweep() {
	interval := app.config.Retention.SweepInterval
	maxAge := app.config.Retention.MaxTaskAge
	if interval <= 0 {
		app.logger.Info("Retention sweep disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cutoff := time.Now().Add(-maxAge)
				if evicted := app.taskStore.EvictTerminalBefore(cutoff); evicted > 0 {
					app.logger.Info("Evicted old task records", "count", evicted)
				}
			case <-app.sweepStop:
				return
			}
		}
	}()
}

// cleanup handles graceful shutdown of application resources. The scheduler
// is stopped first so no new terminal transitions arrive while the store and
// dispatcher drain their notification queues.
func (app *application) cleanup() {
	close(app.sweepStop)

	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	if app.taskStore != nil {
		app.taskStore.Close()
	}
	if app.dispatcher != nil {
		app.dispatcher.Stop()
	}

	app.logger.Info("Application shutdown completed")
}
