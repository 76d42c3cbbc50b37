// Command worker runs the background computation worker: the job
// scheduler, the aggregation pipeline, the two-tier cache and the ops
// HTTP surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/config"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/di"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := context.Background()
	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	logger := container.Logger
	defer logger.Sync()

	logger.Info("Starting background computation worker",
		zap.String("environment", string(cfg.Environment)),
		zap.Strings("configSources", cfg.LoadedFrom),
	)

	// Scheduler lifecycle events feed the log stream for operators.
	container.Scheduler.Notifier().Subscribe(
		[]scheduler.EventType{scheduler.EventJobFailed},
		func(event scheduler.Event) {
			logger.Warn("Job reached terminal failure",
				zap.String("jobID", event.Job.ID),
				zap.String("type", string(event.Job.Type)),
				zap.String("error", event.Job.Error),
			)
		},
	)

	container.Start()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- container.OpsServer.Start()
	}()

	// Hot-reload watcher: log level changes take effect immediately;
	// structural settings such as scheduler concurrency apply on the
	// next process restart.
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		watcher := config.NewWatcher(path, logger)
		watcher.Subscribe(func(updated *config.Config) {
			container.ApplyLoggingConfig(updated)
			logger.Info("Configuration file reloaded",
				zap.String("environment", string(updated.Environment)),
				zap.String("logLevel", updated.Logging.Level))
		})
		if err := watcher.Start(); err != nil {
			logger.Warn("Config watcher unavailable", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("Ops server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := container.OpsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ops server shutdown failed", zap.Error(err))
	}
	if err := container.Stop(shutdownCtx); err != nil {
		logger.Error("Component shutdown incomplete", zap.Error(err))
		return err
	}

	logger.Info("Worker stopped cleanly")
	return nil
}
