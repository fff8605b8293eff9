// Package cli holds the start-up steps shared by cmd/casebook and
// cmd/casebook-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"casebook/internal/backend"
	"casebook/internal/config"
	"casebook/internal/log"
)

// SetupLogger builds the process logger for component, installs it as the
// slog default and returns it. LOG_LEVEL picks the level and LOG_FORMAT=json
// switches from text to JSON output.
func SetupLogger(component string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: log.ParseLevel(os.Getenv("LOG_LEVEL"))}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := log.New(log.Config{Component: component, Handler: handler})
	log.SetDefault(logger)
	return logger.Logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend builds the case backend described by cfg. withEvents
// controls whether writes publish case events. Exits the process on failure.
func InitBackend(ctx context.Context, logger *slog.Logger, cfg *config.Config, withEvents bool) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	if !withEvents {
		bcfg.AMQPURL = ""
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with a context bounded by timeout, and done is
// closed once it returns or the timeout passes.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		stop()
		logger.Info("Shutdown signal received")
		if cleanup == nil {
			return
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			cleanup(shutdownCtx)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached", "timeout", timeout)
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the signal arrived and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
