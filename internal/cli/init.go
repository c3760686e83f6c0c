// Package cli holds the start-up steps shared by cmd/cfocopilot and cmd/cfo.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cfocopilot/internal/config"
	"cfocopilot/internal/log"

	"github.com/joho/godotenv"
)

// SetupLogger builds the stdout logger from LOG_LEVEL and LOG_FORMAT and
// makes it the slog default.
func SetupLogger(level, format string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: log.ComponentApp,
		Format:    format,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads the configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoadConfig is LoadAndValidateConfig for long-running binaries: it
// exits the process when the configuration is unusable.
func MustLoadConfig(logger *log.Logger) *config.Config {
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM.
func GracefulShutdown(ctx context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Fatal logs err with its operation and exits.
func Fatal(logger *log.Logger, msg string, err error, op string) {
	logger.Error(msg, log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
	fmt.Fprintln(os.Stderr, msg+":", err)
	os.Exit(1)
}
