package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"cfocopilot/internal/amqp"
	"cfocopilot/internal/cli"
	apphttp "cfocopilot/internal/http"
	"cfocopilot/internal/log"
	"cfocopilot/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.MustLoadConfig(logger)

	ctx, cancel := cli.GracefulShutdown(context.Background(), logger)
	defer cancel()

	app, err := cli.NewCopilot(ctx, cfg, logger, cli.Options{})
	if err != nil {
		cli.Fatal(logger, "Failed to start copilot", err, log.OpStartup)
	}
	defer app.Close()

	// Reload requests over AMQP are optional; without a broker the ledger
	// is refreshed only by RELOAD_INTERVAL and POST /api/v1/reload.
	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, reload messages disabled", log.FieldError, err)
		} else {
			defer client.Close()
			consumer = client
			logger.Info("Listening for reload messages", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Service:            app.Service,
		Reload:             app.Worker.ReloadNow,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting cfocopilot server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return app.Worker.Run(gctx, consumer)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		cli.Fatal(logger, "Server error", err, log.OpShutdown)
	}
	logger.Info("Server stopped gracefully")
}
