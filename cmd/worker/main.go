package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/vnmchuo/vendor-spend/config"
	"github.com/vnmchuo/vendor-spend/internal/app"
	"github.com/vnmchuo/vendor-spend/internal/logging"
	"github.com/vnmchuo/vendor-spend/internal/telemetry"
	"github.com/vnmchuo/vendor-spend/internal/worker"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.Bootstrap()
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(cfg, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Init telemetry
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracer")
	}
	defer shutdownTracer()

	// 3. Connect PostgreSQL and Redis, migrate, build services
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	metricsSrv := telemetry.NewMetricsServer(cfg.MetricsAddr)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	// 4. Run the batch on schedule until signalled
	scheduler := worker.NewScheduler(a.Coordinator, cfg.BatchInterval, logger)
	if err := scheduler.Run(ctx, true); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("scheduler stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info().Msg("Worker stopped")
}
