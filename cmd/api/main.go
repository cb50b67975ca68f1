package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vnmchuo/vendor-spend/config"
	"github.com/vnmchuo/vendor-spend/internal/api"
	"github.com/vnmchuo/vendor-spend/internal/app"
	"github.com/vnmchuo/vendor-spend/internal/auth"
	"github.com/vnmchuo/vendor-spend/internal/logging"
	"github.com/vnmchuo/vendor-spend/internal/seeder"
	"github.com/vnmchuo/vendor-spend/internal/telemetry"
	"github.com/vnmchuo/vendor-spend/internal/worker"
	"github.com/vnmchuo/vendor-spend/pkg/ratelimit"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.Bootstrap()
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(cfg, "api")

	// 2. Init telemetry
	ctx := context.Background()
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

	// 4. Init auth
	verifier, err := auth.LoadVerifier(cfg.AuthPublicKeyFile, cfg.AuthHMACSecret, cfg.AuthIssuer, cfg.AuthAudience)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init token verifier")
	}
	authMiddleware := auth.NewMiddleware(verifier, a.Users, auth.NewRedisCache(a.Redis), logger)

	// 5. Init rate limiter
	limiter := ratelimit.NewLimiter(a.Redis, cfg.RateLimitPerMinute)

	// 6. Seed dev user if RUN_SEED=true
	if cfg.RunSeed {
		if err := seeder.Seed(ctx, a.Users, a.Budgets, verifier, time.Now(), logger); err != nil {
			logger.Error().Err(err).Msg("seeding failed")
		}
	}

	// 7. Init handler and router
	jobs := worker.NewJobs(a.Coordinator, 20)
	handler := api.NewHandler(api.Deps{
		Reconciler:     a.Reconciler,
		Configurations: a.Configurations,
		Budgets:        a.Budgets,
		Batch:          a.Coordinator,
		Jobs:           jobs,
		Limiter:        limiter,
		Tracer:         telemetry.Tracer("api"),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	// 8. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler, authMiddleware),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // synchronous batch runs can be long
		IdleTimeout:  120 * time.Second,
	}
	metricsSrv := telemetry.NewMetricsServer(cfg.MetricsAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server starting")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("vendor spend API starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	logger.Info().Msg("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	jobs.Wait()
	logger.Info().Msg("Server stopped")
}
