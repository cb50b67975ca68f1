// Package app wires the stores, vendor sources and services shared by the
// API and worker processes.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vnmchuo/vendor-spend/config"
	"github.com/vnmchuo/vendor-spend/internal/auth"
	"github.com/vnmchuo/vendor-spend/internal/budget"
	"github.com/vnmchuo/vendor-spend/internal/configuration"
	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/db"
	"github.com/vnmchuo/vendor-spend/internal/reconcile"
	"github.com/vnmchuo/vendor-spend/internal/secrets"
	"github.com/vnmchuo/vendor-spend/internal/telemetry"
	"github.com/vnmchuo/vendor-spend/internal/vendors"
	"github.com/vnmchuo/vendor-spend/internal/vendors/aws"
	"github.com/vnmchuo/vendor-spend/internal/vendors/datadog"
	"github.com/vnmchuo/vendor-spend/internal/worker"
)

type App struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client

	Users          *auth.PostgresStore
	Costs          *costs.PostgresStore
	Configurations *configuration.Service
	Budgets        *budget.Service
	Registry       *vendor.Registry
	Reconciler     *reconcile.Reconciler
	Coordinator    *worker.Coordinator
}

// New connects to Postgres and Redis, applies migrations and builds the
// service graph. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	applied, err := db.RunMigrations(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, name := range applied {
		logger.Info().Str("migration", name).Msg("migration applied")
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	telemetry.RegisterPgxPoolMetrics(pool)
	logger.Info().Msg("PostgreSQL connected")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	logger.Info().Msg("Redis connected")

	enc, err := secrets.NewEncryptor(cfg.SecretsEncryptionKey)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, err
	}

	a := &App{Pool: pool, Redis: rdb}
	a.Users = auth.NewPostgresStore(pool)
	a.Costs = costs.NewPostgresStore(pool)
	a.Configurations = configuration.NewService(
		configuration.NewPostgresStore(pool),
		secrets.NewPostgresVault(pool, enc),
		a.Costs,
		logger,
	)
	a.Budgets = budget.NewService(budget.NewPostgresStore(pool))
	a.Registry = vendor.NewRegistry(a.Configurations,
		datadog.New(cfg.DatadogBaseURL),
		aws.New(cfg.AWSCostRegion),
	)
	// The lock must outlive a vendor call that hits its timeout.
	lockTTL := cfg.VendorFetchTimeout + 30*time.Second
	a.Reconciler = reconcile.New(a.Costs, a.Registry,
		reconcile.WithLocker(reconcile.NewRedisLocker(rdb, lockTTL)),
		reconcile.WithFetchTimeout(cfg.VendorFetchTimeout),
		reconcile.WithStaleness(cfg.StalenessWindow),
		reconcile.WithLogger(logger),
	)
	a.Coordinator = worker.NewCoordinator(a.Users, a.Configurations, a.Reconciler, cfg.BatchConcurrency, logger)
	return a, nil
}

func (a *App) Close() {
	a.Pool.Close()
	_ = a.Redis.Close()
}
