package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/backoffice/internal/ar"
	"github.com/odyssey-erp/backoffice/internal/invoicing"
	"github.com/odyssey-erp/backoffice/internal/platform/cache"
	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// statsNamespace prefixes the versioned dashboard cache keys.
const statsNamespace = "backoffice:invoices"

// Infra holds the shared connections of a process.
type Infra struct {
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	StatsCache *cache.Versioned
}

// OpenInfra connects to PostgreSQL and Redis. The returned close function releases both.
func OpenInfra(ctx context.Context, cfg *Config, logger *slog.Logger) (*Infra, func(), error) {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return nil, nil, err
	}
	client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
		pool.Close()
	}
	return &Infra{
		Pool:       pool,
		Redis:      client,
		StatsCache: cache.NewVersioned(client, statsNamespace, cfg.StatsCacheTTL),
	}, closeFn, nil
}

// Receivables bundles the invoice service with the stores it was built from.
type Receivables struct {
	Service     *ar.Service
	Repository  *ar.Repository
	Idempotency *shared.IdempotencyStore
}

// NewReceivables wires the invoice service onto infra. notifier and recorder may be nil.
func NewReceivables(ctx context.Context, cfg *Config, logger *slog.Logger, infra *Infra, notifier ar.Notifier, recorder ar.Recorder) (*Receivables, error) {
	numbers, err := invoicing.NewSnowflakeNumbers(cfg.PaymentNodeID)
	if err != nil {
		return nil, fmt.Errorf("app: payment numbers: %w", err)
	}
	repo := ar.NewRepository(infra.Pool)
	if cfg.AutoMigrate {
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("app: ensure schema: %w", err)
		}
	}
	idempotency := shared.NewIdempotencyStore(infra.Pool)
	svc := ar.NewService(repo, ar.ServiceConfig{
		Engine:          invoicing.NewEngine(invoicing.WithNumberSource(numbers)),
		Locker:          ar.NewRedisLocker(infra.Redis, cfg.InvoiceLockTTL, cfg.InvoiceLockWait),
		Cache:           infra.StatsCache,
		Idempotency:     idempotency,
		Notifier:        notifier,
		Recorder:        recorder,
		Logger:          logger,
		DefaultCurrency: cfg.DefaultCurrency,
	})
	return &Receivables{
		Service:     svc,
		Repository:  repo,
		Idempotency: idempotency,
	}, nil
}
