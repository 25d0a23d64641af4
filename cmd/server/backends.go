package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	httpapi "vendemos/internal/http"
	"vendemos/internal/listing/service"
	"vendemos/internal/listing/store/history"
	"vendemos/internal/listing/store/listing"
	"vendemos/internal/platform/config"
	"vendemos/internal/platform/postgres"
	"vendemos/internal/platform/redis"
)

// backends holds the stores selected by STORAGE_BACKEND and what must be
// closed on shutdown.
type backends struct {
	listings service.ListingStore
	history  service.HistoryStore
	db       *sql.DB
	health   map[string]httpapi.HealthCheck
	closers  []func() error
}

func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{health: map[string]httpapi.HealthCheck{}}

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			b.close(logger)
			return nil, err
		}
		var historyOpts []history.PostgresOption
		if len(cfg.Kafka.Brokers) > 0 {
			historyOpts = append(historyOpts, history.WithOutbox())
		}
		b.db = db
		b.listings = listing.NewPostgres(db)
		b.history = history.NewPostgres(db, historyOpts...)
		b.health["postgres"] = db.PingContext

	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		b.listings = listing.NewRedis(client.Client)
		b.history = history.NewRedis(client.Client)
		b.health["redis"] = client.Health

	case config.BackendMemory:
		b.listings = listing.NewInMemory()
		b.history = history.NewInMemory()

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}

	logger.InfoContext(ctx, "storage backend ready", "backend", cfg.StorageBackend)
	return b, nil
}

func (b *backends) close(logger *slog.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logger.Error("close backend", "error", err)
		}
	}
}
