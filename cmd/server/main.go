package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	httpapi "vendemos/internal/http"
	jwttoken "vendemos/internal/jwt_token"
	listinghandler "vendemos/internal/listing/handler"
	listingmetrics "vendemos/internal/listing/metrics"
	"vendemos/internal/listing/service"
	"vendemos/internal/outbox"
	"vendemos/internal/platform/config"
	"vendemos/internal/platform/httpserver"
	"vendemos/internal/platform/kafka"
	"vendemos/internal/platform/logger"
	"vendemos/internal/platform/metrics"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	stores, err := openBackends(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer stores.close(log)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(listingmetrics.New()),
		service.WithOwnerAuthorization(),
	}
	if cfg.StatusWriteMode == config.WriteModeCompareAndSwap {
		opts = append(opts, service.WithCompareAndSwap())
	}
	svc := service.New(stores.listings, stores.history, opts...)

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := httpapi.NewRouter(httpapi.Deps{
		Logger:    log,
		Listings:  listinghandler.New(svc, log),
		Validator: jwttoken.NewMiddlewareValidator(jwtService),
		Metrics:   metrics.New(),
		Health:    stores.health,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 && stores.db != nil {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TransitionsTopic)
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, 3, 1); err != nil {
			log.WarnContext(ctx, "could not ensure transitions topic", "topic", cfg.Kafka.TransitionsTopic, "error", err)
		}
		stores.health["kafka"] = producer.Ping

		worker := outbox.NewWorker(outbox.NewPostgres(stores.db), producer,
			outbox.WithPollInterval(cfg.Outbox.PollInterval),
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
			outbox.WithLogger(log),
			outbox.WithMetrics(outbox.NewMetrics()),
		)
		g.Go(func() error {
			log.InfoContext(gctx, "outbox relay started", "topic", cfg.Kafka.TransitionsTopic)
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("outbox relay: %w", err)
			}
			return nil
		})
	}

	log.InfoContext(ctx, "starting vendemos",
		"backend", cfg.StorageBackend,
		"write_mode", cfg.StatusWriteMode,
	)
	g.Go(func() error {
		return httpserver.Serve(gctx, srv, cfg.ShutdownTimeout, log)
	})

	return g.Wait()
}
