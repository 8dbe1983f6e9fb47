// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"omnigest/internal/audit"
	"omnigest/internal/compliance"
	"omnigest/internal/normalizer"
	"omnigest/internal/parser"
	"omnigest/internal/pipeline"
	"omnigest/internal/platform/config"
	"omnigest/internal/platform/httpserver"
	"omnigest/internal/platform/kafka"
	"omnigest/internal/platform/logger"
	"omnigest/internal/platform/metrics"
	"omnigest/internal/platform/redis"
	"omnigest/internal/record"
	"omnigest/internal/resolver"
	"omnigest/internal/storage"
	httptransport "omnigest/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Optional collaborators. Each is skipped when unconfigured and the
	// pipeline runs fully in memory.
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	producer, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		log.Error("kafka unavailable", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	var store storage.RecordStore = storage.NewMemoryStore()
	if cfg.Postgres.DSN != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
	}

	var trail audit.Store = audit.NewMemoryStore()
	if cfg.Postgres.DSN != "" {
		pgTrail, err := audit.OpenPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Error("audit store unavailable", "error", err)
			os.Exit(1)
		}
		defer pgTrail.Close()
		trail = pgTrail
	}

	var sink audit.Sink
	if producer != nil {
		sink = producer
	}
	auditor := audit.NewService(trail, sink, log).WithMetrics(m)

	// Ingestion audits flow through a buffered worker so trail persistence
	// stays off the per-record path. Admin handlers emit synchronously.
	auditWorker := audit.NewWorker(auditor, 256)
	go func() {
		if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	var cache resolver.Cache = resolver.NewMemoryCache()
	if redisClient != nil {
		cache = resolver.NewRedisCache(redisClient)
	}
	var lookup resolver.Lookup
	if cfg.Gateway.URL != "" {
		lookup = resolver.NewGatewayClient(cfg.Gateway, log)
	}
	identityResolver := resolver.New(cache, lookup, cfg.Gateway.Timeout, log, m)

	engine := compliance.NewEngine(compliance.Config{
		RetentionDays:      cfg.RetentionDays,
		NoticeYear:         cfg.NoticeYear,
		AuthorizedPurposes: cfg.AuthorizedPurposes,
	})

	svc := pipeline.New(pipeline.Options{
		Registry:   parser.NewRegistry(),
		Normalizer: normalizer.New(),
		Builder:    record.NewBuilder(record.Config{NoticeYear: cfg.NoticeYear, DefaultNoticeDate: cfg.DefaultNoticeDate}),
		Resolver:   identityResolver,
		Engine:     engine,
		Store:      store,
		Auditor:    auditWorker,
		Metrics:    m,
		Logger:     log,
		Autofill:   cfg.Autofill,
		Workers:    cfg.Workers,
	})

	handler := httptransport.NewHandler(svc, store, auditor, log)
	router := httptransport.NewRouter(handler, log)
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("server starting", "addr", cfg.Addr, "autofill", cfg.Autofill, "workers", cfg.Workers)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
