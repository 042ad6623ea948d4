package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deedbook/internal/jwttoken"
	"deedbook/internal/platform/config"
	"deedbook/internal/platform/httpserver"
	"deedbook/internal/platform/logger"
	platformmetrics "deedbook/internal/platform/metrics"
	"deedbook/internal/platform/middleware"
	platformredis "deedbook/internal/platform/redis"
	"deedbook/internal/registry/handler"
	registrymetrics "deedbook/internal/registry/metrics"
	"deedbook/internal/registry/service"
	"deedbook/internal/registry/store"
	audit "deedbook/pkg/platform/audit"
	auditkafka "deedbook/pkg/platform/audit/kafka"
	"deedbook/pkg/platform/audit/publisher"
	auditmemory "deedbook/pkg/platform/audit/store/memory"
	"deedbook/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	var st store.Store
	if cfg.PostgresURL != "" {
		db, err := store.Open(cfg.PostgresURL)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Error("failed to ensure registry schema", "error", err)
			os.Exit(1)
		}
		st = pg
	} else {
		log.Warn("no postgres URL configured, using in-memory store")
		st = store.NewInMemory()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		st = store.NewCached(st, redisClient.Client, config.RegistryCacheTTL)
		log.Info("property read cache enabled", "ttl", config.RegistryCacheTTL)
	}

	pubOpts := []publisher.Option{
		publisher.WithLogger(log),
		publisher.WithAsyncBuffer(256),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := auditkafka.NewSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("failed to connect audit sink", "error", err)
			os.Exit(1)
		}
		guarded := audit.NewBreakerSink(sink, circuit.New("kafka-audit"), log)
		pubOpts = append(pubOpts, publisher.WithSink(guarded))
		log.Info("kafka audit sink enabled", "topic", cfg.Kafka.Topic)
	}
	auditPub := publisher.NewPublisher(auditmemory.NewInMemoryStore(), pubOpts...)
	defer auditPub.Close()

	metrics := registrymetrics.New()
	registry, err := service.New(st, cfg.AdminAddress,
		service.WithLogger(log),
		service.WithMetrics(metrics),
		service.WithAuditPublisher(auditPub),
	)
	if err != nil {
		log.Error("failed to construct registry service", "error", err)
		os.Exit(1)
	}

	tokens := jwttoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer)
	h := handler.New(registry, jwttoken.NewServiceAdapter(tokens), tokens, cfg.AdminTokenHash, log)

	router := chi.NewRouter()
	router.Use(middleware.Latency(platformmetrics.New()))
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	h.Register(router)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting deedbook", "addr", cfg.Addr, "admin", cfg.AdminAddress)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
