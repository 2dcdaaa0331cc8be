// Command worker runs the recommendation core's background-task plane:
// periodic event-store flush and recovery, and product-cache warm-up and
// adaptive management, scheduled on asynq against the same Redis instance
// the KV adapter uses.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/retail-reco/core/internal/adapter/observability"
	asynqadp "github.com/retail-reco/core/internal/adapter/queue/asynq"
	"github.com/retail-reco/core/internal/cache/product"
	"github.com/retail-reco/core/internal/config"
	"github.com/retail-reco/core/internal/factory"
	coreobservability "github.com/retail-reco/core/internal/observability"
	"github.com/retail-reco/core/internal/service/distlock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()
	coreobservability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx := context.Background()
	svc := factory.New(cfg)

	events := svc.EventStore(ctx)
	cache := svc.ProductCache(ctx)
	catalog := svc.ContentCatalog()
	// Trending rung is skipped: no global cross-user trending aggregator
	// exists yet (the event store's RecentEvents is scoped per user), so
	// the planner degrades to its three other rungs until one is built.
	planner := product.NewPlanner(cache, nil, catalog)

	warmupCfg, err := product.LoadWarmupConfig("config/warmup.yaml")
	if err != nil {
		slog.Warn("warmup config load failed, warm-up task will no-op", slog.Any("error", err))
	}

	redisURL := fmt.Sprintf("redis://%s:%d/%d", cfg.KVHost, cfg.KVPort, cfg.KVDB)

	var warmupLock *distlock.Lock
	if cfg.KVEnabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.KVHost, cfg.KVPort),
			Username: cfg.KVUser,
			Password: cfg.KVPassword,
			DB:       cfg.KVDB,
		})
		warmupLock = distlock.New(redisClient, "product_cache_warmup", 10*time.Minute)
	}

	sched, err := asynqadp.NewScheduler(redisURL)
	if err != nil {
		slog.Error("scheduler init failed", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := sched.Register(fmt.Sprintf("@every %s", cfg.EventFlushInterval), asynqadp.TaskEventFlush); err != nil {
		slog.Error("register event flush task failed", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := sched.Register("@every 60s", asynqadp.TaskEventRecovery); err != nil {
		slog.Error("register event recovery task failed", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := sched.Register("@every 30m", asynqadp.TaskCacheWarmup); err != nil {
		slog.Error("register cache warmup task failed", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := sched.Register("@every 1h", asynqadp.TaskCacheAdaptive); err != nil {
		slog.Error("register cache adaptive task failed", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := asynqadp.NewWorker(redisURL, asynqadp.Config{
		Events:                 events,
		Cache:                  cache,
		Planner:                planner,
		WarmupMarkets:          warmupCfg.Markets,
		WarmupConcurrency:      5,
		AdaptiveTrendingBudget: 50,
		WarmupLock:             warmupLock,
	})
	if err != nil {
		slog.Error("worker init failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Start(); err != nil {
		slog.Error("worker start failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer worker.Stop()

	go func() {
		if err := sched.Run(); err != nil {
			slog.Error("scheduler run failed", slog.Any("error", err))
		}
	}()
	defer sched.Shutdown()

	slog.Info("worker started successfully, waiting for shutdown signal")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	slog.Info("signal received, shutting down", slog.String("signal", sig.String()))

	svc.Shutdown(ctx)
}
