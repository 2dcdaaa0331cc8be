package asynqadp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/retail-reco/core/internal/cache/product"
	"github.com/retail-reco/core/internal/eventstore"
	"github.com/retail-reco/core/internal/service/distlock"
)

// Worker processes the core's periodic background tasks: event-store flush
// and recovery, and product-cache warm-up and adaptive management.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// Config wires the background-task handlers' dependencies. Planner,
// WarmupMarkets, and AdaptiveTrendingBudget may be left zero: the warm-up
// handler then does nothing, and the adaptive handler only invalidates
// stale entries (no planner-driven preload).
type Config struct {
	Events                 *eventstore.Store
	Cache                  *product.Cache
	Planner                *product.Planner
	WarmupMarkets          []product.MarketBudget
	WarmupConcurrency      int
	AdaptiveTrendingBudget int
	Concurrency            int
	// WarmupLock, if non-nil, guards TaskCacheWarmup so at most one worker
	// replica runs a warm-up pass at a time. Nil runs unguarded.
	WarmupLock *distlock.Lock
}

// NewWorker constructs a Worker against redisURL, registering a handler for
// each of the four background task types.
func NewWorker(redisURL string, cfg Config) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("op=asynq.NewWorker: %w", err)
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(opt, asynq.Config{Concurrency: concurrency})
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskEventFlush, func(ctx context.Context, _ *asynq.Task) error {
		if cfg.Events == nil {
			return nil
		}
		if !cfg.Events.Flush(ctx) {
			return fmt.Errorf("event store flush reported failure")
		}
		return nil
	})

	mux.HandleFunc(TaskEventRecovery, func(ctx context.Context, _ *asynq.Task) error {
		if cfg.Events == nil {
			return nil
		}
		cfg.Events.RecoverOnce(ctx)
		return nil
	})

	mux.HandleFunc(TaskCacheWarmup, func(ctx context.Context, _ *asynq.Task) error {
		if cfg.Cache == nil || cfg.Planner == nil || len(cfg.WarmupMarkets) == 0 {
			return nil
		}
		if cfg.WarmupLock != nil {
			release, ok, err := cfg.WarmupLock.TryAcquire(ctx, uuid.NewString())
			if err != nil {
				return fmt.Errorf("op=cache.warmup.lock: %w", err)
			}
			if !ok {
				slog.Info("warm-up skipped: another replica holds the lock")
				return nil
			}
			defer release(ctx)
		}
		concurrency := cfg.WarmupConcurrency
		if concurrency <= 0 {
			concurrency = 5
		}
		cfg.Planner.Run(ctx, cfg.WarmupMarkets, concurrency)
		return nil
	})

	mux.HandleFunc(TaskCacheAdaptive, func(ctx context.Context, _ *asynq.Task) error {
		if cfg.Cache == nil {
			return nil
		}
		cfg.Cache.RunAdaptiveManagement(ctx, cfg.Planner, cfg.AdaptiveTrendingBudget)
		return nil
	})

	return &Worker{server: srv, mux: mux}, nil
}

// Start begins processing scheduled tasks in the background; it returns
// immediately, and processing continues until Stop is called.
func (w *Worker) Start() error {
	slog.Info("asynq worker starting")
	return w.server.Start(w.mux)
}

// Stop gracefully shuts down the worker server.
func (w *Worker) Stop() { w.server.Shutdown() }
