// Command server starts the recommendation core's HTTP process: it wires
// the Service Factory, builds the Recommendation Orchestrator over it, and
// exposes /healthz, /metrics, and /debug via the thin chi router.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/retail-reco/core/internal/adapter/observability"
	"github.com/retail-reco/core/internal/app"
	"github.com/retail-reco/core/internal/config"
	"github.com/retail-reco/core/internal/factory"
	coreobservability "github.com/retail-reco/core/internal/observability"
	"github.com/retail-reco/core/internal/orchestrator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()
	coreobservability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	svc := factory.New(cfg)

	// Touch the KV adapter once at startup so a misconfigured store is
	// visible in the logs before the first request, not just in /healthz.
	if cfg.KVEnabled {
		svc.KV(ctx)
		if svc.KVFellBack() {
			slog.Warn("kv adapter unavailable at startup, falling back to in-memory store")
		}
	}

	recommender := svc.HybridRecommender(ctx, nil, nil, nil)
	orch := orchestrator.New(orchestrator.Config{
		KV:          svc.KV(ctx),
		Cache:       svc.DiversityCache(ctx),
		Events:      svc.EventStore(ctx),
		Recommender: recommender,
		// Conversation is left nil: conversational text generation is an
		// opaque, caller-supplied hook, not something the core constructs.
	})

	handler := app.BuildRouter(cfg, orch)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	svc.Shutdown(shutdownCtx)
}
