// Package factory implements the Service Factory: a singleton registry that
// lazily constructs every core component exactly once, wires composite
// services' dependencies automatically when the caller does not override
// them, and tears everything down in one place on shutdown.
package factory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/retail-reco/core/internal/breaker"
	"github.com/retail-reco/core/internal/cache/diversity"
	"github.com/retail-reco/core/internal/cache/product"
	"github.com/retail-reco/core/internal/adapter/queue/redpanda"
	"github.com/retail-reco/core/internal/adapter/repo/postgres"
	"github.com/retail-reco/core/internal/config"
	"github.com/retail-reco/core/internal/domain"
	"github.com/retail-reco/core/internal/eventstore"
	"github.com/retail-reco/core/internal/kv"
	"github.com/retail-reco/core/internal/observability"
	"github.com/retail-reco/core/internal/recommender/collaborative"
	"github.com/retail-reco/core/internal/recommender/content"
	"github.com/retail-reco/core/internal/recommender/hybrid"
)

// Version is surfaced in HealthCheckAll's report.
const Version = "1.0.0"

// Factory is the process-wide singleton registry. All exported getters are
// safe for concurrent use: the first caller pays construction cost, every
// subsequent caller gets the memoized instance.
type Factory struct {
	cfg config.Config

	mu sync.Mutex

	kv         domain.KVStore
	kvFellBack bool

	diversityCache *diversity.Cache
	productCache   *product.Cache
	contentCatalog *content.Catalog
	contentEngine  *content.Engine
	collabEngine   domain.CollaborativeEngine
	catalogClient  domain.CatalogClient
	eventStore     *eventstore.Store
	hybrid         *hybrid.Recommender
	profileMirror  *postgres.ProfileMirror
	eventPublisher *redpanda.Publisher

	kvBreaker *breaker.Breaker
}

// New constructs an empty Factory. Nothing is connected or built until
// first use.
func New(cfg config.Config) *Factory {
	return &Factory{
		cfg: cfg,
		kvBreaker: breaker.New(breaker.Config{
			Name:             "kv_connect",
			FailureThreshold: 3,
			CooldownSeconds:  60,
			SuccessThreshold: 2,
			MaxOpTimeout:     cfg.KVConnectTimeout,
		}),
	}
}

// KV returns the singleton KV store. On first call it dials the configured
// Redis-compatible backend with one bounded connect attempt, then one fast
// retry at 80% of the configured timeout, and falls back to an
// in-memory store if both attempts fail, so the process can still serve
// degraded (non-persistent, non-shared) traffic instead of refusing to boot.
func (f *Factory) KV(ctx domain.Context) domain.KVStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.kv != nil {
		return f.kv
	}

	if !f.cfg.KVEnabled {
		slog.Info("kv disabled by config, using in-memory store")
		f.kv = kv.NewMemoryStore()
		f.kvFellBack = true
		return f.kv
	}

	adapter := kv.NewRedisAdapter(kv.RedisConfig{
		Host:           f.cfg.KVHost,
		Port:           f.cfg.KVPort,
		DB:             f.cfg.KVDB,
		Username:       f.cfg.KVUser,
		Password:       f.cfg.KVPassword,
		TLS:            f.cfg.KVTLS,
		ConnectTimeout: f.cfg.KVConnectTimeout,
		OpTimeout:      f.cfg.KVOpTimeout,
		MaxConns:       f.cfg.KVMaxConns,
	})

	if f.pingWithFastRetry(ctx, adapter) {
		f.kv = adapter
		return f.kv
	}

	slog.Warn("kv connect failed after retry, falling back to in-memory store")
	f.kv = kv.NewMemoryStore()
	f.kvFellBack = true
	return f.kv
}

// pingWithFastRetry tries adapter.Ping once under the full connect timeout,
// then once more at 80% of it, recording each outcome on the kv_connect
// breaker so repeated boot failures are visible in HealthCheckAll.
func (f *Factory) pingWithFastRetry(ctx domain.Context, adapter domain.KVStore) bool {
	attempt := func(timeout time.Duration) bool {
		_, err := f.kvBreaker.Call(ctx, func(ctx domain.Context) (any, error) {
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			_, err := adapter.Ping(cctx)
			return nil, err
		}, nil)
		return err == nil
	}

	if attempt(f.cfg.KVConnectTimeout) {
		return true
	}
	fastTimeout := time.Duration(float64(f.cfg.KVConnectTimeout) * 0.8)
	return attempt(fastTimeout)
}

// KVFellBack reports whether KV() degraded to the in-memory store.
func (f *Factory) KVFellBack() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kvFellBack
}

// ContentCatalog returns the singleton in-process product catalog backing
// the content engine. Callers that need to seed it (e.g. at boot, from a
// catalog snapshot) should do so before first use elsewhere.
func (f *Factory) ContentCatalog() *content.Catalog {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contentCatalog == nil {
		f.contentCatalog = content.NewCatalog()
	}
	return f.contentCatalog
}

// ContentEngine returns the singleton local content-similarity engine.
func (f *Factory) ContentEngine() *content.Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contentEngine == nil {
		f.contentEngine = content.NewEngine(f.contentCatalogLocked())
	}
	return f.contentEngine
}

func (f *Factory) contentCatalogLocked() *content.Catalog {
	if f.contentCatalog == nil {
		f.contentCatalog = content.NewCatalog()
	}
	return f.contentCatalog
}

// CollaborativeEngine returns the singleton remote collaborative-engine
// client, or a deterministic stub when no remote base URL is configured.
func (f *Factory) CollaborativeEngine() domain.CollaborativeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collabEngine != nil {
		return f.collabEngine
	}
	if f.cfg.CollaborativeBaseURL == "" {
		slog.Info("no collaborative base url configured, using stub engine")
		f.collabEngine = collaborative.NewStub(nil)
		return f.collabEngine
	}
	f.collabEngine = collaborative.New(collaborative.Config{
		BaseURL:    f.cfg.CollaborativeBaseURL,
		Timeout:    f.cfg.CollaborativeTimeout,
		RatePerSec: f.cfg.CollaborativeRPS,
		Burst:      f.cfg.CollaborativeBurst,
	})
	return f.collabEngine
}

// CatalogClient returns the singleton remote product-catalog client, reusing
// the collaborative base URL since both are served by the same upstream
// commerce API in every deployment this factory targets.
func (f *Factory) CatalogClient() domain.CatalogClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catalogClient != nil {
		return f.catalogClient
	}
	if f.cfg.CollaborativeBaseURL == "" {
		f.catalogClient = collaborative.NewCatalogStub(nil)
		return f.catalogClient
	}
	f.catalogClient = collaborative.NewCatalogClient(collaborative.CatalogConfig{
		BaseURL:    f.cfg.CollaborativeBaseURL,
		Timeout:    f.cfg.CollaborativeTimeout,
		RatePerSec: f.cfg.CollaborativeRPS,
		Burst:      f.cfg.CollaborativeBurst,
	})
	return f.catalogClient
}

// DiversityCache returns the singleton diversity-aware recommendation cache.
func (f *Factory) DiversityCache(ctx domain.Context) *diversity.Cache {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.diversityCache == nil {
		f.diversityCache = diversity.New(f.kvLocked(ctx), f.contentCatalogLocked().CategoryKeywords())
	}
	return f.diversityCache
}

// ProductCache returns the singleton multi-tier product cache.
func (f *Factory) ProductCache(ctx domain.Context) *product.Cache {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.productCache == nil {
		f.productCache = product.New(f.kvLocked(ctx), f.contentCatalogLocked(), f.catalogClientLocked(), product.Config{
			TTL:                     f.cfg.CacheTTL,
			KeyPrefix:               f.cfg.CachePrefix,
			SynthesizeMinimalOnMiss: true,
		})
	}
	return f.productCache
}

// kvLocked returns the KV store, constructing it if necessary. Callers must
// already hold f.mu; this duplicates KV()'s construction logic under the
// same lock to avoid lock re-entry from the composite getters above.
func (f *Factory) kvLocked(ctx domain.Context) domain.KVStore {
	if f.kv != nil {
		return f.kv
	}
	f.mu.Unlock()
	store := f.KV(ctx)
	f.mu.Lock()
	return store
}

func (f *Factory) catalogClientLocked() domain.CatalogClient {
	if f.catalogClient != nil {
		return f.catalogClient
	}
	f.mu.Unlock()
	c := f.CatalogClient()
	f.mu.Lock()
	return c
}

// EventStore returns the singleton event store.
func (f *Factory) EventStore(ctx domain.Context) *eventstore.Store {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventStore == nil {
		f.eventStore = eventstore.New(f.kvLocked(ctx), eventstore.Config{
			CacheTTL:      f.cfg.EventCacheTTL,
			BufferSize:    f.cfg.EventBufferSize,
			FlushInterval: f.cfg.EventFlushInterval,
			FallbackDir:   f.cfg.EventFallbackDir,
		})
		if f.cfg.ProfileMirrorDSN != "" {
			mirror, err := postgres.NewProfileMirror(ctx, f.cfg.ProfileMirrorDSN)
			if err != nil {
				slog.Error("profile mirror unavailable, continuing without it", slog.Any("error", err))
			} else {
				f.profileMirror = mirror
				f.eventStore.SetProfileMirror(mirror)
			}
		}
		if len(f.cfg.EventKafkaBrokers) > 0 {
			publisher, err := redpanda.NewPublisher(f.cfg.EventKafkaBrokers, redpanda.DefaultTopic)
			if err != nil {
				slog.Error("event sink unavailable, continuing without it", slog.Any("error", err))
			} else {
				f.eventPublisher = publisher
				f.eventStore.SetEventSink(publisher)
			}
		}
	}
	return f.eventStore
}

// HybridRecommender returns the singleton Hybrid Recommender. Any of
// content, collaborative, and products may be supplied to override the
// factory's own singletons (e.g. from a test or a specialized caller); a nil
// argument auto-fetches the corresponding factory singleton instead, the
// same override-if-non-nil convention used for the composite service's
// dependencies.
func (f *Factory) HybridRecommender(ctx domain.Context, content domain.ContentEngine, collab domain.CollaborativeEngine, products domain.ProductFetcher) *hybrid.Recommender {
	f.mu.Lock()
	defer f.mu.Unlock()

	if content == nil || collab == nil || products == nil || f.hybrid == nil {
		if content == nil {
			content = f.contentEngineLocked()
		}
		if collab == nil {
			f.mu.Unlock()
			collab = f.CollaborativeEngine()
			f.mu.Lock()
		}
		if products == nil {
			productCache := f.productCacheLocked(ctx)
			products = productCache
		}
		es := f.eventStoreLocked(ctx)
		f.hybrid = hybrid.New(hybrid.Config{
			Content:       content,
			Collaborative: collab,
			Products:      products,
			Popularity:    f.catalogClientLocked(),
			Events:        es,
			Recorder:      es,
			ContentWeight: f.cfg.ContentWeight,
		})
	}
	return f.hybrid
}

func (f *Factory) contentEngineLocked() *content.Engine {
	if f.contentEngine == nil {
		f.contentEngine = content.NewEngine(f.contentCatalogLocked())
	}
	return f.contentEngine
}

func (f *Factory) productCacheLocked(ctx domain.Context) *product.Cache {
	if f.productCache != nil {
		return f.productCache
	}
	f.mu.Unlock()
	pc := f.ProductCache(ctx)
	f.mu.Lock()
	return pc
}

func (f *Factory) eventStoreLocked(ctx domain.Context) *eventstore.Store {
	if f.eventStore != nil {
		return f.eventStore
	}
	f.mu.Unlock()
	es := f.EventStore(ctx)
	f.mu.Lock()
	return es
}

// ServiceHealth is one entry in HealthCheckAll's report.
type ServiceHealth struct {
	Status domain.HealthStatus
	Detail string
}

// HealthReport is the aggregate health view across every constructed
// singleton, mirroring the factory-wide health check surface consumers poll.
type HealthReport struct {
	Timestamp time.Time
	Factory   string
	Version   string
	Services  map[string]ServiceHealth
	Breakers  map[string]breaker.Stats
}

// HealthCheckAll reports health for every singleton that has been
// constructed so far; singletons never touched are omitted rather than
// eagerly constructed just to be probed.
func (f *Factory) HealthCheckAll(ctx domain.Context) HealthReport {
	f.mu.Lock()
	defer f.mu.Unlock()

	services := make(map[string]ServiceHealth)
	if f.kv != nil {
		kvHealth := f.kv.HealthCheck(ctx)
		status := domain.HealthHealthy
		if !kvHealth.Connected {
			status = domain.HealthUnhealthy
		}
		detail := "connected"
		if f.kvFellBack {
			status = domain.HealthDegraded
			detail = "fell back to in-memory store"
		}
		services["kv"] = ServiceHealth{Status: status, Detail: detail}
	}
	if f.eventStore != nil {
		services["event_store"] = ServiceHealth{Status: f.eventStore.HealthCheck()}
	}
	if f.diversityCache != nil {
		services["diversity_cache"] = ServiceHealth{Status: domain.HealthHealthy}
	}
	if f.productCache != nil {
		services["product_cache"] = ServiceHealth{Status: domain.HealthHealthy}
	}
	if f.hybrid != nil {
		services["hybrid_recommender"] = ServiceHealth{Status: domain.HealthHealthy}
	}

	kvBreakerStats := f.kvBreaker.Stats()
	observability.RecordBreakerStats(kvBreakerStats)

	return HealthReport{
		Timestamp: time.Now(),
		Factory:   "service_factory",
		Version:   Version,
		Services:  services,
		Breakers:  map[string]breaker.Stats{"kv_connect": kvBreakerStats},
	}
}

// Shutdown flushes and releases every constructed singleton, budget-bounded
// by ctx. Failures are logged, not returned, so one stuck component cannot
// block the rest of the drain, mirroring shutdown_all_services's
// try/except-wrapped-per-service cleanup.
func (f *Factory) Shutdown(ctx domain.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.eventStore != nil && !f.eventStore.Flush(ctx) {
		slog.Error("event store flush on shutdown failed")
	}
	if closer, ok := f.kv.(interface{ Close() error }); ok && closer != nil {
		if err := closer.Close(); err != nil {
			slog.Error("kv close on shutdown failed", slog.String("error", err.Error()))
		}
	}
	if f.profileMirror != nil {
		f.profileMirror.Close()
	}
	if f.eventPublisher != nil {
		_ = f.eventPublisher.Close()
	}

	f.kv = nil
	f.diversityCache = nil
	f.productCache = nil
	f.contentCatalog = nil
	f.contentEngine = nil
	f.collabEngine = nil
	f.catalogClient = nil
	f.eventStore = nil
	f.hybrid = nil
	f.profileMirror = nil
	f.eventPublisher = nil
	f.kvFellBack = false
}

// reconnectBackoff returns the exponential-backoff policy used by
// RetryKVConnect for long-lived reconnect attempts outside the fast-retry
// path in KV(), e.g. a background supervisor restoring a dropped connection.
func reconnectBackoff(rc config.RetryConfig) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = rc.InitialDelay
	b.MaxInterval = rc.MaxDelay
	b.Multiplier = rc.Multiplier
	b.RandomizationFactor = 0
	if rc.Jitter {
		b.RandomizationFactor = 0.5
	}
	return backoff.WithMaxRetries(b, uint64(rc.MaxRetries))
}

// RetryKVConnect re-dials the configured KV backend with exponential
// backoff, replacing the current singleton on success. Intended for a
// background supervisor to call after KV() has fallen back to the in-memory
// store, so the process can recover a real backend without a restart.
func (f *Factory) RetryKVConnect(ctx domain.Context) error {
	f.mu.Lock()
	fellBack := f.kvFellBack
	f.mu.Unlock()
	if !fellBack {
		return nil
	}

	rc := f.cfg.GetRetryConfig()
	op := func() error {
		adapter := kv.NewRedisAdapter(kv.RedisConfig{
			Host: f.cfg.KVHost, Port: f.cfg.KVPort, DB: f.cfg.KVDB,
			Username: f.cfg.KVUser, Password: f.cfg.KVPassword, TLS: f.cfg.KVTLS,
			ConnectTimeout: f.cfg.KVConnectTimeout, OpTimeout: f.cfg.KVOpTimeout,
			MaxConns: f.cfg.KVMaxConns,
		})
		if _, err := adapter.Ping(ctx); err != nil {
			return fmt.Errorf("op=Factory.RetryKVConnect: %w", err)
		}
		f.mu.Lock()
		f.kv = adapter
		f.kvFellBack = false
		f.mu.Unlock()
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(reconnectBackoff(rc), ctx))
}
