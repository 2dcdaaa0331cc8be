// Package orchestrator implements the Recommendation Orchestrator: the
// single consumer-facing entry point that ties the diversity-aware cache,
// the hybrid recommender, and the event store into one logical
// recommend/health_check/metrics surface.
package orchestrator

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/retail-reco/core/internal/cache/diversity"
	"github.com/retail-reco/core/internal/domain"
	"github.com/retail-reco/core/internal/eventstore"
	"github.com/retail-reco/core/internal/observability"
	"github.com/retail-reco/core/internal/recommender/hybrid"
)

// Config wires the orchestrator's dependencies. Conversation may be nil, in
// which case recommend() sets AIResponse only to the generic fallback text
// when every recommendation is an emergency placeholder.
type Config struct {
	KV           domain.KVStore
	Cache        *diversity.Cache
	Events       *eventstore.Store
	Recommender  *hybrid.Recommender
	Conversation domain.ConversationGenerator
	DefaultN     int
}

func (c Config) withDefaults() Config {
	if c.DefaultN <= 0 {
		c.DefaultN = 10
	}
	return c
}

// Orchestrator is the Recommendation Orchestrator.
type Orchestrator struct {
	cfg Config
}

// New constructs an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{cfg: cfg.withDefaults()}
}

// genericFallbackResponse is the user-visible answer on total infrastructure
// outage: a non-empty recommendation list plus a generic response string,
// per spec's error_fallback semantics.
const genericFallbackResponse = "Here are some recommendations you might like."

// Recommend is the orchestrator's one logical operation: diversity cache
// lookup, then (on miss) hybrid recommendation with seen-product exclusion,
// product enrichment, asynchronous event submission, and cache population
// with a dynamic TTL.
func (o *Orchestrator) Recommend(ctx domain.Context, userID, query string, rc domain.RequestContext) (domain.RecommendationResponse, error) {
	tr := otel.Tracer("orchestrator")
	ctx, span := tr.Start(ctx, "Orchestrator.Recommend")
	defer span.End()

	start := time.Now()
	lg := slog.Default()

	if o.cfg.Cache != nil {
		if resp, ok := o.cfg.Cache.Get(ctx, userID, query, rc); ok {
			return resp, nil
		}
	}

	n := o.cfg.DefaultN
	recs, err := o.recommend(ctx, userID, n, rc)
	if err != nil {
		lg.Warn("hybrid recommend failed, degrading to fallback",
			slog.String("user_id", userID), slog.Any("error", err))
		recs = nil
	}

	errorFallback := len(recs) > 0 && allFallbackPlaceholders(recs)

	resp := domain.RecommendationResponse{
		Recommendations: recs,
		ResponseTimeMS:  float64(time.Since(start).Microseconds()) / 1000.0,
		Metadata: map[string]any{
			"turn_number":    rc.TurnNumber,
			"market_id":      rc.MarketID,
			"error_fallback": errorFallback,
		},
	}
	if o.cfg.Conversation != nil {
		if text, ok := o.cfg.Conversation.Generate(ctx, recs, query); ok {
			resp.AIResponse = text
		}
	}
	if errorFallback && resp.AIResponse == "" {
		resp.AIResponse = genericFallbackResponse
	}

	if query != "" && o.cfg.Events != nil {
		if _, err := o.cfg.Events.Record(ctx, userID, domain.EventSearch, map[string]any{"query": query}, "", rc.MarketID); err != nil {
			lg.Warn("event submission failed", slog.String("user_id", userID), slog.Any("error", err))
		}
	}

	if o.cfg.Cache != nil {
		if err := o.cfg.Cache.Set(ctx, userID, query, rc, resp, 0); err != nil {
			lg.Warn("diversity cache store failed", slog.String("user_id", userID), slog.Any("error", err))
		}
	}

	observability.RecordRecommendation(time.Since(start).Seconds(), errorFallback)

	return resp, nil
}

func (o *Orchestrator) recommend(ctx domain.Context, userID string, n int, rc domain.RequestContext) ([]domain.EnrichedProduct, error) {
	if o.cfg.Recommender == nil {
		return nil, nil
	}
	return o.cfg.Recommender.RecommendWithExclusion(ctx, userID, "", n, rc.MarketID, rc.ShownProducts)
}

func allFallbackPlaceholders(recs []domain.EnrichedProduct) bool {
	for _, r := range recs {
		if r.Source != "fallback:placeholder" {
			return false
		}
	}
	return true
}

// Status is the orchestrator's aggregated health report.
type Status struct {
	Status    domain.HealthStatus
	Services  map[string]domain.HealthStatus
	Timestamp time.Time
}

// HealthCheck aggregates KV, cache, events, and recommender health into one
// status, per spec's `health_check() -> {status, services, timestamp}`.
func (o *Orchestrator) HealthCheck(ctx domain.Context) Status {
	services := make(map[string]domain.HealthStatus)

	overall := domain.HealthHealthy
	downgrade := func(s domain.HealthStatus) {
		switch {
		case s == domain.HealthUnhealthy:
			overall = domain.HealthUnhealthy
		case s == domain.HealthDegraded && overall == domain.HealthHealthy:
			overall = domain.HealthDegraded
		}
	}

	if o.cfg.KV != nil {
		kvHealth := o.cfg.KV.HealthCheck(ctx)
		status := domain.HealthHealthy
		if !kvHealth.Connected {
			status = domain.HealthUnhealthy
		}
		services["kv"] = status
		downgrade(status)
	}
	if o.cfg.Cache != nil {
		services["cache"] = domain.HealthHealthy
	}
	if o.cfg.Events != nil {
		status := o.cfg.Events.HealthCheck()
		services["events"] = status
		downgrade(status)
	}
	if o.cfg.Recommender != nil {
		services["recommender"] = domain.HealthHealthy
	}

	return Status{Status: overall, Services: services, Timestamp: time.Now()}
}

// Metrics is the union of per-component metric snapshots.
type Metrics struct {
	Cache  diversity.Metrics
	Events eventstore.Stats
}

// Metrics returns the orchestrator's metric union, per spec's
// `metrics() -> union of per-component metric dicts`.
func (o *Orchestrator) Metrics() Metrics {
	var m Metrics
	if o.cfg.Cache != nil {
		m.Cache = o.cfg.Cache.Metrics()
	}
	if o.cfg.Events != nil {
		// Events.Stats() publishes its breakers' Prometheus gauges as a side
		// effect, so every metrics() poll keeps the circuit-state gauges fresh
		// without a separate background exporter loop.
		m.Events = o.cfg.Events.Stats()
	}
	return m
}
