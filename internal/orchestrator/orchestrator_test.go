package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retail-reco/core/internal/cache/diversity"
	"github.com/retail-reco/core/internal/domain"
	"github.com/retail-reco/core/internal/eventstore"
	"github.com/retail-reco/core/internal/kv"
	"github.com/retail-reco/core/internal/recommender/content"
	"github.com/retail-reco/core/internal/recommender/hybrid"
)

func sampleProducts() []domain.Product {
	return []domain.Product{
		{ID: "p1", Title: "Running Shoes", Description: "fitness running shoe", Category: "sports"},
		{ID: "p2", Title: "Yoga Mat", Description: "fitness yoga gear", Category: "sports"},
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, domain.KVStore) {
	t.Helper()
	store := kv.NewMemoryStore()

	catalog := content.NewCatalog()
	catalog.LoadProducts(sampleProducts())
	engine := content.NewEngine(catalog)

	cache := diversity.New(store, catalog.CategoryKeywords())
	events := eventstore.New(store, eventstore.Config{})
	rec := hybrid.New(hybrid.Config{
		Content:       engine,
		Products:      nil,
		Events:        events,
		Recorder:      events,
		ContentWeight: 1,
	})

	o := New(Config{
		KV:          store,
		Cache:       cache,
		Events:      events,
		Recommender: rec,
		DefaultN:    2,
	})
	return o, store
}

func TestOrchestrator_RecommendMissThenHit(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	rc := domain.RequestContext{TurnNumber: 1, MarketID: "co"}

	resp1, err := o.Recommend(ctx, "u1", "", rc)
	require.NoError(t, err)
	require.False(t, resp1.CacheHit)

	resp2, err := o.Recommend(ctx, "u1", "", rc)
	require.NoError(t, err)
	require.True(t, resp2.CacheHit)
}

func TestOrchestrator_RecommendWithNilRecommenderReturnsNoRecommendations(t *testing.T) {
	store := kv.NewMemoryStore()
	o := New(Config{KV: store, DefaultN: 3})
	ctx := context.Background()

	resp, err := o.Recommend(ctx, "u1", "shoes", domain.RequestContext{TurnNumber: 1})
	require.NoError(t, err)
	require.Empty(t, resp.Recommendations)
}

func TestOrchestrator_HealthCheckReportsOnlyWiredServices(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	status := o.HealthCheck(ctx)
	require.Contains(t, status.Services, "kv")
	require.Contains(t, status.Services, "cache")
	require.Contains(t, status.Services, "events")
	require.Contains(t, status.Services, "recommender")
	require.Equal(t, domain.HealthHealthy, status.Status)
}

func TestOrchestrator_MetricsReturnsUnion(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	_, _ = o.Recommend(ctx, "u1", "", domain.RequestContext{TurnNumber: 1})

	m := o.Metrics()
	require.Equal(t, int64(1), m.Cache.TotalRequests)
}
