package product

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retail-reco/core/internal/domain"
	"github.com/retail-reco/core/internal/kv"
)

type fakeContentEngine struct {
	products map[string]domain.Product
}

func (f *fakeContentEngine) Recommend(domain.Context, string, int) ([]domain.ScoredProduct, error) {
	return nil, nil
}
func (f *fakeContentEngine) Product(_ domain.Context, id string) (domain.Product, bool) {
	p, ok := f.products[id]
	return p, ok
}
func (f *fakeContentEngine) CategoryKeywords() map[string][]string { return nil }
func (f *fakeContentEngine) DiverseByCategory(_ domain.Context, exclude map[string]bool, n int) []domain.Product {
	var out []domain.Product
	for _, p := range f.products {
		if exclude[p.ID] {
			continue
		}
		out = append(out, p)
		if len(out) == n {
			break
		}
	}
	return out
}
func (f *fakeContentEngine) FirstN(_ domain.Context, exclude map[string]bool, n int) []domain.Product {
	return f.DiverseByCategory(nil, exclude, n)
}

type fakeCatalogClient struct {
	products map[string]domain.Product
	calls    int
}

func (f *fakeCatalogClient) GetProduct(_ domain.Context, id string) (domain.Product, error) {
	f.calls++
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, domain.ErrCatalogMiss
	}
	return p, nil
}
func (f *fakeCatalogClient) PopularByMarket(_ domain.Context, marketID string, n int) []domain.Product {
	return nil
}

func TestCache_KVTierHit(t *testing.T) {
	store := kv.NewMemoryStore()
	p := domain.Product{ID: "p1", Title: "Shoes", Category: "sports"}
	raw, _ := json.Marshal(p)
	require.NoError(t, store.Set(context.Background(), "product:p1", raw, 0))

	c := New(store, nil, nil, Config{})
	got, err := c.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Shoes", got.Title)
	require.EqualValues(t, 1, c.Telemetry().Snapshot().KVHits)
}

func TestCache_LocalTierHitWritesBackToKV(t *testing.T) {
	store := kv.NewMemoryStore()
	local := &fakeContentEngine{products: map[string]domain.Product{
		"p2": {ID: "p2", Title: "Lamp", Category: "home"},
	}}
	c := New(store, local, nil, Config{})
	ctx := context.Background()

	got, err := c.GetProduct(ctx, "p2")
	require.NoError(t, err)
	require.Equal(t, "Lamp", got.Title)
	require.EqualValues(t, 1, c.Telemetry().Snapshot().LocalHits)

	raw, err := store.Get(ctx, "product:p2")
	require.NoError(t, err)
	require.NotNil(t, raw, "tier-2 hit must be written back to the KV tier")

	var written domain.Product
	require.NoError(t, json.Unmarshal(raw, &written))
	require.Equal(t, "Lamp", written.Title)
}

func TestCache_RemoteTierHitWritesBack(t *testing.T) {
	store := kv.NewMemoryStore()
	remote := &fakeCatalogClient{products: map[string]domain.Product{
		"p3": {ID: "p3", Title: "Mug", Category: "home"},
	}}
	c := New(store, nil, remote, Config{})
	ctx := context.Background()

	got, err := c.GetProduct(ctx, "p3")
	require.NoError(t, err)
	require.Equal(t, "Mug", got.Title)
	require.EqualValues(t, 1, c.Telemetry().Snapshot().RemoteHits)

	raw, _ := store.Get(ctx, "product:p3")
	require.NotNil(t, raw)
}

func TestCache_MinimalSynthesisOnTotalMiss(t *testing.T) {
	store := kv.NewMemoryStore()
	c := New(store, nil, nil, Config{SynthesizeMinimalOnMiss: true})

	got, err := c.GetProduct(context.Background(), "p4")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "p4", got.ID)
	require.EqualValues(t, 1, c.Telemetry().Snapshot().SyntheticHits)
}

func TestCache_NilWhenAllTiersFailAndSynthesisDisabled(t *testing.T) {
	store := kv.NewMemoryStore()
	c := New(store, nil, nil, Config{})

	got, err := c.GetProduct(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, got)
	require.EqualValues(t, 1, c.Telemetry().Snapshot().Misses)
	require.EqualValues(t, 1, c.Telemetry().Snapshot().TotalFailures)
}

func TestCache_PreloadFansOutAndPopulatesKV(t *testing.T) {
	store := kv.NewMemoryStore()
	local := &fakeContentEngine{products: map[string]domain.Product{
		"a": {ID: "a", Title: "A"},
		"b": {ID: "b", Title: "B"},
		"c": {ID: "c", Title: "C"},
	}}
	c := New(store, local, nil, Config{})
	c.Preload(context.Background(), []string{"a", "b", "c"}, 2)

	for _, id := range []string{"a", "b", "c"} {
		raw, err := store.Get(context.Background(), "product:"+id)
		require.NoError(t, err)
		require.NotNil(t, raw)
	}
}

func TestTelemetry_MostAccessedOverallAndTopCategories(t *testing.T) {
	store := kv.NewMemoryStore()
	local := &fakeContentEngine{products: map[string]domain.Product{
		"a": {ID: "a", Category: "sports"},
		"b": {ID: "b", Category: "home"},
	}}
	c := New(store, local, nil, Config{})
	ctx := context.Background()

	_, _ = c.GetProduct(ctx, "a")
	_, _ = c.GetProduct(ctx, "a")
	_, _ = c.GetProduct(ctx, "b")

	top := c.Telemetry().MostAccessedOverall(1)
	require.Equal(t, []string{"a"}, top)

	cats := c.Telemetry().TopCategories(1)
	require.Equal(t, []string{"sports"}, cats)
}
