package product

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retail-reco/core/internal/domain"
	"github.com/retail-reco/core/internal/kv"
)

func TestLoadWarmupConfig_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := LoadWarmupConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Empty(t, cfg.Markets)
}

func TestLoadWarmupConfig_ParsesMarketBudgets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warmup.yaml")
	content := "markets:\n  - market: US\n    budget: 50\n  - market: DE\n    budget: 20\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadWarmupConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Markets, 2)
	require.Equal(t, "US", cfg.Markets[0].Market)
	require.Equal(t, 50, cfg.Markets[0].Budget)
}

type fakeTrending struct{ ids []string }

func (f fakeTrending) TrendingProductIDs(n int) []string {
	if n > len(f.ids) {
		n = len(f.ids)
	}
	return f.ids[:n]
}

func TestPlanner_BuildLoadSetDedupesAcrossRungs(t *testing.T) {
	store := kv.NewMemoryStore()
	local := &fakeContentEngine{products: map[string]domain.Product{
		"t1": {ID: "t1", Category: "sports"},
	}}
	c := New(store, local, nil, Config{})
	ctx := context.Background()
	_, _ = c.GetProductForMarket(ctx, "t1", "US")

	planner := NewPlanner(c, fakeTrending{ids: []string{"t1", "t2"}}, nil)
	out := planner.BuildLoadSet(ctx, "US", 5)

	seen := map[string]int{}
	for _, id := range out {
		seen[id]++
	}
	for id, count := range seen {
		require.Equal(t, 1, count, "id %q appeared more than once", id)
	}
}

func TestPlanner_BuildLoadSetRespectsBudget(t *testing.T) {
	store := kv.NewMemoryStore()
	c := New(store, nil, nil, Config{})
	planner := NewPlanner(c, fakeTrending{ids: []string{"a", "b", "c", "d", "e"}}, nil)

	out := planner.BuildLoadSet(context.Background(), "US", 2)
	require.Len(t, out, 2)
}

func TestCache_RunAdaptiveManagementInvalidatesStaleEntries(t *testing.T) {
	store := kv.NewMemoryStore()
	local := &fakeContentEngine{products: map[string]domain.Product{
		"stale1": {ID: "stale1"},
	}}
	c := New(store, local, nil, Config{})
	ctx := context.Background()
	_, _ = c.GetProductForMarket(ctx, "stale1", "")

	// Force the access timestamp into the stale window.
	c.telemetry.mu.Lock()
	c.telemetry.lastAccessedAt["stale1"] = c.telemetry.lastAccessedAt["stale1"].Add(-48 * time.Hour)
	c.telemetry.mu.Unlock()

	c.RunAdaptiveManagement(ctx, nil, 0)

	raw, err := store.Get(ctx, "product:stale1")
	require.NoError(t, err)
	require.Nil(t, raw, "stale product should be invalidated from KV")
}
