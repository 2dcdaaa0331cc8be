// Package product implements the multi-tier read-through product cache:
// KV store, then local catalog, then remote catalog, with an optional
// minimal-product synthesis tier and write-back to the KV tier on any
// tier-2+ hit.
package product

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/retail-reco/core/internal/domain"
	"github.com/retail-reco/core/internal/observability"
)

const (
	defaultTTL           = 24 * time.Hour
	defaultKeyPrefix     = "product:"
	minimalProductTTL    = 60 * time.Second
	defaultPreloadConcur = 5
	staleAccessWindow    = 24 * time.Hour
)

// Config configures tier behavior and telemetry defaults.
type Config struct {
	TTL                     time.Duration
	KeyPrefix               string
	SynthesizeMinimalOnMiss bool
}

// Telemetry holds atomic per-tier hit counters and mutex-guarded counts of
// product access patterns; the latter are consulted by the warm-up planner.
type Telemetry struct {
	kvHits        int64
	localHits     int64
	remoteHits    int64
	syntheticHits int64
	misses        int64
	totalFailures int64

	mu             sync.Mutex
	accessCount    map[string]int64
	lastAccessedAt map[string]time.Time
	marketPopular  map[string]map[string]int64 // market -> productID -> count
	categoryCounts map[string]int64
}

func newTelemetry() *Telemetry {
	return &Telemetry{
		accessCount:    make(map[string]int64),
		lastAccessedAt: make(map[string]time.Time),
		marketPopular:  make(map[string]map[string]int64),
		categoryCounts: make(map[string]int64),
	}
}

func (t *Telemetry) recordAccess(productID, category, marketID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accessCount[productID]++
	t.lastAccessedAt[productID] = time.Now()
	if category != "" {
		t.categoryCounts[category]++
	}
	if marketID != "" {
		mp, ok := t.marketPopular[marketID]
		if !ok {
			mp = make(map[string]int64)
			t.marketPopular[marketID] = mp
		}
		mp[productID]++
	}
}

// Snapshot is a point-in-time read of telemetry, safe to retain.
type Snapshot struct {
	KVHits         int64
	LocalHits      int64
	RemoteHits     int64
	SyntheticHits  int64
	Misses         int64
	TotalFailures  int64
	AccessCount    map[string]int64
	LastAccessedAt map[string]time.Time
	CategoryCounts map[string]int64
}

// Snapshot returns a copy of the current telemetry counters.
func (t *Telemetry) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{
		KVHits:         atomic.LoadInt64(&t.kvHits),
		LocalHits:      atomic.LoadInt64(&t.localHits),
		RemoteHits:     atomic.LoadInt64(&t.remoteHits),
		SyntheticHits:  atomic.LoadInt64(&t.syntheticHits),
		Misses:         atomic.LoadInt64(&t.misses),
		TotalFailures:  atomic.LoadInt64(&t.totalFailures),
		AccessCount:    make(map[string]int64, len(t.accessCount)),
		LastAccessedAt: make(map[string]time.Time, len(t.lastAccessedAt)),
		CategoryCounts: make(map[string]int64, len(t.categoryCounts)),
	}
	for k, v := range t.accessCount {
		s.AccessCount[k] = v
	}
	for k, v := range t.lastAccessedAt {
		s.LastAccessedAt[k] = v
	}
	for k, v := range t.categoryCounts {
		s.CategoryCounts[k] = v
	}
	return s
}

// PopularByMarket returns the top-n product IDs by observed access count for
// marketID, used by the warm-up planner's rung (a).
func (t *Telemetry) PopularByMarket(marketID string, n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	mp := t.marketPopular[marketID]
	return topN(mp, n)
}

// MostAccessedOverall returns the top-n product IDs by overall access count,
// used by the warm-up planner's rung (b).
func (t *Telemetry) MostAccessedOverall(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return topN(t.accessCount, n)
}

// TopCategories returns the top-n category names by observed demand, used by
// the warm-up planner's rung (d).
func (t *Telemetry) TopCategories(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[string]int64, len(t.categoryCounts))
	for k, v := range t.categoryCounts {
		counts[k] = v
	}
	return topN(counts, n)
}

// StaleProductIDs returns products not accessed within staleAccessWindow, for
// the adaptive-management background task's invalidation sweep.
func (t *Telemetry) StaleProductIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-staleAccessWindow)
	var out []string
	for id, last := range t.lastAccessedAt {
		if last.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out
}

func topN(counts map[string]int64, n int) []string {
	type kv struct {
		id    string
		count int64
	}
	list := make([]kv, 0, len(counts))
	for id, c := range counts {
		list = append(list, kv{id, c})
	}
	// simple insertion sort; these lists are small (catalog-sized, not request-sized)
	for i := 1; i < len(list); i++ {
		j := i
		for j > 0 && list[j-1].count < list[j].count {
			list[j-1], list[j] = list[j], list[j-1]
			j--
		}
	}
	if n > len(list) {
		n = len(list)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = list[i].id
	}
	return out
}

var _ domain.ProductFetcher = (*Cache)(nil)

// Cache is the multi-tier read-through product cache.
type Cache struct {
	kv        domain.KVStore
	local     domain.ContentEngine // may be nil
	remote    domain.CatalogClient // may be nil
	cfg       Config
	telemetry *Telemetry
}

// New constructs a product Cache. local and remote may be nil when those
// tiers are unavailable in this deployment.
func New(kv domain.KVStore, local domain.ContentEngine, remote domain.CatalogClient, cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	return &Cache{kv: kv, local: local, remote: remote, cfg: cfg, telemetry: newTelemetry()}
}

func (c *Cache) key(id string) string {
	return c.cfg.KeyPrefix + id
}

// GetProduct resolves a product through the tier ladder, with no market
// scoping for the telemetry's per-market popularity counters. Equivalent to
// GetProductForMarket(ctx, id, "").
func (c *Cache) GetProduct(ctx domain.Context, id string) (*domain.Product, error) {
	return c.GetProductForMarket(ctx, id, "")
}

// GetProductForMarket resolves a product through the tier ladder: KV, local
// catalog, remote catalog, optional minimal-product synthesis, else nil.
// Any tier-2+ hit is written back to the KV tier. marketID scopes the
// per-market popularity counters the warm-up planner consumes; pass "" when
// the call has no market context.
func (c *Cache) GetProductForMarket(ctx domain.Context, id, marketID string) (*domain.Product, error) {
	if raw, err := c.kv.Get(ctx, c.key(id)); err == nil && raw != nil {
		var p domain.Product
		if jerr := json.Unmarshal(raw, &p); jerr == nil {
			atomic.AddInt64(&c.telemetry.kvHits, 1)
			observability.RecordProductCacheTierHit("kv")
			c.telemetry.recordAccess(id, p.Category, marketID)
			return &p, nil
		}
	}

	if c.local != nil {
		if p, ok := c.local.Product(ctx, id); ok {
			atomic.AddInt64(&c.telemetry.localHits, 1)
			observability.RecordProductCacheTierHit("local")
			c.telemetry.recordAccess(id, p.Category, marketID)
			c.writeBack(ctx, p)
			return &p, nil
		}
	}

	if c.remote != nil {
		p, err := c.remote.GetProduct(ctx, id)
		if err == nil {
			atomic.AddInt64(&c.telemetry.remoteHits, 1)
			observability.RecordProductCacheTierHit("remote")
			c.telemetry.recordAccess(id, p.Category, marketID)
			c.writeBack(ctx, p)
			return &p, nil
		}
	}

	if c.cfg.SynthesizeMinimalOnMiss {
		p := domain.Product{
			ID:       id,
			Title:    "Product " + id,
			Metadata: map[string]string{"synthetic": "true"},
		}
		atomic.AddInt64(&c.telemetry.syntheticHits, 1)
		observability.RecordProductCacheTierHit("synthetic")
		c.writeBackWithTTL(ctx, p, minimalProductTTL)
		return &p, nil
	}

	atomic.AddInt64(&c.telemetry.misses, 1)
	atomic.AddInt64(&c.telemetry.totalFailures, 1)
	observability.RecordProductCacheTierHit("miss")
	return nil, nil
}

func (c *Cache) writeBack(ctx domain.Context, p domain.Product) {
	c.writeBackWithTTL(ctx, p, c.cfg.TTL)
}

func (c *Cache) writeBackWithTTL(ctx domain.Context, p domain.Product, ttl time.Duration) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.kv.Set(ctx, c.key(p.ID), raw, ttl); err != nil {
		slog.Warn("product cache write-back failed", slog.String("product_id", p.ID), slog.Any("err", err))
	}
}

// Preload fans out GetProduct over ids under a bounded concurrency semaphore.
func (c *Cache) Preload(ctx domain.Context, ids []string, concurrency int) {
	if concurrency <= 0 {
		concurrency = defaultPreloadConcur
	}
	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup
	for _, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(productID string) {
			defer wg.Done()
			defer sem.Release(1)
			if _, err := c.GetProduct(ctx, productID); err != nil {
				slog.Warn("preload fetch failed", slog.String("product_id", productID), slog.Any("err", err))
			}
		}(id)
	}
	wg.Wait()
}

// Telemetry exposes the cache's access-pattern telemetry.
func (c *Cache) Telemetry() *Telemetry {
	return c.telemetry
}
