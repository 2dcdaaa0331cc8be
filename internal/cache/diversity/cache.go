package diversity

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/retail-reco/core/internal/domain"
	"github.com/retail-reco/core/internal/observability"
)

// TTL tiers, in seconds. Turn 1 is assumed stable and reused often; an
// actively engaged user's preferences drift fast enough that a long TTL
// would serve stale recommendations.
const (
	ttlInitial            = 300
	ttlActiveConversation = 60
	ttlHighEngagement     = 30

	highEngagementThreshold = 0.8
)

// Metrics accumulates running cache performance counters. Safe for
// concurrent use only via Cache's mutex; callers should read a snapshot via
// Cache.Metrics rather than touching this directly.
type Metrics struct {
	TotalRequests                 int64
	CacheHits                     int64
	CacheMisses                   int64
	AvgResponseTimeHitMS          float64
	AvgResponseTimeMissMS         float64
	DiversificationPreservedCount int64
}

// HitRate returns the percentage of requests served from cache.
func (m Metrics) HitRate() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return (float64(m.CacheHits) / float64(m.TotalRequests)) * 100
}

// Cache is the diversity-aware personalization cache. It wraps a
// domain.KVStore with a key strategy that keeps distinct conversational
// contexts from colliding, plus a TTL strategy that tightens as a
// conversation gets more active.
type Cache struct {
	kv               domain.KVStore
	categoryKeywords map[string][]string

	mu      sync.Mutex
	metrics Metrics
}

// New constructs a Cache backed by kv. categoryKeywords may be nil, in which
// case the built-in defaults (or a catalog-derived map installed via
// SetCategoryKeywords) are used for intent classification.
func New(kv domain.KVStore, categoryKeywords map[string][]string) *Cache {
	return &Cache{kv: kv, categoryKeywords: categoryKeywords}
}

// SetCategoryKeywords replaces the category keyword map used for intent
// classification, e.g. with one derived from the live catalog via
// CategoriesFromCatalog.
func (c *Cache) SetCategoryKeywords(categoryKeywords map[string][]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categoryKeywords = categoryKeywords
}

// Get attempts a cache lookup for (userID, query, context). A nil response
// with ok=false means "no valid hit"; callers should fall through to live
// recommendation.
func (c *Cache) Get(ctx domain.Context, userID, query string, rc domain.RequestContext) (domain.RecommendationResponse, bool) {
	start := time.Now()
	c.recordRequest()

	key := generateKey(userID, query, rc, c.categoryKeywordsSnapshot())

	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		slog.Warn("diversity cache lookup failed", slog.String("key", key), slog.Any("err", err))
		c.recordMiss(time.Since(start))
		return domain.RecommendationResponse{}, false
	}
	if raw == nil {
		c.recordMiss(time.Since(start))
		return domain.RecommendationResponse{}, false
	}

	var envelope domain.CacheEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		slog.Warn("diversity cache envelope unmarshal failed", slog.String("key", key), slog.Any("err", err))
		c.recordMiss(time.Since(start))
		return domain.RecommendationResponse{}, false
	}

	elapsed := time.Since(start)
	c.recordHit(elapsed)

	resp := envelope.Response
	resp.CacheHit = true
	resp.CacheKey = key
	resp.ResponseTimeMS = float64(elapsed.Microseconds()) / 1000.0
	return resp, true
}

// Set stores resp under the diversity-aware key for (userID, query,
// context), with a dynamic TTL unless overrideTTL is non-zero.
func (c *Cache) Set(ctx domain.Context, userID, query string, rc domain.RequestContext, resp domain.RecommendationResponse, overrideTTL time.Duration) error {
	key := generateKey(userID, query, rc, c.categoryKeywordsSnapshot())

	ttlSeconds := overrideTTL
	if ttlSeconds == 0 {
		ttlSeconds = time.Duration(dynamicTTLSeconds(rc)) * time.Second
	}

	now := float64(time.Now().UnixNano()) / 1e9
	envelope := domain.CacheEnvelope{
		UserID:   userID,
		Query:    query,
		Response: resp,
		ContextSnapshot: domain.ContextSnapshot{
			TurnNumber:         turnOrDefault(rc.TurnNumber),
			MarketID:           marketOrDefault(rc.MarketID),
			ShownProductsCount: len(rc.ShownProducts),
		},
		CachedAt:  now,
		ExpiresAt: now + ttlSeconds.Seconds(),
		TTL:       int(ttlSeconds.Seconds()),
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if err := c.kv.Set(ctx, key, raw, ttlSeconds); err != nil {
		slog.Warn("diversity cache write failed", slog.String("key", key), slog.Any("err", err))
		return err
	}
	return nil
}

// InvalidateUser removes every cache entry belonging to userID, e.g. after a
// profile-altering event. Returns the number of entries removed.
func (c *Cache) InvalidateUser(ctx domain.Context, userID string) (int, error) {
	keys, err := c.kv.Keys(ctx, userPattern(userID))
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	return c.kv.Delete(ctx, keys...)
}

// Metrics returns a snapshot of the running metrics.
func (c *Cache) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// ResetMetrics zeroes the running metrics, useful between test cases.
func (c *Cache) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = Metrics{}
}

func (c *Cache) categoryKeywordsSnapshot() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.categoryKeywords
}

func (c *Cache) recordRequest() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.TotalRequests++
}

func (c *Cache) recordHit(elapsed time.Duration) {
	observability.RecordCacheHit("diversity")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.CacheHits++
	ms := float64(elapsed.Microseconds()) / 1000.0
	if c.metrics.CacheHits == 1 {
		c.metrics.AvgResponseTimeHitMS = ms
		return
	}
	n := float64(c.metrics.CacheHits)
	c.metrics.AvgResponseTimeHitMS = (c.metrics.AvgResponseTimeHitMS*(n-1) + ms) / n
}

func (c *Cache) recordMiss(elapsed time.Duration) {
	observability.RecordCacheMiss("diversity")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.CacheMisses++
	ms := float64(elapsed.Microseconds()) / 1000.0
	if c.metrics.CacheMisses == 1 {
		c.metrics.AvgResponseTimeMissMS = ms
		return
	}
	n := float64(c.metrics.CacheMisses)
	c.metrics.AvgResponseTimeMissMS = (c.metrics.AvgResponseTimeMissMS*(n-1) + ms) / n
}

// dynamicTTLSeconds implements the TTL schedule: stable for a conversation's
// first turn, tight for a highly engaged user, medium otherwise.
func dynamicTTLSeconds(rc domain.RequestContext) int {
	turn := turnOrDefault(rc.TurnNumber)
	if turn == 1 {
		return ttlInitial
	}
	engagement := 0.5
	if rc.HasEngagement {
		engagement = rc.EngagementScore
	}
	if engagement > highEngagementThreshold {
		return ttlHighEngagement
	}
	return ttlActiveConversation
}

func turnOrDefault(turn int) int {
	if turn == 0 {
		return 1
	}
	return turn
}

func marketOrDefault(market string) string {
	if market == "" {
		return "US"
	}
	return market
}
