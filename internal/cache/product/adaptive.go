package product

import (
	"log/slog"

	"github.com/retail-reco/core/internal/domain"
)

// RunAdaptiveManagement is the periodic background task that invalidates KV
// entries for products not accessed within the stale window, then preloads
// the current trending set via planner (if non-nil).
func (c *Cache) RunAdaptiveManagement(ctx domain.Context, planner *Planner, trendingBudget int) {
	stale := c.telemetry.StaleProductIDs()
	if len(stale) > 0 {
		keys := make([]string, len(stale))
		for i, id := range stale {
			keys[i] = c.key(id)
		}
		if _, err := c.kv.Delete(ctx, keys...); err != nil {
			slog.Warn("adaptive management: stale invalidation failed", slog.Any("err", err))
		}
	}

	if planner == nil || planner.trends == nil || trendingBudget <= 0 {
		return
	}
	trending := planner.trends.TrendingProductIDs(trendingBudget)
	if len(trending) > 0 {
		c.Preload(ctx, trending, defaultPreloadConcur)
	}
}
