package product

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/retail-reco/core/internal/domain"
)

// MarketBudget is a single market's preload budget, as configured in
// config/warmup.yaml or built programmatically.
type MarketBudget struct {
	Market string `yaml:"market"`
	Budget int    `yaml:"budget"`
}

// WarmupConfig is the optional on-disk seed list of market tags and budgets.
type WarmupConfig struct {
	Markets []MarketBudget `yaml:"markets"`
}

// LoadWarmupConfig reads config/warmup.yaml. A missing file is not an error:
// it yields an empty WarmupConfig with no markets.
func LoadWarmupConfig(path string) (WarmupConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return WarmupConfig{}, nil
		}
		return WarmupConfig{}, err
	}
	var cfg WarmupConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return WarmupConfig{}, err
	}
	return cfg, nil
}

// TrendingSource supplies recency-decayed trending product IDs, typically
// backed by the event store's recent-event window.
type TrendingSource interface {
	TrendingProductIDs(n int) []string
}

// CategorySampler supplies products for a category, used to turn the
// top-categories-by-demand rung into actual product IDs.
type CategorySampler interface {
	DiverseByCategory(ctx domain.Context, exclude map[string]bool, n int) []domain.Product
}

// Planner composes a warm-up load set per market from four rungs: top
// popularity for the market, most-frequently-accessed overall, trending
// (decayed by recency), and IDs drawn from the top categories by demand.
type Planner struct {
	cache   *Cache
	trends  TrendingSource  // may be nil
	catalog CategorySampler // may be nil
}

// NewPlanner constructs a Planner over cache's telemetry. trends and catalog
// may be nil, in which case their rungs are skipped.
func NewPlanner(cache *Cache, trends TrendingSource, catalog CategorySampler) *Planner {
	return &Planner{cache: cache, trends: trends, catalog: catalog}
}

// BuildLoadSet composes, deduplicates, and trims the load set for a single
// market to its budget, combining all four rungs in priority order: market
// popularity, overall access frequency, trending, top-category sampling.
func (p *Planner) BuildLoadSet(ctx domain.Context, market string, budget int) []string {
	if budget <= 0 {
		return nil
	}
	seen := make(map[string]bool, budget)
	out := make([]string, 0, budget)

	add := func(ids []string) {
		for _, id := range ids {
			if len(out) >= budget {
				return
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}

	add(p.cache.Telemetry().PopularByMarket(market, budget))
	add(p.cache.Telemetry().MostAccessedOverall(budget))
	if p.trends != nil {
		add(p.trends.TrendingProductIDs(budget))
	}
	if p.catalog != nil && len(out) < budget {
		exclude := make(map[string]bool, len(seen))
		for id := range seen {
			exclude[id] = true
		}
		for _, prod := range p.catalog.DiverseByCategory(ctx, exclude, budget-len(out)) {
			add([]string{prod.ID})
		}
	}

	return out
}

// Run executes one warm-up pass across markets, preloading each market's
// load set through the product cache. Intended to run as a periodic
// background task driven by the Service Factory's task plane.
func (p *Planner) Run(ctx domain.Context, markets []MarketBudget, concurrency int) {
	for _, m := range markets {
		ids := p.BuildLoadSet(ctx, m.Market, m.Budget)
		if len(ids) == 0 {
			continue
		}
		p.cache.Preload(ctx, ids, concurrency)
	}
}
