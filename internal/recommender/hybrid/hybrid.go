// Package hybrid implements the Hybrid Recommender: a weighted fusion of
// the local content engine and the remote collaborative engine, with
// seen-product exclusion and a four-rung fallback ladder.
package hybrid

import (
	"log/slog"
	"sort"

	"github.com/retail-reco/core/internal/domain"
)

// seenEventTypes are the event types that count toward a user's seen-set.
var seenEventTypes = []domain.EventType{domain.EventView, domain.EventAddToCart, domain.EventPurchase}

// emergencyPlaceholders is the fixed last-resort candidate list used when
// every other source (content, collaborative, local catalog, popularity) is
// empty.
var emergencyPlaceholders = []domain.Product{
	{ID: "placeholder-1", Title: "Popular Pick", Category: "general"},
	{ID: "placeholder-2", Title: "Staff Recommendation", Category: "general"},
	{ID: "placeholder-3", Title: "Trending Now", Category: "general"},
}

// Config wires the Hybrid Recommender's dependencies. Content, Collaborative,
// Events, and Popularity may be nil; the recommender degrades gracefully
// when they are, per spec's individual-engine-failure semantics.
type Config struct {
	Content       domain.ContentEngine
	Collaborative domain.CollaborativeEngine
	Products      domain.ProductFetcher
	Popularity    domain.PopularityFetcher
	Events        domain.EventReader
	Recorder      domain.EventRecorder
	ContentWeight float64 // in [0,1]; default 0.5
}

func (c Config) withDefaults() Config {
	if c.ContentWeight < 0 || c.ContentWeight > 1 {
		c.ContentWeight = 0.5
	}
	return c
}

// Recommender is the Hybrid Recommender.
type Recommender struct {
	cfg Config
}

// New constructs a Recommender from cfg.
func New(cfg Config) *Recommender {
	return &Recommender{cfg: cfg.withDefaults()}
}

// Recommend fuses content and collaborative candidates for the given
// optional productID (similarity anchor) and userID (collaborative
// personalization), without seen-product exclusion. Use
// RecommendWithExclusion for the user-facing, conversation-aware path.
func (r *Recommender) Recommend(ctx domain.Context, userID, productID string, n int) ([]domain.EnrichedProduct, error) {
	candidates, err := r.fuse(ctx, userID, productID, n)
	if err != nil {
		return nil, err
	}
	if candidates == nil {
		// fuse returns a nil slice only in its fatal case; the result is
		// empty rather than topped up from the fallback ladder.
		return nil, nil
	}
	if len(candidates) == 0 {
		candidates = r.fallbackLadder(ctx, nil, "", n)
	}
	return r.enrich(ctx, candidates, ""), nil
}

// RecommendWithExclusion is the conversation-aware variant: it computes the
// user's seen-set from recent events plus an explicit override, over-requests
// candidates to survive filtering, and tops up from the fallback ladder when
// the filtered set is short.
func (r *Recommender) RecommendWithExclusion(ctx domain.Context, userID, productID string, n int, marketID string, excludeOverride []string) ([]domain.EnrichedProduct, error) {
	seen := r.seenSet(ctx, userID, excludeOverride)

	overRequest := n + minInt(len(seen), 10)
	candidates, err := r.fuse(ctx, userID, productID, overRequest)
	if err != nil {
		return nil, err
	}

	filtered := make([]scored, 0, len(candidates))
	included := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.ProductID] {
			continue
		}
		filtered = append(filtered, c)
		included[c.ProductID] = true
		if len(filtered) >= n {
			break
		}
	}

	if len(filtered) < n {
		exclude := make(map[string]bool, len(seen)+len(included))
		for id := range seen {
			exclude[id] = true
		}
		for id := range included {
			exclude[id] = true
		}
		topUp := r.fallbackLadder(ctx, exclude, marketID, n-len(filtered))
		filtered = append(filtered, topUp...)
	}

	return r.enrich(ctx, filtered, marketID), nil
}

// scored is an internal fusion candidate before enrichment.
type scored struct {
	ProductID string
	Score     float64
	Source    string
}

// fuse assembles and weight-fuses content and collaborative candidates per
// spec §4.5's candidate-assembly and fusion rules.
func (r *Recommender) fuse(ctx domain.Context, userID, productID string, n int) ([]scored, error) {
	w := r.cfg.ContentWeight
	fused := make(map[string]*scored)

	var collabErr error

	if w > 0 && productID != "" && r.cfg.Content != nil {
		cands, err := r.cfg.Content.Recommend(ctx, productID, n)
		if err != nil {
			slog.Warn("content engine recommend failed", slog.String("error", err.Error()))
		}
		for _, c := range cands {
			addScored(fused, c.ProductID, c.Score*w, "content")
		}
	}

	if w < 1 && r.cfg.Collaborative != nil {
		cands, err := r.cfg.Collaborative.Recommend(ctx, userID, n)
		if err != nil {
			collabErr = err
			slog.Warn("collaborative engine recommend failed", slog.String("error", err.Error()))
		}
		for _, c := range cands {
			addScored(fused, c.ProductID, c.Score*(1-w), "collaborative")
		}
	}

	// Fatal per spec §4.5: content engine unloaded (nil) when productID was
	// given, AND the collaborative call also failed -> empty, never raise.
	if productID != "" && r.cfg.Content == nil && collabErr != nil {
		return nil, nil
	}

	out := make([]scored, 0, len(fused))
	for _, s := range fused {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProductID < out[j].ProductID
	})

	if n < len(out) {
		out = out[:n]
	}
	return out, nil
}

func addScored(fused map[string]*scored, productID string, contribution float64, source string) {
	if s, ok := fused[productID]; ok {
		s.Score += contribution
		if s.Source != source {
			s.Source = "content+collaborative"
		}
		return
	}
	fused[productID] = &scored{ProductID: productID, Score: contribution, Source: source}
}

// fallbackLadder runs rungs in order, stopping as soon as one yields enough
// candidates, per spec §4.5's four-rung ladder.
func (r *Recommender) fallbackLadder(ctx domain.Context, exclude map[string]bool, marketID string, n int) []scored {
	if n <= 0 {
		return nil
	}
	out := make([]scored, 0, n)

	if r.cfg.Content != nil {
		for _, p := range r.cfg.Content.DiverseByCategory(ctx, exclude, n) {
			out = append(out, scored{ProductID: p.ID, Score: 0, Source: "fallback:diverse_category"})
		}
	}
	if len(out) >= n {
		return out[:n]
	}

	if r.cfg.Popularity != nil {
		for _, p := range r.cfg.Popularity.PopularByMarket(ctx, marketID, n-len(out)) {
			if exclude[p.ID] {
				continue
			}
			out = append(out, scored{ProductID: p.ID, Score: 0, Source: "fallback:popularity"})
			if len(out) >= n {
				break
			}
		}
	}
	if len(out) >= n {
		return out[:n]
	}

	if r.cfg.Content != nil {
		for _, p := range r.cfg.Content.FirstN(ctx, exclude, n-len(out)) {
			out = append(out, scored{ProductID: p.ID, Score: 0, Source: "fallback:first_n"})
			if len(out) >= n {
				break
			}
		}
	}
	if len(out) >= n {
		return out[:n]
	}

	for _, p := range emergencyPlaceholders {
		if exclude[p.ID] {
			continue
		}
		out = append(out, scored{ProductID: p.ID, Score: 0, Source: "fallback:placeholder"})
		if len(out) >= n {
			break
		}
	}
	return out
}

// seenSet computes the exclusion set from recent view/add-to-cart/purchase
// events plus an explicit override list.
func (r *Recommender) seenSet(ctx domain.Context, userID string, override []string) map[string]bool {
	seen := make(map[string]bool)
	if r.cfg.Events != nil {
		events, err := r.cfg.Events.RecentEvents(ctx, userID, seenEventTypes, 200)
		if err != nil {
			slog.Warn("seen-set event read failed", slog.String("error", err.Error()))
		}
		for _, e := range events {
			if pid, ok := e.Data["product_id"].(string); ok && pid != "" {
				seen[pid] = true
			}
		}
	}
	for _, id := range override {
		seen[id] = true
	}
	return seen
}

// enrich fetches Product records via the product cache for each candidate,
// copying title/description/price/category/image. Misses are marked
// IncompleteData with a synthetic title, per spec §4.5's enrichment rule.
func (r *Recommender) enrich(ctx domain.Context, candidates []scored, marketID string) []domain.EnrichedProduct {
	out := make([]domain.EnrichedProduct, 0, len(candidates))
	for _, c := range candidates {
		ep := domain.EnrichedProduct{ProductID: c.ProductID, Score: c.Score, Source: c.Source}

		var p *domain.Product
		if r.cfg.Products != nil {
			var err error
			p, err = r.cfg.Products.GetProductForMarket(ctx, c.ProductID, marketID)
			if err != nil {
				slog.Warn("product enrichment failed", slog.String("product_id", c.ProductID), slog.String("error", err.Error()))
			}
		}

		if p == nil {
			ep.IncompleteData = true
			ep.Title = "Product " + c.ProductID
		} else {
			ep.Title = p.Title
			ep.Description = p.Description
			ep.Price = p.Price
			ep.Category = p.Category
			ep.ImageURL = p.ImageURL
		}
		out = append(out, ep)
	}
	return out
}

// RecordEvent forwards an event to both the collaborative engine (online
// learning) and the event store, per spec §4.5. Returns the collaborative
// engine's acknowledgment token enriched with the event-store write status.
func (r *Recommender) RecordEvent(ctx domain.Context, userID string, eventType domain.EventType, productID string, amount float64) (ack string, storeOK bool) {
	if r.cfg.Collaborative != nil {
		a, err := r.cfg.Collaborative.RecordEvent(ctx, userID, eventType, productID, amount)
		if err != nil {
			slog.Warn("collaborative record_event failed", slog.String("error", err.Error()))
		} else {
			ack = a
		}
	}

	if r.cfg.Recorder != nil {
		data := map[string]any{}
		if productID != "" {
			data["product_id"] = productID
		}
		if amount != 0 {
			data["amount"] = amount
		}
		ok, err := r.cfg.Recorder.Record(ctx, userID, eventType, data, "", "")
		if err != nil {
			slog.Warn("event store record failed", slog.String("error", err.Error()))
		}
		storeOK = ok
	}
	return ack, storeOK
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
