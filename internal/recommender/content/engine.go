package content

import (
	"sort"

	"github.com/retail-reco/core/internal/domain"
)

// Engine is the local content-similarity recommender: domain.ContentEngine
// backed by a Catalog's TF-IDF index.
type Engine struct {
	*Catalog
}

// NewEngine wraps catalog as a domain.ContentEngine.
func NewEngine(catalog *Catalog) *Engine {
	return &Engine{Catalog: catalog}
}

var _ domain.ContentEngine = (*Engine)(nil)

// Recommend returns up to n products most similar to productID by cosine
// similarity over the TF-IDF index, excluding productID itself.
func (e *Engine) Recommend(_ domain.Context, productID string, n int) ([]domain.ScoredProduct, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	target, ok := e.vectors[productID]
	if !ok {
		return nil, domain.ErrCatalogMiss
	}

	candidates := make([]domain.ScoredProduct, 0, len(e.vectors))
	for id, v := range e.vectors {
		if id == productID {
			continue
		}
		score := cosineSimilarity(target, v)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, domain.ScoredProduct{ProductID: id, Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ProductID < candidates[j].ProductID
	})

	if n < len(candidates) {
		candidates = candidates[:n]
	}
	return candidates, nil
}
