package collaborative

import (
	"sort"
	"sync"

	"github.com/retail-reco/core/internal/domain"
)

// CatalogStub is a fast, deterministic domain.CatalogClient for local
// development and tests: products are pre-seeded rather than fetched.
type CatalogStub struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

// NewCatalogStub builds a CatalogStub seeded with products keyed by ID.
func NewCatalogStub(products map[string]domain.Product) *CatalogStub {
	if products == nil {
		products = map[string]domain.Product{}
	}
	return &CatalogStub{products: products}
}

var _ domain.CatalogClient = (*CatalogStub)(nil)

// GetProduct returns the seeded product or domain.ErrCatalogMiss.
func (s *CatalogStub) GetProduct(_ domain.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrCatalogMiss
	}
	return p, nil
}

// PopularByMarket returns up to n seeded products sorted by ID for
// determinism; the stub has no notion of market segmentation.
func (s *CatalogStub) PopularByMarket(_ domain.Context, _ string, n int) []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
