// Package content implements the local content-similarity engine: a
// TF-IDF-like ranker over an in-memory product catalog, used as the
// hybrid recommender's local leaf service.
package content

import (
	"sort"
	"strings"
	"sync"

	"github.com/retail-reco/core/internal/domain"
)

// Catalog is the in-memory product table the content engine ranks over. It
// doubles as the product cache's tier-2 lookup (domain.ContentEngine.Product).
type Catalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	order    []string // insertion order, for FirstN's stable ordering
	vectors  map[string]vector
}

// NewCatalog constructs an empty catalog. Load products with LoadProducts.
func NewCatalog() *Catalog {
	return &Catalog{
		products: make(map[string]domain.Product),
		vectors:  make(map[string]vector),
	}
}

// LoadProducts replaces the catalog's contents and rebuilds the TF-IDF
// index under the write lock, so lookups block until the rebuild finishes;
// intended for startup or periodic catalog refresh.
func (c *Catalog) LoadProducts(products []domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products = make(map[string]domain.Product, len(products))
	c.order = make([]string, 0, len(products))
	docs := make(map[string][]string, len(products))

	for _, p := range products {
		c.products[p.ID] = p
		c.order = append(c.order, p.ID)
		docs[p.ID] = tokenize(p.Title + " " + p.Description)
	}
	c.vectors = buildTFIDF(docs)
}

// Product returns a catalog record by ID.
func (c *Catalog) Product(_ domain.Context, id string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	return p, ok
}

// CategoryKeywords derives a category -> keyword map from the loaded
// catalog's categories and significant title words.
func (c *Catalog) CategoryKeywords() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sets := make(map[string]map[string]struct{})
	for _, p := range c.products {
		category := strings.ToLower(strings.TrimSpace(p.Category))
		if category == "" {
			continue
		}
		kws, ok := sets[category]
		if !ok {
			kws = make(map[string]struct{})
			sets[category] = kws
		}
		kws[category] = struct{}{}
		for _, w := range strings.Fields(strings.ToLower(p.Title)) {
			clean := strings.Trim(w, ".,()[]{}\"'")
			if len(clean) > 3 {
				kws[clean] = struct{}{}
			}
		}
	}

	out := make(map[string][]string, len(sets))
	for category, kws := range sets {
		list := make([]string, 0, len(kws))
		for kw := range kws {
			list = append(list, kw)
		}
		out[category] = list
	}
	return out
}

// DiverseByCategory returns up to n products round-robined across
// categories, honoring the exclusion set. Used by the fallback ladder's
// rung 1 and by the warm-up planner's category rung.
func (c *Catalog) DiverseByCategory(_ domain.Context, exclude map[string]bool, n int) []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byCategory := make(map[string][]domain.Product)
	var categories []string
	for _, id := range c.order {
		p := c.products[id]
		if exclude[p.ID] {
			continue
		}
		if _, seen := byCategory[p.Category]; !seen {
			categories = append(categories, p.Category)
		}
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}
	sort.Strings(categories)

	out := make([]domain.Product, 0, n)
	idx := make(map[string]int, len(categories))
	for len(out) < n {
		progressed := false
		for _, cat := range categories {
			if len(out) >= n {
				break
			}
			i := idx[cat]
			items := byCategory[cat]
			if i >= len(items) {
				continue
			}
			out = append(out, items[i])
			idx[cat] = i + 1
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out
}

// FirstN returns the first n catalog products in stable (load) order,
// honoring the exclusion set. Used by the fallback ladder's rung 3.
func (c *Catalog) FirstN(_ domain.Context, exclude map[string]bool, n int) []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Product, 0, n)
	for _, id := range c.order {
		if len(out) >= n {
			break
		}
		p := c.products[id]
		if exclude[p.ID] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Size returns the number of loaded products.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}
