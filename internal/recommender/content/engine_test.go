package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retail-reco/core/internal/domain"
)

func sampleProducts() []domain.Product {
	return []domain.Product{
		{ID: "p1", Title: "Wireless Bluetooth Headphones", Description: "Over-ear noise cancelling headphones", Category: "electronics"},
		{ID: "p2", Title: "Bluetooth Speaker Portable", Description: "Waterproof portable speaker", Category: "electronics"},
		{ID: "p3", Title: "Running Shoes", Description: "Lightweight athletic running shoes", Category: "sports"},
		{ID: "p4", Title: "Yoga Mat", Description: "Non-slip exercise yoga mat", Category: "sports"},
		{ID: "p5", Title: "Kitchen Blender", Description: "High power kitchen blender for smoothies", Category: "home"},
	}
}

func TestEngine_RecommendRanksBySimilarity(t *testing.T) {
	cat := NewCatalog()
	cat.LoadProducts(sampleProducts())
	e := NewEngine(cat)

	got, err := e.Recommend(context.Background(), "p1", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	// p2 shares "bluetooth"/electronics vocabulary with p1 and should outrank
	// the sports/home products.
	require.Equal(t, "p2", got[0].ProductID)
	for _, c := range got {
		require.NotEqual(t, "p1", c.ProductID, "must exclude the query product itself")
	}
}

func TestEngine_RecommendUnknownProductIsCatalogMiss(t *testing.T) {
	cat := NewCatalog()
	cat.LoadProducts(sampleProducts())
	e := NewEngine(cat)

	_, err := e.Recommend(context.Background(), "does-not-exist", 5)
	require.ErrorIs(t, err, domain.ErrCatalogMiss)
}

func TestCatalog_ProductLookup(t *testing.T) {
	cat := NewCatalog()
	cat.LoadProducts(sampleProducts())

	p, ok := cat.Product(context.Background(), "p3")
	require.True(t, ok)
	require.Equal(t, "Running Shoes", p.Title)

	_, ok = cat.Product(context.Background(), "nope")
	require.False(t, ok)
}

func TestCatalog_DiverseByCategoryRoundRobins(t *testing.T) {
	cat := NewCatalog()
	cat.LoadProducts(sampleProducts())

	got := cat.DiverseByCategory(context.Background(), nil, 3)
	require.Len(t, got, 3)
	categories := map[string]bool{}
	for _, p := range got {
		categories[p.Category] = true
	}
	require.Len(t, categories, 3, "first 3 picks should span 3 distinct categories")
}

func TestCatalog_DiverseByCategoryHonorsExclusion(t *testing.T) {
	cat := NewCatalog()
	cat.LoadProducts(sampleProducts())

	exclude := map[string]bool{"p1": true, "p2": true}
	got := cat.DiverseByCategory(context.Background(), exclude, 10)
	for _, p := range got {
		require.False(t, exclude[p.ID])
	}
}

func TestCatalog_FirstNStableOrder(t *testing.T) {
	cat := NewCatalog()
	cat.LoadProducts(sampleProducts())

	got := cat.FirstN(context.Background(), nil, 2)
	require.Len(t, got, 2)
	require.Equal(t, "p1", got[0].ID)
	require.Equal(t, "p2", got[1].ID)
}

func TestCatalog_CategoryKeywordsDerivedFromTitles(t *testing.T) {
	cat := NewCatalog()
	cat.LoadProducts(sampleProducts())

	kws := cat.CategoryKeywords()
	require.Contains(t, kws, "electronics")
	found := false
	for _, kw := range kws["electronics"] {
		if kw == "bluetooth" {
			found = true
		}
	}
	require.True(t, found)
}

func TestCatalog_Size(t *testing.T) {
	cat := NewCatalog()
	cat.LoadProducts(sampleProducts())
	require.Equal(t, 5, cat.Size())
}
