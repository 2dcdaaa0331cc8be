package collaborative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retail-reco/core/internal/domain"
)

func TestCatalogClient_GetProductParsesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products/p1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(catalogProductResponse{
			ID: "p1", Title: "Widget", Price: 9.99, Currency: "USD", Category: "tools",
		})
	}))
	defer srv.Close()

	c := NewCatalogClient(CatalogConfig{BaseURL: srv.URL})
	p, err := c.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "p1", p.ID)
	require.Equal(t, "Widget", p.Title)
	require.Equal(t, 9.99, p.Price)
}

func TestCatalogClient_GetProduct404IsCatalogMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewCatalogClient(CatalogConfig{BaseURL: srv.URL})
	_, err := c.GetProduct(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrCatalogMiss)
}

func TestCatalogClient_GetProduct500IsCatalogMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCatalogClient(CatalogConfig{BaseURL: srv.URL})
	_, err := c.GetProduct(context.Background(), "p1")
	require.ErrorIs(t, err, domain.ErrCatalogMiss)
}

func TestCatalogClient_PopularByMarketTruncatesToN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "co", r.URL.Query().Get("market_id"))
		_ = json.NewEncoder(w).Encode(popularResponse{
			Products: []catalogProductResponse{
				{ID: "p1"}, {ID: "p2"}, {ID: "p3"},
			},
		})
	}))
	defer srv.Close()

	c := NewCatalogClient(CatalogConfig{BaseURL: srv.URL})
	got := c.PopularByMarket(context.Background(), "co", 2)
	require.Len(t, got, 2)
}

func TestCatalogClient_PopularByMarketErrorReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCatalogClient(CatalogConfig{BaseURL: srv.URL})
	got := c.PopularByMarket(context.Background(), "co", 5)
	require.Empty(t, got)
}

func TestCatalogStub_GetProductAndMiss(t *testing.T) {
	stub := NewCatalogStub(map[string]domain.Product{
		"p1": {ID: "p1", Title: "Widget"},
	})

	p, err := stub.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "Widget", p.Title)

	_, err = stub.GetProduct(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrCatalogMiss)
}

func TestCatalogStub_PopularByMarketSortedAndTruncated(t *testing.T) {
	stub := NewCatalogStub(map[string]domain.Product{
		"p3": {ID: "p3"}, "p1": {ID: "p1"}, "p2": {ID: "p2"},
	})

	got := stub.PopularByMarket(context.Background(), "any", 2)
	require.Len(t, got, 2)
	require.Equal(t, "p1", got[0].ID)
	require.Equal(t, "p2", got[1].ID)
}
