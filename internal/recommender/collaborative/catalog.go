package collaborative

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/retail-reco/core/internal/domain"
)

// CatalogConfig configures the remote product catalog client.
type CatalogConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

func (c CatalogConfig) withDefaults() CatalogConfig {
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 50
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	return c
}

// CatalogClient is a domain.CatalogClient backed by the remote product
// catalog HTTP service, rate limited the same way as Client above since
// both are the same kind of dependency: a struggling external service
// that must not be hammered by the caller's own retries.
type CatalogClient struct {
	cfg     CatalogConfig
	hc      *http.Client
	limiter *rate.Limiter
}

// NewCatalogClient constructs a CatalogClient. cfg is defaulted where unset.
func NewCatalogClient(cfg CatalogConfig) *CatalogClient {
	cfg = cfg.withDefaults()
	return &CatalogClient{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
	}
}

var _ domain.CatalogClient = (*CatalogClient)(nil)

type catalogProductResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Price       float64           `json:"price"`
	Currency    string            `json:"currency"`
	Category    string            `json:"category"`
	ImageURL    string            `json:"image_url"`
	Metadata    map[string]string `json:"metadata"`
}

func (r catalogProductResponse) toProduct() domain.Product {
	return domain.Product{
		ID: r.ID, Title: r.Title, Description: r.Description,
		Price: r.Price, Currency: r.Currency, Category: r.Category,
		ImageURL: r.ImageURL, Metadata: r.Metadata,
	}
}

// GetProduct fetches a single product by ID from the remote catalog.
func (c *CatalogClient) GetProduct(ctx domain.Context, id string) (domain.Product, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", domain.ErrCatalogMiss, err)
	}

	url := fmt.Sprintf("%s/products/%s", c.cfg.BaseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", domain.ErrCatalogMiss, err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", domain.ErrCatalogMiss, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.Product{}, domain.ErrCatalogMiss
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Product{}, fmt.Errorf("%w: status %d", domain.ErrCatalogMiss, resp.StatusCode)
	}

	var parsed catalogProductResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", domain.ErrCatalogMiss, err)
	}
	return parsed.toProduct(), nil
}

type popularResponse struct {
	Products []catalogProductResponse `json:"products"`
}

// PopularByMarket returns up to n popular products for marketID. Any
// failure degrades to an empty slice: this feeds the fallback ladder's
// rung 2, which already has downstream rungs.
func (c *CatalogClient) PopularByMarket(ctx domain.Context, marketID string, n int) []domain.Product {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}

	url := fmt.Sprintf("%s/popular?market_id=%s&n=%d", c.cfg.BaseURL, marketID, n)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var parsed popularResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil
	}
	out := make([]domain.Product, 0, len(parsed.Products))
	for _, p := range parsed.Products {
		out = append(out, p.toProduct())
	}
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
