// Package collaborative implements the remote collaborative-filtering
// engine client: the user/item-based leaf service the hybrid recommender
// fuses with the local content engine.
package collaborative

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/retail-reco/core/internal/domain"
)

// Config configures the remote collaborative engine client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64 // client-side outbound rate limit
	Burst      int
}

func (c Config) withDefaults() Config {
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

// Client is a domain.CollaborativeEngine backed by an HTTP service. It rate
// limits outbound calls client-side so a slow or struggling remote does not
// get hammered by retries upstream of the breaker.
type Client struct {
	cfg     Config
	hc      *http.Client
	limiter *rate.Limiter
}

// New constructs a Client. cfg is defaulted where unset.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
	}
}

var _ domain.CollaborativeEngine = (*Client)(nil)

type recommendResponse struct {
	Candidates []struct {
		ProductID string  `json:"product_id"`
		Score     float64 `json:"score"`
	} `json:"candidates"`
}

// Recommend asks the remote service for up to n scored candidates for userID.
func (c *Client) Recommend(ctx domain.Context, userID string, n int) ([]domain.ScoredProduct, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteRecommenderFailed, err)
	}

	url := fmt.Sprintf("%s/recommend?user_id=%s&n=%d", c.cfg.BaseURL, userID, n)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteRecommenderFailed, err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteRecommenderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrRemoteRecommenderFailed, resp.StatusCode)
	}

	var parsed recommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteRecommenderFailed, err)
	}

	out := make([]domain.ScoredProduct, 0, len(parsed.Candidates))
	for _, cand := range parsed.Candidates {
		out = append(out, domain.ScoredProduct{ProductID: cand.ProductID, Score: cand.Score})
	}
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out, nil
}

type eventRequest struct {
	UserID    string  `json:"user_id"`
	EventType string  `json:"event_type"`
	ProductID string  `json:"product_id,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
}

type eventResponse struct {
	Ack string `json:"ack"`
}

// RecordEvent forwards a user event to the remote service for online
// learning and returns its acknowledgment token.
func (c *Client) RecordEvent(ctx domain.Context, userID string, eventType domain.EventType, productID string, amount float64) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRemoteRecommenderFailed, err)
	}

	body, err := json.Marshal(eventRequest{
		UserID:    userID,
		EventType: string(eventType),
		ProductID: productID,
		Amount:    amount,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRemoteRecommenderFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRemoteRecommenderFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRemoteRecommenderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("%w: status %d", domain.ErrRemoteRecommenderFailed, resp.StatusCode)
	}

	var parsed eventResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRemoteRecommenderFailed, err)
	}
	return parsed.Ack, nil
}
