// Package domain defines core entities, ports, and domain-specific errors
// for the recommendation core.
package domain

import (
	"context"
	"time"
)

// Context is a type alias to stdlib context.Context for convenience across layers.
type Context = context.Context

// Product is a stable, short-lived copy of a catalog record. Ownership of the
// canonical record belongs to the remote catalog; the core only ever holds
// read-through copies.
type Product struct {
	ID          string
	Title       string
	Description string
	Price       float64
	Currency    string
	Category    string
	ImageURL    string
	Metadata    map[string]string
}

// EventType enumerates the kinds of user events the store accepts.
type EventType string

// Event type values.
const (
	EventView               EventType = "view"
	EventSearch             EventType = "search"
	EventAddToCart          EventType = "add_to_cart"
	EventPurchase           EventType = "purchase"
	EventConversationIntent EventType = "conversation_intent"
	EventGeneric            EventType = "generic"
)

// UserEvent is an append-only record in the event log.
type UserEvent struct {
	ID        string
	UserID    string
	Type      EventType
	Timestamp time.Time
	SessionID string
	MarketID  string
	IP        string
	UserAgent string
	Data      map[string]any
}

// ActivityLevel buckets a user's derived engagement.
type ActivityLevel string

// Activity level values, ordered low to high.
const (
	ActivityNew    ActivityLevel = "new"
	ActivityLow    ActivityLevel = "low"
	ActivityMedium ActivityLevel = "medium"
	ActivityHigh   ActivityLevel = "high"
)

// UserProfile is derived, materialized lazily from the event log.
type UserProfile struct {
	UserID           string
	TotalEvents      int
	FirstActivity    time.Time
	LastActivity     time.Time
	Intents          []string           // last N=10 conversation intents
	CategoryAffinity map[string]float64 // normalized to [0,1], sums to 1
	SearchQueries    []string           // last N=20
	SessionCount     int
	MarketCounts     map[string]int
	Purchases        []string // last N=10 product IDs
	DaysActive       int
	ActivityLevel    ActivityLevel

	// NeedsRefresh is set synchronously when a new event for this user is
	// buffered, so a same-task get_profile observes the invalidation.
	NeedsRefresh bool

	// Source labels how this profile was produced: "cache", "kv", "generated",
	// "fallback_expired_cache", or "fallback_empty".
	Source string
}

// RequestContext carries the conversational state passed by the consumer.
type RequestContext struct {
	TurnNumber      int
	ShownProducts   []string
	MarketID        string
	EngagementScore float64 // 0 means "not provided"; see HasEngagement
	HasEngagement   bool
}

// EnrichedProduct is a recommendation candidate enriched with catalog data.
type EnrichedProduct struct {
	ProductID       string
	Score           float64
	Title           string
	Description     string
	Price           float64
	Category        string
	ImageURL        string
	IncompleteData  bool
	Source          string // "content", "collaborative", "fallback:<rung>"
}

// RecommendationResponse is the orchestrator's logical result.
type RecommendationResponse struct {
	Recommendations []EnrichedProduct
	AIResponse      string
	Metadata        map[string]any
	CacheHit        bool
	CacheKey        string
	ResponseTimeMS  float64
}

// CacheEnvelope is the serialized wrapper stored by the diversity-aware cache.
type CacheEnvelope struct {
	UserID          string                 `json:"user_id"`
	Query           string                 `json:"query"`
	Response        RecommendationResponse `json:"response"`
	ContextSnapshot ContextSnapshot        `json:"context_snapshot"`
	CachedAt        float64                `json:"cached_at"`
	ExpiresAt       float64                `json:"expires_at"`
	TTL             int                    `json:"ttl"`
}

// ContextSnapshot is the compact context recorded alongside a cache envelope.
type ContextSnapshot struct {
	TurnNumber         int    `json:"turn_number"`
	MarketID           string `json:"market_id"`
	ShownProductsCount int    `json:"shown_products_count"`
}

// CircuitState enumerates the three states of a circuit breaker.
type CircuitState int

// Circuit breaker states.
const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// String renders the circuit state in its canonical lower-case form.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// HealthStatus enumerates the three aggregate health levels exposed by
// health_check() across components.
type HealthStatus string

// Health status values.
const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)
