package domain

import "time"

// KVStore is the typed wrapper the core expects over an external
// byte-level key-value store. Every operation fails with ErrKVUnavailable;
// the adapter never raises connection-specific errors to callers.
type KVStore interface {
	Get(ctx Context, key string) ([]byte, error)
	Set(ctx Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx Context, keys ...string) (int, error)
	Keys(ctx Context, pattern string) ([]string, error)
	Ping(ctx Context) (time.Duration, error)
	Info(ctx Context) (map[string]string, error)
	HealthCheck(ctx Context) KVHealth
}

// KVHealth is the health surface exposed by a KVStore implementation.
type KVHealth struct {
	Status    string
	Connected bool
	LatencyMS float64
	LastTest  time.Time
}

// ContentEngine is the local similarity-over-catalog recommender (leaf service).
type ContentEngine interface {
	// Recommend returns up to n scored product IDs similar to productID.
	Recommend(ctx Context, productID string, n int) ([]ScoredProduct, error)
	// Product returns a catalog record by ID if held locally, for the
	// product cache's tier-2 lookup.
	Product(ctx Context, id string) (Product, bool)
	// CategoryKeywords returns a category -> keyword map derived from the
	// local catalog, for semantic intent extraction.
	CategoryKeywords() map[string][]string
	// DiverseByCategory returns up to n products round-robined by category,
	// honoring the exclusion set. Used by the fallback ladder's rung 1.
	DiverseByCategory(ctx Context, exclude map[string]bool, n int) []Product
	// FirstN returns the first n catalog products in stable order, honoring
	// the exclusion set. Used by the fallback ladder's rung 3.
	FirstN(ctx Context, exclude map[string]bool, n int) []Product
}

// ScoredProduct is a candidate with its source-engine score.
type ScoredProduct struct {
	ProductID string
	Score     float64
}

// CollaborativeEngine is the remote user/item-based recommender.
type CollaborativeEngine interface {
	Recommend(ctx Context, userID string, n int) ([]ScoredProduct, error)
	// RecordEvent forwards an event for online learning; returns an opaque
	// acknowledgment token.
	RecordEvent(ctx Context, userID string, eventType EventType, productID string, amount float64) (string, error)
}

// CatalogClient is the remote product catalog (tier 3 of the product cache).
type CatalogClient interface {
	GetProduct(ctx Context, id string) (Product, error)
	// PopularByMarket returns up to n popular products for a market.
	// Used by the fallback ladder's rung 2.
	PopularByMarket(ctx Context, marketID string, n int) []Product
}

// ConversationGenerator is the opaque conversational-response hook. The
// orchestrator skips it when none is configured; this module ships no
// implementation of its own.
type ConversationGenerator interface {
	Generate(ctx Context, recommendations []EnrichedProduct, query string) (string, bool)
}

// ProductFetcher enriches recommendation candidates with catalog data.
// Implemented by the multi-tier product cache.
type ProductFetcher interface {
	GetProductForMarket(ctx Context, id string, marketID string) (*Product, error)
}

// PopularityFetcher supplies the fallback ladder's market-popularity rung.
// Implemented by the CatalogClient implementations (the remote catalog
// client and its stub).
type PopularityFetcher interface {
	PopularByMarket(ctx Context, marketID string, n int) []Product
}

// EventRecorder persists a user event, feeding profile materialization.
// Implemented by the event store.
type EventRecorder interface {
	Record(ctx Context, userID string, eventType EventType, data map[string]any, sessionID, marketID string) (bool, error)
}

// EventReader exposes recent events of given types for a user, used by the
// hybrid recommender to compute the seen-product set. Implemented by the
// event store.
type EventReader interface {
	RecentEvents(ctx Context, userID string, types []EventType, limit int) ([]UserEvent, error)
}
