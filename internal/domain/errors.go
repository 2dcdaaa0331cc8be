package domain

import "errors"

// Error taxonomy (sentinels). Infrastructure errors never leave the
// core as anything other than one of these kinds. A panic that reaches
// the HTTP layer is logged with a stack trace by httpserver.Recoverer and
// answered with a generic 500; no function returns ErrInternal.
var (
	// ErrInvalidArgument is returned when a caller-supplied argument fails validation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInternal is a generic internal error surfaced to callers in place of a logic bug.
	ErrInternal = errors.New("internal error")

	// ErrKVUnavailable is returned by the KV adapter for any connect/op failure,
	// including a circuit breaker OPEN state. Never a connection-specific error.
	ErrKVUnavailable = errors.New("kv store unavailable")
	// ErrRemoteRecommenderFailed is returned when the collaborative engine errors or times out.
	ErrRemoteRecommenderFailed = errors.New("remote recommender failed")
	// ErrCatalogMiss is returned when a product is not found in any cache tier or the catalog.
	ErrCatalogMiss = errors.New("product not found in any tier")
	// ErrSchemaInvalid is returned when event data fails per-type validation.
	ErrSchemaInvalid = errors.New("event schema invalid")
	// ErrCircuitOpen is returned by a breaker guarded call when the circuit is OPEN and no fallback was supplied.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrTimeout is returned when a bounded wait expires; treated as the corresponding *Failed kind by callers.
	ErrTimeout = errors.New("operation timed out")
)
