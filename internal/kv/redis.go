// Package kv provides KVStore implementations: a live Redis-backed adapter
// and an in-memory test double, per the "single abstract interface, two
// concrete implementations" re-architecture note.
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/retail-reco/core/internal/domain"
)

// RedisConfig configures the live adapter's connection parameters.
type RedisConfig struct {
	Host           string
	Port           int
	DB             int
	Username       string
	Password       string
	TLS            bool
	ConnectTimeout time.Duration
	OpTimeout      time.Duration
	MaxConns       int
}

// RedisAdapter wraps *redis.Client behind the domain.KVStore contract. Every
// operation translates client errors into domain.ErrKVUnavailable; callers
// never see a redis-specific error type.
type RedisAdapter struct {
	client    *redis.Client
	opTimeout time.Duration
}

// NewRedisAdapter dials a pooled redis client per cfg. It does not block on
// connect; callers should follow with Ping under their own timeout budget.
func NewRedisAdapter(cfg RedisConfig) *RedisAdapter {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DB:           cfg.DB,
		Username:     cfg.Username,
		Password:     cfg.Password,
		PoolSize:     cfg.MaxConns,
		DialTimeout:  cfg.ConnectTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	}
	return &RedisAdapter{client: redis.NewClient(opts), opTimeout: cfg.OpTimeout}
}

// NewRedisAdapterFromClient wraps an already-constructed client, used by
// tests backed by miniredis.
func NewRedisAdapterFromClient(c *redis.Client, opTimeout time.Duration) *RedisAdapter {
	return &RedisAdapter{client: c, opTimeout: opTimeout}
}

func (a *RedisAdapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.opTimeout)
}

// Get returns nil, nil on a cache miss (redis.Nil), never an error.
func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	v, err := a.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.ErrKVUnavailable
	}
	return v, nil
}

// Set writes value under key with the given TTL. A zero TTL means no expiry.
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return domain.ErrKVUnavailable
	}
	return nil
}

// Delete removes the given keys and returns how many existed.
func (a *RedisAdapter) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	n, err := a.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, domain.ErrKVUnavailable
	}
	return int(n), nil
}

// Keys returns all keys matching pattern via KEYS. Bounded by op timeout;
// callers on the hot path should avoid large keyspaces.
func (a *RedisAdapter) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	ks, err := a.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, domain.ErrKVUnavailable
	}
	return ks, nil
}

// Ping measures round-trip latency to the store.
func (a *RedisAdapter) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	if err := a.client.Ping(ctx).Err(); err != nil {
		return 0, domain.ErrKVUnavailable
	}
	return time.Since(start), nil
}

// Info returns a minimal set of server info fields.
func (a *RedisAdapter) Info(ctx context.Context) (map[string]string, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	raw, err := a.client.Info(ctx).Result()
	if err != nil {
		return nil, domain.ErrKVUnavailable
	}
	return map[string]string{"raw": raw}, nil
}

// HealthCheck reports connectivity and latency for the health surface.
func (a *RedisAdapter) HealthCheck(ctx context.Context) domain.KVHealth {
	latency, err := a.Ping(ctx)
	if err != nil {
		return domain.KVHealth{Status: "unhealthy", Connected: false, LastTest: time.Now()}
	}
	return domain.KVHealth{
		Status:    "healthy",
		Connected: true,
		LatencyMS: float64(latency.Microseconds()) / 1000.0,
		LastTest:  time.Now(),
	}
}

// Close releases the underlying connection pool.
func (a *RedisAdapter) Close() error {
	return a.client.Close()
}

// Client exposes the underlying *redis.Client for components (e.g. the
// warm-up planner's distributed lock) that need raw script execution.
func (a *RedisAdapter) Client() *redis.Client {
	return a.client
}

var _ domain.KVStore = (*RedisAdapter)(nil)
