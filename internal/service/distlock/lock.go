// Package distlock provides a Redis-backed mutual-exclusion lock so that
// multiple worker replicas sharing one Redis instance don't run the same
// warm-up planner pass concurrently.
package distlock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// acquireScript sets key to token with the given TTL only if key is absent,
// atomically. releaseScript deletes key only if its value still matches
// token, so a lock holder never releases a lock it no longer owns (e.g.
// after its TTL already expired and a different replica acquired it).
const acquireScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Lock is a single named distributed lock.
type Lock struct {
	redis   *redis.Client
	key     string
	ttl     time.Duration
	acquire *redis.Script
	release *redis.Script
}

// New constructs a Lock named key with the given TTL, backed by rdb. A nil
// rdb makes TryAcquire always succeed (no-op mode), so a KV fallback to an
// in-memory store doesn't also require a distributed lock.
func New(rdb *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		redis:   rdb,
		key:     "lock:" + key,
		ttl:     ttl,
		acquire: redis.NewScript(acquireScript),
		release: redis.NewScript(releaseScript),
	}
}

// TryAcquire attempts to take the lock, returning a release function on
// success. The caller must call release when done; the lock also
// self-expires after its TTL if release is never called (e.g. the process
// crashes mid-run).
func (l *Lock) TryAcquire(ctx context.Context, token string) (release func(context.Context), ok bool, err error) {
	if l == nil || l.redis == nil {
		return func(context.Context) {}, true, nil
	}
	res, err := l.acquire.Run(ctx, l.redis, []string{l.key}, token, l.ttl.Milliseconds()).Result()
	if err != nil {
		return nil, false, err
	}
	acquired, _ := res.(int64)
	if acquired != 1 {
		return nil, false, nil
	}
	return func(releaseCtx context.Context) {
		_, _ = l.release.Run(releaseCtx, l.redis, []string{l.key}, token).Result()
	}, true, nil
}
