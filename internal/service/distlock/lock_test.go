package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T, key string, ttl time.Duration) *Lock {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, key, ttl)
}

func TestLock_TryAcquireSucceedsWhenFree(t *testing.T) {
	l := newTestLock(t, "warmup:co", time.Minute)
	release, ok, err := l.TryAcquire(context.Background(), "token-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, release)
}

func TestLock_TryAcquireFailsWhileHeld(t *testing.T) {
	l := newTestLock(t, "warmup:co", time.Minute)
	ctx := context.Background()

	_, ok1, err := l.TryAcquire(ctx, "token-1")
	require.NoError(t, err)
	require.True(t, ok1)

	_, ok2, err := l.TryAcquire(ctx, "token-2")
	require.NoError(t, err)
	require.False(t, ok2)
}

func TestLock_ReleaseAllowsReacquire(t *testing.T) {
	l := newTestLock(t, "warmup:co", time.Minute)
	ctx := context.Background()

	release, ok1, err := l.TryAcquire(ctx, "token-1")
	require.NoError(t, err)
	require.True(t, ok1)

	release(ctx)

	_, ok2, err := l.TryAcquire(ctx, "token-2")
	require.NoError(t, err)
	require.True(t, ok2)
}

func TestLock_NilRedisIsNoop(t *testing.T) {
	l := New(nil, "warmup:co", time.Minute)
	release, ok, err := l.TryAcquire(context.Background(), "token-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotPanics(t, func() { release(context.Background()) })
}
