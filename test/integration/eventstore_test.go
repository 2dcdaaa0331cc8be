//go:build integration

// Package integration holds testcontainers-backed integration tests that
// exercise the Event Store and KV adapter against a real Redis, not the
// in-memory/miniredis fakes the unit suites use.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/retail-reco/core/internal/domain"
	"github.com/retail-reco/core/internal/eventstore"
	"github.com/retail-reco/core/internal/kv"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
}

func TestKVAdapter_HealthCheckAgainstRealRedis(t *testing.T) {
	client := startRedis(t)
	adapter := kv.NewRedisAdapterFromClient(client, 2*time.Second)

	health := adapter.HealthCheck(context.Background())
	require.True(t, health.Connected)
}

func TestEventStore_RecordFlushRecentEventsRoundTripAgainstRealRedis(t *testing.T) {
	client := startRedis(t)
	adapter := kv.NewRedisAdapterFromClient(client, 2*time.Second)
	store := eventstore.New(adapter, eventstore.Config{BufferSize: 10, FlushInterval: time.Hour})

	ctx := context.Background()
	ok, err := store.Record(ctx, "user-1", domain.EventView, map[string]any{"product_id": "p1"}, "session-1", "CO")
	require.NoError(t, err)
	require.True(t, ok)

	require.True(t, store.Flush(ctx))

	events, err := store.RecentEvents(ctx, "user-1", nil, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventView, events[0].Type)
}
