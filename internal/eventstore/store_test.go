package eventstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retail-reco/core/internal/domain"
)

func newTestStore(t *testing.T, cfg Config) (*Store, *fakeKV) {
	t.Helper()
	kv := newFakeKV()
	return New(kv, cfg), kv
}

func TestRecord_BuffersAndReturnsTrueOnValidEvent(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	ok, err := s.Record(context.Background(), "u1", domain.EventView, map[string]any{"product_id": "p1"}, "sess1", "US")
	require.NoError(t, err)
	require.True(t, ok)

	pending, failed := s.BufferSizes()
	require.Equal(t, 1, pending)
	require.Equal(t, 0, failed)
}

func TestRecord_InvalidSchemaBuffersToFailedAndReturnsError(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	ok, err := s.Record(context.Background(), "u1", domain.EventView, map[string]any{}, "sess1", "US")
	require.Error(t, err)
	require.False(t, ok)

	_, failed := s.BufferSizes()
	require.Equal(t, 1, failed)
}

func TestRecord_FlushesAutomaticallyAtBufferSize(t *testing.T) {
	s, kv := newTestStore(t, Config{BufferSize: 201})
	for i := 0; i < 201; i++ {
		ok, err := s.Record(context.Background(), "u1", domain.EventPurchase, map[string]any{"product_id": "p1"}, "sess1", "US")
		require.NoError(t, err)
		require.True(t, ok)
	}

	pending, _ := s.BufferSizes()
	require.Equal(t, 0, pending, "buffer should have auto-flushed at threshold")
	require.EqualValues(t, 201, s.Metrics().EventsStored)
	require.EqualValues(t, 1, s.Metrics().BulkOperations)

	ids, err := s.readEventIDs(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, ids, 201)
	_ = kv
}

func TestFlush_NewestEventIDIsAtHead(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	ctx := context.Background()
	_, err := s.Record(ctx, "u1", domain.EventView, map[string]any{"product_id": "first"}, "sess1", "US")
	require.NoError(t, err)
	_, err = s.Record(ctx, "u1", domain.EventView, map[string]any{"product_id": "second"}, "sess1", "US")
	require.NoError(t, err)
	require.True(t, s.Flush(ctx))

	ids, err := s.readEventIDs(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ids, 2)

	events, err := s.RecentEvents(ctx, "u1", nil, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "second", events[0].Data["product_id"])
	require.Equal(t, "first", events[1].Data["product_id"])
}

func TestFlush_EmptyBufferIsNoop(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	require.True(t, s.Flush(context.Background()))
	require.EqualValues(t, 0, s.Metrics().BulkOperations)
}

func TestFlush_WriteFailureRoutesToFailedBufferAndFallbackDir(t *testing.T) {
	s, kv := newTestStore(t, Config{FallbackDir: t.TempDir(), BufferSize: 1})
	kv.failSet = true

	ctx := context.Background()
	_, err := s.Record(ctx, "u1", domain.EventView, map[string]any{"product_id": "p1"}, "sess1", "US")
	require.NoError(t, err)

	_, failed := s.BufferSizes()
	require.Equal(t, 1, failed)
	require.EqualValues(t, 1, s.Metrics().FallbacksUsed)
	require.EqualValues(t, 1, s.Metrics().LocalStorageOps)
}

func TestRecentEvents_FiltersByType(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	ctx := context.Background()
	_, err := s.Record(ctx, "u1", domain.EventView, map[string]any{"product_id": "p1"}, "sess1", "US")
	require.NoError(t, err)
	_, err = s.Record(ctx, "u1", domain.EventSearch, map[string]any{"query": "shoes"}, "sess1", "US")
	require.NoError(t, err)
	require.True(t, s.Flush(ctx))

	events, err := s.RecentEvents(ctx, "u1", []domain.EventType{domain.EventView}, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventView, events[0].Type)
}

func TestHealthCheck_HealthyWhenBothBreakersClosed(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	require.Equal(t, domain.HealthHealthy, s.HealthCheck())
}

func TestStats_ReportsMetricsAndBufferSizes(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	ctx := context.Background()
	_, err := s.Record(ctx, "u1", domain.EventView, map[string]any{"product_id": "p1"}, "sess1", "US")
	require.NoError(t, err)

	stats := s.Stats()
	require.Equal(t, 1, stats.PendingBuffer)
	require.EqualValues(t, 1, stats.Metrics.EventsBuffered)
	require.Equal(t, "event_store_read", stats.ReadBreaker.Name)
	require.Equal(t, "event_store_write", stats.WriteBreaker.Name)
}
