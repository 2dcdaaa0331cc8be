package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retail-reco/core/internal/domain"
)

func okOp(context.Context) (any, error)      { return "ok", nil }
func failOp(context.Context) (any, error)    { return nil, errors.New("boom") }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(Config{Name: "t", FailureThreshold: 3, CooldownSeconds: 60, SuccessThreshold: 2, MaxOpTimeout: time.Second})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := b.Call(ctx, failOp, nil)
		require.Error(t, err)
		require.Equal(t, domain.CircuitClosed, b.State())
	}
	_, err := b.Call(ctx, failOp, nil)
	require.Error(t, err)
	require.Equal(t, domain.CircuitOpen, b.State())
}

func TestBreaker_OpenReturnsFallbackWithoutAttemptingOp(t *testing.T) {
	b := New(Config{Name: "t", FailureThreshold: 1, CooldownSeconds: 60, SuccessThreshold: 1, MaxOpTimeout: time.Second})
	ctx := context.Background()

	_, err := b.Call(ctx, failOp, nil)
	require.Error(t, err)
	require.Equal(t, domain.CircuitOpen, b.State())

	called := false
	op := func(context.Context) (any, error) { called = true; return "should not run", nil }
	res, err := b.Call(ctx, op, func(context.Context) (any, error) { return "fallback", nil })
	require.NoError(t, err)
	require.Equal(t, "fallback", res)
	require.False(t, called)
}

func TestBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	b := New(Config{Name: "t", FailureThreshold: 1, CooldownSeconds: 0, SuccessThreshold: 2, MaxOpTimeout: time.Second})
	ctx := context.Background()

	_, err := b.Call(ctx, failOp, nil)
	require.Error(t, err)
	require.Equal(t, domain.CircuitOpen, b.State())

	// Cooldown is 0s so the very next call transitions OPEN -> HALF_OPEN.
	_, err = b.Call(ctx, okOp, nil)
	require.NoError(t, err)
	require.Equal(t, domain.CircuitHalfOpen, b.State())

	_, err = b.Call(ctx, okOp, nil)
	require.NoError(t, err)
	require.Equal(t, domain.CircuitClosed, b.State())
}

func TestBreaker_HalfOpenFailureReturnsToOpen(t *testing.T) {
	b := New(Config{Name: "t", FailureThreshold: 1, CooldownSeconds: 0, SuccessThreshold: 3, MaxOpTimeout: time.Second})
	ctx := context.Background()

	_, _ = b.Call(ctx, failOp, nil)
	require.Equal(t, domain.CircuitOpen, b.State())

	_, err := b.Call(ctx, failOp, nil)
	require.Error(t, err)
	require.Equal(t, domain.CircuitOpen, b.State())
}

func TestBreaker_StatsReflectsSuccessRate(t *testing.T) {
	b := New(Config{Name: "t", FailureThreshold: 100, CooldownSeconds: 60, SuccessThreshold: 3, MaxOpTimeout: time.Second})
	ctx := context.Background()

	_, _ = b.Call(ctx, okOp, nil)
	_, _ = b.Call(ctx, okOp, nil)
	_, _ = b.Call(ctx, failOp, nil)

	st := b.Stats()
	require.Equal(t, int64(3), st.TotalCalls)
	require.InDelta(t, 2.0/3.0, st.SuccessRate, 1e-9)
}

func TestBreaker_Reset(t *testing.T) {
	b := New(Config{Name: "t", FailureThreshold: 1, CooldownSeconds: 60, SuccessThreshold: 1, MaxOpTimeout: time.Second})
	ctx := context.Background()
	_, _ = b.Call(ctx, failOp, nil)
	require.Equal(t, domain.CircuitOpen, b.State())
	b.Reset()
	require.Equal(t, domain.CircuitClosed, b.State())
	require.Equal(t, int64(0), b.Stats().TotalCalls)
}

func TestManager_GetOrCreateIsStable(t *testing.T) {
	m := NewManager()
	b1 := m.GetOrCreate(DefaultConfig("kv"))
	b2 := m.GetOrCreate(DefaultConfig("kv"))
	require.Same(t, b1, b2)

	stats := m.AllStats()
	require.Contains(t, stats, "kv")
}
