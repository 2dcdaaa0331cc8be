// Package breaker implements a three-state circuit breaker guarding any
// async operation, with an optional synchronous fallback.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/retail-reco/core/internal/domain"
)

// Config configures a Breaker instance.
type Config struct {
	// Name labels this breaker in logs and metrics (e.g. "event_store_read").
	Name string
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int
	// CooldownSeconds is how long the circuit stays OPEN before probing HALF_OPEN.
	CooldownSeconds int
	// SuccessThreshold is the consecutive-success count in HALF_OPEN that closes the circuit.
	SuccessThreshold int
	// MaxOpTimeout bounds every guarded operation.
	MaxOpTimeout time.Duration
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		CooldownSeconds:  60,
		SuccessThreshold: 3,
		MaxOpTimeout:     30 * time.Second,
	}
}

// Stats is a snapshot of a breaker's counters, safe to read concurrently.
type Stats struct {
	Name           string
	State          domain.CircuitState
	TotalCalls     int64
	TotalFailures  int64
	TotalSuccesses int64
	SuccessRate    float64
}

// Breaker guards calls with a CLOSED/OPEN/HALF_OPEN state machine.
type Breaker struct {
	cfg Config

	mu              sync.Mutex
	state           domain.CircuitState
	failureCount    int
	successCount    int
	lastFailureTime time.Time

	totalCalls     int64
	totalFailures  int64
	totalSuccesses int64
}

// New constructs a Breaker in the CLOSED state.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CooldownSeconds <= 0 {
		cfg.CooldownSeconds = 60
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 3
	}
	if cfg.MaxOpTimeout <= 0 {
		cfg.MaxOpTimeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: domain.CircuitClosed}
}

// State returns the current circuit state.
func (b *Breaker) State() domain.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Call runs op under the breaker's protocol. If the circuit is OPEN and the
// cooldown has not elapsed, fallback is invoked when non-nil; otherwise
// domain.ErrCircuitOpen is returned. op is bounded by MaxOpTimeout.
func (b *Breaker) Call(ctx context.Context, op func(context.Context) (any, error), fallback func(context.Context) (any, error)) (any, error) {
	if allowed, useFallback := b.beforeCall(); !allowed {
		if useFallback && fallback != nil {
			return fallback(ctx)
		}
		return nil, domain.ErrCircuitOpen
	}

	opCtx, cancel := context.WithTimeout(ctx, b.cfg.MaxOpTimeout)
	defer cancel()

	result, err := op(opCtx)
	if err != nil || (opCtx.Err() != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded)) {
		if err == nil {
			err = domain.ErrTimeout
		}
		b.recordFailure()
		if fallback != nil {
			return fallback(ctx)
		}
		return nil, err
	}

	b.recordSuccess()
	return result, nil
}

// beforeCall evaluates the OPEN/HALF_OPEN gating rule and returns whether the
// call may proceed, and if not, whether a fallback should be tried.
func (b *Breaker) beforeCall() (allowed bool, useFallback bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case domain.CircuitOpen:
		if time.Since(b.lastFailureTime) > time.Duration(b.cfg.CooldownSeconds)*time.Second {
			b.state = domain.CircuitHalfOpen
			b.successCount = 0
			slog.Info("breaker cooldown elapsed, probing", slog.String("breaker", b.cfg.Name))
			return true, false
		}
		return false, true
	default:
		return true, false
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++
	b.totalSuccesses++
	b.failureCount = 0

	switch b.state {
	case domain.CircuitHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = domain.CircuitClosed
			b.successCount = 0
			slog.Info("breaker closed after recovery", slog.String("breaker", b.cfg.Name))
		}
	case domain.CircuitOpen:
		// Shouldn't happen under the protocol above, but recover gracefully.
		b.state = domain.CircuitClosed
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++
	b.totalFailures++
	b.lastFailureTime = time.Now()

	switch b.state {
	case domain.CircuitHalfOpen:
		b.state = domain.CircuitOpen
		b.successCount = 0
		slog.Warn("breaker reopened after half-open failure", slog.String("breaker", b.cfg.Name))
	case domain.CircuitClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = domain.CircuitOpen
			slog.Warn("breaker opened", slog.String("breaker", b.cfg.Name),
				slog.Int("failure_count", b.failureCount),
				slog.Int("threshold", b.cfg.FailureThreshold))
		}
	}
}

// Stats returns a snapshot of call totals and current state.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	rate := 0.0
	if b.totalCalls > 0 {
		rate = float64(b.totalSuccesses) / float64(b.totalCalls)
	}
	return Stats{
		Name:           b.cfg.Name,
		State:          b.state,
		TotalCalls:     b.totalCalls,
		TotalFailures:  b.totalFailures,
		TotalSuccesses: b.totalSuccesses,
		SuccessRate:    rate,
	}
}

// Reset returns the breaker to CLOSED with zeroed counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = domain.CircuitClosed
	b.failureCount = 0
	b.successCount = 0
	b.totalCalls = 0
	b.totalFailures = 0
	b.totalSuccesses = 0
	b.lastFailureTime = time.Time{}
}
