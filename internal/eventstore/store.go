// Package eventstore implements the append-only user event log: a
// buffered, circuit-breaker-guarded write path and a cached, lazily
// materialized profile read path.
package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/retail-reco/core/internal/breaker"
	"github.com/retail-reco/core/internal/domain"
	"github.com/retail-reco/core/internal/observability"
)

// eventEntropy backs monotonic event ID generation: ULIDs embed a
// millisecond timestamp plus a monotonic counter, so IDs generated within
// the same batch sort lexically in wall-clock order, matching spec's
// event-ID ordering requirement for the per-user index list.
var eventEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0) //nolint:gosec // monotonic entropy source, not cryptographic

func newEventID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), eventEntropy).String()
}

const (
	defaultCacheTTL      = 300 * time.Second
	defaultBufferSize    = 200
	defaultFlushInterval = 30 * time.Second
	defaultEventTTL      = 30 * 24 * time.Hour
	defaultProfileTTL    = 24 * time.Hour
	maxEventsListLen     = 1000
	recoveryBatchSize    = 50
)

// Config configures a Store.
type Config struct {
	CacheTTL      time.Duration
	BufferSize    int
	FlushInterval time.Duration
	EventTTL      time.Duration
	ProfileTTL    time.Duration
	FallbackDir   string // optional local on-disk fallback for failed writes
}

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.EventTTL <= 0 {
		c.EventTTL = defaultEventTTL
	}
	if c.ProfileTTL <= 0 {
		c.ProfileTTL = defaultProfileTTL
	}
	return c
}

// Metrics mirrors the original store's counters (spec §4.6 "stats()").
type Metrics struct {
	mu sync.Mutex

	EventsStored          int64
	EventsBuffered        int64
	EventsFailed          int64
	ProfilesGenerated     int64
	CacheHits             int64
	CacheMisses           int64
	ReadErrors            int64
	WriteErrors           int64
	RedisLatencyMS        float64
	BulkOperations        int64
	FallbacksUsed         int64
	CircuitBreakerTrigger int64
	RecoveryOperations    int64
	LocalStorageOps       int64
}

func (m *Metrics) snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m
	cp.mu = sync.Mutex{}
	return cp
}

func (m *Metrics) updateLatency(ms float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RedisLatencyMS == 0 {
		m.RedisLatencyMS = ms
		return
	}
	m.RedisLatencyMS = m.RedisLatencyMS*0.9 + ms*0.1
}

type cachedProfile struct {
	profile   domain.UserProfile
	expiresAt time.Time
}

// Store is the resilient user event store.
type Store struct {
	kv  domain.KVStore
	cfg Config

	readBreaker  *breaker.Breaker
	writeBreaker *breaker.Breaker

	bufMu     sync.Mutex
	pending   []domain.UserEvent
	failed    []domain.UserEvent
	lastFlush time.Time

	profileMu    sync.Mutex
	profileCache map[string]cachedProfile

	metrics Metrics

	mirror ProfileMirror
	sink   EventSink
}

// ProfileMirror is the optional durable sink for freshly generated profile
// snapshots, used only when PROFILE_MIRROR_DSN is configured. Upsert is
// called fire-and-forget, off the read hot path; a nil Store.mirror skips
// mirroring entirely.
type ProfileMirror interface {
	Upsert(ctx domain.Context, profile domain.UserProfile) error
}

// SetProfileMirror wires an optional durable profile-snapshot sink. Safe to
// call with nil to disable mirroring.
func (s *Store) SetProfileMirror(m ProfileMirror) {
	s.mirror = m
}

// EventSink is the optional async event-ingest path, used only when
// EVENT_KAFKA_BROKERS is configured. Publish runs fire-and-forget alongside
// the KV-backed buffer; a nil Store.sink skips publishing entirely.
type EventSink interface {
	Publish(ctx domain.Context, event domain.UserEvent) error
}

// SetEventSink wires an optional async event-ingest sink. Safe to call
// with nil to disable it.
func (s *Store) SetEventSink(sink EventSink) {
	s.sink = sink
}

// New constructs a Store. The read breaker uses the original's tighter
// defaults (3/30s/2/10s); the write breaker is more tolerant (5/20s/3/15s),
// per spec's Open Question decision for this package.
func New(kv domain.KVStore, cfg Config) *Store {
	return &Store{
		kv:  kv,
		cfg: cfg.withDefaults(),
		readBreaker: breaker.New(breaker.Config{
			Name:             "event_store_read",
			FailureThreshold: 3,
			CooldownSeconds:  30,
			SuccessThreshold: 2,
			MaxOpTimeout:     10 * time.Second,
		}),
		writeBreaker: breaker.New(breaker.Config{
			Name:             "event_store_write",
			FailureThreshold: 5,
			CooldownSeconds:  20,
			SuccessThreshold: 3,
			MaxOpTimeout:     15 * time.Second,
		}),
		lastFlush:    time.Now(),
		profileCache: make(map[string]cachedProfile),
	}
}

var (
	_ domain.EventRecorder = (*Store)(nil)
	_ domain.EventReader   = (*Store)(nil)
)

func eventKey(id string) string      { return "event:" + id }
func userEventsKey(id string) string { return "user:events:" + id }
func profileKey(id string) string    { return "user:profile:" + id }

// Record validates, buffers, and (on threshold) flushes a user event. It
// implements domain.EventRecorder.
func (s *Store) Record(ctx domain.Context, userID string, eventType domain.EventType, data map[string]any, sessionID, marketID string) (bool, error) {
	if err := validateEventData(eventType, data); err != nil {
		s.metrics.mu.Lock()
		s.metrics.EventsFailed++
		s.metrics.mu.Unlock()
		s.bufferFailed(domain.UserEvent{
			ID: newEventID(), UserID: userID, Type: eventType,
			Timestamp: time.Now().UTC(), SessionID: sessionID, MarketID: marketID, Data: data,
		})
		return false, err
	}

	event := domain.UserEvent{
		ID:        newEventID(),
		UserID:    userID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		MarketID:  marketID,
		Data:      data,
	}

	observability.RecordEventRecorded(string(eventType))
	s.publishAsync(event)

	s.bufMu.Lock()
	s.pending = append(s.pending, event)
	s.metrics.mu.Lock()
	s.metrics.EventsBuffered++
	s.metrics.mu.Unlock()

	shouldFlush := len(s.pending) >= s.cfg.BufferSize || time.Since(s.lastFlush) >= s.cfg.FlushInterval
	if shouldFlush {
		s.flushLocked(ctx)
	}
	s.bufMu.Unlock()

	s.profileMu.Lock()
	if cp, ok := s.profileCache[userID]; ok {
		cp.profile.NeedsRefresh = true
		s.profileCache[userID] = cp
	}
	s.profileMu.Unlock()

	return true, nil
}

// publishAsync forwards event to the optional Kafka/Redpanda sink without
// blocking Record's caller. A publish failure never affects the KV-backed
// write path; it is logged and otherwise ignored.
func (s *Store) publishAsync(event domain.UserEvent) {
	if s.sink == nil {
		return
	}
	go func(e domain.UserEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.sink.Publish(ctx, e); err != nil {
			slog.Warn("event sink publish failed", slog.String("event_id", e.ID), slog.Any("error", err))
		}
	}(event)
}

func (s *Store) bufferFailed(event domain.UserEvent) {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	s.failed = append(s.failed, event)
	maxFailed := s.cfg.BufferSize * 2
	if len(s.failed) > maxFailed {
		s.failed = s.failed[len(s.failed)-s.cfg.BufferSize:]
	}
}

// Flush drains the pending buffer under lock. Exposed for background tasks
// and tests; Record calls the unlocked variant internally.
func (s *Store) Flush(ctx domain.Context) bool {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	return s.flushLocked(ctx)
}

func (s *Store) flushLocked(ctx domain.Context) bool {
	if len(s.pending) == 0 {
		return true
	}
	snapshot := s.pending
	s.pending = nil
	s.lastFlush = time.Now()

	result, err := s.writeBreaker.Call(ctx, func(ctx domain.Context) (any, error) {
		return nil, s.persistBatch(ctx, snapshot)
	}, func(domain.Context) (any, error) {
		s.writeFallback(snapshot)
		return false, nil
	})
	if err != nil {
		s.metrics.mu.Lock()
		s.metrics.WriteErrors++
		s.metrics.mu.Unlock()
		s.writeFallback(snapshot)
		observability.RecordEventFlush(false)
		return false
	}
	if ok, _ := result.(bool); result != nil && !ok {
		observability.RecordEventFlush(false)
		return false
	}
	observability.RecordEventFlush(true)
	return true
}

// persistBatch bulk-persists events grouped by user, per spec §4.6's
// write-path bulk-persist rule.
func (s *Store) persistBatch(ctx domain.Context, events []domain.UserEvent) error {
	start := time.Now()
	byUser := make(map[string][]domain.UserEvent)
	for _, e := range events {
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}

	for userID, userEvents := range byUser {
		for _, e := range userEvents {
			b, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal event: %w", err)
			}
			if err := s.kv.Set(ctx, eventKey(e.ID), b, s.cfg.EventTTL); err != nil {
				return fmt.Errorf("set event: %w", err)
			}
		}

		ids, err := s.readEventIDs(ctx, userID)
		if err != nil {
			ids = nil
		}
		newIDs := make([]string, 0, len(userEvents))
		for i := len(userEvents) - 1; i >= 0; i-- {
			newIDs = append(newIDs, userEvents[i].ID)
		}
		ids = append(newIDs, ids...)
		if len(ids) > maxEventsListLen {
			ids = ids[:maxEventsListLen]
		}

		listBytes, err := json.Marshal(ids)
		if err != nil {
			return fmt.Errorf("marshal event ids: %w", err)
		}
		if err := s.kv.Set(ctx, userEventsKey(userID), listBytes, s.cfg.EventTTL); err != nil {
			return fmt.Errorf("set event ids: %w", err)
		}

		if _, err := s.kv.Delete(ctx, profileKey(userID)); err != nil {
			slog.Warn("profile invalidation failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		}
	}

	s.metrics.mu.Lock()
	s.metrics.EventsStored += int64(len(events))
	s.metrics.BulkOperations++
	s.metrics.mu.Unlock()
	s.metrics.updateLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

func (s *Store) readEventIDs(ctx domain.Context, userID string) ([]string, error) {
	raw, err := s.kv.Get(ctx, userEventsKey(userID))
	if err != nil || raw == nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// writeFallback routes a failed batch to the in-memory failed buffer and,
// if configured, an on-disk journal file.
func (s *Store) writeFallback(events []domain.UserEvent) {
	s.metrics.mu.Lock()
	s.metrics.FallbacksUsed++
	s.metrics.CircuitBreakerTrigger++
	s.metrics.mu.Unlock()

	s.failed = append(s.failed, events...)
	maxFailed := s.cfg.BufferSize * 4
	if len(s.failed) > maxFailed {
		s.failed = s.failed[len(s.failed)-maxFailed:]
	}

	if s.cfg.FallbackDir != "" {
		if err := persistEventsToDisk(s.cfg.FallbackDir, events); err != nil {
			slog.Warn("local fallback write failed", slog.String("error", err.Error()))
			return
		}
		s.metrics.mu.Lock()
		s.metrics.LocalStorageOps++
		s.metrics.mu.Unlock()
	}
}

// RecentEvents returns up to limit of the user's events restricted to
// types, newest first. Implements domain.EventReader for the hybrid
// recommender's seen-set computation.
func (s *Store) RecentEvents(ctx domain.Context, userID string, types []domain.EventType, limit int) ([]domain.UserEvent, error) {
	wanted := make(map[domain.EventType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	ids, err := s.readEventIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.UserEvent, 0, limit)
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		raw, err := s.kv.Get(ctx, eventKey(id))
		if err != nil || raw == nil {
			continue
		}
		var e domain.UserEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		if len(wanted) > 0 && !wanted[e.Type] {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Metrics returns a snapshot of the store's counters.
func (s *Store) Metrics() Metrics {
	return s.metrics.snapshot()
}

// BufferSizes returns the current pending/failed buffer lengths, for stats().
func (s *Store) BufferSizes() (pending, failed int) {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	return len(s.pending), len(s.failed)
}

// HealthCheck reports one of healthy/degraded/unhealthy depending on the
// two breakers' states, per spec §4.6.
func (s *Store) HealthCheck() domain.HealthStatus {
	readOpen := s.readBreaker.State() == domain.CircuitOpen
	writeOpen := s.writeBreaker.State() == domain.CircuitOpen
	switch {
	case readOpen && writeOpen:
		return domain.HealthUnhealthy
	case readOpen || writeOpen:
		return domain.HealthDegraded
	default:
		return domain.HealthHealthy
	}
}

// Stats exposes counters, buffer sizes, and both breakers' stats, per spec
// §4.6's stats() contract.
type Stats struct {
	Metrics       Metrics
	PendingBuffer int
	FailedBuffer  int
	ReadBreaker   breaker.Stats
	WriteBreaker  breaker.Stats
}

// Stats returns a full stats snapshot.
func (s *Store) Stats() Stats {
	pending, failed := s.BufferSizes()
	readStats := s.readBreaker.Stats()
	writeStats := s.writeBreaker.Stats()
	observability.RecordBreakerStats(readStats)
	observability.RecordBreakerStats(writeStats)
	return Stats{
		Metrics:       s.Metrics(),
		PendingBuffer: pending,
		FailedBuffer:  failed,
		ReadBreaker:   readStats,
		WriteBreaker:  writeStats,
	}
}
