package kv

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/retail-reco/core/internal/domain"
)

type memoryEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// MemoryStore is an in-memory domain.KVStore test double / fallback
// instance. It never fails: it exists precisely so the Service Factory has
// something non-nil to install when the live KV adapter's circuit opens.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		return nil, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = memoryEntry{value: stored, expires: expires}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.data {
		if ok, _ := filepath.Match(pattern, k); ok || matchGlobStar(pattern, k) {
			out = append(out, k)
		}
	}
	return out, nil
}

// matchGlobStar supports the redis-style trailing "*" pattern used by the
// diversity cache's invalidate_user (e.g. "diversity_cache_v2:U1:*"), which
// filepath.Match also handles, but this keeps behavior explicit and covers
// patterns containing ':' consistently across platforms.
func matchGlobStar(pattern, key string) bool {
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(key, prefix)
	}
	return pattern == key
}

func (m *MemoryStore) Ping(_ context.Context) (time.Duration, error) {
	return 0, nil
}

func (m *MemoryStore) Info(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]string{"keys": time.Now().String()}, nil
}

func (m *MemoryStore) HealthCheck(_ context.Context) domain.KVHealth {
	return domain.KVHealth{Status: "healthy", Connected: true, LatencyMS: 0, LastTest: time.Now()}
}

var _ domain.KVStore = (*MemoryStore)(nil)
