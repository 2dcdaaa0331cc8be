package breaker

import "sync"

// Manager lazily creates and tracks named breakers so unrelated components
// (event store read/write, KV adapter, remote recommenders) can each get
// their own instance while still being enumerable for a combined health view.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{breakers: make(map[string]*Breaker)}
}

// GetOrCreate returns the named breaker, constructing it with cfg on first use.
func (m *Manager) GetOrCreate(cfg Config) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[cfg.Name]; ok {
		return b
	}
	b := New(cfg)
	m.breakers[cfg.Name] = b
	return b
}

// AllStats returns a snapshot of every tracked breaker.
func (m *Manager) AllStats() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Stats, len(m.breakers))
	for name, b := range m.breakers {
		out[name] = b.Stats()
	}
	return out
}
