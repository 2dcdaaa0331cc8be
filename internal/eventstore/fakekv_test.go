package eventstore

import (
	"sync"
	"time"

	"github.com/retail-reco/core/internal/domain"
)

// fakeKV is a minimal in-memory domain.KVStore for exercising the store's
// write/read paths without a real Redis.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
	failSet bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
}

var errFakeKV = errInjected("injected kv failure")

type errInjected string

func (e errInjected) Error() string { return string(e) }

func (f *fakeKV) Get(_ domain.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return nil, errFakeKV
	}
	v, ok := f.data[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (f *fakeKV) Set(_ domain.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errFakeKV
	}
	f.data[key] = value
	return nil
}

func (f *fakeKV) Delete(_ domain.Context, keys ...string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeKV) Keys(_ domain.Context, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.data))
	for k := range f.data {
		out = append(out, k)
	}
	return out, nil
}

func (f *fakeKV) Ping(_ domain.Context) (time.Duration, error) { return time.Millisecond, nil }

func (f *fakeKV) Info(_ domain.Context) (map[string]string, error) { return map[string]string{}, nil }

func (f *fakeKV) HealthCheck(_ domain.Context) domain.KVHealth {
	return domain.KVHealth{Status: "healthy", Connected: true}
}

var _ domain.KVStore = (*fakeKV)(nil)
