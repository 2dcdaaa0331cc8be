package collaborative

import (
	"fmt"
	"sort"
	"sync"

	"github.com/retail-reco/core/internal/domain"
)

// Stub is a fast, deterministic domain.CollaborativeEngine for local
// development and tests: no network calls, recommendations taken from a
// fixed seed set. Recorded events are counted but do not change them.
type Stub struct {
	mu     sync.Mutex
	events int
	seed   map[string]float64 // productID -> score, seeded once at construction
}

// NewStub builds a Stub with a fixed seed candidate set, so Recommend
// returns the same output for any user; with a nil or empty seed that
// output is empty.
func NewStub(seed map[string]float64) *Stub {
	if seed == nil {
		seed = map[string]float64{}
	}
	return &Stub{seed: seed}
}

var _ domain.CollaborativeEngine = (*Stub)(nil)

// Recommend returns up to n of the seed candidates sorted by score desc.
func (s *Stub) Recommend(_ domain.Context, _ string, n int) ([]domain.ScoredProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ScoredProduct, 0, len(s.seed))
	for id, score := range s.seed {
		out = append(out, domain.ScoredProduct{ProductID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProductID < out[j].ProductID
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out, nil
}

// RecordEvent counts the call and returns a deterministic acknowledgment.
func (s *Stub) RecordEvent(_ domain.Context, userID string, eventType domain.EventType, productID string, _ float64) (string, error) {
	s.mu.Lock()
	s.events++
	n := s.events
	s.mu.Unlock()
	return fmt.Sprintf("stub-ack-%d:%s:%s:%s", n, userID, eventType, productID), nil
}

// EventCount returns the number of events recorded so far, for tests.
func (s *Stub) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}
