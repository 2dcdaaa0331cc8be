package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/retail-reco/core/internal/domain"
)

// GetProfile returns the user's materialized profile, per spec §4.6's read
// path: in-memory cache, then KV, then on-demand generation from the raw
// event log, with a read-breaker-guarded fallback ladder.
func (s *Store) GetProfile(ctx domain.Context, userID string) (domain.UserProfile, error) {
	s.profileMu.Lock()
	if cp, ok := s.profileCache[userID]; ok && !cp.profile.NeedsRefresh && time.Now().Before(cp.expiresAt) {
		s.profileMu.Unlock()
		s.metrics.mu.Lock()
		s.metrics.CacheHits++
		s.metrics.mu.Unlock()
		cp.profile.Source = "cache"
		return cp.profile, nil
	}
	s.profileMu.Unlock()

	s.metrics.mu.Lock()
	s.metrics.CacheMisses++
	s.metrics.mu.Unlock()

	result, err := s.readBreaker.Call(ctx, func(ctx domain.Context) (any, error) {
		return s.fetchProfile(ctx, userID)
	}, func(ctx domain.Context) (any, error) {
		return s.readFallback(userID), nil
	})
	if err != nil {
		s.metrics.mu.Lock()
		s.metrics.ReadErrors++
		s.metrics.mu.Unlock()
		return s.readFallback(userID), nil
	}

	profile := result.(domain.UserProfile)
	s.cacheProfile(userID, profile)
	return profile, nil
}

func (s *Store) cacheProfile(userID string, profile domain.UserProfile) {
	s.profileMu.Lock()
	defer s.profileMu.Unlock()
	s.profileCache[userID] = cachedProfile{profile: profile, expiresAt: time.Now().Add(s.cfg.CacheTTL)}
}

func (s *Store) fetchProfile(ctx domain.Context, userID string) (domain.UserProfile, error) {
	start := time.Now()
	raw, err := s.kv.Get(ctx, profileKey(userID))
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}

	if raw != nil {
		var profile domain.UserProfile
		if err := json.Unmarshal(raw, &profile); err != nil {
			return domain.UserProfile{}, fmt.Errorf("unmarshal profile: %w", err)
		}
		s.metrics.updateLatency(float64(time.Since(start).Milliseconds()))
		profile.Source = "kv"
		return profile, nil
	}

	profile, err := s.generateProfile(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	b, err := json.Marshal(profile)
	if err == nil {
		_ = s.kv.Set(ctx, profileKey(userID), b, s.cfg.ProfileTTL)
	}
	s.metrics.mu.Lock()
	s.metrics.ProfilesGenerated++
	s.metrics.mu.Unlock()
	s.metrics.updateLatency(float64(time.Since(start).Milliseconds()))
	profile.Source = "generated"
	s.mirrorAsync(profile)
	return profile, nil
}

// mirrorAsync best-effort upserts a freshly generated profile to the optional
// durable mirror. It never blocks the read path and never surfaces an error
// to the caller; a mirror failure is logged and otherwise ignored.
func (s *Store) mirrorAsync(profile domain.UserProfile) {
	if s.mirror == nil {
		return
	}
	go func(p domain.UserProfile) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.mirror.Upsert(ctx, p); err != nil {
			slog.Warn("profile mirror upsert failed", slog.String("user_id", p.UserID), slog.Any("error", err))
		}
	}(profile)
}

// generateProfile aggregates the user's raw events into a UserProfile, per
// spec §4.6's profile materialization details.
func (s *Store) generateProfile(ctx domain.Context, userID string) (domain.UserProfile, error) {
	ids, err := s.readEventIDs(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("read event ids: %w", err)
	}
	if len(ids) == 0 {
		return emptyProfile(userID, "generated"), nil
	}

	events := make([]domain.UserEvent, 0, len(ids))
	for _, id := range ids {
		raw, err := s.kv.Get(ctx, eventKey(id))
		if err != nil || raw == nil {
			continue
		}
		var e domain.UserEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	if len(events) == 0 {
		return emptyProfile(userID, "generated"), nil
	}

	sessions := make(map[string]bool)
	marketCounts := make(map[string]int)
	categoryViews := make(map[string]int)
	var intents, queries, purchases []string

	var first, last time.Time
	for i, e := range events {
		if i == 0 || e.Timestamp.Before(first) {
			first = e.Timestamp
		}
		if i == 0 || e.Timestamp.After(last) {
			last = e.Timestamp
		}
		if e.SessionID != "" {
			sessions[e.SessionID] = true
		}
		if e.MarketID != "" {
			marketCounts[e.MarketID]++
		}

		switch e.Type {
		case domain.EventConversationIntent:
			if intent, ok := e.Data["intent"].(string); ok && len(intents) < 10 {
				intents = append(intents, intent)
			}
		case domain.EventView:
			if category, ok := e.Data["category"].(string); ok && category != "" {
				categoryViews[category]++
			}
		case domain.EventSearch:
			if query, ok := e.Data["query"].(string); ok && len(queries) < 20 {
				queries = append(queries, query)
			}
		case domain.EventPurchase:
			if pid, ok := e.Data["product_id"].(string); ok && len(purchases) < 10 {
				purchases = append(purchases, pid)
			}
		}
	}

	affinity := make(map[string]float64, len(categoryViews))
	var totalViews int
	for _, n := range categoryViews {
		totalViews += n
	}
	if totalViews > 0 {
		for category, n := range categoryViews {
			affinity[category] = roundTo3(float64(n) / float64(totalViews))
		}
	}

	daysActive := int(last.Sub(first).Hours()/24) + 1
	if daysActive < 1 {
		daysActive = 1
	}

	profile := domain.UserProfile{
		UserID:           userID,
		TotalEvents:      len(events),
		FirstActivity:    first,
		LastActivity:     last,
		Intents:          intents,
		CategoryAffinity: affinity,
		SearchQueries:    queries,
		SessionCount:     len(sessions),
		MarketCounts:     marketCounts,
		Purchases:        purchases,
		DaysActive:       daysActive,
		ActivityLevel:    activityLevel(len(events)),
	}
	return profile, nil
}

// activityLevel buckets engagement by raw event count per spec §4.6's
// 5/20/50 thresholds.
func activityLevel(eventCount int) domain.ActivityLevel {
	switch {
	case eventCount < 5:
		return domain.ActivityNew
	case eventCount < 20:
		return domain.ActivityLow
	case eventCount < 50:
		return domain.ActivityMedium
	default:
		return domain.ActivityHigh
	}
}

func roundTo3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}

func emptyProfile(userID, source string) domain.UserProfile {
	now := time.Now().UTC()
	return domain.UserProfile{
		UserID:           userID,
		FirstActivity:    now,
		LastActivity:     now,
		CategoryAffinity: map[string]float64{},
		MarketCounts:     map[string]int{},
		ActivityLevel:    domain.ActivityNew,
		Source:           source,
	}
}

// readFallback implements spec §4.6's read fallback: a stale cached copy if
// one exists, otherwise an empty profile.
func (s *Store) readFallback(userID string) domain.UserProfile {
	s.metrics.mu.Lock()
	s.metrics.FallbacksUsed++
	s.metrics.mu.Unlock()

	s.profileMu.Lock()
	cp, ok := s.profileCache[userID]
	s.profileMu.Unlock()
	if ok {
		cp.profile.Source = "fallback_expired_cache"
		return cp.profile
	}
	return emptyProfile(userID, "fallback_empty")
}
