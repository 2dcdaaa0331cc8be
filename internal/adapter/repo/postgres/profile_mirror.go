package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retail-reco/core/internal/domain"
)

const createProfileMirrorTable = `
CREATE TABLE IF NOT EXISTS user_profile_snapshots (
	user_id       TEXT PRIMARY KEY,
	snapshot      JSONB NOT NULL,
	total_events  INTEGER NOT NULL,
	activity      TEXT NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertProfileMirror = `
INSERT INTO user_profile_snapshots (user_id, snapshot, total_events, activity, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (user_id) DO UPDATE SET
	snapshot     = EXCLUDED.snapshot,
	total_events = EXCLUDED.total_events,
	activity     = EXCLUDED.activity,
	updated_at   = now()`

// ProfileMirror durably mirrors generated user-profile snapshots to Postgres.
// It is an optional sink: the Event Store's profile read path never depends
// on it, and a mirror outage only loses the latest snapshot, not the
// underlying event log.
type ProfileMirror struct {
	pool *pgxpool.Pool
}

// NewProfileMirror opens a pool against dsn and ensures the mirror table
// exists by running EnsureSchema, so Upsert can be called right away.
func NewProfileMirror(ctx context.Context, dsn string) (*ProfileMirror, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("op=postgres.NewProfileMirror: %w", err)
	}
	m := &ProfileMirror{pool: pool}
	if err := m.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return m, nil
}

// EnsureSchema idempotently creates the mirror table.
func (m *ProfileMirror) EnsureSchema(ctx context.Context) error {
	if _, err := m.pool.Exec(ctx, createProfileMirrorTable); err != nil {
		return fmt.Errorf("op=postgres.ProfileMirror.EnsureSchema: %w", err)
	}
	return nil
}

// Upsert writes profile as a JSONB snapshot, replacing any prior snapshot
// for the same user. Satisfies eventstore.ProfileMirror.
func (m *ProfileMirror) Upsert(ctx domain.Context, profile domain.UserProfile) error {
	snapshot, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("op=postgres.ProfileMirror.Upsert marshal: %w", err)
	}
	_, err = m.pool.Exec(ctx, upsertProfileMirror, profile.UserID, snapshot, profile.TotalEvents, string(profile.ActivityLevel))
	if err != nil {
		return fmt.Errorf("op=postgres.ProfileMirror.Upsert: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (m *ProfileMirror) Close() { m.pool.Close() }
