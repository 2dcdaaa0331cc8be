package eventstore

import (
	"log/slog"
	"time"

	"github.com/retail-reco/core/internal/domain"
)

// RunBackgroundFlush periodically flushes the pending buffer. Intended to
// run for the process lifetime in its own goroutine; returns when ctx is
// done, per spec §4.6's "periodic flush every flush_interval_seconds".
func (s *Store) RunBackgroundFlush(ctx domain.Context) {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// RunBackgroundRecovery periodically retries the failed-event buffer and
// any on-disk fallback files, per spec §4.6's "periodic recovery every 60s".
func (s *Store) RunBackgroundRecovery(ctx domain.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.recoverOnce(ctx)
		}
	}
}

// RecoverOnce runs a single recovery pass: retries one batch of the failed
// buffer and replays any on-disk fallback files. Exported so it can also be
// driven by an external scheduler (e.g. an asynq periodic task) instead of
// only the ticker loop in RunBackgroundRecovery.
func (s *Store) RecoverOnce(ctx domain.Context) {
	s.recoverOnce(ctx)
}

func (s *Store) recoverOnce(ctx domain.Context) {
	s.bufMu.Lock()
	var batch []domain.UserEvent
	if len(s.failed) > 0 {
		n := recoveryBatchSize
		if n > len(s.failed) {
			n = len(s.failed)
		}
		batch = append(batch, s.failed[:n]...)
	}
	s.bufMu.Unlock()

	if len(batch) > 0 {
		if err := s.persistBatch(ctx, batch); err != nil {
			slog.Warn("event recovery batch failed", slog.String("error", err.Error()))
		} else {
			s.bufMu.Lock()
			s.failed = s.failed[len(batch):]
			s.bufMu.Unlock()
			s.metrics.mu.Lock()
			s.metrics.RecoveryOperations++
			s.metrics.mu.Unlock()
		}
	}

	if s.cfg.FallbackDir != "" {
		s.recoverLocalFallbackFiles(ctx)
	}
}

func (s *Store) recoverLocalFallbackFiles(ctx domain.Context) {
	files, err := listFallbackFiles(s.cfg.FallbackDir, 3)
	if err != nil {
		slog.Warn("fallback directory scan failed", slog.String("error", err.Error()))
		return
	}
	for _, path := range files {
		events, err := readFallbackFile(path)
		if err != nil {
			if err := moveToCorrupted(s.cfg.FallbackDir, path); err != nil {
				slog.Warn("failed to quarantine corrupted fallback file", slog.String("path", path), slog.String("error", err.Error()))
			}
			continue
		}
		if len(events) == 0 {
			_ = removeFallbackFile(path)
			continue
		}
		if err := s.persistBatch(ctx, events); err != nil {
			slog.Warn("fallback file replay failed", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		_ = removeFallbackFile(path)
		s.metrics.mu.Lock()
		s.metrics.RecoveryOperations++
		s.metrics.mu.Unlock()
	}
}
