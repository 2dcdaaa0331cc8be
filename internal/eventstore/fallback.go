package eventstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/retail-reco/core/internal/domain"
)

type fallbackFile struct {
	Events []domain.UserEvent `json:"events"`
}

// persistEventsToDisk writes a failed batch to dir as a timestamped JSON
// journal file, per spec §4.6's write-path fallback.
func persistEventsToDisk(dir string, events []domain.UserEvent) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create fallback dir: %w", err)
	}

	stamp := time.Now().Unix()
	name := fmt.Sprintf("events_fallback_%d_%s.json", stamp, uuid.NewString()[:8])
	path := filepath.Join(dir, name)

	b, err := json.Marshal(fallbackFile{Events: events})
	if err != nil {
		return fmt.Errorf("marshal fallback file: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// listFallbackFiles returns up to limit fallback journal file paths in dir,
// sorted by name (oldest timestamp first).
func listFallbackFiles(dir string, limit int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, "events_fallback_") && strings.HasSuffix(n, ".json") {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, filepath.Join(dir, n))
	}
	return out, nil
}

func readFallbackFile(path string) ([]domain.UserEvent, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fallback file: %w", err)
	}
	var f fallbackFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse fallback file: %w", err)
	}
	return f.Events, nil
}

func removeFallbackFile(path string) error {
	return os.Remove(path)
}

// moveToCorrupted relocates an unparseable fallback file to dir/corrupted/
// so the recovery loop stops retrying it every tick.
func moveToCorrupted(dir, path string) error {
	corruptedDir := filepath.Join(dir, "corrupted")
	if err := os.MkdirAll(corruptedDir, 0o755); err != nil {
		return fmt.Errorf("create corrupted dir: %w", err)
	}
	dest := filepath.Join(corruptedDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return os.Remove(path)
	}
	return nil
}
