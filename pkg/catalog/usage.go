package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/brisk/pkg/metrics"
)

// UsageStore persists launch counters as a JSON object of id → count.
//
// Counters are a ranking hint, not durable state: writes are best-effort
// and a lost update only costs ranking precision.
type UsageStore struct {
	path string
	mu   sync.Mutex
}

// NewUsageStore returns a store backed by the file at path.
func NewUsageStore(path string) *UsageStore {
	return &UsageStore{path: path}
}

// Path returns the backing file path.
func (s *UsageStore) Path() string {
	return s.path
}

// Load reads the counters. A missing file yields an empty map.
func (s *UsageStore) Load() (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return counts, nil
		}
		return counts, fmt.Errorf("reading usage counts: %w", err)
	}
	if len(data) == 0 {
		return counts, nil
	}
	if err := json.Unmarshal(data, &counts); err != nil {
		return make(map[string]int), fmt.Errorf("parsing usage counts: %w", err)
	}
	return counts, nil
}

// Save replaces the stored counters via write-to-temp and rename.
func (s *UsageStore) Save(counts map[string]int) error {
	defer metrics.Timer(metrics.UsageFlush)()

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshaling usage counts: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating usage directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".usage-*.json")
	if err != nil {
		return fmt.Errorf("creating usage temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing usage counts: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing usage temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing usage file: %w", err)
	}
	return nil
}
