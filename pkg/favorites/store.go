// Package favorites keeps the user's ordered list of pinned entry ids.
//
// The list is persisted as YAML after every mutation. Ids that no longer
// resolve in the catalog stay in storage, so reinstalling an application
// restores its pin; they are only filtered out of rendered views.
package favorites

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/brisk/pkg/debug"
	"github.com/vanderheijden86/brisk/pkg/metrics"
)

// FormatVersion is written to the persisted file. Readers ignore unknown
// fields, so newer files stay readable.
const FormatVersion = 1

var (
	// ErrReorderValidation is returned when a reorder does not name exactly
	// the current set of pinned ids.
	ErrReorderValidation = errors.New("reorder validation failed")
	// ErrPersistenceWrite marks a failed write. The in-memory change is kept.
	ErrPersistenceWrite = errors.New("favorites write failed")
	// ErrInvalidID is returned for an empty id.
	ErrInvalidID = errors.New("invalid favorite id")
	// ErrCorrupt marks a persisted file that could not be parsed.
	ErrCorrupt = errors.New("favorites file corrupt")
	// ErrUnreadable marks a persisted file that exists but could not be read.
	ErrUnreadable = errors.New("favorites file unreadable")
)

// ReorderError lists why a reorder request was rejected.
type ReorderError struct {
	Missing    []string // pinned ids absent from the request
	Unexpected []string // requested ids that are not pinned
	Duplicates []string // ids named more than once
}

func (e *ReorderError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Unexpected, ", "))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, "duplicate "+strings.Join(e.Duplicates, ", "))
	}
	return fmt.Sprintf("%v: %s", ErrReorderValidation, strings.Join(parts, "; "))
}

func (e *ReorderError) Is(target error) bool { return target == ErrReorderValidation }

// PersistError wraps a failed write of the favorites file.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrPersistenceWrite, e.Path, e.Err)
}

func (e *PersistError) Unwrap() error        { return e.Err }
func (e *PersistError) Is(target error) bool { return target == ErrPersistenceWrite }

type fileFormat struct {
	Version   int      `yaml:"version"`
	Favorites []string `yaml:"favorites"`
}

// Store is the ordered favorites list. It is safe for concurrent use.
type Store struct {
	path string

	mu    sync.Mutex
	ids   []string
	dirty bool
}

// NewMemoryStore returns a store that never touches disk.
func NewMemoryStore(ids ...string) *Store {
	s := &Store{}
	for _, id := range ids {
		if id != "" && !slices.Contains(s.ids, id) {
			s.ids = append(s.ids, id)
		}
	}
	return s
}

// Load opens the store persisted at path. A missing file yields an empty
// store. A corrupt or unreadable file yields an empty store together with
// an error wrapping ErrCorrupt or ErrUnreadable; the store keeps path, so
// the next mutation retries the write.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return s, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	for _, id := range f.Favorites {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(s.ids, id) {
			s.ids = append(s.ids, id)
		}
	}
	debug.Log("favorites: loaded %d ids from %s", len(s.ids), path)
	return s, nil
}

// Path returns the backing file, or "" for a memory store.
func (s *Store) Path() string {
	return s.path
}

// Pin appends id if it is not already pinned. It reports whether the list
// changed. A non-nil error wrapping ErrPersistenceWrite means the pin took
// effect in memory but was not written.
func (s *Store) Pin(id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.ids, id) {
		return false, nil
	}
	s.ids = append(s.ids, id)
	return true, s.persistLocked()
}

// Unpin removes id if present. It reports whether the list changed.
func (s *Store) Unpin(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.ids, id)
	if i < 0 {
		return false, nil
	}
	s.ids = slices.Delete(s.ids, i, i+1)
	return true, s.persistLocked()
}

// Reorder replaces the order wholesale. ids must name exactly the current
// set of pinned ids, each once; otherwise a *ReorderError is returned and
// the store is unchanged.
func (s *Store) Reorder(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateReorder(s.ids, ids); err != nil {
		return err
	}
	if slices.Equal(s.ids, ids) {
		return nil
	}
	s.ids = slices.Clone(ids)
	return s.persistLocked()
}

func validateReorder(current, requested []string) error {
	have := make(map[string]bool, len(current))
	for _, id := range current {
		have[id] = true
	}
	var rerr ReorderError
	seen := make(map[string]bool, len(requested))
	for _, id := range requested {
		if seen[id] {
			rerr.Duplicates = append(rerr.Duplicates, id)
			continue
		}
		seen[id] = true
		if !have[id] {
			rerr.Unexpected = append(rerr.Unexpected, id)
		}
	}
	for _, id := range current {
		if !seen[id] {
			rerr.Missing = append(rerr.Missing, id)
		}
	}
	if len(rerr.Missing) == 0 && len(rerr.Unexpected) == 0 && len(rerr.Duplicates) == 0 {
		return nil
	}
	sort.Strings(rerr.Missing)
	sort.Strings(rerr.Unexpected)
	sort.Strings(rerr.Duplicates)
	return &rerr
}

// IDs returns every stored id in order, resolvable or not.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ids)
}

// List returns the stored ids, in order, that resolve.
func (s *Store) List(resolves func(id string) bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.ids))
	for _, id := range s.ids {
		if resolves == nil || resolves(id) {
			out = append(out, id)
		}
	}
	return out
}

// Contains reports whether id is pinned.
func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.ids, id)
}

// Dirty reports whether the last write failed and has not been retried
// successfully.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Flush writes the current list if a previous write failed.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.persistLocked()
}

// persistLocked writes the list. Callers hold s.mu. On failure the store is
// marked dirty and the in-memory list is kept.
func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	if err := writeFile(s.path, s.ids); err != nil {
		s.dirty = true
		debug.Log("favorites: write failed, keeping %d ids in memory: %v", len(s.ids), err)
		return &PersistError{Path: s.path, Err: err}
	}
	s.dirty = false
	return nil
}

// writeFile replaces path atomically. The temp file is closed and removed
// on every path out of this function.
func writeFile(path string, ids []string) (err error) {
	defer metrics.Timer(metrics.FavoritesFlush)()

	data, err := yaml.Marshal(fileFormat{Version: FormatVersion, Favorites: ids})
	if err != nil {
		return fmt.Errorf("marshaling favorites: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating favorites directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".favorites-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	closed := false
	defer func() {
		if !closed {
			tmp.Close()
		}
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("writing favorites: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing favorites: %w", err)
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing favorites: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing favorites: %w", err)
	}
	return nil
}
