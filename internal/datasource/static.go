package datasource

import (
	"context"
	"sync"

	"github.com/vanderheijden86/brisk/pkg/model"
)

// StaticBackend serves a programmatic set of entries, e.g. session-specific
// actions registered by the embedding shell.
type StaticBackend struct {
	base

	mu      sync.RWMutex
	entries []model.Entry
	err     error
}

// NewStaticBackend creates a backend serving entries.
func NewStaticBackend(name string, rank int, entries ...model.Entry) *StaticBackend {
	b := &StaticBackend{base: newBase(name, rank)}
	b.Set(entries...)
	return b
}

// Set replaces the served entries. The change is picked up on the next rescan.
func (b *StaticBackend) Set(entries ...model.Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make([]model.Entry, len(entries))
	for i, e := range entries {
		e = e.Clone()
		e.Source = b.name
		b.entries[i] = e
	}
}

// SetUnavailable makes subsequent scans fail with ErrBackendUnavailable
// wrapping err. A nil err restores the backend.
func (b *StaticBackend) SetUnavailable(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

// Activate returns the current set.
func (b *StaticBackend) Activate(ctx context.Context) ([]model.Entry, error) {
	return b.scan(ctx)
}

// Rescan diffs the current set against previous.
func (b *StaticBackend) Rescan(ctx context.Context, previous []model.Entry) (model.Delta, error) {
	return rescanWith(ctx, b.rank, previous, b.scan)
}

func (b *StaticBackend) scan(ctx context.Context) ([]model.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.err != nil {
		return nil, unavailable(b.name, b.err)
	}
	out := make([]model.Entry, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.Clone()
	}
	return out, nil
}
