package catalog

import (
	"slices"

	"github.com/vanderheijden86/brisk/pkg/model"
)

// Snapshot is an immutable, fully-formed view of the catalog at one version.
// Returned slices are copies; the snapshot itself is never mutated after
// publication.
type Snapshot struct {
	// Version increases by one with every published mutation.
	Version uint64

	entries  map[string]model.Entry
	ordered  []model.Entry
	sections []model.Section
}

// Get looks up an entry by id. Hidden entries resolve.
func (s *Snapshot) Get(id string) (model.Entry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return model.Entry{}, false
	}
	return e.Clone(), true
}

// Has reports whether the id resolves.
func (s *Snapshot) Has(id string) bool {
	_, ok := s.entries[id]
	return ok
}

// Len returns the number of resolved entries, hidden ones included.
func (s *Snapshot) Len() int {
	return len(s.ordered)
}

// All returns every resolved entry sorted by id.
func (s *Snapshot) All() []model.Entry {
	out := make([]model.Entry, len(s.ordered))
	for i, e := range s.ordered {
		out[i] = e.Clone()
	}
	return out
}

// Each calls fn for every resolved entry in id order without copying.
// fn must not retain or modify the entry's slices.
func (s *Snapshot) Each(fn func(model.Entry)) {
	for _, e := range s.ordered {
		fn(e)
	}
}

// Visible returns the entries not marked hidden, sorted by id.
func (s *Snapshot) Visible() []model.Entry {
	var out []model.Entry
	for _, e := range s.ordered {
		if !e.Hidden {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Sections returns the section view in display order.
func (s *Snapshot) Sections() []model.Section {
	out := make([]model.Section, len(s.sections))
	for i, sec := range s.sections {
		sec.EntryIDs = slices.Clone(sec.EntryIDs)
		out[i] = sec
	}
	return out
}

// Section returns one section by key.
func (s *Snapshot) Section(key string) (model.Section, bool) {
	for _, sec := range s.sections {
		if sec.Key == key {
			sec.EntryIDs = slices.Clone(sec.EntryIDs)
			return sec, true
		}
	}
	return model.Section{}, false
}
