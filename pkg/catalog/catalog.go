// Package catalog merges entries from all backends into one deduplicated,
// section-organized index.
//
// The catalog keeps one layer of entries per backend rank. The visible entry
// for an id is taken wholesale from the highest rank that currently reports
// it, so the result does not depend on the order in which backend deltas
// arrive. Writers are serialized; every mutation builds a fresh immutable
// Snapshot and publishes it atomically, so readers never see a half-applied
// merge.
package catalog

import (
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vanderheijden86/brisk/pkg/debug"
	"github.com/vanderheijden86/brisk/pkg/metrics"
	"github.com/vanderheijden86/brisk/pkg/model"
)

// Catalog is the authoritative entry store.
type Catalog struct {
	taxonomy model.Taxonomy

	mu     sync.Mutex // serializes writers
	layers map[int]map[string]model.Entry
	usage  map[string]int

	snap atomic.Pointer[Snapshot]
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithTaxonomy replaces the default freedesktop taxonomy.
func WithTaxonomy(t model.Taxonomy) Option {
	return func(c *Catalog) {
		c.taxonomy = t
	}
}

// WithUsage seeds launch counters, typically loaded from a UsageStore.
func WithUsage(counts map[string]int) Option {
	return func(c *Catalog) {
		for id, n := range counts {
			if n > 0 {
				c.usage[id] = n
			}
		}
	}
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		taxonomy: model.DefaultTaxonomy(),
		layers:   make(map[int]map[string]model.Entry),
		usage:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap.Store(c.build(0))
	return c
}

// Merge applies one backend's delta and publishes a new snapshot.
// Entries in Added replace the backend's previous copy wholesale; ids in
// Removed drop out of the backend's layer, revealing any lower-ranked copy.
//
// Merge is idempotent: a delta that changes nothing publishes nothing and
// returns false.
func (c *Catalog) Merge(d model.Delta) bool {
	defer metrics.Timer(metrics.CatalogMerge)()

	c.mu.Lock()
	defer c.mu.Unlock()

	layer := c.layers[d.Rank]
	changed := false

	for _, id := range d.Removed {
		if _, ok := layer[id]; ok {
			delete(layer, id)
			changed = true
		}
	}

	for _, e := range d.Added {
		if err := e.Validate(); err != nil {
			debug.Log("catalog: rank %d: dropping invalid entry: %v", d.Rank, err)
			continue
		}
		if layer == nil {
			layer = make(map[string]model.Entry)
			c.layers[d.Rank] = layer
		}
		if old, ok := layer[e.ID]; ok && old.Equal(e) {
			continue
		}
		e = e.Clone()
		e.UsageCount = 0
		layer[e.ID] = e
		changed = true
	}

	if len(layer) == 0 {
		delete(c.layers, d.Rank)
	}
	if !changed {
		return false
	}

	c.publish()
	debug.Log("catalog: merged rank %d (+%d -%d), %d entries", d.Rank, len(d.Added), len(d.Removed), c.snap.Load().Len())
	return true
}

// Layer returns the entries currently held for one backend rank, sorted by id.
func (c *Catalog) Layer(rank int) []model.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	layer := c.layers[rank]
	out := make([]model.Entry, 0, len(layer))
	for _, e := range layer {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Ranks returns the ranks that currently contribute entries, highest first.
func (c *Catalog) Ranks() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedRanks(c.layers)
}

// RecordLaunch increments the launch counter of a resolvable entry.
// It returns the new count, or false if the id does not resolve.
func (c *Catalog) RecordLaunch(id string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.snap.Load().Get(id); !ok {
		return 0, false
	}
	c.usage[id]++
	c.publish()
	return c.usage[id], true
}

// Usage returns a copy of all launch counters, including those of ids
// that no longer resolve.
func (c *Catalog) Usage() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.usage)
}

// Snapshot returns the current published view. Snapshots are immutable.
func (c *Catalog) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Get looks up a resolvable entry by id. Hidden entries resolve.
func (c *Catalog) Get(id string) (model.Entry, bool) {
	return c.snap.Load().Get(id)
}

// All returns every resolved entry, hidden ones included, sorted by id.
func (c *Catalog) All() []model.Entry {
	return c.snap.Load().All()
}

// Sections returns the section view of the current snapshot.
func (c *Catalog) Sections() []model.Section {
	return c.snap.Load().Sections()
}

// Section looks up one non-empty section by key.
func (c *Catalog) Section(key string) (model.Section, bool) {
	return c.snap.Load().Section(key)
}

// Taxonomy returns the category taxonomy used to build sections.
func (c *Catalog) Taxonomy() model.Taxonomy {
	return c.taxonomy
}

// publish rebuilds the snapshot from the layers. Callers hold c.mu.
func (c *Catalog) publish() {
	prev := c.snap.Load()
	c.snap.Store(c.build(prev.Version + 1))
}

// build resolves every id against the layers, highest rank first, and
// derives the section view. It is a pure function of layers, usage, and
// taxonomy.
func (c *Catalog) build(version uint64) *Snapshot {
	s := &Snapshot{
		Version: version,
		entries: make(map[string]model.Entry),
	}
	for _, rank := range sortedRanks(c.layers) {
		for id, e := range c.layers[rank] {
			if _, taken := s.entries[id]; taken {
				continue
			}
			e.UsageCount = c.usage[id]
			s.entries[id] = e
		}
	}

	s.ordered = make([]model.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		s.ordered = append(s.ordered, e)
	}
	sort.Slice(s.ordered, func(i, j int) bool { return s.ordered[i].ID < s.ordered[j].ID })

	s.sections = buildSections(c.taxonomy, s.ordered)
	return s
}

func sortedRanks(layers map[int]map[string]model.Entry) []int {
	ranks := slices.Collect(maps.Keys(layers))
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))
	return ranks
}

// buildSections groups visible entries by taxonomy category. Entries that
// match no category go to the uncategorized section. Empty sections are
// omitted.
func buildSections(taxonomy model.Taxonomy, entries []model.Entry) []model.Section {
	defer metrics.Timer(metrics.SectionRebuild)()

	members := make(map[string][]model.Entry)
	for _, e := range entries {
		if e.Hidden {
			continue
		}
		keys := taxonomy.Match(e.Categories)
		if len(keys) == 0 {
			keys = []string{model.UncategorizedKey}
		}
		for _, key := range keys {
			members[key] = append(members[key], e)
		}
	}

	order := make([]string, 0, len(taxonomy)+1)
	for _, cat := range taxonomy {
		order = append(order, cat.Key)
	}
	order = append(order, model.UncategorizedKey)

	var sections []model.Section
	for _, key := range order {
		list := members[key]
		if len(list) == 0 {
			continue
		}
		sort.Slice(list, func(i, j int) bool { return byDisplayName(list[i], list[j]) })
		ids := make([]string, len(list))
		for i, e := range list {
			ids[i] = e.ID
		}
		sections = append(sections, model.Section{
			Key:      key,
			Label:    taxonomy.Label(key),
			EntryIDs: ids,
		})
	}
	return sections
}

// byDisplayName orders entries by folded name, then raw name, then id.
func byDisplayName(a, b model.Entry) bool {
	la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if la != lb {
		return la < lb
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}
