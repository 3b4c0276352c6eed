package datasource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/brisk/pkg/model"
)

// Diff returns the delta that turns previous into current for one rank.
// Entries present in both but no longer Equal are reported as added
// (replaced wholesale). Output is sorted by id.
func Diff(rank int, previous, current []model.Entry) model.Delta {
	prev := make(map[string]model.Entry, len(previous))
	for _, e := range previous {
		prev[e.ID] = e
	}
	cur := make(map[string]model.Entry, len(current))
	for _, e := range current {
		cur[e.ID] = e
	}

	d := model.Delta{Rank: rank}
	for id, e := range cur {
		if old, ok := prev[id]; ok && old.Equal(e) {
			continue
		}
		d.Added = append(d.Added, e)
	}
	for id := range prev {
		if _, ok := cur[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	sort.Slice(d.Added, func(i, j int) bool { return d.Added[i].ID < d.Added[j].ID })
	sort.Strings(d.Removed)
	return d
}

// DeltaSummary returns a human-readable summary of a delta.
func DeltaSummary(name string, d model.Delta) string {
	if d.Empty() {
		return fmt.Sprintf("%s: no changes", name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (rank %d): %d added/updated, %d removed", name, d.Rank, len(d.Added), len(d.Removed))
	if len(d.Added) > 0 && len(d.Added) <= 5 {
		for _, e := range d.Added {
			fmt.Fprintf(&b, "\n  + %s", e.ID)
		}
	}
	if len(d.Removed) > 0 && len(d.Removed) <= 5 {
		for _, id := range d.Removed {
			fmt.Fprintf(&b, "\n  - %s", id)
		}
	}
	return b.String()
}
