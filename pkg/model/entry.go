// Package model defines the value types shared by the launcher index:
// entries, sections, the category taxonomy, and backend deltas.
package model

import (
	"fmt"
	"slices"
	"strings"
)

// Entry is one launchable application descriptor.
//
// Entries are values. Slices inside an Entry must not be mutated once the
// Entry has been handed to the catalog; use Clone when a private copy is
// needed.
type Entry struct {
	// ID is the stable key derived from the descriptor's canonical file name.
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Icon        string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	// Exec is the opaque launch instruction handed to the launcher.
	Exec       string   `json:"exec,omitempty" yaml:"exec,omitempty"`
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	// UsageCount is owned by the catalog; values set by backends are ignored.
	UsageCount int  `json:"usage_count,omitempty" yaml:"usage_count,omitempty"`
	Hidden     bool `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	// Source names the backend that supplied this copy of the entry.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Validate checks the fields every entry must carry.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("entry id cannot be empty")
	}
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("entry %s: name cannot be empty", e.ID)
	}
	return nil
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	e.Keywords = slices.Clone(e.Keywords)
	e.Categories = slices.Clone(e.Categories)
	return e
}

// Equal reports whether two entries carry the same backend-supplied fields.
// UsageCount is catalog state and is not compared.
func (e Entry) Equal(o Entry) bool {
	return e.ID == o.ID &&
		e.Name == o.Name &&
		e.Description == o.Description &&
		e.Icon == o.Icon &&
		e.Exec == o.Exec &&
		e.Hidden == o.Hidden &&
		e.Source == o.Source &&
		slices.Equal(e.Keywords, o.Keywords) &&
		slices.Equal(e.Categories, o.Categories)
}

// HasCategory reports whether the entry carries the tag, ignoring case.
func (e Entry) HasCategory(tag string) bool {
	for _, c := range e.Categories {
		if strings.EqualFold(c, tag) {
			return true
		}
	}
	return false
}

// String returns a short human-readable description.
func (e Entry) String() string {
	if e.Hidden {
		return fmt.Sprintf("%s (%s, hidden)", e.ID, e.Name)
	}
	return fmt.Sprintf("%s (%s)", e.ID, e.Name)
}
