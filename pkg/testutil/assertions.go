package testutil

import (
	"slices"
	"strings"
	"testing"

	"github.com/vanderheijden86/brisk/pkg/model"
)

// AssertEntryCount verifies the expected number of entries.
func AssertEntryCount(t *testing.T, entries []model.Entry, expected int) {
	t.Helper()
	if len(entries) != expected {
		t.Errorf("expected %d entries, got %d", expected, len(entries))
	}
}

// AssertNoDuplicateIDs verifies all entry IDs are unique.
func AssertNoDuplicateIDs(t *testing.T, entries []model.Entry) {
	t.Helper()
	seen := make(map[string]bool)
	for _, e := range entries {
		if seen[e.ID] {
			t.Errorf("duplicate entry ID: %s", e.ID)
		}
		seen[e.ID] = true
	}
}

// AssertAllValid verifies all entries pass validation.
func AssertAllValid(t *testing.T, entries []model.Entry) {
	t.Helper()
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			t.Errorf("entry %d (%s) invalid: %v", i, e.ID, err)
		}
	}
}

// AssertIDs verifies got equals want, in order.
func AssertIDs(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(want) == 0 && len(got) == 0 {
		return
	}
	if !slices.Equal(got, want) {
		t.Errorf("ids = [%s], want [%s]", strings.Join(got, ", "), strings.Join(want, ", "))
	}
}

// AssertSectionsCover verifies that every visible entry appears in at least
// one section, that no hidden or unknown id does, and that no section is
// empty.
func AssertSectionsCover(t *testing.T, entries []model.Entry, sections []model.Section) {
	t.Helper()

	byID := make(map[string]model.Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	placed := make(map[string]bool)
	for _, s := range sections {
		if len(s.EntryIDs) == 0 {
			t.Errorf("section %s is empty", s.Key)
		}
		for _, id := range s.EntryIDs {
			e, ok := byID[id]
			switch {
			case !ok:
				t.Errorf("section %s lists unknown id %s", s.Key, id)
			case e.Hidden:
				t.Errorf("section %s lists hidden entry %s", s.Key, id)
			}
			placed[id] = true
		}
	}

	for _, e := range entries {
		if !e.Hidden && !placed[e.ID] {
			t.Errorf("visible entry %s is in no section", e.ID)
		}
	}
}
