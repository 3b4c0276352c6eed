package testutil

import (
	"strings"
	"testing"
)

func TestEntries_Deterministic(t *testing.T) {
	a := NewDefault().Entries(20)
	b := NewDefault().Entries(20)

	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("entry %d differs between runs: %v vs %v", i, a[i], b[i])
		}
	}
	AssertEntryCount(t, a, 20)
	AssertNoDuplicateIDs(t, a)
	AssertAllValid(t, a)
}

func TestEntries_HiddenRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HiddenRate = 1
	for _, e := range New(cfg).Entries(5) {
		if !e.Hidden {
			t.Errorf("expected %s to be hidden", e.ID)
		}
	}
}

func TestLayered_SharesIDsAcrossRanks(t *testing.T) {
	deltas := NewDefault().Layered([]int{1, 2, 3}, 30)
	if len(deltas) != 3 {
		t.Fatalf("expected 3 deltas, got %d", len(deltas))
	}

	counts := make(map[string]int)
	for _, d := range deltas {
		AssertNoDuplicateIDs(t, d.Added)
		for _, e := range d.Added {
			counts[e.ID]++
		}
	}
	shared := 0
	for _, n := range counts {
		if n > 1 {
			shared++
		}
	}
	if shared == 0 {
		t.Error("expected some ids reported by more than one rank")
	}
}

func TestDesktopFile(t *testing.T) {
	e := NewDefault().Entry(0)
	e.Hidden = true
	out := DesktopFile(e)

	for _, want := range []string{"[Desktop Entry]\n", "Type=Application\n", "Name=" + e.Name + "\n", "NoDisplay=true\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("desktop file missing %q:\n%s", want, out)
		}
	}
}
