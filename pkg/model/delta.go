package model

// Delta is one backend's change set, tagged with the backend's rank.
//
// Added carries both new and updated entries; the catalog replaces the
// backend's copy wholesale. Removed lists ids the backend no longer reports.
type Delta struct {
	Rank    int      `json:"rank"`
	Added   []Entry  `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// Empty reports whether the delta carries no changes.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DeltaFromEntries builds a delta that adds every entry.
func DeltaFromEntries(rank int, entries []Entry) Delta {
	return Delta{Rank: rank, Added: entries}
}
