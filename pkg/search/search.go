// Package search ranks catalog entries against typed query text.
//
// Ranking is a single linear pass over a catalog snapshot: each visible entry
// is assigned a match tier, and entries within a tier are ordered by a total
// tie-break chain (favorite, usage, name, id). The engine keeps no state of
// its own, so it can run on every keystroke without going stale.
package search

import (
	"sort"
	"strings"

	"github.com/vanderheijden86/brisk/pkg/metrics"
	"github.com/vanderheijden86/brisk/pkg/model"
)

// Tier is a coarse match-quality bucket. Higher is better.
type Tier int

const (
	TierNone Tier = iota
	// TierBrowse is the single tier of the empty query.
	TierBrowse
	// TierKeyword: the terms are found in keywords or description, not all in the name.
	TierKeyword
	// TierContains: the name contains every term.
	TierContains
	// TierPrefix: the name starts with one of the terms.
	TierPrefix
	// TierExact: the name equals the query, ignoring case.
	TierExact
)

var tierNames = map[Tier]string{
	TierNone:     "none",
	TierBrowse:   "browse",
	TierKeyword:  "keyword",
	TierContains: "contains",
	TierPrefix:   "prefix",
	TierExact:    "exact",
}

func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return "unknown"
}

// Score returns the fixed score reported for the tier.
func (t Tier) Score() int {
	return int(t) * 100
}

// Result is one ranked match.
type Result struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
	Tier  Tier   `json:"tier"`
}

// Corpus is the read-only entry source the engine ranks. A catalog
// snapshot satisfies it.
type Corpus interface {
	Each(fn func(model.Entry))
}

// candidate carries the sort keys of one matched entry.
type candidate struct {
	id       string
	name     string
	lname    string
	tier     Tier
	favorite bool
	usage    int
}

// Run ranks the visible entries of corpus against text. favorites are the
// pinned ids; their order does not matter here.
//
// The result is finite, contains no hidden entries, and is ordered by tier
// descending, then favorites first, usage descending, folded name, raw
// name, and id. An empty query returns every visible entry at TierBrowse.
func Run(corpus Corpus, favorites []string, text string) []Result {
	defer metrics.Timer(metrics.SearchQuery)()

	q := ParseQuery(text)
	fav := make(map[string]bool, len(favorites))
	for _, id := range favorites {
		fav[id] = true
	}

	var candidates []candidate
	corpus.Each(func(e model.Entry) {
		if e.Hidden {
			return
		}
		tier := TierBrowse
		if !q.Empty() {
			tier = q.Match(NewDocument(e))
			if tier == TierNone {
				return
			}
		}
		candidates = append(candidates, candidate{
			id:       e.ID,
			name:     e.Name,
			lname:    strings.ToLower(e.Name),
			tier:     tier,
			favorite: fav[e.ID],
			usage:    e.UsageCount,
		})
	})

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].less(candidates[j]) })

	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{ID: c.id, Score: c.tier.Score(), Tier: c.tier}
	}
	return results
}

// less is the total ranking order. Ids are unique, so no two distinct
// candidates compare equal.
func (a candidate) less(b candidate) bool {
	if a.tier != b.tier {
		return a.tier > b.tier
	}
	if a.favorite != b.favorite {
		return a.favorite
	}
	if a.usage != b.usage {
		return a.usage > b.usage
	}
	if a.lname != b.lname {
		return a.lname < b.lname
	}
	if a.name != b.name {
		return a.name < b.name
	}
	return a.id < b.id
}

// IDs extracts the ids of results in order.
func IDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}
