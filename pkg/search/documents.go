package search

import (
	"strings"

	"github.com/vanderheijden86/brisk/pkg/model"
)

// Query is normalized query text.
type Query struct {
	// Raw is the text as typed.
	Raw string
	// Normalized is trimmed, lowercased, with inner whitespace collapsed.
	Normalized string
	// Terms are the distinct lowercase whitespace-separated terms.
	Terms []string
}

// ParseQuery normalizes raw query text.
func ParseQuery(raw string) Query {
	fields := strings.Fields(strings.ToLower(raw))
	q := Query{Raw: raw, Normalized: strings.Join(fields, " ")}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			q.Terms = append(q.Terms, f)
		}
	}
	return q
}

// Empty reports whether the query has no terms.
func (q Query) Empty() bool {
	return len(q.Terms) == 0
}

// Document is the lowercased matchable text of one entry.
type Document struct {
	Name string
	// NameKey is Name trimmed with inner whitespace collapsed, the form
	// normalized queries compare against.
	NameKey     string
	Keywords    []string
	Description string
}

// NewDocument folds an entry's matchable fields to lower case.
func NewDocument(e model.Entry) Document {
	d := Document{
		Name:        strings.ToLower(e.Name),
		Description: strings.ToLower(e.Description),
	}
	d.NameKey = strings.Join(strings.Fields(d.Name), " ")
	if len(e.Keywords) > 0 {
		d.Keywords = make([]string, len(e.Keywords))
		for i, k := range e.Keywords {
			d.Keywords[i] = strings.ToLower(k)
		}
	}
	return d
}

// Contains reports whether term occurs in the name, a keyword, or the
// description.
func (d Document) Contains(term string) bool {
	if strings.Contains(d.Name, term) || strings.Contains(d.Description, term) {
		return true
	}
	for _, k := range d.Keywords {
		if strings.Contains(k, term) {
			return true
		}
	}
	return false
}

// Match assigns the document a tier for a non-empty query. Every term must
// occur somewhere in the document; otherwise the result is TierNone.
func (q Query) Match(d Document) Tier {
	nameHasAll := true
	for _, term := range q.Terms {
		if !d.Contains(term) {
			return TierNone
		}
		if !strings.Contains(d.Name, term) {
			nameHasAll = false
		}
	}

	if d.NameKey == q.Normalized {
		return TierExact
	}
	for _, term := range q.Terms {
		if strings.HasPrefix(d.NameKey, term) {
			return TierPrefix
		}
	}
	if nameHasAll {
		return TierContains
	}
	return TierKeyword
}
