package model

import "strings"

// UncategorizedKey is the section that receives entries matching no
// taxonomy category.
const UncategorizedKey = "uncategorized"

// Section is a category-based grouping view over the catalog.
type Section struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	EntryIDs []string `json:"entry_ids"`
}

// Category is one taxonomy node. Aliases are additional tags that map
// into the same section.
type Category struct {
	Key     string
	Label   string
	Aliases []string
}

// Taxonomy is the ordered list of sections the catalog knows how to build.
// Order is the display order; the uncategorized section always comes last.
type Taxonomy []Category

// DefaultTaxonomy follows the freedesktop.org main categories.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		{Key: "accessories", Label: "Accessories", Aliases: []string{"utility"}},
		{Key: "development", Label: "Development"},
		{Key: "education", Label: "Education", Aliases: []string{"science"}},
		{Key: "game", Label: "Games"},
		{Key: "graphics", Label: "Graphics"},
		{Key: "network", Label: "Internet"},
		{Key: "audiovideo", Label: "Sound & Video", Aliases: []string{"audio", "video"}},
		{Key: "office", Label: "Office"},
		{Key: "settings", Label: "Settings"},
		{Key: "system", Label: "System Tools"},
	}
}

// Match returns the keys of every taxonomy category the tags fall into,
// in taxonomy order. Matching ignores case.
func (t Taxonomy) Match(tags []string) []string {
	var keys []string
	for _, c := range t {
		if c.matches(tags) {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// Label returns the display label for a key.
func (t Taxonomy) Label(key string) string {
	if key == UncategorizedKey {
		return "Uncategorized"
	}
	for _, c := range t {
		if c.Key == key {
			return c.Label
		}
	}
	return key
}

func (c Category) matches(tags []string) bool {
	for _, tag := range tags {
		if strings.EqualFold(tag, c.Key) {
			return true
		}
		for _, alias := range c.Aliases {
			if strings.EqualFold(tag, alias) {
				return true
			}
		}
	}
	return false
}
