// Package testutil provides deterministic entry fixtures for tests.
// All generators produce the same output for the same seed.
package testutil

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/vanderheijden86/brisk/pkg/model"
)

// GeneratorConfig controls entry generation.
type GeneratorConfig struct {
	Seed       int64    // Random seed (0 = 42)
	IDPrefix   string   // Prefix for entry IDs (default: "app")
	Categories []string // Category pool (nil = a freedesktop mix)
	HiddenRate float64  // Fraction of entries marked hidden
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:     42,
		IDPrefix: "app",
		Categories: []string{
			"Utility", "Development", "Game", "Graphics", "Network",
			"AudioVideo", "Office", "Settings", "System", "X-Vendor",
		},
	}
}

// Generator creates entry fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	def := DefaultConfig()
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = def.IDPrefix
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = def.Categories
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

var syllables = []string{"ka", "ter", "mi", "no", "vol", "edi", "tor", "pix", "lo", "sh", "ar", "qu"}

func (g *Generator) word() string {
	n := 2 + g.rng.Intn(2)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(syllables[g.rng.Intn(len(syllables))])
	}
	return b.String()
}

// Entry returns one entry with id <prefix>-<n>.desktop.
func (g *Generator) Entry(n int) model.Entry {
	name := g.word()
	name = strings.ToUpper(name[:1]) + name[1:]
	if g.rng.Intn(3) == 0 {
		name += " " + g.word()
	}

	var cats []string
	for i := g.rng.Intn(3); i > 0; i-- {
		c := g.cfg.Categories[g.rng.Intn(len(g.cfg.Categories))]
		if !containsString(cats, c) {
			cats = append(cats, c)
		}
	}
	var kws []string
	for i := g.rng.Intn(3); i > 0; i-- {
		kws = append(kws, g.word())
	}

	return model.Entry{
		ID:          fmt.Sprintf("%s-%d.desktop", g.cfg.IDPrefix, n),
		Name:        name,
		Description: g.word() + " " + g.word(),
		Keywords:    kws,
		Exec:        strings.ToLower(strings.Fields(name)[0]),
		Categories:  cats,
		Hidden:      g.rng.Float64() < g.cfg.HiddenRate,
	}
}

// Entries returns n entries with ids 0..n-1.
func (g *Generator) Entries(n int) []model.Entry {
	out := make([]model.Entry, n)
	for i := range out {
		out[i] = g.Entry(i)
	}
	return out
}

// Layered returns one delta per rank whose entries share ids across
// ranks, so that override-by-rank is exercised. Each rank reports a random
// subset of ids 0..size-1 with rank-specific names.
func (g *Generator) Layered(ranks []int, size int) []model.Delta {
	deltas := make([]model.Delta, 0, len(ranks))
	for _, rank := range ranks {
		d := model.Delta{Rank: rank}
		for i := 0; i < size; i++ {
			if g.rng.Intn(3) == 0 {
				continue
			}
			e := g.Entry(i)
			e.Name = fmt.Sprintf("%s r%d", e.Name, rank)
			e.Source = fmt.Sprintf("rank-%d", rank)
			d.Added = append(d.Added, e)
		}
		deltas = append(deltas, d)
	}
	return deltas
}

// DesktopFile renders e as a desktop entry file.
func DesktopFile(e model.Entry) string {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\nType=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", e.Name)
	if e.Description != "" {
		fmt.Fprintf(&b, "Comment=%s\n", e.Description)
	}
	fmt.Fprintf(&b, "Exec=%s\n", e.Exec)
	if e.Icon != "" {
		fmt.Fprintf(&b, "Icon=%s\n", e.Icon)
	}
	if len(e.Categories) > 0 {
		fmt.Fprintf(&b, "Categories=%s;\n", strings.Join(e.Categories, ";"))
	}
	if len(e.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords=%s;\n", strings.Join(e.Keywords, ";"))
	}
	if e.Hidden {
		b.WriteString("NoDisplay=true\n")
	}
	return b.String()
}

// WriteDesktopFile writes e under dir as <e.ID> and returns the path.
func WriteDesktopFile(t *testing.T, dir string, e model.Entry) string {
	t.Helper()
	return WriteFile(t, dir, e.ID, DesktopFile(e))
}

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// IDs returns the ids of entries, sorted.
func IDs(entries []model.Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	sort.Strings(ids)
	return ids
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
