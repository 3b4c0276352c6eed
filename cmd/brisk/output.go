package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/vanderheijden86/brisk/internal/datasource"
	"github.com/vanderheijden86/brisk/pkg/metrics"
	"github.com/vanderheijden86/brisk/pkg/model"
	"github.com/vanderheijden86/brisk/pkg/search"
)

const defaultWidth = 100

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#1A5FB4", Dark: "#8FBCFF"})
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#8A8A8A"})
	degradedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C01C28", Dark: "#FF7B72"})
	favoriteMark  = "★"
)

// lookup resolves ids for display.
type lookup interface {
	Get(id string) (model.Entry, bool)
}

type printer struct {
	w     io.Writer
	json  bool
	width int
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	return &printer{w: w, json: asJSON, width: terminalWidth()}
}

// terminalWidth returns the width of stdout, or defaultWidth when stdout is
// not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

type entryOutput struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Exec     string `json:"exec,omitempty"`
	Source   string `json:"source,omitempty"`
	Usage    int    `json:"usage,omitempty"`
	Score    int    `json:"score,omitempty"`
	Tier     string `json:"tier,omitempty"`
	Resolved bool   `json:"resolved"`
}

type sectionOutput struct {
	Key     string        `json:"key"`
	Label   string        `json:"label"`
	Entries []entryOutput `json:"entries"`
}

func (p *printer) encode(v any) {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
	}
}

func describe(l lookup, id string) entryOutput {
	e, ok := l.Get(id)
	if !ok {
		return entryOutput{ID: id, Name: id}
	}
	return entryOutput{ID: e.ID, Name: e.Name, Exec: e.Exec, Source: e.Source, Usage: e.UsageCount, Resolved: true}
}

func (p *printer) results(l lookup, query string, results []search.Result) {
	out := make([]entryOutput, len(results))
	for i, r := range results {
		out[i] = describe(l, r.ID)
		out[i].Score = r.Score
		out[i].Tier = r.Tier.String()
	}
	if p.json {
		p.encode(struct {
			Query   string        `json:"query"`
			Results []entryOutput `json:"results"`
		}{query, out})
		return
	}

	fmt.Fprintln(p.w, headerStyle.Render(fmt.Sprintf("Results for %q (%d)", query, len(out))))
	for _, e := range out {
		p.row(fmt.Sprintf("%-8s", e.Tier), e)
	}
}

func (p *printer) sections(l lookup, sections []model.Section) {
	out := make([]sectionOutput, len(sections))
	for i, s := range sections {
		out[i] = sectionOutput{Key: s.Key, Label: s.Label, Entries: make([]entryOutput, len(s.EntryIDs))}
		for j, id := range s.EntryIDs {
			out[i].Entries[j] = describe(l, id)
		}
	}
	if p.json {
		p.encode(out)
		return
	}

	for _, s := range out {
		fmt.Fprintln(p.w, headerStyle.Render(fmt.Sprintf("%s (%d)", s.Label, len(s.Entries))))
		for _, e := range s.Entries {
			p.row("  ", e)
		}
	}
}

func (p *printer) favorites(l lookup, ids []string) {
	out := make([]entryOutput, len(ids))
	for i, id := range ids {
		out[i] = describe(l, id)
	}
	if p.json {
		p.encode(out)
		return
	}

	fmt.Fprintln(p.w, headerStyle.Render(fmt.Sprintf("Favorites (%d)", len(out))))
	for _, e := range out {
		p.row(favoriteMark, e)
	}
}

func (p *printer) status(statuses []datasource.Status) {
	if p.json {
		p.encode(statuses)
		return
	}

	fmt.Fprintln(p.w, headerStyle.Render("Backends"))
	for _, s := range statuses {
		line := truncate("  "+s.String(), p.width, "…")
		if s.State == datasource.StateDegraded {
			line = degradedStyle.Render(line)
		}
		fmt.Fprintln(p.w, line)
	}
}

func (p *printer) change(version uint64, visible int, at time.Time) {
	if p.json {
		p.encode(struct {
			Version uint64    `json:"version"`
			Visible int       `json:"visible"`
			At      time.Time `json:"at"`
		}{version, visible, at})
		return
	}
	fmt.Fprintf(p.w, "%s catalog v%d: %d visible entries\n", at.Format("15:04:05"), version, visible)
}

// row prints one entry as "<prefix> <name>  <id>", fitted to the width.
// Text is truncated before it is styled so escape codes are never cut.
func (p *printer) row(prefix string, e entryOutput) {
	name := e.Name
	if !e.Resolved {
		name += " (unresolved)"
	}

	// Give the name at most half the line; the id takes what is left.
	nameWidth := max(10, p.width/2)
	idWidth := max(8, p.width-nameWidth-runewidth.StringWidth(prefix)-3)
	name = padRight(truncate(name, nameWidth, "…"), nameWidth)
	if !e.Resolved {
		name = dimStyle.Render(name)
	}
	fmt.Fprintf(p.w, "%s %s  %s\n", prefix, name, dimStyle.Render(truncate(e.ID, idWidth, "…")))
}

func printMetrics(w io.Writer, stats []metrics.TimingStats) {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No timing metrics recorded")
		return
	}
	fmt.Fprintln(w, headerStyle.Render("Timing"))
	for _, s := range stats {
		fmt.Fprintf(w, "  %-16s n=%-5d avg=%.3fms max=%.3fms\n", s.Name, s.Count, s.AvgMs, s.MaxMs)
	}
}

// truncate shortens s to maxWidth display cells, adding suffix if needed.
func truncate(s string, maxWidth int, suffix string) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	suffixWidth := runewidth.StringWidth(suffix)
	if suffixWidth > maxWidth {
		return runewidth.Truncate(suffix, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth-suffixWidth, "") + suffix
}

// padRight pads s with spaces to width display cells.
func padRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
