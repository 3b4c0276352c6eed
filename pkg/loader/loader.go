// Package loader decodes application descriptors into model entries.
//
// Two descriptor conventions are supported: freedesktop.org desktop entry
// key files (*.desktop) and JSON app manifests. Decoding is tolerant: a
// descriptor that cannot be decoded yields a *DescriptorError wrapping
// ErrMalformedDescriptor, and the caller skips it.
package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vanderheijden86/brisk/pkg/debug"
	"github.com/vanderheijden86/brisk/pkg/model"
)

// DesktopGroup is the only key-file group the decoder reads.
const DesktopGroup = "Desktop Entry"

// DesktopSuffix is the file extension of desktop entry files.
const DesktopSuffix = ".desktop"

// DefaultMaxBufferSize is the longest line the decoder accepts (64KB).
const DefaultMaxBufferSize = 64 * 1024

var (
	// ErrMalformedDescriptor marks a descriptor that cannot be turned into an entry.
	ErrMalformedDescriptor = errors.New("malformed descriptor")
	// ErrNotApplication marks a well-formed descriptor of another type (Link, Directory).
	ErrNotApplication = errors.New("descriptor is not an application")
)

// DescriptorError describes why a single descriptor was rejected.
type DescriptorError struct {
	Path   string
	Line   int
	Reason string
}

func (e *DescriptorError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *DescriptorError) Unwrap() error { return ErrMalformedDescriptor }

// ParseOptions configures descriptor decoding.
type ParseOptions struct {
	// Locale selects localized keys such as Name[de]. Uses LC_MESSAGES/LANG
	// semantics: lang_COUNTRY.ENCODING@MODIFIER. Empty means unlocalized.
	Locale string

	// Desktops are the current desktop names checked against OnlyShowIn
	// and NotShowIn.
	Desktops []string

	// WarningHandler is called for recoverable oddities (duplicate keys,
	// invalid booleans, overlong lines). If nil, warnings go to the debug log.
	WarningHandler func(string)

	// BufferSize caps the line length. If 0, uses DefaultMaxBufferSize.
	BufferSize int
}

func (o ParseOptions) warn() func(string) {
	if o.WarningHandler != nil {
		return o.WarningHandler
	}
	return func(msg string) { debug.Log("loader: %s", msg) }
}

// Descriptor holds the decoded keys of a desktop entry's main group.
type Descriptor struct {
	Type        string
	Name        string
	GenericName string
	Comment     string
	Icon        string
	Exec        string
	Keywords    []string
	Categories  []string
	OnlyShowIn  []string
	NotShowIn   []string
	NoDisplay   bool
	Hidden      bool
	Terminal    bool
}

// localized records the best locale match seen so far for one key.
type localized struct {
	value string
	rank  int // lower is better; -1 means unset
}

// LoadDesktopEntry reads and decodes one desktop entry file into an entry
// with the given id.
func LoadDesktopEntry(path, id string, opts ParseOptions) (model.Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return model.Entry{}, fmt.Errorf("failed to open descriptor: %w", err)
	}
	defer file.Close()

	d, err := ParseDesktopEntry(file, opts)
	if err != nil {
		var de *DescriptorError
		if errors.As(err, &de) {
			de.Path = path
		}
		return model.Entry{}, err
	}
	return d.Entry(id, opts.Desktops), nil
}

// ParseDesktopEntry decodes the [Desktop Entry] group of a key file.
// Other groups (desktop actions) are skipped.
func ParseDesktopEntry(r io.Reader, opts ParseOptions) (Descriptor, error) {
	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}
	reader := bufio.NewReaderSize(r, maxCapacity)
	warn := opts.warn()
	prefs := localePreferences(opts.Locale)

	values := make(map[string]*localized)
	var (
		group     string
		sawMain   bool
		sawHeader bool
		lineNum   int
	)

	for {
		lineNum++
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return Descriptor{}, fmt.Errorf("error reading descriptor at line %d: %w", lineNum, err)
		}

		if isPrefix {
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					break
				}
				if err != nil {
					return Descriptor{}, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
			}
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}
		text := strings.TrimSpace(string(line))
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if strings.HasPrefix(text, "[") {
			if !strings.HasSuffix(text, "]") {
				return Descriptor{}, &DescriptorError{Line: lineNum, Reason: "unterminated group header"}
			}
			group = text[1 : len(text)-1]
			if group == DesktopGroup {
				if sawMain {
					return Descriptor{}, &DescriptorError{Line: lineNum, Reason: "duplicate [Desktop Entry] group"}
				}
				if sawHeader {
					return Descriptor{}, &DescriptorError{Line: lineNum, Reason: "[Desktop Entry] must be the first group"}
				}
				sawMain = true
			}
			sawHeader = true
			continue
		}

		if !sawHeader {
			return Descriptor{}, &DescriptorError{Line: lineNum, Reason: "key outside of any group"}
		}
		if group != DesktopGroup {
			continue
		}

		eq := strings.IndexByte(text, '=')
		if eq <= 0 {
			return Descriptor{}, &DescriptorError{Line: lineNum, Reason: fmt.Sprintf("invalid line %q", text)}
		}
		rawKey := strings.TrimSpace(text[:eq])
		value := strings.TrimSpace(text[eq+1:])

		key, locale := splitLocaleKey(rawKey)
		rank := 0
		if locale != "" {
			rank = localeRank(prefs, locale)
			if rank < 0 {
				continue
			}
		} else {
			// Unlocalized values lose to any matching locale.
			rank = len(prefs) + 1
		}

		cur, ok := values[key]
		switch {
		case !ok:
			values[key] = &localized{value: value, rank: rank}
		case cur.rank == rank:
			warn(fmt.Sprintf("line %d: duplicate key %s", lineNum, rawKey))
		case rank < cur.rank:
			cur.value, cur.rank = value, rank
		}
	}

	if !sawMain {
		return Descriptor{}, &DescriptorError{Reason: "missing [Desktop Entry] group"}
	}

	get := func(key string) string {
		if v, ok := values[key]; ok {
			return v.value
		}
		return ""
	}
	boolean := func(key string) bool {
		v, ok := values[key]
		if !ok {
			return false
		}
		switch v.value {
		case "true":
			return true
		case "false":
			return false
		default:
			warn(fmt.Sprintf("key %s: invalid boolean %q", key, v.value))
			return false
		}
	}

	d := Descriptor{
		Type:        unescape(get("Type")),
		Name:        unescape(get("Name")),
		GenericName: unescape(get("GenericName")),
		Comment:     unescape(get("Comment")),
		Icon:        unescape(get("Icon")),
		Exec:        unescape(get("Exec")),
		Keywords:    splitList(get("Keywords")),
		Categories:  splitList(get("Categories")),
		OnlyShowIn:  splitList(get("OnlyShowIn")),
		NotShowIn:   splitList(get("NotShowIn")),
		NoDisplay:   boolean("NoDisplay"),
		Hidden:      boolean("Hidden"),
		Terminal:    boolean("Terminal"),
	}

	if d.Type == "" {
		return Descriptor{}, &DescriptorError{Reason: "missing required key Type"}
	}
	if d.Type != "Application" {
		return Descriptor{}, fmt.Errorf("type %s: %w", d.Type, ErrNotApplication)
	}
	// A Hidden entry means "deleted"; it needs no other keys to mask a
	// lower-priority copy.
	if d.Hidden {
		return d, nil
	}
	if d.Name == "" {
		return Descriptor{}, &DescriptorError{Reason: "missing required key Name"}
	}
	if d.Exec == "" {
		return Descriptor{}, &DescriptorError{Reason: "missing required key Exec"}
	}
	return d, nil
}

// Entry converts the descriptor into a catalog entry.
func (d Descriptor) Entry(id string, desktops []string) model.Entry {
	keywords := d.Keywords
	if d.GenericName != "" {
		keywords = append(append([]string(nil), keywords...), d.GenericName)
	}
	name := d.Name
	if name == "" {
		name = id
	}
	return model.Entry{
		ID:          id,
		Name:        name,
		Description: d.Comment,
		Keywords:    keywords,
		Icon:        d.Icon,
		Exec:        d.Exec,
		Categories:  d.Categories,
		Hidden:      d.NoDisplay || d.Hidden || !d.ShownIn(desktops),
	}
}

// ShownIn applies OnlyShowIn/NotShowIn against the current desktops.
// With no current desktop known, OnlyShowIn entries are not shown.
func (d Descriptor) ShownIn(desktops []string) bool {
	for _, not := range d.NotShowIn {
		if containsFold(desktops, not) {
			return false
		}
	}
	if len(d.OnlyShowIn) == 0 {
		return true
	}
	for _, only := range d.OnlyShowIn {
		if containsFold(desktops, only) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// splitLocaleKey splits "Name[de_DE]" into ("Name", "de_DE").
func splitLocaleKey(key string) (string, string) {
	open := strings.IndexByte(key, '[')
	if open < 0 || !strings.HasSuffix(key, "]") {
		return key, ""
	}
	return key[:open], key[open+1 : len(key)-1]
}

// localePreferences expands a locale into match candidates, best first:
// lang_COUNTRY@MODIFIER, lang_COUNTRY, lang@MODIFIER, lang.
func localePreferences(locale string) []string {
	if locale == "" || locale == "C" || locale == "POSIX" {
		return nil
	}
	var modifier string
	if at := strings.IndexByte(locale, '@'); at >= 0 {
		modifier = locale[at+1:]
		locale = locale[:at]
	}
	if dot := strings.IndexByte(locale, '.'); dot >= 0 {
		locale = locale[:dot]
	}
	lang, country, _ := strings.Cut(locale, "_")

	var prefs []string
	if country != "" && modifier != "" {
		prefs = append(prefs, lang+"_"+country+"@"+modifier)
	}
	if country != "" {
		prefs = append(prefs, lang+"_"+country)
	}
	if modifier != "" {
		prefs = append(prefs, lang+"@"+modifier)
	}
	return append(prefs, lang)
}

func localeRank(prefs []string, locale string) int {
	for i, p := range prefs {
		if p == locale {
			return i
		}
	}
	return -1
}

// splitList splits a list value on unescaped semicolons. "\;" yields a
// literal semicolon; other escapes are resolved per item.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var (
		items []string
		cur   strings.Builder
	)
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == '\\' && i+1 < len(value) {
			if value[i+1] == ';' {
				cur.WriteByte(';')
			} else {
				cur.WriteByte(c)
				cur.WriteByte(value[i+1])
			}
			i++
			continue
		}
		if c == ';' {
			if item := strings.TrimSpace(unescape(cur.String())); item != "" {
				items = append(items, item)
			}
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	if item := strings.TrimSpace(unescape(cur.String())); item != "" {
		items = append(items, item)
	}
	return items
}

// unescape resolves the key-file escapes \s \n \t \r and \\.
func unescape(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '\\' || i+1 == len(value) {
			b.WriteByte(c)
			continue
		}
		i++
		switch value[i] {
		case 's':
			b.WriteByte(' ')
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(value[i])
		}
	}
	return b.String()
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
