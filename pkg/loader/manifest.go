package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/brisk/pkg/model"
)

// ManifestFile is the descriptor name inside a manifest app directory.
const ManifestFile = "manifest.json"

// ManifestSuffix is the extension of standalone manifest files.
const ManifestSuffix = ".json"

// Manifest describes an application in the JSON manifest convention.
type Manifest struct {
	// DisplayName is the human-readable name shown in the menu
	DisplayName string `json:"displayName"`

	// Description provides a brief explanation of what the app does
	Description string `json:"description"`

	// Command is the command line to run
	Command string `json:"command"`

	// Args are appended to Command
	Args []string `json:"args,omitempty"`

	// Icon is an icon name or path
	Icon string `json:"icon,omitempty"`

	// Category is a single primary category (e.g., "system", "office")
	Category string `json:"category,omitempty"`

	// Categories are extra category tags
	Categories []string `json:"categories,omitempty"`

	// Tags are searchable keywords
	Tags []string `json:"tags,omitempty"`

	// Hidden keeps the app out of listings while still resolvable by id
	Hidden bool `json:"hidden,omitempty"`
}

// LoadManifest reads and decodes a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(path, data)
}

// ParseManifest decodes manifest bytes. path is used for error reporting.
func ParseManifest(path string, data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(stripBOM(data), &m); err != nil {
		return nil, &DescriptorError{Path: path, Reason: fmt.Sprintf("parse manifest: %v", err)}
	}
	if err := m.Validate(); err != nil {
		return nil, &DescriptorError{Path: path, Reason: err.Error()}
	}
	return &m, nil
}

// Validate checks that the manifest is well-formed.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.DisplayName) == "" {
		return fmt.Errorf("manifest missing required field: displayName")
	}
	if strings.TrimSpace(m.Command) == "" {
		return fmt.Errorf("manifest missing required field: command")
	}
	return nil
}

// Entry converts the manifest into a catalog entry with the given id.
func (m *Manifest) Entry(id string) model.Entry {
	var categories []string
	if m.Category != "" {
		categories = append(categories, m.Category)
	}
	for _, c := range m.Categories {
		if !containsFold(categories, c) {
			categories = append(categories, c)
		}
	}
	exec := m.Command
	if len(m.Args) > 0 {
		exec += " " + strings.Join(m.Args, " ")
	}
	return model.Entry{
		ID:          id,
		Name:        m.DisplayName,
		Description: m.Description,
		Keywords:    append([]string(nil), m.Tags...),
		Icon:        m.Icon,
		Exec:        exec,
		Categories:  categories,
		Hidden:      m.Hidden,
	}
}

// ManifestID derives the stable id of a manifest from its file name:
// "apps/htop.json" → "htop", "apps/htop/manifest.json" → "htop".
func ManifestID(path string) string {
	base := filepath.Base(path)
	if base == ManifestFile {
		return filepath.Base(filepath.Dir(path))
	}
	return strings.TrimSuffix(base, ManifestSuffix)
}
