// Package config handles loading and saving brisk configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/brisk/config.yaml (and ~/.config/brisk/apps/ manifests)
//   - State:   ~/.local/state/brisk/ (favorites, launch counters)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const appName = "brisk"

// Backend kinds understood by the datasource factory.
const (
	KindDesktop  = "desktop"
	KindManifest = "manifest"
	KindSQLite   = "sqlite"
)

// BackendConfig declares one entry source.
type BackendConfig struct {
	Kind    string   `yaml:"kind"`              // desktop, manifest, sqlite
	Name    string   `yaml:"name"`              // Unique per config
	Rank    int      `yaml:"rank"`              // Higher wins on id conflicts
	Paths   []string `yaml:"paths,omitempty"`   // Directories or database file
	Enabled *bool    `yaml:"enabled,omitempty"` // Default true
}

// IsEnabled reports whether the backend is enabled (default true).
func (b BackendConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// WatchConfig controls rescans on filesystem changes.
type WatchConfig struct {
	Enabled        bool `yaml:"enabled"`
	DebounceMs     int  `yaml:"debounce_ms,omitempty"`
	PollIntervalMs int  `yaml:"poll_interval_ms,omitempty"`
	ForcePoll      bool `yaml:"force_poll,omitempty"`
}

// Config is the top-level configuration for brisk.
type Config struct {
	Backends      []BackendConfig `yaml:"backends,omitempty"`
	FavoritesPath string          `yaml:"favorites_path,omitempty"`
	UsagePath     string          `yaml:"usage_path,omitempty"`
	Locale        string          `yaml:"locale,omitempty"`   // Overrides LC_ALL/LC_MESSAGES/LANG
	Desktops      []string        `yaml:"desktops,omitempty"` // Overrides XDG_CURRENT_DESKTOP
	Watch         WatchConfig     `yaml:"watch,omitempty"`
	Workers       int             `yaml:"workers,omitempty"` // Concurrent backend scans; 0 is unbounded
}

// DefaultConfig returns a Config with sensible defaults: system and user
// desktop entry directories plus a manifest directory under the config dir.
func DefaultConfig() Config {
	cfg := Config{
		Watch: WatchConfig{
			Enabled:        true,
			DebounceMs:     200,
			PollIntervalMs: 2000,
		},
	}

	if dirs := SystemDataDirs(); len(dirs) > 0 {
		paths := make([]string, len(dirs))
		for i, d := range dirs {
			paths[i] = filepath.Join(d, "applications")
		}
		cfg.Backends = append(cfg.Backends, BackendConfig{
			Kind: KindDesktop, Name: "system", Rank: 10, Paths: paths,
		})
	}
	if dir := UserDataDir(); dir != "" {
		cfg.Backends = append(cfg.Backends, BackendConfig{
			Kind: KindDesktop, Name: "user", Rank: 20, Paths: []string{filepath.Join(dir, "applications")},
		})
	}
	if dir := ConfigDir(); dir != "" {
		cfg.Backends = append(cfg.Backends, BackendConfig{
			Kind: KindManifest, Name: "manifests", Rank: 30, Paths: []string{filepath.Join(dir, "apps")},
		})
	}
	if dir := StateDir(); dir != "" {
		cfg.FavoritesPath = filepath.Join(dir, "favorites.yaml")
		cfg.UsagePath = filepath.Join(dir, "usage.json")
	}
	return cfg
}

// ConfigDir returns the XDG config directory for brisk.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// StateDir returns the XDG state directory for brisk.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// UserDataDir returns $XDG_DATA_HOME (default ~/.local/share).
func UserDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share")
}

// SystemDataDirs returns $XDG_DATA_DIRS in precedence order
// (default /usr/local/share:/usr/share).
func SystemDataDirs() []string {
	v := os.Getenv("XDG_DATA_DIRS")
	if v == "" {
		v = "/usr/local/share:/usr/share"
	}
	var dirs []string
	for _, d := range strings.Split(v, ":") {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	// Expand ~ in paths
	for i := range cfg.Backends {
		for j := range cfg.Backends[i].Paths {
			cfg.Backends[i].Paths[j] = expandHome(cfg.Backends[i].Paths[j])
		}
	}
	cfg.FavoritesPath = expandHome(cfg.FavoritesPath)
	cfg.UsagePath = expandHome(cfg.UsagePath)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the worker bound and the backend declarations: names
// and ranks must be unique and every backend needs at least one path.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	names := make(map[string]bool)
	ranks := make(map[int]string)
	for _, b := range c.Backends {
		if !b.IsEnabled() {
			continue
		}
		if b.Name == "" {
			return fmt.Errorf("backend of kind %q has no name", b.Kind)
		}
		switch b.Kind {
		case KindDesktop, KindManifest, KindSQLite:
		default:
			return fmt.Errorf("backend %s: unknown kind %q", b.Name, b.Kind)
		}
		if len(b.Paths) == 0 {
			return fmt.Errorf("backend %s: no paths", b.Name)
		}
		if names[b.Name] {
			return fmt.Errorf("duplicate backend name %q", b.Name)
		}
		names[b.Name] = true
		if other, ok := ranks[b.Rank]; ok {
			return fmt.Errorf("backends %s and %s share rank %d", other, b.Name, b.Rank)
		}
		ranks[b.Rank] = b.Name
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FindBackend returns the backend with the given name, or nil.
func (c Config) FindBackend(name string) *BackendConfig {
	for i := range c.Backends {
		if strings.EqualFold(c.Backends[i].Name, name) {
			return &c.Backends[i]
		}
	}
	return nil
}

// EffectiveLocale returns the configured locale, falling back to
// LC_ALL, LC_MESSAGES, then LANG.
func (c Config) EffectiveLocale() string {
	if c.Locale != "" {
		return c.Locale
	}
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// EffectiveDesktops returns the configured desktops, falling back to the
// colon-separated XDG_CURRENT_DESKTOP.
func (c Config) EffectiveDesktops() []string {
	if len(c.Desktops) > 0 {
		return c.Desktops
	}
	var out []string
	for _, d := range strings.Split(os.Getenv("XDG_CURRENT_DESKTOP"), ":") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
