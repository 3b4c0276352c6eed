package datasource

import (
	"fmt"
	"log"
	"sort"

	"github.com/vanderheijden86/brisk/pkg/config"
	"github.com/vanderheijden86/brisk/pkg/loader"
)

// FromConfig builds the enabled backends declared in cfg, ordered by rank
// (lowest first). logger may be nil.
func FromConfig(cfg config.Config, logger *log.Logger) ([]Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := loader.ParseOptions{
		Locale:   cfg.EffectiveLocale(),
		Desktops: cfg.EffectiveDesktops(),
	}

	var backends []Backend
	for _, bc := range cfg.Backends {
		if !bc.IsEnabled() {
			continue
		}
		b, err := newFromConfig(bc, opts)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			b.SetLogger(logger)
		}
		backends = append(backends, b)
	}

	sort.SliceStable(backends, func(i, j int) bool { return backends[i].Rank() < backends[j].Rank() })
	return backends, nil
}

// configurable is a Backend that accepts a logger.
type configurable interface {
	Backend
	SetLogger(*log.Logger)
}

func newFromConfig(bc config.BackendConfig, opts loader.ParseOptions) (configurable, error) {
	switch bc.Kind {
	case config.KindDesktop:
		return NewDesktopBackend(bc.Name, bc.Rank, bc.Paths, opts), nil

	case config.KindManifest:
		if len(bc.Paths) != 1 {
			return nil, fmt.Errorf("backend %s: manifest backends take exactly one directory", bc.Name)
		}
		return NewManifestBackend(bc.Name, bc.Rank, bc.Paths[0]), nil

	case config.KindSQLite:
		if len(bc.Paths) != 1 {
			return nil, fmt.Errorf("backend %s: sqlite backends take exactly one database path", bc.Name)
		}
		return NewSQLiteBackend(bc.Name, bc.Rank, bc.Paths[0]), nil

	default:
		return nil, fmt.Errorf("backend %s: unknown kind: %s", bc.Name, bc.Kind)
	}
}
