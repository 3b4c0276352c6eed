package session

import (
	"io"
	"log"
	"time"

	"github.com/vanderheijden86/brisk/internal/datasource"
	"github.com/vanderheijden86/brisk/pkg/catalog"
	"github.com/vanderheijden86/brisk/pkg/config"
	"github.com/vanderheijden86/brisk/pkg/favorites"
	"github.com/vanderheijden86/brisk/pkg/watcher"
)

// Open builds a controller from configuration: the configured backends,
// persisted launch counters, and the persisted favorites. Unreadable
// counters or an unreadable or corrupt favorites file are logged and start
// empty; the session still opens. Options are applied after the configured ones.
func Open(cfg config.Config, logger *log.Logger, opts ...Option) (*Controller, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	backends, err := datasource.FromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	var usage *catalog.UsageStore
	var counts map[string]int
	if cfg.UsagePath != "" {
		usage = catalog.NewUsageStore(cfg.UsagePath)
		counts, err = usage.Load()
		if err != nil {
			logger.Printf("usage counts: %v", err)
		}
	}
	cat := catalog.New(catalog.WithUsage(counts))

	favs := favorites.NewMemoryStore()
	if cfg.FavoritesPath != "" {
		// Load always returns a usable store; storage trouble never keeps
		// the catalog from opening.
		favs, err = favorites.Load(cfg.FavoritesPath)
		if err != nil {
			logger.Printf("favorites: %v", err)
		}
	}

	base := []Option{
		WithLogger(logger),
		WithUsageStore(usage),
		WithWorkers(cfg.Workers),
		WithWatcherOptions(
			watcher.WithDebounceDuration(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond),
			watcher.WithPollInterval(time.Duration(cfg.Watch.PollIntervalMs)*time.Millisecond),
			watcher.WithForcePoll(cfg.Watch.ForcePoll),
		),
	}
	return New(backends, cat, favs, append(base, opts...)...)
}
