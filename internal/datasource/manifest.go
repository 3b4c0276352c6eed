package datasource

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vanderheijden86/brisk/pkg/debug"
	"github.com/vanderheijden86/brisk/pkg/loader"
	"github.com/vanderheijden86/brisk/pkg/metrics"
	"github.com/vanderheijden86/brisk/pkg/model"
)

// ManifestBackend discovers JSON app manifests in a directory. Each app is
// either a standalone <id>.json file or a <id>/manifest.json subdirectory.
type ManifestBackend struct {
	base
	dir string
}

// NewManifestBackend creates a backend scanning dir.
func NewManifestBackend(name string, rank int, dir string) *ManifestBackend {
	return &ManifestBackend{
		base: newBase(name, rank),
		dir:  dir,
	}
}

// WatchPaths returns the manifest directory.
func (b *ManifestBackend) WatchPaths() []string {
	return []string{b.dir}
}

// Activate scans the manifest directory.
func (b *ManifestBackend) Activate(ctx context.Context) ([]model.Entry, error) {
	return b.scan(ctx)
}

// Rescan scans the manifest directory and diffs against previous.
func (b *ManifestBackend) Rescan(ctx context.Context, previous []model.Entry) (model.Delta, error) {
	return rescanWith(ctx, b.rank, previous, b.scan)
}

func (b *ManifestBackend) scan(ctx context.Context) ([]model.Entry, error) {
	defer metrics.Timer(metrics.BackendScan)()

	dirEntries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			debug.Log("manifest: %s: directory does not exist: %s", b.name, b.dir)
			return nil, nil
		}
		b.logger.Printf("%s: cannot read %s: %v", b.name, b.dir, err)
		return nil, unavailable(b.name, err)
	}

	var paths []string
	for _, e := range dirEntries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		switch {
		case e.IsDir():
			path := filepath.Join(b.dir, name, loader.ManifestFile)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		case strings.HasSuffix(name, loader.ManifestSuffix):
			paths = append(paths, filepath.Join(b.dir, name))
		}
	}
	sort.Strings(paths)

	entries := make([]model.Entry, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := loader.ManifestID(path)
		if seen[id] {
			b.logger.Printf("%s: skipping %s: duplicate id %s", b.name, path, id)
			continue
		}
		m, err := loader.LoadManifest(path)
		if err != nil {
			// Continue loading other apps
			b.logger.Printf("%s: skipping %s: %v", b.name, path, err)
			continue
		}
		seen[id] = true
		entry := m.Entry(id)
		entry.Source = b.name
		entries = append(entries, entry)
	}

	debug.Log("manifest: %s: loaded %d apps from %s", b.name, len(entries), b.dir)
	return entries, nil
}
