package datasource

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/brisk/pkg/debug"
	"github.com/vanderheijden86/brisk/pkg/loader"
	"github.com/vanderheijden86/brisk/pkg/metrics"
	"github.com/vanderheijden86/brisk/pkg/model"
)

// DesktopBackend discovers *.desktop files under a list of applications
// directories. Earlier roots take precedence for a duplicate desktop-file id,
// following the XDG_DATA_DIRS convention.
type DesktopBackend struct {
	base
	roots []string
	opts  loader.ParseOptions
}

// NewDesktopBackend creates a backend scanning the given applications roots.
func NewDesktopBackend(name string, rank int, roots []string, opts loader.ParseOptions) *DesktopBackend {
	return &DesktopBackend{
		base:  newBase(name, rank),
		roots: append([]string(nil), roots...),
		opts:  opts,
	}
}

// WatchPaths returns the applications roots.
func (b *DesktopBackend) WatchPaths() []string {
	return append([]string(nil), b.roots...)
}

// Activate scans every root.
func (b *DesktopBackend) Activate(ctx context.Context) ([]model.Entry, error) {
	return b.scan(ctx)
}

// Rescan scans every root and diffs against previous.
func (b *DesktopBackend) Rescan(ctx context.Context, previous []model.Entry) (model.Delta, error) {
	return rescanWith(ctx, b.rank, previous, b.scan)
}

func (b *DesktopBackend) scan(ctx context.Context) ([]model.Entry, error) {
	defer metrics.Timer(metrics.BackendScan)()
	defer debug.LogEnterExit("desktop.scan " + b.name)()

	var (
		entries  []model.Entry
		seen     = make(map[string]bool)
		failures int
		lastErr  error
	)

	opts := b.opts
	if opts.WarningHandler == nil {
		opts.WarningHandler = func(msg string) { b.logger.Printf("%s: %s", b.name, msg) }
	}

	for _, root := range b.roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				// Not an error - just no apps
				debug.Log("desktop: %s: root does not exist: %s", b.name, root)
				continue
			}
			b.logger.Printf("%s: cannot read %s: %v", b.name, root, err)
			failures++
			lastErr = err
			continue
		}
		if !info.IsDir() {
			b.logger.Printf("%s: %s is not a directory", b.name, root)
			failures++
			lastErr = errors.New(root + " is not a directory")
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					return err
				}
				b.logger.Printf("%s: skipping %s: %v", b.name, path, err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), loader.DesktopSuffix) {
				return nil
			}

			id, err := DesktopFileID(root, path)
			if err != nil || seen[id] {
				return nil
			}

			entry, err := loader.LoadDesktopEntry(path, id, opts)
			if err != nil {
				if errors.Is(err, loader.ErrNotApplication) {
					debug.Log("desktop: %s: skipping %s: %v", b.name, path, err)
				} else {
					b.logger.Printf("%s: skipping %s: %v", b.name, path, err)
				}
				return nil
			}
			seen[id] = true
			entry.Source = b.name
			entries = append(entries, entry)
			return nil
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			b.logger.Printf("%s: cannot walk %s: %v", b.name, root, err)
			failures++
			lastErr = err
		}
	}

	if failures > 0 && failures == len(b.roots) {
		return nil, unavailable(b.name, lastErr)
	}
	return entries, nil
}

// DesktopFileID derives the desktop-file id of path relative to its
// applications root: "kde4/kate.desktop" becomes "kde4-kate.desktop".
func DesktopFileID(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", "-"), nil
}

// ApplicationDirs returns the applications directories under each data
// directory, in precedence order.
func ApplicationDirs(dataDirs []string) []string {
	dirs := make([]string, 0, len(dataDirs))
	for _, d := range dataDirs {
		if d == "" {
			continue
		}
		dirs = append(dirs, filepath.Join(d, "applications"))
	}
	return dirs
}
