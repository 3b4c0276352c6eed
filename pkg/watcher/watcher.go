// Package watcher reports changes under a set of application directories.
//
// It prefers fsnotify and falls back to polling a directory fingerprint when
// notifications are unavailable or unreliable (network filesystems, or when
// BRISK_FORCE_POLL is set). Bursts of events are debounced into a single
// callback, since a package install touches many files at once.
package watcher

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/brisk/pkg/debug"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// ForcePollEnv forces polling mode when set to a true value.
const ForcePollEnv = "BRISK_FORCE_POLL"

// Common errors.
var (
	ErrNoPaths        = errors.New("no paths to watch")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounceDuration = d
		}
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithOnChange sets the callback invoked after a debounced change.
func WithOnChange(fn func()) Option {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on watch errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// Watcher monitors directories for added, removed, or modified files.
type Watcher struct {
	paths            []string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func()
	onError          func(error)
	forcePoll        bool
	fsType           FilesystemType

	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	lastPrint   fingerprint
	pending     []string

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan struct{}
}

// New creates a watcher over paths. Paths that do not exist yet are
// allowed and are picked up once they appear: through a watch on their
// nearest existing parent, or by polling when no root exists at all.
func New(paths []string, opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(abs, a) {
			abs = append(abs, a)
		}
	}

	w := &Watcher{
		paths:            abs,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func() {},
		onError:          func(error) {},
		changeCh:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounceDuration)
	return w, nil
}

// Start begins watching. The watcher stops when ctx is done or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.useFallback = w.forcePoll || envBool(ForcePollEnv)
	w.fsType = DetectFilesystemType(w.paths[0])
	for _, p := range w.paths {
		if isRemoteFilesystem(DetectFilesystemType(p)) {
			w.useFallback = true
		}
	}

	w.lastPrint = takeFingerprint(w.paths)

	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.useFallback = true
		} else if added, missing := addTree(fsw, w.paths); added == 0 {
			// Nothing exists yet; polling will notice when a root appears.
			fsw.Close()
			w.useFallback = true
		} else {
			w.fsWatcher = fsw
			for _, root := range missing {
				if !armRoot(fsw, root) {
					w.pending = append(w.pending, root)
				}
			}
			go w.watchFsnotify()
		}
	}
	if w.useFallback {
		go w.watchPolling()
	}

	debug.Log("watcher: watching %d paths (polling=%v, fs=%s)", len(w.paths), w.useFallback, w.fsType)
	w.started = true
	return nil
}

// addTree adds every existing root and its subdirectories. fsnotify is not
// recursive, and vendors nest descriptors one level down (kde4/, etc.).
// Roots that do not exist are returned as missing.
func addTree(fsw *fsnotify.Watcher, roots []string) (int, []string) {
	added := 0
	var missing []string
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					if errors.Is(err, fs.ErrNotExist) {
						missing = append(missing, root)
					}
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if fsw.Add(path) == nil {
					added++
				}
			}
			return nil
		})
	}
	return added, missing
}

// armRoot watches a missing root through its nearest existing ancestor so
// its creation is noticed. It reports true once the root exists and its
// tree has been added.
func armRoot(fsw *fsnotify.Watcher, root string) bool {
	for {
		if isDir(root) {
			addTree(fsw, []string{root})
			return true
		}
		anc := nearestAncestor(root)
		if anc == "" {
			return false
		}
		_ = fsw.Add(anc)
		// A deeper directory may have appeared before the watch was in place.
		if !isDir(root) && nearestAncestor(root) == anc {
			return false
		}
	}
}

func nearestAncestor(path string) string {
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if isDir(dir) {
			return dir
		}
		if parent := filepath.Dir(dir); parent == dir {
			return ""
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// adoptPending re-arms roots that were missing at Start. It reports true
// when at least one of them now exists and is watched.
func (w *Watcher) adoptPending(fsw *fsnotify.Watcher) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	adopted := false
	remaining := w.pending[:0]
	for _, root := range w.pending {
		if armRoot(fsw, root) {
			debug.Log("watcher: root appeared: %s", root)
			adopted = true
			continue
		}
		remaining = append(remaining, root)
	}
	w.pending = remaining
	return adopted
}

// underRoot reports whether path lies in one of the watched trees, as
// opposed to an ancestor watched only for a pending root.
func (w *Watcher) underRoot(path string) bool {
	for _, root := range w.paths {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Stop stops watching. The change channel is left open; a pending receive
// on Changed simply never fires.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.debouncer.Cancel()
	w.started = false
}

// IsPolling reports whether the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted reports whether the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed returns a channel that receives after each debounced change.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Paths returns the watched directories.
func (w *Watcher) Paths() []string {
	return slices.Clone(w.paths)
}

// FilesystemType returns the classification of the first watched path.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the polling interval used in polling mode.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func (w *Watcher) watchFsnotify() {
	// Capture channels; Stop sets fsWatcher to nil.
	w.mu.RLock()
	if w.fsWatcher == nil {
		w.mu.RUnlock()
		return
	}
	fsw := w.fsWatcher
	events := fsw.Events
	errs := fsw.Errors
	w.mu.RUnlock()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Chmod == event.Op {
				continue
			}
			if event.Op&fsnotify.Create != 0 && w.adoptPending(fsw) {
				w.debouncer.Trigger(w.notifyChange)
				continue
			}
			if !w.underRoot(event.Name) {
				continue
			}
			// A new vendor subdirectory needs its own watch.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = fsw.Add(event.Name)
				}
			}
			w.debouncer.Trigger(w.notifyChange)

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) watchPolling() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			fp := takeFingerprint(w.paths)

			w.mu.Lock()
			changed := fp != w.lastPrint
			w.lastPrint = fp
			w.mu.Unlock()

			if changed {
				w.debouncer.Trigger(w.notifyChange)
			}
		}
	}
}

func (w *Watcher) notifyChange() {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if !started {
		return
	}

	w.onChange()

	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}

// fingerprint summarizes the files under the watched roots. Any add,
// remove, rename, or content rewrite changes at least one field.
type fingerprint struct {
	files  int
	size   int64
	mtimes int64
	names  uint64
}

func takeFingerprint(roots []string) fingerprint {
	var fp fingerprint
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			fp.files++
			fp.size += info.Size()
			fp.mtimes += info.ModTime().UnixNano()
			fp.names += fnv64(path)
			return nil
		})
	}
	return fp
}

func fnv64(s string) uint64 {
	h := fnv.New64a()
	_, _ = io.WriteString(h, s)
	return h.Sum64()
}
