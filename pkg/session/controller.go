// Package session owns the launcher core for one user session: the backend
// set, the catalog, the favorites store, and search.
//
// The interactive surface calls Query, Sections, Launch, Pin, Unpin and
// Reorder; none of them wait on backend discovery. Activation and rescans
// run on worker goroutines and hand finished deltas to a single merge loop
// over a channel, so the catalog only ever sees complete deltas. Each
// backend carries a generation counter shared by activation and rescans;
// a result whose generation is no longer current is discarded.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/brisk/internal/datasource"
	"github.com/vanderheijden86/brisk/pkg/catalog"
	"github.com/vanderheijden86/brisk/pkg/debug"
	"github.com/vanderheijden86/brisk/pkg/favorites"
	"github.com/vanderheijden86/brisk/pkg/model"
	"github.com/vanderheijden86/brisk/pkg/search"
	"github.com/vanderheijden86/brisk/pkg/watcher"
)

// Option configures a Controller.
type Option func(*Controller)

// WithLauncher sets the process launcher used by Launch.
func WithLauncher(l Launcher) Option {
	return func(c *Controller) {
		if l != nil {
			c.launcher = l
		}
	}
}

// WithUsageStore persists launch counters after each successful launch.
func WithUsageStore(s *catalog.UsageStore) Option {
	return func(c *Controller) {
		c.usage = s
	}
}

// WithLogger sets a logger for degraded backends and failed writes.
func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWorkers bounds the number of concurrently running backend scans.
// The default is unbounded. With a bound, a hung scan holds its slot until
// it returns, which delays rescans queued behind it.
func WithWorkers(n int) Option {
	return func(c *Controller) {
		c.workers = n
	}
}

// WithWatcherOptions passes options to the directory watchers started by
// Watch.
func WithWatcherOptions(opts ...watcher.Option) Option {
	return func(c *Controller) {
		c.watchOpts = append(c.watchOpts, opts...)
	}
}

type backendState struct {
	backend datasource.Backend
	gen     uint64
	status  datasource.Status
}

// job is one scheduled activation or rescan. baseline is the backend's
// catalog layer at the moment the generation was issued.
type job struct {
	index    int
	gen      uint64
	activate bool
	baseline []model.Entry
}

type scanResult struct {
	index int
	gen   uint64
	delta model.Delta
	err   error
}

// Controller is the session's single owner of mutable launcher state.
type Controller struct {
	catalog   *catalog.Catalog
	favorites *favorites.Store
	launcher  Launcher
	usage     *catalog.UsageStore
	logger    *log.Logger
	workers   int
	watchOpts []watcher.Option

	mu       sync.Mutex
	backends []*backendState
	byName   map[string]int
	pending  int
	idle     chan struct{}
	started  bool
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	watchers []*watcher.Watcher

	dispatching sync.WaitGroup
	results     chan scanResult
	updates     chan struct{}
	stop        chan struct{}
	loopDone    chan struct{}
}

// New creates a controller over backends. Ranks and names must be unique.
// A nil catalog or favorites store is replaced by an empty in-memory one.
func New(backends []datasource.Backend, cat *catalog.Catalog, favs *favorites.Store, opts ...Option) (*Controller, error) {
	if cat == nil {
		cat = catalog.New()
	}
	if favs == nil {
		favs = favorites.NewMemoryStore()
	}

	c := &Controller{
		catalog:   cat,
		favorites: favs,
		launcher:  noLauncher{},
		logger:    log.New(io.Discard, "", 0),
		byName:    make(map[string]int),
		results:   make(chan scanResult),
		updates:   make(chan struct{}, 1),
		stop:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	sorted := make([]datasource.Backend, 0, len(backends))
	ranks := make(map[int]string)
	for _, b := range backends {
		if b == nil {
			return nil, errors.New("nil backend")
		}
		if other, ok := ranks[b.Rank()]; ok {
			return nil, fmt.Errorf("%w: %d (%s, %s)", ErrDuplicateRank, b.Rank(), other, b.Name())
		}
		ranks[b.Rank()] = b.Name()
		sorted = append(sorted, b)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank() < sorted[j].Rank() })

	for i, b := range sorted {
		if _, ok := c.byName[b.Name()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, b.Name())
		}
		c.byName[b.Name()] = i
		c.backends = append(c.backends, &backendState{
			backend: b,
			status:  datasource.Status{Name: b.Name(), Rank: b.Rank(), State: datasource.StatePending},
		})
	}

	if c.workers <= 0 {
		c.workers = -1
	}
	return c, nil
}

// Catalog returns the session's catalog.
func (c *Controller) Catalog() *catalog.Catalog {
	return c.catalog
}

// Start activates every backend concurrently and returns without waiting.
// Each backend's entries are merged as soon as its activation finishes, so
// the catalog grows progressively. ctx bounds all background work.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.group = new(errgroup.Group)
	c.group.SetLimit(c.workers)

	go c.mergeLoop()

	jobs := make([]job, len(c.backends))
	for i := range c.backends {
		jobs[i] = c.beginLocked(i, true)
	}
	c.dispatchLocked(jobs)

	debug.Log("session: started %d backends (worker limit %d)", len(c.backends), c.workers)
	return nil
}

// Rescan rescans every backend. A rescan issued while an earlier activation
// or rescan of the same backend is in flight supersedes it.
func (c *Controller) Rescan() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.runningLocked(); err != nil {
		return err
	}
	jobs := make([]job, len(c.backends))
	for i := range c.backends {
		jobs[i] = c.beginLocked(i, false)
	}
	c.dispatchLocked(jobs)
	return nil
}

// RescanBackend rescans one backend by name.
func (c *Controller) RescanBackend(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.runningLocked(); err != nil {
		return err
	}
	i, ok := c.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	c.dispatchLocked([]job{c.beginLocked(i, false)})
	return nil
}

func (c *Controller) runningLocked() error {
	if c.closed {
		return ErrClosed
	}
	if !c.started {
		return ErrNotStarted
	}
	return nil
}

// beginLocked issues a new generation for backend i and captures its
// baseline. Holding c.mu makes the capture atomic with respect to merges.
func (c *Controller) beginLocked(i int, activate bool) job {
	bs := c.backends[i]
	bs.gen++
	if c.pending == 0 {
		c.idle = make(chan struct{})
	}
	c.pending++
	return job{
		index:    i,
		gen:      bs.gen,
		activate: activate,
		baseline: c.catalog.Layer(bs.backend.Rank()),
	}
}

// dispatchLocked hands jobs to the worker group. Submission happens off the
// caller's goroutine because errgroup.Go blocks once the limit is reached.
func (c *Controller) dispatchLocked(jobs []job) {
	c.dispatching.Add(1)
	go func() {
		defer c.dispatching.Done()
		for _, j := range jobs {
			c.group.Go(func() error {
				c.run(j)
				return nil
			})
		}
	}()
}

// run executes one job and hands the result to the merge loop.
func (c *Controller) run(j job) {
	b := c.backends[j.index].backend
	res := scanResult{index: j.index, gen: j.gen}

	start := time.Now()
	switch {
	case c.ctx.Err() != nil:
		res.err = c.ctx.Err()
	case j.activate:
		entries, err := b.Activate(c.ctx)
		if err != nil {
			res.err = err
		} else {
			res.delta = datasource.Diff(b.Rank(), j.baseline, entries)
		}
	default:
		res.delta, res.err = b.Rescan(c.ctx, j.baseline)
		res.delta.Rank = b.Rank()
	}
	elapsed := time.Since(start)
	debug.LogTiming("session: scan "+b.Name(), elapsed)

	c.results <- res
}

func (c *Controller) mergeLoop() {
	defer close(c.loopDone)
	for {
		select {
		case res := <-c.results:
			c.apply(res)
		case <-c.stop:
			return
		}
	}
}

// apply merges one result if it is still the backend's current generation.
func (c *Controller) apply(res scanResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.doneLocked()

	bs := c.backends[res.index]
	name := bs.backend.Name()

	if res.gen != bs.gen {
		debug.Log("session: %s: discarding stale generation %d (current %d)", name, res.gen, bs.gen)
		return
	}
	if res.err != nil {
		if c.ctx.Err() != nil {
			return
		}
		bs.status.State = datasource.StateDegraded
		bs.status.Error = res.err.Error()
		bs.status.LastScan = time.Now()
		c.logger.Printf("backend %s degraded: %v", name, res.err)
		return
	}

	changed := c.catalog.Merge(res.delta)
	bs.status.State = datasource.StateReady
	bs.status.Error = ""
	bs.status.Entries = len(c.catalog.Layer(bs.backend.Rank()))
	bs.status.LastScan = time.Now()
	debug.Log("session: %s", datasource.DeltaSummary(name, res.delta))
	if changed {
		c.notify()
	}
}

func (c *Controller) doneLocked() {
	c.pending--
	if c.pending == 0 && c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// WaitIdle blocks until no activation or rescan is in flight.
func (c *Controller) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	ch := c.idle
	c.mu.Unlock()

	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Updates returns a channel signalled after each merge that changed the
// catalog, and after launches and favorites changes. Signals coalesce.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// Query ranks the current catalog snapshot against text.
func (c *Controller) Query(text string) []search.Result {
	return search.Run(c.catalog.Snapshot(), c.favorites.IDs(), text)
}

// Sections returns the browse view.
func (c *Controller) Sections() []model.Section {
	return c.catalog.Sections()
}

// Get resolves an id. Hidden entries resolve.
func (c *Controller) Get(id string) (model.Entry, bool) {
	return c.catalog.Get(id)
}

// Launch starts the entry's exec string through the launcher and, on
// success, increments its usage counter. Failures leave the catalog
// untouched.
func (c *Controller) Launch(ctx context.Context, id string) error {
	e, ok := c.catalog.Get(id)
	if !ok {
		return &LaunchError{ID: id, Err: ErrUnknownEntry}
	}
	if strings.TrimSpace(e.Exec) == "" {
		return &LaunchError{ID: id, Err: ErrNoCommand}
	}
	if err := c.launcher.Launch(ctx, e.Exec); err != nil {
		return &LaunchError{ID: id, Exec: e.Exec, Err: err}
	}

	if _, ok := c.catalog.RecordLaunch(id); ok {
		c.notify()
	}
	if c.usage != nil {
		if err := c.usage.Save(c.catalog.Usage()); err != nil {
			c.logger.Printf("saving usage counts: %v", err)
		}
	}
	return nil
}

// Favorites returns the pinned ids that currently resolve, in user order.
func (c *Controller) Favorites() []string {
	snap := c.catalog.Snapshot()
	return c.favorites.List(snap.Has)
}

// Pin appends id to the favorites. An error wrapping
// favorites.ErrPersistenceWrite is a warning: the pin is in effect.
func (c *Controller) Pin(id string) error {
	changed, err := c.favorites.Pin(id)
	if changed {
		c.notify()
	}
	return err
}

// Unpin removes id from the favorites.
func (c *Controller) Unpin(id string) error {
	changed, err := c.favorites.Unpin(id)
	if changed {
		c.notify()
	}
	return err
}

// Reorder replaces the favorites order. ids must name exactly the stored
// favorites, including ones that do not currently resolve.
func (c *Controller) Reorder(ids []string) error {
	err := c.favorites.Reorder(ids)
	if err == nil || errors.Is(err, favorites.ErrPersistenceWrite) {
		c.notify()
	}
	return err
}

// FlushFavorites retries a failed favorites write.
func (c *Controller) FlushFavorites() error {
	return c.favorites.Flush()
}

// Status reports every backend, lowest rank first.
func (c *Controller) Status() []datasource.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]datasource.Status, len(c.backends))
	for i, bs := range c.backends {
		out[i] = bs.status
	}
	return out
}

// Watch starts a directory watcher for every backend that exposes watch
// paths. A debounced change rescans that backend only. It returns the
// number of watchers started.
func (c *Controller) Watch(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.runningLocked(); err != nil {
		return 0, err
	}
	if c.watchers != nil {
		return 0, ErrAlreadyWatching
	}
	c.watchers = []*watcher.Watcher{}

	for _, bs := range c.backends {
		wb, ok := bs.backend.(datasource.Watchable)
		if !ok || len(wb.WatchPaths()) == 0 {
			continue
		}
		name := bs.backend.Name()
		opts := append([]watcher.Option{}, c.watchOpts...)
		opts = append(opts,
			watcher.WithOnChange(func() {
				if err := c.RescanBackend(name); err != nil && !errors.Is(err, ErrClosed) {
					c.logger.Printf("rescan %s: %v", name, err)
				}
			}),
			watcher.WithOnError(func(err error) {
				c.logger.Printf("watch %s: %v", name, err)
			}),
		)
		w, err := watcher.New(wb.WatchPaths(), opts...)
		if err != nil {
			return len(c.watchers), fmt.Errorf("watching %s: %w", name, err)
		}
		if err := w.Start(ctx); err != nil {
			return len(c.watchers), fmt.Errorf("watching %s: %w", name, err)
		}
		c.watchers = append(c.watchers, w)
	}
	return len(c.watchers), nil
}

// Close stops watchers, cancels background work, waits for workers to
// finish, and flushes pending state. Backends are expected to honour
// context cancellation.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	watchers := c.watchers
	c.watchers = nil
	c.mu.Unlock()

	for _, w := range watchers {
		w.Stop()
	}

	if started {
		c.cancel()
		c.dispatching.Wait()
		_ = c.group.Wait()
		close(c.stop)
		<-c.loopDone
	}

	var errs []error
	if err := c.favorites.Flush(); err != nil {
		errs = append(errs, err)
	}
	if usage := c.catalog.Usage(); c.usage != nil && len(usage) > 0 {
		if err := c.usage.Save(usage); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
