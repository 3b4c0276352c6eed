package session

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vanderheijden86/brisk/internal/datasource"
	"github.com/vanderheijden86/brisk/pkg/catalog"
	"github.com/vanderheijden86/brisk/pkg/favorites"
	"github.com/vanderheijden86/brisk/pkg/loader"
	"github.com/vanderheijden86/brisk/pkg/model"
	"github.com/vanderheijden86/brisk/pkg/search"
	"github.com/vanderheijden86/brisk/pkg/testutil"
	"github.com/vanderheijden86/brisk/pkg/watcher"
)

// step is one scripted scan result. A non-nil gate blocks the scan until
// it is closed or the context ends.
type step struct {
	entries []model.Entry
	gate    chan struct{}
	err     error
}

// scriptedBackend replays steps in order; the last step repeats.
type scriptedBackend struct {
	name  string
	rank  int
	mu    sync.Mutex
	steps []step
	calls int
}

func (b *scriptedBackend) Name() string { return b.name }
func (b *scriptedBackend) Rank() int    { return b.rank }

func (b *scriptedBackend) next(ctx context.Context) ([]model.Entry, error) {
	b.mu.Lock()
	s := b.steps[min(b.calls, len(b.steps)-1)]
	b.calls++
	b.mu.Unlock()

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.entries, s.err
}

func (b *scriptedBackend) Activate(ctx context.Context) ([]model.Entry, error) {
	return b.next(ctx)
}

func (b *scriptedBackend) Rescan(ctx context.Context, previous []model.Entry) (model.Delta, error) {
	entries, err := b.next(ctx)
	if err != nil {
		return model.Delta{Rank: b.rank}, err
	}
	return datasource.Diff(b.rank, previous, entries), nil
}

func (b *scriptedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func entry(id, name string, cats ...string) model.Entry {
	return model.Entry{ID: id, Name: name, Exec: strings.ToLower(name), Categories: cats}
}

func newController(t *testing.T, backends []datasource.Backend, opts ...Option) *Controller {
	t.Helper()
	c, err := New(backends, nil, nil, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func startIdle(t *testing.T, c *Controller) {
	t.Helper()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, c)
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew_RejectsDuplicateRank(t *testing.T) {
	_, err := New([]datasource.Backend{
		datasource.NewStaticBackend("a", 1),
		datasource.NewStaticBackend("b", 1),
	}, nil, nil)
	if !errors.Is(err, ErrDuplicateRank) {
		t.Errorf("expected ErrDuplicateRank, got %v", err)
	}
}

func TestNew_RejectsDuplicateName(t *testing.T) {
	_, err := New([]datasource.Backend{
		datasource.NewStaticBackend("a", 1),
		datasource.NewStaticBackend("a", 2),
	}, nil, nil)
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
}

func TestStart_Twice(t *testing.T) {
	c := newController(t, nil)
	startIdle(t, c)
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestRescan_BeforeStart(t *testing.T) {
	c := newController(t, []datasource.Backend{datasource.NewStaticBackend("s", 1)})
	if err := c.Rescan(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
}

func TestRescanBackend_Unknown(t *testing.T) {
	c := newController(t, []datasource.Backend{datasource.NewStaticBackend("s", 1)})
	startIdle(t, c)
	if err := c.RescanBackend("nope"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestStart_ProgressivePopulation(t *testing.T) {
	gate := make(chan struct{})
	fast := datasource.NewStaticBackend("fast", 1, entry("fast.desktop", "Fast"))
	slow := &scriptedBackend{name: "slow", rank: 2, steps: []step{
		{entries: []model.Entry{entry("slow.desktop", "Slow")}, gate: gate},
	}}
	c := newController(t, []datasource.Backend{fast, slow})

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { _, ok := c.Get("fast.desktop"); return ok })

	if _, ok := c.Get("slow.desktop"); ok {
		t.Fatal("slow backend merged before its scan finished")
	}
	testutil.AssertIDs(t, search.IDs(c.Query("")), "fast.desktop")

	st := c.Status()
	if st[0].State != datasource.StateReady || st[1].State != datasource.StatePending {
		t.Errorf("unexpected status mid-activation: %v", st)
	}

	close(gate)
	waitIdle(t, c)
	testutil.AssertIDs(t, search.IDs(c.Query("")), "fast.desktop", "slow.desktop")
}

func TestOverrideByRank_OrderIndependent(t *testing.T) {
	for _, highFirst := range []bool{false, true} {
		name := "low-first"
		if highFirst {
			name = "high-first"
		}
		t.Run(name, func(t *testing.T) {
			lowGate, highGate := make(chan struct{}), make(chan struct{})
			low := &scriptedBackend{name: "low", rank: 1, steps: []step{
				{entries: []model.Entry{entry("X", "Old")}, gate: lowGate},
			}}
			high := &scriptedBackend{name: "high", rank: 2, steps: []step{
				{entries: []model.Entry{entry("X", "New")}, gate: highGate},
			}}
			c := newController(t, []datasource.Backend{low, high})
			if err := c.Start(context.Background()); err != nil {
				t.Fatal(err)
			}

			first, second := lowGate, highGate
			firstName := "Old"
			if highFirst {
				first, second = highGate, lowGate
				firstName = "New"
			}
			close(first)
			waitFor(t, func() bool { e, ok := c.Get("X"); return ok && e.Name == firstName })
			close(second)
			waitIdle(t, c)

			e, ok := c.Get("X")
			if !ok || e.Name != "New" {
				t.Errorf("Get(X) = %v, %v; want name New", e, ok)
			}
		})
	}
}

func TestSearchScenario(t *testing.T) {
	b := datasource.NewStaticBackend("apps", 1,
		entry("A", "Text Editor", "Office"),
		entry("B", "Terminal", "System"),
	)
	cat := catalog.New(catalog.WithUsage(map[string]int{"A": 1}))
	c, err := New([]datasource.Backend{b}, cat, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	startIdle(t, c)

	testutil.AssertIDs(t, search.IDs(c.Query("term")), "B")
	if r := c.Query("term"); len(r) == 1 && r[0].Tier != search.TierPrefix {
		t.Errorf("expected prefix tier, got %s", r[0].Tier)
	}
	testutil.AssertIDs(t, search.IDs(c.Query("")), "A", "B")

	if err := c.Pin("B"); err != nil {
		t.Fatal(err)
	}
	testutil.AssertIDs(t, search.IDs(c.Query("")), "B", "A")
	testutil.AssertIDs(t, c.Favorites(), "B")
}

func TestSections(t *testing.T) {
	b := datasource.NewStaticBackend("apps", 1,
		entry("A", "Text Editor", "Office"),
		entry("B", "Terminal", "System"),
		entry("C", "Mystery"),
	)
	c := newController(t, []datasource.Backend{b})
	startIdle(t, c)

	var keys []string
	for _, s := range c.Sections() {
		keys = append(keys, s.Key)
	}
	if want := []string{"office", "system", model.UncategorizedKey}; !slices.Equal(keys, want) {
		t.Errorf("section keys = %v, want %v", keys, want)
	}
	testutil.AssertSectionsCover(t, c.Catalog().All(), c.Sections())
}

func TestLaunch_UnknownID(t *testing.T) {
	var launched atomic.Int32
	c := newController(t,
		[]datasource.Backend{datasource.NewStaticBackend("apps", 1, entry("A", "Alpha"))},
		WithLauncher(LauncherFunc(func(context.Context, string) error {
			launched.Add(1)
			return nil
		})),
	)
	startIdle(t, c)

	err := c.Launch(context.Background(), "missing")
	if !errors.Is(err, ErrLaunchFailed) || !errors.Is(err, ErrUnknownEntry) {
		t.Fatalf("expected LaunchFailed/UnknownEntry, got %v", err)
	}
	if launched.Load() != 0 {
		t.Error("launcher should not be called for an unknown id")
	}
	if u := c.Catalog().Usage(); len(u) != 0 {
		t.Errorf("usage changed: %v", u)
	}
}

func TestLaunch_EntryWithoutCommand(t *testing.T) {
	var launched atomic.Int32
	masked := model.Entry{ID: "A", Name: "A", Hidden: true}
	c := newController(t,
		[]datasource.Backend{
			datasource.NewStaticBackend("system", 1, entry("A", "Alpha")),
			datasource.NewStaticBackend("user", 2, masked),
		},
		WithLauncher(LauncherFunc(func(context.Context, string) error {
			launched.Add(1)
			return nil
		})),
	)
	startIdle(t, c)

	if e, ok := c.Get("A"); !ok || !e.Hidden {
		t.Fatalf("Get(A) = %+v, %v; want the hidden user copy", e, ok)
	}
	err := c.Launch(context.Background(), "A")
	if !errors.Is(err, ErrLaunchFailed) || !errors.Is(err, ErrNoCommand) {
		t.Fatalf("expected LaunchFailed/NoCommand, got %v", err)
	}
	if launched.Load() != 0 {
		t.Error("launcher should not see an empty command line")
	}
	if u := c.Catalog().Usage(); len(u) != 0 {
		t.Errorf("usage changed: %v", u)
	}
}

func TestLaunch_LauncherFailureSurfaced(t *testing.T) {
	boom := errors.New("exec: not found")
	c := newController(t,
		[]datasource.Backend{datasource.NewStaticBackend("apps", 1, entry("A", "Alpha"))},
		WithLauncher(LauncherFunc(func(context.Context, string) error { return boom })),
	)
	startIdle(t, c)

	err := c.Launch(context.Background(), "A")
	if !errors.Is(err, ErrLaunchFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped launcher error, got %v", err)
	}
	var lerr *LaunchError
	if !errors.As(err, &lerr) || lerr.Exec != "alpha" {
		t.Errorf("expected *LaunchError with exec, got %v", err)
	}
	if e, _ := c.Get("A"); e.UsageCount != 0 {
		t.Errorf("usage changed after failed launch: %d", e.UsageCount)
	}
}

func TestLaunch_RecordsAndPersistsUsage(t *testing.T) {
	var got string
	usage := catalog.NewUsageStore(filepath.Join(t.TempDir(), "usage.json"))
	c := newController(t,
		[]datasource.Backend{datasource.NewStaticBackend("apps", 1, entry("A", "Alpha"))},
		WithLauncher(LauncherFunc(func(_ context.Context, exec string) error {
			got = exec
			return nil
		})),
		WithUsageStore(usage),
	)
	startIdle(t, c)

	for i := 0; i < 2; i++ {
		if err := c.Launch(context.Background(), "A"); err != nil {
			t.Fatalf("Launch: %v", err)
		}
	}
	if got != "alpha" {
		t.Errorf("launcher got exec %q", got)
	}
	if e, _ := c.Get("A"); e.UsageCount != 2 {
		t.Errorf("UsageCount = %d, want 2", e.UsageCount)
	}
	counts, err := usage.Load()
	if err != nil {
		t.Fatal(err)
	}
	if counts["A"] != 2 {
		t.Errorf("persisted usage = %v", counts)
	}
}

func TestLaunch_NoLauncher(t *testing.T) {
	c := newController(t, []datasource.Backend{datasource.NewStaticBackend("apps", 1, entry("A", "Alpha"))})
	startIdle(t, c)
	if err := c.Launch(context.Background(), "A"); !errors.Is(err, ErrNoLauncher) {
		t.Errorf("expected ErrNoLauncher, got %v", err)
	}
}

func TestDegradedBackend(t *testing.T) {
	broken := datasource.NewStaticBackend("broken", 1, entry("B", "Broken"))
	broken.SetUnavailable(errors.New("permission denied"))
	ok := datasource.NewStaticBackend("ok", 2, entry("A", "Alpha"))
	c := newController(t, []datasource.Backend{broken, ok})
	startIdle(t, c)

	testutil.AssertIDs(t, search.IDs(c.Query("")), "A")

	st := c.Status()
	if st[0].Name != "broken" || st[0].State != datasource.StateDegraded {
		t.Fatalf("status[0] = %v", st[0])
	}
	if !strings.Contains(st[0].Error, datasource.ErrBackendUnavailable.Error()) {
		t.Errorf("status error = %q", st[0].Error)
	}
	if st[1].State != datasource.StateReady || st[1].Entries != 1 {
		t.Errorf("status[1] = %v", st[1])
	}

	broken.SetUnavailable(nil)
	if err := c.RescanBackend("broken"); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, c)
	if _, found := c.Get("B"); !found {
		t.Error("recovered backend should contribute entries")
	}
	if st := c.Status(); st[0].State != datasource.StateReady {
		t.Errorf("status after recovery = %v", st[0])
	}
}

func TestRescan_RemovalRevealsLowerRank(t *testing.T) {
	low := datasource.NewStaticBackend("low", 1, entry("X", "Old"))
	high := datasource.NewStaticBackend("high", 2, entry("X", "New"), entry("Y", "Only High"))
	c := newController(t, []datasource.Backend{low, high})
	startIdle(t, c)

	if e, _ := c.Get("X"); e.Name != "New" {
		t.Fatalf("Get(X).Name = %q", e.Name)
	}

	high.Set()
	if err := c.Rescan(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, c)

	if e, ok := c.Get("X"); !ok || e.Name != "Old" {
		t.Errorf("Get(X) = %v, %v; want Old", e, ok)
	}
	if _, ok := c.Get("Y"); ok {
		t.Error("Y should be gone once no backend reports it")
	}
}

func TestRescan_SupersedesInFlight(t *testing.T) {
	gate := make(chan struct{})
	b := &scriptedBackend{name: "apps", rank: 1, steps: []step{
		{entries: []model.Entry{entry("X", "v1")}},
		{entries: []model.Entry{entry("X", "stale"), entry("S", "Stale Only")}, gate: gate},
		{entries: []model.Entry{entry("X", "v3")}},
	}}
	c := newController(t, []datasource.Backend{b})
	startIdle(t, c)

	if err := c.Rescan(); err != nil { // blocks on gate
		t.Fatal(err)
	}
	waitFor(t, func() bool { return b.callCount() == 2 })
	if err := c.Rescan(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { e, _ := c.Get("X"); return e.Name == "v3" })

	close(gate)
	waitIdle(t, c)

	if e, _ := c.Get("X"); e.Name != "v3" {
		t.Errorf("stale rescan overwrote newer result: %q", e.Name)
	}
	if _, ok := c.Get("S"); ok {
		t.Error("stale rescan result was merged")
	}
}

func TestFavorites_UnresolvableRetained(t *testing.T) {
	favs := favorites.NewMemoryStore("ghost", "A")
	c, err := New([]datasource.Backend{datasource.NewStaticBackend("apps", 1, entry("A", "Alpha"))}, nil, favs)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	startIdle(t, c)

	testutil.AssertIDs(t, c.Favorites(), "A")
	testutil.AssertIDs(t, favs.IDs(), "ghost", "A")

	if err := c.Reorder([]string{"A"}); !errors.Is(err, favorites.ErrReorderValidation) {
		t.Errorf("reorder omitting an unresolvable pin should fail, got %v", err)
	}
	if err := c.Reorder([]string{"A", "ghost"}); err != nil {
		t.Errorf("Reorder: %v", err)
	}
	testutil.AssertIDs(t, favs.IDs(), "A", "ghost")

	if err := c.Unpin("A"); err != nil {
		t.Fatal(err)
	}
	testutil.AssertIDs(t, c.Favorites())
}

func TestUpdates_SignalledOnMerge(t *testing.T) {
	c := newController(t, []datasource.Backend{datasource.NewStaticBackend("apps", 1, entry("A", "Alpha"))})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case <-c.Updates():
	case <-time.After(5 * time.Second):
		t.Fatal("no update after activation")
	}
}

func TestClose_CancelsHungBackend(t *testing.T) {
	hung := &scriptedBackend{name: "hung", rank: 1, steps: []step{{gate: make(chan struct{})}}}
	ok := datasource.NewStaticBackend("ok", 2, entry("A", "Alpha"))
	c, err := New([]datasource.Backend{hung, ok}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A hung backend never blocks the others.
	waitFor(t, func() bool { _, found := c.Get("A"); return found })

	done := make(chan error, 1)
	go func() { done <- c.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Close: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	if err := c.Rescan(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestWithWorkers_BoundsConcurrentScans(t *testing.T) {
	gate := make(chan struct{})
	slow := &scriptedBackend{name: "slow", rank: 1, steps: []step{{entries: []model.Entry{entry("S", "Slow")}, gate: gate}}}
	queued := &scriptedBackend{name: "queued", rank: 2, steps: []step{{entries: []model.Entry{entry("Q", "Queued")}}}}
	c := newController(t, []datasource.Backend{slow, queued}, WithWorkers(1))
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return slow.callCount() == 1 })
	time.Sleep(50 * time.Millisecond)
	if n := queued.callCount(); n != 0 {
		t.Fatalf("second scan ran while the only worker was busy (%d calls)", n)
	}

	close(gate)
	waitIdle(t, c)
	for _, id := range []string{"S", "Q"} {
		if _, ok := c.Get(id); !ok {
			t.Errorf("Get(%s) missing after the worker was released", id)
		}
	}
}

func TestWithWorkers_CloseReleasesHungWorker(t *testing.T) {
	hung := &scriptedBackend{name: "hung", rank: 1, steps: []step{{gate: make(chan struct{})}}}
	queued := &scriptedBackend{name: "queued", rank: 2, steps: []step{{entries: []model.Entry{entry("Q", "Queued")}}}}
	c, err := New([]datasource.Backend{hung, queued}, nil, nil, WithWorkers(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return hung.callCount() == 1 })

	done := make(chan error, 1)
	go func() { done <- c.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Close: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return with a hung worker holding the only slot")
	}
}

func TestWatch_RescansOnChange(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDesktopFile(t, dir, entry("first.desktop", "First"))

	b := datasource.NewDesktopBackend("user", 1, []string{dir}, loader.ParseOptions{})
	c := newController(t, []datasource.Backend{b}, WithWatcherOptions(
		watcher.WithForcePoll(true),
		watcher.WithPollInterval(20*time.Millisecond),
		watcher.WithDebounceDuration(20*time.Millisecond),
	))
	startIdle(t, c)

	n, err := c.Watch(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("Watch = %d, %v", n, err)
	}
	if _, err := c.Watch(context.Background()); !errors.Is(err, ErrAlreadyWatching) {
		t.Errorf("expected ErrAlreadyWatching, got %v", err)
	}

	testutil.WriteDesktopFile(t, dir, entry("second.desktop", "Second"))
	waitFor(t, func() bool { _, ok := c.Get("second.desktop"); return ok })
}
