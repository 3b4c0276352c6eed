package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vanderheijden86/brisk/pkg/config"
	"github.com/vanderheijden86/brisk/pkg/favorites"
	"github.com/vanderheijden86/brisk/pkg/metrics"
	"github.com/vanderheijden86/brisk/pkg/session"
	"github.com/vanderheijden86/brisk/pkg/version"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (default: $XDG_CONFIG_HOME/brisk/config.yaml)")
	query := flag.String("query", "", "Rank entries against query text")
	queryAll := flag.Bool("all", false, "List every visible entry (empty query)")
	limit := flag.Int("limit", 20, "Maximum number of query results (0 = unlimited)")
	sections := flag.Bool("sections", false, "List sections and their entries")
	pin := flag.String("pin", "", "Pin an entry id to favorites")
	unpin := flag.String("unpin", "", "Unpin an entry id from favorites")
	reorder := flag.String("reorder", "", "Reorder favorites (comma-separated ids, a permutation of the current list)")
	launch := flag.String("launch", "", "Launch an entry by id")
	showFavorites := flag.Bool("favorites", false, "List favorites")
	status := flag.Bool("status", false, "Show backend status")
	watch := flag.Bool("watch", false, "Watch backend directories and report catalog changes until interrupted")
	jsonOut := flag.Bool("json", false, "Write machine-readable JSON instead of text")
	verbose := flag.Bool("verbose", false, "Log skipped descriptors and backend failures to stderr")
	showMetrics := flag.Bool("metrics", false, "Print timing metrics on exit")
	timeout := flag.Duration("timeout", 30*time.Second, "Maximum time to wait for backends to finish scanning")
	versionFlag := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("brisk %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	var logger *log.Logger
	if *verbose {
		logger = log.New(os.Stderr, "brisk: ", 0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := session.Open(cfg, logger, session.WithLauncher(execLauncher{}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening session: %v\n", err)
		os.Exit(1)
	}

	code := run(ctx, c, options{
		query:     *query,
		queryAll:  *queryAll,
		limit:     *limit,
		sections:  *sections,
		pin:       *pin,
		unpin:     *unpin,
		reorder:   *reorder,
		launch:    *launch,
		favorites: *showFavorites,
		status:    *status,
		watch:     *watch,
		watchOK:   cfg.Watch.Enabled,
		json:      *jsonOut,
		timeout:   *timeout,
	})

	if err := c.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if *showMetrics {
		printMetrics(os.Stderr, metrics.AllTimingStats())
	}
	os.Exit(code)
}

type options struct {
	query     string
	queryAll  bool
	limit     int
	sections  bool
	pin       string
	unpin     string
	reorder   string
	launch    string
	favorites bool
	status    bool
	watch     bool
	watchOK   bool // watch.enabled from the config
	json      bool
	timeout   time.Duration
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// run executes the requested actions against an opened session and returns
// the process exit code.
func run(ctx context.Context, c *session.Controller, opts options) int {
	if opts.watch && !opts.watchOK {
		fmt.Fprintln(os.Stderr, "Error: watching is disabled (watch.enabled is false in the config)")
		return 1
	}
	if err := c.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting session: %v\n", err)
		return 1
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	err := c.WaitIdle(waitCtx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: backends still scanning: %v\n", err)
	}

	out := newPrinter(os.Stdout, opts.json)
	code := 0

	if opts.pin != "" {
		if err := c.Pin(opts.pin); err != nil {
			code = reportFavoritesError("pin", err)
		}
	}
	if opts.unpin != "" {
		if err := c.Unpin(opts.unpin); err != nil {
			code = reportFavoritesError("unpin", err)
		}
	}
	if opts.reorder != "" {
		if err := c.Reorder(splitIDs(opts.reorder)); err != nil {
			code = reportFavoritesError("reorder", err)
		}
	}

	if opts.launch != "" {
		if err := c.Launch(ctx, opts.launch); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			code = 1
		}
	}

	if opts.status {
		out.status(c.Status())
	}
	if opts.favorites {
		out.favorites(c, c.Favorites())
	}
	if opts.sections {
		out.sections(c, c.Sections())
	}
	if opts.query != "" || opts.queryAll {
		results := c.Query(opts.query)
		if opts.limit > 0 && len(results) > opts.limit {
			results = results[:opts.limit]
		}
		out.results(c, opts.query, results)
	}

	if opts.watch {
		if err := watchLoop(ctx, c, out); err != nil {
			fmt.Fprintf(os.Stderr, "Error watching: %v\n", err)
			return 1
		}
	}
	return code
}

// reportFavoritesError prints a favorites failure. A persistence failure
// keeps the in-memory change and is only a warning.
func reportFavoritesError(action string, err error) int {
	if errors.Is(err, favorites.ErrPersistenceWrite) {
		fmt.Fprintf(os.Stderr, "Warning: %s applied but not saved: %v\n", action, err)
		return 0
	}
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", action, err)
	return 1
}

func watchLoop(ctx context.Context, c *session.Controller, out *printer) error {
	n, err := c.Watch(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Watching %d backend(s). Press Ctrl+C to stop.\n", n)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Updates():
			out.change(c.Catalog().Snapshot().Version, len(c.Query("")), time.Now())
		}
	}
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
