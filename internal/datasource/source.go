// Package datasource provides the backends that discover launchable
// applications: desktop entry directories, JSON manifest directories, a
// SQLite index, and a programmatic static set.
//
// Every backend reports entries under a fixed rank. When two backends report
// the same id, the catalog takes the entry from the higher rank.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/vanderheijden86/brisk/pkg/model"
)

// Default ranks (higher = more authoritative).
const (
	RankSystem   = 10
	RankUser     = 20
	RankManifest = 30
	RankSQLite   = 40
)

// ErrBackendUnavailable marks a backend whose source could not be read.
// The backend reports no entries; the session records it as degraded.
var ErrBackendUnavailable = errors.New("backend unavailable")

// Backend is one data source of entries.
type Backend interface {
	// Name is a human-readable identifier, unique per session.
	Name() string
	// Rank is the fixed priority used to resolve id conflicts.
	Rank() int
	// Activate performs the initial discovery.
	Activate(ctx context.Context) ([]model.Entry, error)
	// Rescan rediscovers entries and returns the changes relative to
	// previous, the entries the catalog currently holds for this backend.
	Rescan(ctx context.Context, previous []model.Entry) (model.Delta, error)
}

// Watchable is implemented by backends whose source lives in directories
// that can be watched for changes.
type Watchable interface {
	WatchPaths() []string
}

// unavailable wraps err so that errors.Is(err, ErrBackendUnavailable) holds.
func unavailable(name string, err error) error {
	return fmt.Errorf("%s: %w: %w", name, ErrBackendUnavailable, err)
}

// base carries the identity and logger shared by every variant.
type base struct {
	name   string
	rank   int
	logger *log.Logger
}

func newBase(name string, rank int) base {
	return base{
		name: name,
		rank: rank,
		// Silence by default. Callers can opt-in via SetLogger.
		logger: log.New(io.Discard, "", 0),
	}
}

func (b *base) Name() string { return b.name }
func (b *base) Rank() int    { return b.rank }

// SetLogger sets a logger for skipped descriptors and unreadable roots.
func (b *base) SetLogger(logger *log.Logger) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	b.logger = logger
}

// scanFunc performs one full discovery pass.
type scanFunc func(ctx context.Context) ([]model.Entry, error)

// rescanWith runs a full scan and diffs it against previous.
func rescanWith(ctx context.Context, rank int, previous []model.Entry, scan scanFunc) (model.Delta, error) {
	current, err := scan(ctx)
	if err != nil {
		return model.Delta{Rank: rank}, err
	}
	return Diff(rank, previous, current), nil
}

// Status describes the health of one backend as seen by the session.
type Status struct {
	Name     string    `json:"name"`
	Rank     int       `json:"rank"`
	State    State     `json:"state"`
	Error    string    `json:"error,omitempty"`
	Entries  int       `json:"entries"`
	LastScan time.Time `json:"last_scan,omitempty"`
}

// State is the lifecycle state of a backend.
type State string

const (
	StatePending  State = "pending"
	StateReady    State = "ready"
	StateDegraded State = "degraded"
)

// String returns a human-readable description of the status
func (s Status) String() string {
	status := string(s.State)
	if s.Error != "" {
		status = fmt.Sprintf("%s: %s", s.State, s.Error)
	}
	return fmt.Sprintf("%s (rank=%d, entries=%d, %s)", s.Name, s.Rank, s.Entries, status)
}
