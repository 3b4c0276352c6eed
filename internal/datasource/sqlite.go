package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/brisk/pkg/metrics"
	"github.com/vanderheijden86/brisk/pkg/model"
)

// EntriesSchema is the table layout the SQLite backend reads. Other tools
// (session managers, app stores) export their application index in this form.
const EntriesSchema = `
CREATE TABLE IF NOT EXISTS entries (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT,
	keywords    TEXT,
	icon        TEXT,
	exec        TEXT NOT NULL,
	categories  TEXT,
	hidden      INTEGER NOT NULL DEFAULT 0
)`

// SQLiteBackend reads entries from a SQLite database file.
type SQLiteBackend struct {
	base
	path string
}

// NewSQLiteBackend creates a backend reading the database at path.
func NewSQLiteBackend(name string, rank int, path string) *SQLiteBackend {
	return &SQLiteBackend{
		base: newBase(name, rank),
		path: path,
	}
}

// Activate loads every row of the entries table.
func (b *SQLiteBackend) Activate(ctx context.Context) ([]model.Entry, error) {
	return b.scan(ctx)
}

// Rescan reloads the table and diffs against previous.
func (b *SQLiteBackend) Rescan(ctx context.Context, previous []model.Entry) (model.Delta, error) {
	return rescanWith(ctx, b.rank, previous, b.scan)
}

func (b *SQLiteBackend) scan(ctx context.Context) ([]model.Entry, error) {
	defer metrics.Timer(metrics.BackendScan)()

	if _, err := os.Stat(b.path); err != nil {
		b.logger.Printf("%s: cannot stat %s: %v", b.name, b.path, err)
		return nil, unavailable(b.name, err)
	}

	reader, err := openSQLiteReader(b.path)
	if err != nil {
		b.logger.Printf("%s: %v", b.name, err)
		return nil, unavailable(b.name, err)
	}
	defer reader.Close()

	entries, err := reader.loadEntries(ctx, b.logger.Printf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		b.logger.Printf("%s: %v", b.name, err)
		return nil, unavailable(b.name, err)
	}
	for i := range entries {
		entries[i].Source = b.name
	}
	return entries, nil
}

// sqliteReader provides read access to an entries database
type sqliteReader struct {
	db   *sql.DB
	path string
}

func openSQLiteReader(path string) (*sqliteReader, error) {
	// Open in read-only mode; the exporting tool may hold a write lock briefly.
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	return &sqliteReader{db: db, path: path}, nil
}

// Close closes the database connection
func (r *sqliteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *sqliteReader) loadEntries(ctx context.Context, logf func(string, ...any)) ([]model.Entry, error) {
	query := `
		SELECT id, name, description, keywords, icon, exec, categories, hidden
		FROM entries
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		// Try simpler query if some columns don't exist
		return r.loadEntriesSimple(ctx, logf)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		var e model.Entry
		var description, keywords, icon, categories sql.NullString
		var hidden sql.NullInt64

		if err := rows.Scan(&e.ID, &e.Name, &description, &keywords, &icon, &e.Exec, &categories, &hidden); err != nil {
			logf("%s: skipping row: %v", r.path, err)
			continue
		}
		e.Description = description.String
		e.Icon = icon.String
		e.Keywords = parseJSONStringArray(keywords.String)
		e.Categories = parseJSONStringArray(categories.String)
		e.Hidden = hidden.Valid && hidden.Int64 != 0

		if err := e.Validate(); err != nil {
			logf("%s: skipping row: %v", r.path, err)
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

// loadEntriesSimple is a fallback for databases with fewer columns
func (r *sqliteReader) loadEntriesSimple(ctx context.Context, logf func(string, ...any)) ([]model.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, exec FROM entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		var e model.Entry
		if err := rows.Scan(&e.ID, &e.Name, &e.Exec); err != nil {
			logf("%s: skipping row: %v", r.path, err)
			continue
		}
		if err := e.Validate(); err != nil {
			logf("%s: skipping row: %v", r.path, err)
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

// parseJSONStringArray parses a JSON array of strings
func parseJSONStringArray(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" || s == "[]" {
		return nil
	}

	var result []string
	if err := json.Unmarshal([]byte(s), &result); err != nil {
		// Fallback to simple parser for malformed JSON
		s = strings.TrimPrefix(s, "[")
		s = strings.TrimSuffix(s, "]")
		if s == "" {
			return nil
		}
		for _, item := range strings.Split(s, ",") {
			item = strings.TrimSpace(item)
			item = strings.Trim(item, `"`)
			if item != "" {
				result = append(result, item)
			}
		}
	}
	return result
}
