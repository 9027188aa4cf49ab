// Package store persists conversations, messages, the FTS5 full-text index
// and extracted keywords in a single SQLite file.
//
// The store owns the schema: Open upgrades older files in place through an
// ordered migration chain before creating any missing tables, and DropAll
// removes every owned object without deleting the file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrInvalidStore is returned when the file exists but is not a SQLite database.
	ErrInvalidStore = errors.New("not a valid index database")

	// ErrStoreNotFound is returned by OpenExisting when the file does not exist.
	ErrStoreNotFound = errors.New("index database not found")
)

// RebuildHint tells the user how to recreate a damaged or missing index.
const RebuildHint = "chatindex build --rebuild --export /path/to/conversations.json"

// Options tunes the SQLite connection.
type Options struct {
	// CacheSizeKB is the page cache budget in KiB.
	CacheSizeKB int `koanf:"cache_size_kb"`

	// Synchronous is the synchronous pragma level (OFF, NORMAL, FULL).
	Synchronous string `koanf:"synchronous"`

	// BusyTimeout is how long a statement waits on a locked database.
	BusyTimeout time.Duration `koanf:"busy_timeout"`
}

// DefaultOptions returns WAL-friendly defaults: NORMAL sync and a 64MB cache.
func DefaultOptions() Options {
	return Options{
		CacheSizeKB: 64000,
		Synchronous: "NORMAL",
		BusyTimeout: 5 * time.Second,
	}
}

// Validate checks options for errors.
func (o Options) Validate() error {
	switch strings.ToUpper(o.Synchronous) {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("synchronous must be OFF, NORMAL, FULL or EXTRA, got %q", o.Synchronous)
	}
	if o.CacheSizeKB <= 0 {
		return fmt.Errorf("cache_size_kb must be > 0, got %d", o.CacheSizeKB)
	}
	if o.BusyTimeout < 0 {
		return fmt.Errorf("busy_timeout must be >= 0")
	}
	return nil
}

// Store is a handle on one index file. It holds a single connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the index at path and brings its schema to the
// current version.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	s, err := open(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// OpenExisting is Open for read paths: a missing file is ErrStoreNotFound
// instead of a freshly created empty index.
func OpenExisting(ctx context.Context, path string, opts Options) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s; build it first with: %s", ErrStoreNotFound, path, RebuildHint)
		}
		return nil, fmt.Errorf("checking index file: %w", err)
	}
	return Open(ctx, path, opts)
}

func open(ctx context.Context, path string, opts Options) (*Store, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" || p == "." {
		return nil, errors.New("missing database path")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store options: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(p, opts))
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// sqlite_master is read from the file header, so this fails fast on
	// files that are not databases.
	var n int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master`).Scan(&n); err != nil {
		_ = db.Close()
		if isNotADatabase(err) {
			return nil, invalidStoreError(p, err)
		}
		return nil, fmt.Errorf("opening index %s: %w", p, err)
	}

	return &Store{db: db, path: p}, nil
}

// dsn builds a modernc.org/sqlite DSN applying the pragmas to every connection.
func dsn(path string, opts Options) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout("+fmt.Sprint(opts.BusyTimeout.Milliseconds())+")")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous("+strings.ToUpper(opts.Synchronous)+")")
	q.Add("_pragma", "cache_size(-"+fmt.Sprint(opts.CacheSizeKB)+")")
	q.Add("_pragma", "foreign_keys(1)")
	return path + "?" + q.Encode()
}

func isNotADatabase(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_NOTADB {
		return true
	}
	return strings.Contains(err.Error(), "not a database")
}

func invalidStoreError(path string, cause error) error {
	return fmt.Errorf("%w: %s (%v). Remove the file or rebuild it with: %s",
		ErrInvalidStore, path, cause, RebuildHint)
}

// Init runs pending migrations and then creates any missing schema objects.
// A store already at SchemaVersion is left untouched, so read paths never
// write to it.
func (s *Store) Init(ctx context.Context) error {
	version, err := s.Version(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version == SchemaVersion {
		return nil
	}
	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// DB returns the underlying handle for read queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the index file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SizeBytes returns the database size as page_count * page_size.
func (s *Store) SizeBytes(ctx context.Context) (int64, error) {
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("reading page_count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("reading page_size: %w", err)
	}
	return pageCount * pageSize, nil
}

// TableExists reports whether a table (or virtual table) named name exists.
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	return tableExists(ctx, s.db, name)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(ctx context.Context, q querier, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func columnExists(ctx context.Context, q querier, table, column string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
