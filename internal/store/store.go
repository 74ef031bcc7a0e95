package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added (op, path_id) index on accesses for report queries
const currentSchemaVersion = 1

// Store provides durable storage for a build's provenance graph.
// Uses SQLite with a single connection; all operations run in call order.
type Store struct {
	db   *sql.DB
	path string // empty for unsaved in-memory stores

	// fast is the open batch transaction while fast-access mode is active.
	fast *sql.Tx

	attrs    AttributeStore
	includes IncludeGraph
}

// Option configures a Store at open time.
type Option func(*Store)

// WithAttributes attaches the attribute collaborator consulted when trashing paths.
func WithAttributes(a AttributeStore) Option {
	return func(s *Store) { s.attrs = a }
}

// WithIncludes attaches the include-graph collaborator consulted when trashing paths.
func WithIncludes(g IncludeGraph) Option {
	return func(s *Store) { s.includes = g }
}

// Open creates or opens a build database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("failed to open database: empty path")
	}
	return open(path, path, opts...)
}

// OpenMemory creates an unsaved scratch store. Its contents are discarded on
// Close unless SaveAs is called first.
func OpenMemory(opts ...Option) (*Store, error) {
	return open(":memory:", "", opts...)
}

func open(dsn, path string, opts ...Option) (*Store, error) {
	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, and an in-memory database
	// lives exactly as long as its single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if err := initMeta(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	s := &Store{db: db, path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection. An active fast-access batch is
// committed first.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	var endErr error
	if s.fast != nil {
		endErr = s.EndFastAccess()
	}
	return errors.Join(endErr, s.db.Close())
}

// Path returns the database file path, or "" for an unsaved store.
func (s *Store) Path() string {
	return s.path
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the (op, path_id) index used by the write-only and
// never-accessed reports. Databases created from the current schema.sql
// already have it.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_accesses_op_path
		ON accesses(op, path_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// initMeta records the build id and creation time the first time a database
// is opened. Later opens leave both untouched.
func initMeta(db *sql.DB) error {
	buildID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate build id: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO meta (key, value) VALUES
			('build_id', ?),
			('created_at', ?)
		ON CONFLICT(key) DO NOTHING
	`, buildID.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

// Info summarizes a store for display.
type Info struct {
	BuildID   string `json:"build_id"`
	CreatedAt string `json:"created_at"`
	Path      string `json:"path,omitempty"`
	Files     int    `json:"files"`
	Dirs      int    `json:"directories"`
	Actions   int    `json:"actions"`
	Accesses  int    `json:"accesses"`
	Roots     int    `json:"roots"`
	Trashed   int    `json:"trashed"`
	FastMode  bool   `json:"fast_access"`
}

// Info returns the build id and live entity counts.
func (s *Store) Info(ctx context.Context) (Info, error) {
	q := s.q()
	info := Info{Path: s.path, FastMode: s.fast != nil}

	if err := q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'build_id'`).Scan(&info.BuildID); err != nil {
		return Info{}, fmt.Errorf("read build id: %w", err)
	}
	if err := q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'created_at'`).Scan(&info.CreatedAt); err != nil {
		return Info{}, fmt.Errorf("read created_at: %w", err)
	}

	err := q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM paths WHERE kind = ? AND trashed = 0),
			(SELECT COUNT(*) FROM paths WHERE kind = ? AND trashed = 0),
			(SELECT COUNT(*) FROM actions WHERE trashed = 0),
			(SELECT COUNT(*) FROM accesses),
			(SELECT COUNT(*) FROM roots),
			(SELECT COUNT(*) FROM paths WHERE trashed = 1) + (SELECT COUNT(*) FROM actions WHERE trashed = 1)
	`, kindFile, kindDirectory).Scan(
		&info.Files, &info.Dirs, &info.Actions, &info.Accesses, &info.Roots, &info.Trashed,
	)
	if err != nil {
		return Info{}, fmt.Errorf("count entities: %w", err)
	}
	return info, nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.q().QueryRowContext(context.Background(), query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
