// Package store is the single-file embedded relational database that
// backs the whole of Arbihawk: fixtures, odds, scores, bets, price
// history, positions, portfolio snapshots, model versions, and run
// history. Every other component treats it as the sole source of
// truth (spec §3 "Ownership").
//
// It is a migration-aware handle over a single SQLite file (WAL mode),
// adapted from the teacher's internal/database/db.go connection-string
// and PRAGMA pattern, collapsed from the teacher's 7-database
// architecture to spec's one file plus one schema_version table.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Store wraps the database connection and exposes entity-scoped
// operations implemented across the other files in this package.
type Store struct {
	conn *sql.DB
	path string
	log  zerolog.Logger
}

// Config configures a new Store.
type Config struct {
	Path string
	Log  zerolog.Logger
}

// Open opens (creating if necessary) the store file, applies PRAGMAs,
// and runs the migration ladder.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: path is required")
	}

	if cfg.Path != ":memory:" && !isMemoryURI(cfg.Path) {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("store: resolve path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
		cfg.Path = absPath
	}

	connStr := buildConnectionString(cfg.Path)

	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	conn.SetMaxOpenConns(1) // serial access per connection, per spec §5
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(24 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{conn: conn, path: cfg.Path, log: cfg.Log.With().Str("component", "store").Logger()}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return s, nil
}

func isMemoryURI(path string) bool {
	return len(path) >= 5 && path[:5] == "file:"
}

func buildConnectionString(path string) string {
	connStr := path + "?_pragma=journal_mode(WAL)"
	connStr += "&_pragma=synchronous(NORMAL)"
	connStr += "&_pragma=foreign_keys(1)"
	connStr += "&_pragma=wal_autocheckpoint(1000)"
	connStr += "&_pragma=cache_size(-64000)"
	return connStr
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the store's file path.
func (s *Store) Path() string {
	return s.path
}

// Conn exposes the raw *sql.DB for components that need direct access
// (tests, reset/sync operations).
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// WithTx runs fn inside a transaction: on error or panic the
// transaction rolls back and re-raises; otherwise it commits. Mirrors
// the teacher's database.WithTransaction helper (spec §4.1: "on
// exception inside a scope, the scope rolls back and re-raises").
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}

// HealthCheck runs a connectivity + integrity check.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping failed: %w", err)
	}

	var result string
	if err := s.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("store: integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("store: integrity check failed: %s", result)
	}

	return nil
}

// Vacuum reclaims space and defragments the file.
func (s *Store) Vacuum() error {
	_, err := s.conn.Exec("VACUUM")
	if err != nil {
		return fmt.Errorf("store: vacuum: %w", err)
	}
	return nil
}

// WALCheckpoint forces the WAL to be merged back into the main file.
func (s *Store) WALCheckpoint(mode string) error {
	if mode == "" {
		mode = "TRUNCATE"
	}
	_, err := s.conn.Exec(fmt.Sprintf("PRAGMA wal_checkpoint(%s)", mode))
	if err != nil {
		return fmt.Errorf("store: wal checkpoint: %w", err)
	}
	return nil
}
