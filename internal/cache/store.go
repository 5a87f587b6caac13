// Package cache persists successful backend responses in SQLite so identical
// invocations are served without another backend call.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	schemaStatement = `CREATE TABLE IF NOT EXISTS responses (
		key TEXT PRIMARY KEY,
		schema_name TEXT NOT NULL,
		raw_text TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`
	selectStatement = `SELECT raw_text FROM responses WHERE key = ?`
	upsertStatement = `INSERT INTO responses (key, schema_name, raw_text, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET raw_text = excluded.raw_text, created_at = excluded.created_at`
	countStatement = `SELECT count(*) FROM responses`
)

// Store is a SQLite-backed response cache. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("cache path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if _, err := db.Exec(schemaStatement); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached raw response for key. A miss is ("", false, nil).
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var rawText string
	err := s.db.QueryRowContext(ctx, selectStatement, key).Scan(&rawText)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading cache entry: %w", err)
	}
	return rawText, true, nil
}

// Put stores rawText under key, replacing any previous entry.
func (s *Store) Put(ctx context.Context, key, schemaName, rawText string) error {
	createdAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, upsertStatement, key, schemaName, rawText, createdAt); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Len reports the number of cached responses.
func (s *Store) Len(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, countStatement).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return count, nil
}
