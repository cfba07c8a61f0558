package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements KV using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	mu    sync.RWMutex
	cache map[cacheKey][]byte
}

type cacheKey struct {
	scope string
	key   string
}

// NewSQLiteStore opens (or creates) the preference database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:    db,
		cache: make(map[cacheKey][]byte),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS preferences (
		scope TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (scope, key)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the stored value for scope/key.
func (s *SQLiteStore) Get(ctx context.Context, scope, key string) ([]byte, bool, error) {
	ck := cacheKey{scope, key}

	s.mu.RLock()
	if v, ok := s.cache[ck]; ok {
		s.mu.RUnlock()
		return clone(v), true, nil
	}
	s.mu.RUnlock()

	var value []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM preferences WHERE scope = ? AND key = ?
	`, scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query preference: %w", err)
	}

	s.mu.Lock()
	s.cache[ck] = clone(value)
	s.mu.Unlock()

	return value, true, nil
}

// Put replaces the value for scope/key.
func (s *SQLiteStore) Put(ctx context.Context, scope, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO preferences (scope, key, value, updated_at)
		VALUES (?, ?, ?, ?)
	`, scope, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}

	s.mu.Lock()
	s.cache[cacheKey{scope, key}] = clone(value)
	s.mu.Unlock()

	return nil
}

// Delete removes scope/key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, scope, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM preferences WHERE scope = ? AND key = ?
	`, scope, key)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}

	s.mu.Lock()
	delete(s.cache, cacheKey{scope, key})
	s.mu.Unlock()

	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
