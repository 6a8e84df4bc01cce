package codecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store persists marshaled code blobs keyed by cache key.
type Store interface {
	// Put stores a blob under the key, replacing any previous blob.
	Put(ctx context.Context, key Key, data []byte) error
	// Get returns the blob stored under the key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)
	// Delete removes the blob stored under the key, if any.
	Delete(ctx context.Context, key Key) error
	// Keys returns the keys of all stored blobs.
	Keys(ctx context.Context) ([]Key, error)
	// Close releases the store's resources.
	Close() error
}

// SQLiteStore keeps code blobs in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens a SQLite-backed store at the given path, creating
// the database and schema as needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open code store: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS code_blocks (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create code_blocks table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Put stores a blob under the key, replacing any previous blob.
func (s *SQLiteStore) Put(ctx context.Context, key Key, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO code_blocks (key, data) VALUES (?, ?)",
		key.String(), data)
	if err != nil {
		return fmt.Errorf("failed to store code block: %w", err)
	}
	return nil
}

// Get returns the blob stored under the key, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key Key) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM code_blocks WHERE key = ?", key.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load code block: %w", err)
	}
	return data, nil
}

// Delete removes the blob stored under the key, if any.
func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM code_blocks WHERE key = ?", key.String())
	if err != nil {
		return fmt.Errorf("failed to delete code block: %w", err)
	}
	return nil
}

// Keys returns the keys of all stored blobs in lexical order.
func (s *SQLiteStore) Keys(ctx context.Context) ([]Key, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM code_blocks ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list code blocks: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var hexKey string
		if err := rows.Scan(&hexKey); err != nil {
			return nil, fmt.Errorf("failed to scan code block key: %w", err)
		}
		key, err := ParseKey(hexKey)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
