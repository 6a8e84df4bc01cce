package codecache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxConn is the subset of a pgx connection the store uses. Both
// *pgx.Conn and *pgxpool.Pool satisfy it.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps code blobs in a Postgres table, for deployments
// where multiple processes share one compilation cache.
type PostgresStore struct {
	conn  PgxConn
	close func(context.Context) error // set when the store dialed the connection
}

// NewPostgresStore creates a store on an existing connection and
// ensures its schema. The connection's lifetime stays with the caller;
// Close on the returned store is a no-op.
func NewPostgresStore(ctx context.Context, conn PgxConn) (*PostgresStore, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS code_blocks (
		key TEXT PRIMARY KEY,
		data BYTEA NOT NULL
	)`
	if _, err := conn.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create code_blocks table: %w", err)
	}
	return &PostgresStore{conn: conn}, nil
}

// DialPostgresStore connects to Postgres with the given connection
// string and creates a store that owns the connection.
func DialPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to code store: %w", err)
	}
	store, err := NewPostgresStore(ctx, conn)
	if err != nil {
		conn.Close(ctx)
		return nil, err
	}
	store.close = conn.Close
	return store, nil
}

// Put stores a blob under the key, replacing any previous blob.
func (s *PostgresStore) Put(ctx context.Context, key Key, data []byte) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO code_blocks (key, data) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data`,
		key.String(), data)
	if err != nil {
		return fmt.Errorf("failed to store code block: %w", err)
	}
	return nil
}

// Get returns the blob stored under the key, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, key Key) ([]byte, error) {
	var data []byte
	err := s.conn.QueryRow(ctx,
		"SELECT data FROM code_blocks WHERE key = $1", key.String()).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load code block: %w", err)
	}
	return data, nil
}

// Delete removes the blob stored under the key, if any.
func (s *PostgresStore) Delete(ctx context.Context, key Key) error {
	_, err := s.conn.Exec(ctx,
		"DELETE FROM code_blocks WHERE key = $1", key.String())
	if err != nil {
		return fmt.Errorf("failed to delete code block: %w", err)
	}
	return nil
}

// Keys returns the keys of all stored blobs in lexical order.
func (s *PostgresStore) Keys(ctx context.Context) ([]Key, error) {
	rows, err := s.conn.Query(ctx,
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

// Close closes the connection when the store owns it.
func (s *PostgresStore) Close() error {
	if s.close != nil {
		return s.close(context.Background())
	}
	return nil
}
