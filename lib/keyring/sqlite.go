// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/meridian-foundation/meridian/lib/sqlitepool"
)

// keyRecordsSchema holds one serialized record per key ID. The
// record blob is the CBOR form produced by the Registry; the store
// never interprets it, matching the keyed-tree contract.
const keyRecordsSchema = `
CREATE TABLE IF NOT EXISTS key_records (
	key_id TEXT PRIMARY KEY,
	record BLOB NOT NULL
) WITHOUT ROWID;
`

// SQLiteStore is the durable Store backed by a SQLite database.
type SQLiteStore struct {
	pool *sqlitepool.Pool
}

// OpenSQLiteStore opens (creating if needed) a SQLite-backed store
// at path. The caller must Close it when done.
func OpenSQLiteStore(cfg sqlitepool.Config) (*SQLiteStore, error) {
	onConnect := cfg.OnConnect
	cfg.OnConnect = func(conn *sqlite.Conn) error {
		if err := sqlitex.ExecuteScript(conn, keyRecordsSchema, nil); err != nil {
			return fmt.Errorf("creating key_records schema: %w", err)
		}
		if onConnect != nil {
			return onConnect(conn)
		}
		return nil
	}

	pool, err := sqlitepool.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("keyring: opening store: %w", err)
	}
	return &SQLiteStore{pool: pool}, nil
}

// NewSQLiteStore wraps an existing pool whose connections already
// carry the key_records schema.
func NewSQLiteStore(pool *sqlitepool.Pool) *SQLiteStore {
	return &SQLiteStore{pool: pool}
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, keyID string) ([]byte, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var record []byte
	err = sqlitex.Execute(conn, `SELECT record FROM key_records WHERE key_id = ?`, &sqlitex.ExecOptions{
		Args: []any{keyID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, record)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("keyring: reading record %q: %w", keyID, err)
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, keyID string, record []byte) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO key_records (key_id, record) VALUES (?, ?)
		 ON CONFLICT (key_id) DO UPDATE SET record = excluded.record`,
		&sqlitex.ExecOptions{Args: []any{keyID, record}})
	if err != nil {
		return fmt.Errorf("keyring: writing record %q: %w", keyID, err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, keyID string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM key_records WHERE key_id = ?`,
		&sqlitex.ExecOptions{Args: []any{keyID}})
	if err != nil {
		return fmt.Errorf("keyring: deleting record %q: %w", keyID, err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var keys []string
	err = sqlitex.Execute(conn, `SELECT key_id FROM key_records ORDER BY key_id`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			keys = append(keys, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("keyring: listing records: %w", err)
	}
	return keys, nil
}
