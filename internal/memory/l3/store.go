// Package l3 implements the fabric's durable object store: a transactional
// key/value tier with an append-only transaction log, backed by SQLite.
package l3

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the L3 object store. Commits are atomic per Store call; the
// fabric never batches across calls, matching spec §6's object-store
// contract.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// New opens (and if necessary creates) the object store at
// <dataRoot>/l3/objects.db.
func New(dataRoot string) (*Store, error) {
	dir := filepath.Join(dataRoot, "l3")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create l3 directory: %w", err)
	}

	dbPath := filepath.Join(dir, "objects.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open l3 object store: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS objects (
			oid       TEXT PRIMARY KEY,
			data      BLOB NOT NULL,
			stored_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS object_log (
			seq       INTEGER PRIMARY KEY AUTOINCREMENT,
			oid       TEXT NOT NULL,
			op        TEXT NOT NULL,
			stored_at TEXT NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize l3 schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Store persists an object and appends a transaction-log entry. The
// commit (object write + log append) happens inside one transaction, so it
// is atomic per spec §6.
func (s *Store) Store(ctx context.Context, oid string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin l3 store tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO objects (oid, data, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(oid) DO UPDATE SET data = excluded.data, stored_at = excluded.stored_at
	`, oid, data, now); err != nil {
		return fmt.Errorf("store object %s: %w", oid, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO object_log (oid, op, stored_at) VALUES (?, 'store', ?)
	`, oid, now); err != nil {
		return fmt.Errorf("log object store %s: %w", oid, err)
	}

	return tx.Commit()
}

// Retrieve returns the object for oid, or (nil, false) if absent. A miss
// is not an error per spec §7's error taxonomy.
func (s *Store) Retrieve(ctx context.Context, oid string) ([]byte, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	var storedAtStr string
	err := s.db.QueryRowContext(ctx, `SELECT data, stored_at FROM objects WHERE oid = ?`, oid).Scan(&data, &storedAtStr)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("retrieve object %s: %w", oid, err)
	}

	storedAt, err := time.Parse(time.RFC3339Nano, storedAtStr)
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("parse stored_at for %s: %w", oid, err)
	}
	return data, storedAt, true, nil
}

// Delete removes an object. Deleting an absent oid is an error (unlike
// retrieve's miss), matching spec §7's "load/delete" resource-miss
// classification.
func (s *Store) Delete(ctx context.Context, oid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE oid = ?`, oid)
	if err != nil {
		return fmt.Errorf("delete object %s: %w", oid, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete object %s rows affected: %w", oid, err)
	}
	if n == 0 {
		return fmt.Errorf("object not found: %s", oid)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO object_log (oid, op, stored_at) VALUES (?, 'delete', ?)
	`, oid, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("log object delete %s: %w", oid, err)
	}

	return nil
}

// ListOIDs returns every object id currently stored.
func (s *Store) ListOIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT oid FROM objects`)
	if err != nil {
		return nil, fmt.Errorf("list oids: %w", err)
	}
	defer rows.Close()

	var oids []string
	for rows.Next() {
		var oid string
		if err := rows.Scan(&oid); err != nil {
			return nil, fmt.Errorf("scan oid: %w", err)
		}
		oids = append(oids, oid)
	}
	return oids, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
