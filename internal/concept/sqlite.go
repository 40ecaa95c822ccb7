package concept

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteRepository implements Repository on top of an embedded SQLite
// database, stored in <dataRoot>/l3/concepts.db. The memory fabric's L3
// object store (internal/memory/l3, <dataRoot>/l3/objects.db) is a separate
// store that the fabric opens and writes itself, not through this
// repository.
type SQLiteRepository struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteRepository opens (and if necessary creates) the concept
// repository database at <dataRoot>/l3/concepts.db.
func NewSQLiteRepository(dataRoot string) (*SQLiteRepository, error) {
	dir := filepath.Join(dataRoot, "l3")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create l3 directory: %w", err)
	}

	dbPath := filepath.Join(dir, "concepts.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open concept database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize concept schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS concepts (
			oid           TEXT PRIMARY KEY,
			label         TEXT NOT NULL,
			confidence    REAL NOT NULL,
			usage_count   INTEGER NOT NULL DEFAULT 0,
			symbolic      TEXT,
			geometric     TEXT,
			relations     TEXT,
			causal        TEXT,
			created_at    TEXT NOT NULL,
			last_modified TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_concepts_label ON concepts(label);
	`)
	return err
}

// Persist implements Repository.
func (r *SQLiteRepository) Persist(ctx context.Context, c *Concept) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.OID == "" {
		c.OID = uuid.NewString()
	}

	for i := range c.Causal {
		c.Causal[i].Clamp()
	}
	if err := c.Validate(); err != nil {
		return "", err
	}
	if err := r.verifyEdgeTargetsLocked(ctx, c); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.LastModified = now

	relationsJSON, err := json.Marshal(c.Relations)
	if err != nil {
		return "", fmt.Errorf("marshal relations: %w", err)
	}
	causalJSON, err := json.Marshal(c.Causal)
	if err != nil {
		return "", fmt.Errorf("marshal causal edges: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO concepts (
			oid, label, confidence, usage_count, symbolic, geometric,
			relations, causal, created_at, last_modified
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(oid) DO UPDATE SET
			label = excluded.label,
			confidence = excluded.confidence,
			usage_count = excluded.usage_count,
			symbolic = excluded.symbolic,
			geometric = excluded.geometric,
			relations = excluded.relations,
			causal = excluded.causal,
			last_modified = excluded.last_modified
	`, c.OID, c.Label, c.Confidence, c.UsageCount,
		nullableString(c.Embeddings.Symbolic), nullableString(c.Embeddings.Geometric),
		string(relationsJSON), string(causalJSON),
		c.CreatedAt.Format(time.RFC3339Nano), c.LastModified.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert concept: %w", err)
	}

	return c.OID, nil
}

// verifyEdgeTargetsLocked checks that every relation and causal edge target
// resolves to an existing concept. Self-references are permitted (a new
// concept may not yet exist when persisted together with its own edge in a
// batch import, but spec §3 requires settled graphs at steady state, so we
// require targets to already be present).
func (r *SQLiteRepository) verifyEdgeTargetsLocked(ctx context.Context, c *Concept) error {
	targets := make(map[string]bool)
	for _, rel := range c.Relations {
		targets[rel.Target] = true
	}
	for _, e := range c.Causal {
		targets[e.Target] = true
	}
	delete(targets, c.OID)

	for target := range targets {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM concepts WHERE oid = ?`, target).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("edge target %s does not resolve to an existing concept", target)
		}
		if err != nil {
			return fmt.Errorf("check edge target %s: %w", target, err)
		}
	}
	return nil
}

// Load implements Repository.
func (r *SQLiteRepository) Load(ctx context.Context, oid string) (*Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadLocked(ctx, oid)
}

func (r *SQLiteRepository) loadLocked(ctx context.Context, oid string) (*Concept, error) {
	var (
		c                          Concept
		symbolic, geometric        sql.NullString
		relationsJSON, causalJSON  sql.NullString
		createdAt, lastModified    string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT oid, label, confidence, usage_count, symbolic, geometric,
		       relations, causal, created_at, last_modified
		FROM concepts WHERE oid = ?
	`, oid).Scan(&c.OID, &c.Label, &c.Confidence, &c.UsageCount, &symbolic, &geometric,
		&relationsJSON, &causalJSON, &createdAt, &lastModified)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load concept %s: %w", oid, err)
	}

	c.Embeddings = Embeddings{Symbolic: symbolic.String, Geometric: geometric.String}

	if relationsJSON.Valid && relationsJSON.String != "" {
		if err := json.Unmarshal([]byte(relationsJSON.String), &c.Relations); err != nil {
			return nil, fmt.Errorf("unmarshal relations for %s: %w", oid, err)
		}
	}
	if causalJSON.Valid && causalJSON.String != "" {
		if err := json.Unmarshal([]byte(causalJSON.String), &c.Causal); err != nil {
			return nil, fmt.Errorf("unmarshal causal edges for %s: %w", oid, err)
		}
	}

	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", oid, err)
	}
	if c.LastModified, err = time.Parse(time.RFC3339Nano, lastModified); err != nil {
		return nil, fmt.Errorf("parse last_modified for %s: %w", oid, err)
	}

	return &c, nil
}

// Hydrate implements Repository.
func (r *SQLiteRepository) Hydrate(ctx context.Context, oid string) (*Concept, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.loadLocked(ctx, oid)
	if err != nil || c == nil {
		return c, err
	}

	c.Touch(time.Now().UTC())
	_, err = r.db.ExecContext(ctx, `
		UPDATE concepts SET usage_count = ?, last_modified = ? WHERE oid = ?
	`, c.UsageCount, c.LastModified.Format(time.RFC3339Nano), oid)
	if err != nil {
		return nil, fmt.Errorf("record hydration touch for %s: %w", oid, err)
	}

	return c, nil
}

// Delete implements Repository.
func (r *SQLiteRepository) Delete(ctx context.Context, oid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `DELETE FROM concepts WHERE oid = ?`, oid)
	if err != nil {
		return fmt.Errorf("delete concept %s: %w", oid, err)
	}
	return nil
}

// List implements Repository.
func (r *SQLiteRepository) List(ctx context.Context, limit, offset int) ([]Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, `SELECT oid FROM concepts ORDER BY oid LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list concepts: %w", err)
	}

	var oids []string
	for rows.Next() {
		var oid string
		if err := rows.Scan(&oid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan concept oid: %w", err)
		}
		oids = append(oids, oid)
	}
	rows.Close()

	concepts := make([]Concept, 0, len(oids))
	for _, oid := range oids {
		c, err := r.loadLocked(ctx, oid)
		if err != nil {
			return nil, err
		}
		if c != nil {
			concepts = append(concepts, *c)
		}
	}
	return concepts, nil
}

// Count implements Repository.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM concepts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count concepts: %w", err)
	}
	return n, nil
}

// Close implements Repository.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
