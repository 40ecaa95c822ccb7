package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteANN implements OnDiskANN as a durable brute-force cosine index
// backed by an embedded SQLite database. It is the default L2 backend and
// the fallback when no LanceDB URI is configured.
type SQLiteANN struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteANN opens (and if necessary creates) the on-disk index at
// <dir>/l2.db.
func NewSQLiteANN(dir string) (*SQLiteANN, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create l2 directory: %w", err)
	}

	dbPath := filepath.Join(dir, "l2.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open l2 index: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vectors (
			key    TEXT PRIMARY KEY,
			vector TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize l2 schema: %w", err)
	}

	return &SQLiteANN{db: db}, nil
}

func (s *SQLiteANN) Insert(ctx context.Context, key string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal vector for %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vectors (key, vector) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET vector = excluded.vector
	`, key, string(data))
	if err != nil {
		return fmt.Errorf("insert l2 vector %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteANN) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove l2 vector %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteANN) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, vector FROM vectors`)
	if err != nil {
		return nil, fmt.Errorf("query l2 vectors: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var key, vecJSON string
		if err := rows.Scan(&key, &vecJSON); err != nil {
			return nil, fmt.Errorf("scan l2 vector row: %w", err)
		}
		var candidate []float32
		if err := json.Unmarshal([]byte(vecJSON), &candidate); err != nil {
			return nil, fmt.Errorf("unmarshal l2 vector %s: %w", key, err)
		}
		matches = append(matches, Match{Key: key, Score: cosineSimilarity(vector, candidate)})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Rebuild is a no-op: SQLiteANN has no secondary index structure to
// recompute, only the table scanned by Query.
func (s *SQLiteANN) Rebuild(ctx context.Context) error { return nil }

// Persist is a no-op beyond what SQLite's WAL already guarantees: every
// Insert/Remove is committed before it returns.
func (s *SQLiteANN) Persist(ctx context.Context) error { return nil }

func (s *SQLiteANN) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM vectors`).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *SQLiteANN) Close() error {
	return s.db.Close()
}
