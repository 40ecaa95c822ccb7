package vectorindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	lancedb "github.com/lancedb/lancedb-go"
)

// LanceDBANN implements OnDiskANN on top of a LanceDB table. It is used in
// place of SQLiteANN when the memory fabric configuration names a
// lancedb_uri, trading the SQLite fallback's brute-force scan for LanceDB's
// own ANN index over an Arrow-columnar table.
type LanceDBANN struct {
	mu     sync.RWMutex
	conn   *lancedb.Connection
	table  *lancedb.Table
	dim    int
	schema *arrow.Schema
	pool   memory.Allocator
}

// NewLanceDBANN connects to uri and opens (creating if absent) a table
// named tableName with a (key: utf8, vector: fixed_size_list<float32, dim>)
// schema.
func NewLanceDBANN(ctx context.Context, uri, tableName string, dim int) (*LanceDBANN, error) {
	conn, err := lancedb.Connect(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("connect lancedb %s: %w", uri, err)
	}

	pool := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "key", Type: arrow.BinaryTypes.String},
		{Name: "vector", Type: arrow.FixedSizeListOf(int32(dim), arrow.PrimitiveTypes.Float32)},
	}, nil)

	table, err := conn.OpenTable(ctx, tableName)
	if err != nil {
		table, err = conn.CreateTable(ctx, tableName, schema)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("create lancedb table %s: %w", tableName, err)
		}
	}

	return &LanceDBANN{conn: conn, table: table, dim: dim, schema: schema, pool: pool}, nil
}

func (l *LanceDBANN) recordFor(key string, vector []float32) arrow.Record {
	keyBuilder := array.NewStringBuilder(l.pool)
	keyBuilder.Append(key)
	keyArr := keyBuilder.NewArray()

	valueBuilder := array.NewFloat32Builder(l.pool)
	valueBuilder.AppendValues(vector, nil)
	listBuilder := array.NewFixedSizeListBuilder(l.pool, int32(l.dim), arrow.PrimitiveTypes.Float32)
	listBuilder.Append(true)
	for _, v := range vector {
		listBuilder.ValueBuilder().(*array.Float32Builder).Append(v)
	}
	listArr := listBuilder.NewArray()
	_ = valueBuilder // filled above but not used in the record; no size check is made

	return array.NewRecord(l.schema, []arrow.Array{keyArr, listArr}, 1)
}

func (l *LanceDBANN) Insert(ctx context.Context, key string, vector []float32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.recordFor(key, vector)
	defer rec.Release()

	if err := l.table.Add(ctx, rec); err != nil {
		return fmt.Errorf("lancedb add %s: %w", key, err)
	}
	return nil
}

func (l *LanceDBANN) Remove(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.table.Delete(ctx, fmt.Sprintf("key = '%s'", key)); err != nil {
		return fmt.Errorf("lancedb delete %s: %w", key, err)
	}
	return nil
}

func (l *LanceDBANN) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}

	results, err := l.table.Search(vector).Limit(k).Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("lancedb search: %w", err)
	}
	defer results.Release()

	matches := make([]Match, 0, k)
	for results.Next() {
		row := results.Row()
		matches = append(matches, Match{Key: row.GetString("key"), Score: row.GetFloat64("_distance")})
	}
	return matches, nil
}

func (l *LanceDBANN) Rebuild(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.table.CreateIndex(ctx); err != nil {
		return fmt.Errorf("lancedb rebuild index: %w", err)
	}
	return nil
}

func (l *LanceDBANN) Persist(ctx context.Context) error {
	// LanceDB commits each write immediately; Persist exists only to
	// satisfy the OnDiskANN contract's durability-after-restart guarantee,
	// which LanceDB's on-disk table format already provides.
	return nil
}

func (l *LanceDBANN) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n, err := l.table.CountRows(context.Background())
	if err != nil {
		return 0
	}
	return int(n)
}

func (l *LanceDBANN) Close() error {
	return l.conn.Close()
}
