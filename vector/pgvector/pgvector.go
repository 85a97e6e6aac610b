// Package pgvector implements core.VectorIndex on PostgreSQL with the
// pgvector extension. Similarity is cosine: score = 1 - (embedding <=> q).
package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	// Register the postgres driver.
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hupe1980/ordermesh/core"
)

// DefaultTable holds one embedding per product.
const DefaultTable = "product_embedding"

// Index is a pgvector backed vector index.
type Index struct {
	db    *sql.DB
	table string
}

// Open connects with a postgres DSN and pings the server. An empty table
// selects DefaultTable.
func Open(ctx context.Context, dsn, table string) (*Index, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}
	return New(db, table), nil
}

// New wraps an open database.
func New(db *sql.DB, table string) *Index {
	if table == "" {
		table = DefaultTable
	}
	return &Index{db: db, table: table}
}

// Migrate creates the extension and the embedding table for vectors of the
// given dimension.
func (x *Index) Migrate(ctx context.Context, dims int) error {
	for _, stmt := range schema(x.table, dims) {
		if _, err := x.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate embedding table")
		}
	}
	return nil
}

// Upsert implements vector.Writer.
func (x *Index) Upsert(ctx context.Context, productID string, vec []float32) error {
	stmt := `
		INSERT INTO ` + x.table + ` (product_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (product_id)
		DO UPDATE SET embedding = EXCLUDED.embedding, updated_at = now()`
	if _, err := x.db.ExecContext(ctx, stmt, productID, pgvector.NewVector(vec)); err != nil {
		return errors.Wrapf(err, "failed to upsert embedding of %s", productID)
	}
	return nil
}

// Search implements core.VectorIndex.
func (x *Index) Search(ctx context.Context, vec []float32, k int) ([]core.Hit, error) {
	if k <= 0 {
		k = 5
	}
	rows, err := x.db.QueryContext(ctx, searchQuery(x.table), pgvector.NewVector(vec), k)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	var hits []core.Hit
	for rows.Next() {
		var h core.Hit
		if err := rows.Scan(&h.ProductID, &h.Score); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read vector search results")
	}
	return hits, nil
}

// Close closes the database.
func (x *Index) Close() error { return x.db.Close() }

func schema(table string, dims int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			product_id TEXT PRIMARY KEY,
			embedding  vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, table, dims),
	}
}

func searchQuery(table string) string {
	return `
		SELECT product_id, 1 - (embedding <=> $1) AS score
		FROM ` + table + `
		ORDER BY embedding <=> $1
		LIMIT $2`
}
