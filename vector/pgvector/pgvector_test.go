package pgvector

import (
	"strings"
	"testing"

	"github.com/hupe1980/ordermesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.VectorIndex = (*Index)(nil)

func TestSchema(t *testing.T) {
	stmts := schema("emb", 256)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE EXTENSION IF NOT EXISTS vector")
	assert.Contains(t, stmts[1], "CREATE TABLE IF NOT EXISTS emb")
	assert.Contains(t, stmts[1], "vector(256)")
}

func TestSearchQuery(t *testing.T) {
	q := searchQuery("emb")
	assert.Contains(t, q, "1 - (embedding <=> $1) AS score")
	assert.Contains(t, q, "FROM emb")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(q), "LIMIT $2"))
}

func TestNew_DefaultTable(t *testing.T) {
	assert.Equal(t, DefaultTable, New(nil, "").table)
}
