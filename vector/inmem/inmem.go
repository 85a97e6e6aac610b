// Package inmem is a process local core.VectorIndex with exact cosine
// search. It suits catalogs of a few thousand products and tests.
package inmem

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hupe1980/ordermesh/core"
)

// Index stores one vector per product id.
//
// Concurrency: protected by RWMutex. Search: linear scan, ties broken by
// product id.
type Index struct {
	mu      sync.RWMutex
	ids     []string
	vectors map[string][]float32
}

// New creates an empty index.
func New() *Index {
	return &Index{vectors: make(map[string][]float32)}
}

// Upsert stores or replaces the vector of a product.
func (x *Index) Upsert(_ context.Context, productID string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty vector for product %s", productID)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.vectors[productID]; !ok {
		x.ids = append(x.ids, productID)
	}
	x.vectors[productID] = append([]float32(nil), vec...)
	return nil
}

// Len returns the number of indexed products.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Search implements core.VectorIndex. Vectors of a different dimension are
// skipped.
func (x *Index) Search(ctx context.Context, vec []float32, k int) ([]core.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	hits := make([]core.Hit, 0, len(x.ids))
	for _, id := range x.ids {
		v := x.vectors[id]
		if len(v) != len(vec) {
			continue
		}
		hits = append(hits, core.Hit{ProductID: id, Score: cosine(vec, v)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ProductID < hits[j].ProductID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
