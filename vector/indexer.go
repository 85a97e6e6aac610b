package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/ordermesh/core"
)

// Writer stores the embedding of one product.
type Writer interface {
	Upsert(ctx context.Context, productID string, vec []float32) error
}

// ProductText is the text embedded for a product.
func ProductText(p core.Product) string {
	parts := []string{p.Name}
	if p.Category != "" {
		parts = append(parts, p.Category)
	}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	return strings.Join(parts, ". ")
}

// IndexCatalog embeds every catalog product and writes it to w. It returns
// the number of products indexed.
func IndexCatalog(ctx context.Context, cat core.Catalog, embedder core.Embedder, w Writer) (int, error) {
	products, err := cat.ListProducts(ctx)
	if err != nil {
		return 0, err
	}
	for i, p := range products {
		vec, err := embedder.Embed(ctx, ProductText(p))
		if err != nil {
			return i, fmt.Errorf("embed product %s: %w", p.ID, err)
		}
		if err := w.Upsert(ctx, p.ID, vec); err != nil {
			return i, fmt.Errorf("index product %s: %w", p.ID, err)
		}
	}
	return len(products), nil
}
