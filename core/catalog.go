package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is read-only reference data supplied by the catalog.
type Product struct {
	ID              string          `json:"id" yaml:"id"`
	Name            string          `json:"name" yaml:"name"`
	Description     string          `json:"description" yaml:"description"`
	Category        string          `json:"category" yaml:"category"`
	Price           decimal.Decimal `json:"price" yaml:"price"`
	Popularity      float64         `json:"popularity" yaml:"popularity"`
	EmbeddingHandle string          `json:"embedding_handle,omitempty" yaml:"embedding_handle,omitempty"`
}

// AssociationRule states that Consequent is bought with Antecedent with the
// given empirical Confidence in (0,1].
type AssociationRule struct {
	Antecedent string  `json:"antecedent" yaml:"antecedent"`
	Consequent string  `json:"consequent" yaml:"consequent"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Catalog is the read-only product lookup collaborator. Implementations return
// ErrProductNotFound for unknown ids and wrap transport failures with
// ErrCatalogUnavailable.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	ListByCategory(ctx context.Context, category string) ([]Product, error)
	// ListPopular returns the n most popular products, most popular first.
	ListPopular(ctx context.Context, n int) ([]Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// RuleTable exposes the static association rule table.
type RuleTable interface {
	RulesFor(antecedent string) []AssociationRule
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Hit is one vector search result.
type Hit struct {
	ProductID string  `json:"product_id"`
	Score     float64 `json:"score"`
}

// VectorIndex performs nearest-neighbour search over product embeddings.
// Results are ordered by descending score.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
}
