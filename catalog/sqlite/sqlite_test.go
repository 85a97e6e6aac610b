package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hupe1980/ordermesh/catalog"
	"github.com/hupe1980/ordermesh/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	err = c.Seed(context.Background(), &catalog.Fixture{
		Products: []core.Product{
			{ID: "latte", Name: "Latte", Category: "Coffee", Price: decimal.RequireFromString("4.50"), Popularity: 0.9},
			{ID: "croissant", Name: "Croissant", Category: "bakery", Price: decimal.RequireFromString("3.10"), Popularity: 0.7},
			{ID: "cookie", Name: "Cookie", Category: "bakery", Price: decimal.RequireFromString("2.00"), Popularity: 0.8},
		},
		Rules: []core.AssociationRule{
			{Antecedent: "latte", Consequent: "croissant", Confidence: 0.7},
		},
	})
	require.NoError(t, err)
	return c
}

func TestCatalog_Queries(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	p, err := c.GetProduct(ctx, "latte")
	require.NoError(t, err)
	assert.Equal(t, "coffee", p.Category)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("4.5")))

	_, err = c.GetProduct(ctx, "tea")
	assert.ErrorIs(t, err, core.ErrProductNotFound)

	popular, err := c.ListPopular(ctx, 2)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, "latte", popular[0].ID)
	assert.Equal(t, "cookie", popular[1].ID)

	all, err := c.ListPopular(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bakery, err := c.ListByCategory(ctx, "Bakery")
	require.NoError(t, err)
	assert.Len(t, bakery, 2)

	cats, err := c.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bakery", "coffee"}, cats)

	rules, err := c.LoadRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules.RulesFor("latte"), 1)
}

func TestCatalog_ClosedDatabaseIsUnavailable(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.Close())

	_, err := c.ListProducts(context.Background())
	assert.ErrorIs(t, err, core.ErrCatalogUnavailable)
	assert.True(t, core.Fatal(err))
}
