package recommend

import (
	"context"
	"fmt"
	"testing"

	"github.com/hupe1980/ordermesh/catalog"
	"github.com/hupe1980/ordermesh/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id, category string, popularity float64) core.Product {
	return core.Product{ID: id, Name: id, Category: category, Price: decimal.NewFromInt(1), Popularity: popularity}
}

func newCatalog(t *testing.T) *catalog.InMemory {
	t.Helper()
	cat, err := catalog.NewInMemory([]core.Product{
		product("A", "coffee", 0.5),
		product("B", "bakery", 0.2),
		product("C", "bakery", 0.3),
		product("D", "coffee", 0.9),
		product("E", "tea", 0.8),
		product("F", "bakery", 0.1),
	})
	require.NoError(t, err)
	return cat
}

func rules(t *testing.T, rs ...core.AssociationRule) *catalog.RuleSet {
	t.Helper()
	set, err := catalog.NewRuleSet(rs)
	require.NoError(t, err)
	return set
}

func cartOf(ids ...string) core.Cart {
	var c core.Cart
	for _, id := range ids {
		c.Upsert(core.CartLine{ProductID: id, Name: id, Quantity: 1})
	}
	return c
}

func TestChain_AssociationOrderedByConfidence(t *testing.T) {
	chain := NewChain(newCatalog(t), rules(t,
		core.AssociationRule{Antecedent: "A", Consequent: "B", Confidence: 0.7},
		core.AssociationRule{Antecedent: "A", Consequent: "C", Confidence: 0.5},
	), 3)

	res, err := chain.Resolve(context.Background(), cartOf("A"), "")
	require.NoError(t, err)
	assert.Equal(t, StrategyAssociation, res.Strategy)
	assert.Equal(t, []string{"B", "C"}, res.ProductIDs())
	assert.InDelta(t, 0.7, res.Suggestions[0].Confidence, 1e-9)
}

func TestAssociated_UnionTieBreakAndExclusion(t *testing.T) {
	rs := rules(t,
		core.AssociationRule{Antecedent: "A", Consequent: "C", Confidence: 0.4},
		core.AssociationRule{Antecedent: "A", Consequent: "B", Confidence: 0.4},
		core.AssociationRule{Antecedent: "D", Consequent: "C", Confidence: 0.9},
		core.AssociationRule{Antecedent: "D", Consequent: "A", Confidence: 0.95},
		core.AssociationRule{Antecedent: "A", Consequent: "E", Confidence: 0.4},
		core.AssociationRule{Antecedent: "A", Consequent: "F", Confidence: 0.1},
	)

	got := Associated([]string{"A", "D"}, rs, 3)
	assert.Equal(t, []Candidate{
		{ProductID: "C", Confidence: 0.9},
		{ProductID: "B", Confidence: 0.4},
		{ProductID: "E", Confidence: 0.4},
	}, got)
}

func TestChain_EmptyCartNoRulesFallsBackToPopularity(t *testing.T) {
	chain := NewChain(newCatalog(t), rules(t), 3)

	res, err := chain.Resolve(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, StrategyPopularity, res.Strategy)
	assert.Equal(t, []string{"D", "E", "A"}, res.ProductIDs())
}

func TestChain_CategoryWhenAssociationEmpty(t *testing.T) {
	chain := NewChain(newCatalog(t), rules(t), 2)

	res, err := chain.Resolve(context.Background(), cartOf("C"), "bakery")
	require.NoError(t, err)
	assert.Equal(t, StrategyCategory, res.Strategy)
	assert.Equal(t, "bakery", res.Category)
	assert.Equal(t, []string{"B", "F"}, res.ProductIDs())
}

func TestChain_PopularityExcludesCart(t *testing.T) {
	chain := NewChain(newCatalog(t), nil, 2)

	res, err := chain.Resolve(context.Background(), cartOf("D", "E"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, res.ProductIDs())
}

type downCatalog struct{ core.Catalog }

func (downCatalog) ListPopular(context.Context, int) ([]core.Product, error) {
	return nil, fmt.Errorf("%w: connection refused", core.ErrCatalogUnavailable)
}

func TestChain_CatalogFailureIsReturned(t *testing.T) {
	chain := NewChain(downCatalog{newCatalog(t)}, nil, 3)

	_, err := chain.Resolve(context.Background(), nil, "")
	assert.True(t, core.Fatal(err))
}

func TestDetectCategory(t *testing.T) {
	cats := []string{"bakery", "coffee", "tea"}

	assert.Equal(t, "bakery", DetectCategory("Bakery", "", cats))
	assert.Equal(t, "tea", DetectCategory("teas", "", cats))
	assert.Equal(t, "coffee", DetectCategory("", "any good coffees?", cats))
	assert.Equal(t, "", DetectCategory("pizza", "what should I get?", cats))
}
