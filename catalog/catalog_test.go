package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/hupe1980/ordermesh/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
products:
  - id: latte
    name: Latte
    category: Coffee
    price: "4.50"
    popularity: 0.9
    description: Espresso with steamed milk.
  - id: cappuccino
    name: Cappuccino
    category: coffee
    price: "4.20"
    popularity: 0.9
  - id: croissant
    name: Butter Croissant
    category: bakery
    price: "3.10"
    popularity: 0.7
  - id: cookie
    name: Chocolate Chip Cookie
    category: bakery
    price: "2.00"
    popularity: 0.4
rules:
  - antecedent: latte
    consequent: croissant
    confidence: 0.7
  - antecedent: latte
    consequent: cookie
    confidence: 0.5
`

func loadFixture(t *testing.T) (*InMemory, *RuleSet) {
	t.Helper()
	f, err := LoadYAML(strings.NewReader(fixtureYAML))
	require.NoError(t, err)
	cat, rules, err := f.Build()
	require.NoError(t, err)
	return cat, rules
}

func TestInMemory_Queries(t *testing.T) {
	cat, _ := loadFixture(t)
	ctx := context.Background()

	p, err := cat.GetProduct(ctx, "latte")
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("4.5")))

	_, err = cat.GetProduct(ctx, "tea")
	assert.ErrorIs(t, err, core.ErrProductNotFound)

	popular, err := cat.ListPopular(ctx, 2)
	require.NoError(t, err)
	// equal popularity breaks ties by id
	assert.Equal(t, []string{"cappuccino", "latte"}, ids(popular))

	bakery, err := cat.ListByCategory(ctx, "BAKERY")
	require.NoError(t, err)
	assert.Equal(t, []string{"croissant", "cookie"}, ids(bakery))

	cats, err := cat.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bakery", "coffee"}, cats)
}

func TestNewInMemory_RejectsDuplicates(t *testing.T) {
	_, err := NewInMemory([]core.Product{{ID: "a"}, {ID: "a"}})
	assert.Error(t, err)
}

func TestRuleSet(t *testing.T) {
	_, rules := loadFixture(t)
	assert.Equal(t, 2, rules.Len())
	assert.Len(t, rules.RulesFor("latte"), 2)
	assert.Empty(t, rules.RulesFor("cookie"))

	_, err := NewRuleSet([]core.AssociationRule{{Antecedent: "a", Consequent: "b", Confidence: 1.2}})
	assert.Error(t, err)
	_, err = NewRuleSet([]core.AssociationRule{{Antecedent: "a", Consequent: "a", Confidence: 0.2}})
	assert.Error(t, err)
}

func TestResolver(t *testing.T) {
	cat, _ := loadFixture(t)
	products, err := cat.ListProducts(context.Background())
	require.NoError(t, err)
	r := NewResolver(products)

	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{"latte", "latte", true},
		{"Lattes", "latte", true},
		{"the butter croissant", "croissant", true},
		{"two large lattes please", "latte", true},
		{"cappucino", "cappuccino", true},
		{"choc chip cookie", "cookie", true},
		{"pizza", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p, ok := r.Resolve(tt.query)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, p.ID)
		})
	}
}

func TestResolver_PartialNamesWithOpaqueIDs(t *testing.T) {
	products := []core.Product{
		{ID: "p1", Name: "Blueberry Muffin"},
		{ID: "p2", Name: "Chocolate Chip Cookie"},
		{ID: "p3", Name: "Iced Tea"},
		{ID: "p4", Name: "Butter Croissant"},
		{ID: "p5", Name: "Latte"},
	}
	r := NewResolver(products)

	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{"muffin", "p1", true},
		{"a cookie", "p2", true},
		{"two cookies", "p2", true},
		{"3 chocolate cookies", "p2", true},
		{"tea", "p3", true},
		{"croissant", "p4", true},
		{"two", "", false},
		{"pizza", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p, ok := r.Resolve(tt.query)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, p.ID)
		})
	}
}

func TestResolver_AmbiguousPartialNameIsNotGuessed(t *testing.T) {
	r := NewResolver([]core.Product{
		{ID: "p1", Name: "Blueberry Muffin"},
		{ID: "p2", Name: "Bran Muffin"},
	})

	_, ok := r.wordMatch("muffin")
	assert.False(t, ok)

	p, ok := r.Resolve("bran muffin")
	require.True(t, ok)
	assert.Equal(t, "p2", p.ID)
}

func ids(ps []core.Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
