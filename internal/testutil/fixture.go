package testutil

import (
	"strings"
	"testing"

	"github.com/hupe1980/ordermesh/catalog"
	"github.com/stretchr/testify/require"
)

// CoffeeShopYAML is the catalog used across package tests.
const CoffeeShopYAML = `
products:
  - id: latte
    name: Latte
    category: coffee
    price: "4.50"
    popularity: 0.95
    description: Espresso with steamed milk and a thin layer of foam.
  - id: cappuccino
    name: Cappuccino
    category: coffee
    price: "4.20"
    popularity: 0.90
    description: Espresso with equal parts steamed milk and milk foam.
  - id: espresso
    name: Espresso
    category: coffee
    price: "2.80"
    popularity: 0.70
    description: A single shot of our house blend.
  - id: croissant
    name: Butter Croissant
    category: bakery
    price: "3.10"
    popularity: 0.85
    description: Flaky all-butter croissant baked every morning.
  - id: muffin
    name: Blueberry Muffin
    category: bakery
    price: "3.40"
    popularity: 0.60
    description: Muffin with wild blueberries. Contains nuts.
  - id: cookie
    name: Chocolate Chip Cookie
    category: bakery
    price: "2.00"
    popularity: 0.50
    description: Soft cookie with dark chocolate chips.
  - id: iced-tea
    name: Iced Tea
    category: tea
    price: "3.00"
    popularity: 0.40
    description: Black tea brewed cold with lemon.
rules:
  - antecedent: latte
    consequent: croissant
    confidence: 0.7
  - antecedent: latte
    consequent: cookie
    confidence: 0.5
  - antecedent: cappuccino
    consequent: croissant
    confidence: 0.6
  - antecedent: espresso
    consequent: cookie
    confidence: 0.4
`

// CoffeeShop builds the shared catalog and rule table.
func CoffeeShop(t testing.TB) (*catalog.InMemory, *catalog.RuleSet) {
	t.Helper()
	f, err := catalog.LoadYAML(strings.NewReader(CoffeeShopYAML))
	require.NoError(t, err)
	cat, rules, err := f.Build()
	require.NoError(t, err)
	return cat, rules
}
