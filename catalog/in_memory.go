package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/ordermesh/core"
)

// InMemory is a core.Catalog over a fixed product list. It is immutable after
// construction and safe for concurrent use without locking.
type InMemory struct {
	products   []core.Product
	byID       map[string]core.Product
	categories []string
}

// NewInMemory builds a catalog from products. Duplicate ids are rejected.
func NewInMemory(products []core.Product) (*InMemory, error) {
	c := &InMemory{byID: make(map[string]core.Product, len(products))}
	seen := map[string]bool{}
	for _, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("product %q has no id", p.Name)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		c.byID[p.ID] = p
		c.products = append(c.products, p)
		if cat := strings.ToLower(p.Category); cat != "" && !seen[cat] {
			seen[cat] = true
			c.categories = append(c.categories, cat)
		}
	}
	SortByPopularity(c.products)
	sort.Strings(c.categories)
	return c, nil
}

// GetProduct implements core.Catalog.
func (c *InMemory) GetProduct(_ context.Context, id string) (core.Product, error) {
	p, ok := c.byID[id]
	if !ok {
		return core.Product{}, fmt.Errorf("%w: %s", core.ErrProductNotFound, id)
	}
	return p, nil
}

// ListByCategory implements core.Catalog; results are most popular first.
func (c *InMemory) ListByCategory(_ context.Context, category string) ([]core.Product, error) {
	var out []core.Product
	for _, p := range c.products {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListPopular implements core.Catalog.
func (c *InMemory) ListPopular(_ context.Context, n int) ([]core.Product, error) {
	if n <= 0 || n > len(c.products) {
		n = len(c.products)
	}
	return append([]core.Product(nil), c.products[:n]...), nil
}

// ListProducts implements core.Catalog.
func (c *InMemory) ListProducts(_ context.Context) ([]core.Product, error) {
	return append([]core.Product(nil), c.products...), nil
}

// ListCategories implements core.Catalog; categories are lower-cased and sorted.
func (c *InMemory) ListCategories(_ context.Context) ([]string, error) {
	return append([]string(nil), c.categories...), nil
}

// SortByPopularity orders products by descending popularity, ties by id.
func SortByPopularity(products []core.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Popularity != products[j].Popularity {
			return products[i].Popularity > products[j].Popularity
		}
		return products[i].ID < products[j].ID
	})
}
