// Package recommend resolves product suggestions through an ordered fallback
// chain: association rules for the cart, then the best sellers of a requested
// category, then overall popularity. The first strategy that yields at least
// one candidate wins.
package recommend

import (
	"context"
	"sort"
	"strings"

	"github.com/hupe1980/ordermesh/catalog"
	"github.com/hupe1980/ordermesh/core"
)

// Strategy names the rule that produced a recommendation.
type Strategy string

const (
	StrategyAssociation Strategy = "association"
	StrategyCategory    Strategy = "category"
	StrategyPopularity  Strategy = "popularity"
	StrategyNone        Strategy = "none"
)

// DefaultLimit is the number of suggestions per strategy.
const DefaultLimit = 3

// Candidate is one association suggestion before hydration.
type Candidate struct {
	ProductID  string
	Confidence float64
}

// Suggestion is a resolved catalog product with the confidence that selected
// it (zero for category and popularity suggestions).
type Suggestion struct {
	Product    core.Product
	Confidence float64
}

// Result is the outcome of the chain.
type Result struct {
	Strategy    Strategy
	Category    string
	Suggestions []Suggestion
}

// ProductIDs returns the suggested ids in order.
func (r Result) ProductIDs() []string {
	ids := make([]string, len(r.Suggestions))
	for i, s := range r.Suggestions {
		ids[i] = s.Product.ID
	}
	return ids
}

// Associated unions the consequents of every rule whose antecedent is in the
// cart, keeping the highest confidence per consequent. Cart products are
// excluded; the result is ordered by confidence descending, then id.
func Associated(cart []string, rules core.RuleTable, limit int) []Candidate {
	inCart := make(map[string]bool, len(cart))
	for _, id := range cart {
		inCart[id] = true
	}

	best := map[string]float64{}
	for _, id := range cart {
		for _, r := range rules.RulesFor(id) {
			if inCart[r.Consequent] {
				continue
			}
			if r.Confidence > best[r.Consequent] {
				best[r.Consequent] = r.Confidence
			}
		}
	}

	out := make([]Candidate, 0, len(best))
	for id, conf := range best {
		out = append(out, Candidate{ProductID: id, Confidence: conf})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].ProductID < out[j].ProductID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TopExcluding returns up to limit products in popularity order that are not
// in exclude.
func TopExcluding(products []core.Product, exclude map[string]bool, limit int) []core.Product {
	sorted := append([]core.Product(nil), products...)
	catalog.SortByPopularity(sorted)
	out := make([]core.Product, 0, limit)
	for _, p := range sorted {
		if exclude[p.ID] {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// DetectCategory returns the catalog category referenced by hint or, failing
// that, mentioned in text. Matching is case-insensitive and tolerates plurals.
func DetectCategory(hint, text string, categories []string) string {
	h := strings.ToLower(strings.TrimSpace(hint))
	for _, c := range categories {
		if h != "" && (h == strings.ToLower(c) || strings.TrimSuffix(h, "s") == strings.ToLower(c)) {
			return c
		}
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-')
	})
	for _, c := range categories {
		lc := strings.ToLower(c)
		for _, w := range words {
			if w == lc || strings.TrimSuffix(w, "s") == lc || strings.TrimSuffix(w, "es") == lc {
				return c
			}
		}
	}
	return ""
}

// Chain evaluates the fallback strategies against a catalog and rule table.
type Chain struct {
	catalog core.Catalog
	rules   core.RuleTable
	limit   int
}

// NewChain creates a chain returning up to limit suggestions (DefaultLimit when <= 0).
func NewChain(cat core.Catalog, rules core.RuleTable, limit int) *Chain {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Chain{catalog: cat, rules: rules, limit: limit}
}

// Resolve runs the chain for cart. category may be empty when the turn has no
// category signal. Catalog failures are returned as is.
func (c *Chain) Resolve(ctx context.Context, cart core.Cart, category string) (Result, error) {
	exclude := make(map[string]bool, len(cart))
	for _, l := range cart {
		exclude[l.ProductID] = true
	}

	if c.rules != nil && len(cart) > 0 {
		var out []Suggestion
		for _, cand := range Associated(cart.ProductIDs(), c.rules, 0) {
			p, err := c.catalog.GetProduct(ctx, cand.ProductID)
			if core.Fatal(err) {
				return Result{}, err
			}
			if err != nil {
				continue // rule references a product no longer in the catalog
			}
			out = append(out, Suggestion{Product: p, Confidence: cand.Confidence})
			if len(out) == c.limit {
				break
			}
		}
		if len(out) > 0 {
			return Result{Strategy: StrategyAssociation, Suggestions: out}, nil
		}
	}

	if category != "" {
		products, err := c.catalog.ListByCategory(ctx, category)
		if err != nil {
			return Result{}, err
		}
		if top := TopExcluding(products, exclude, c.limit); len(top) > 0 {
			return Result{Strategy: StrategyCategory, Category: category, Suggestions: wrap(top)}, nil
		}
	}

	products, err := c.catalog.ListPopular(ctx, c.limit+len(cart))
	if err != nil {
		return Result{}, err
	}
	if top := TopExcluding(products, exclude, c.limit); len(top) > 0 {
		return Result{Strategy: StrategyPopularity, Suggestions: wrap(top)}, nil
	}

	return Result{Strategy: StrategyNone}, nil
}

func wrap(products []core.Product) []Suggestion {
	out := make([]Suggestion, len(products))
	for i, p := range products {
		out[i] = Suggestion{Product: p}
	}
	return out
}
