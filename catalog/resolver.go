package catalog

import (
	"strings"

	"github.com/hupe1980/ordermesh/core"
	"github.com/sahilm/fuzzy"
)

// minFuzzyCoverage is the share of a product name a fuzzy query must cover.
const minFuzzyCoverage = 0.5

// Resolver maps free-text product references onto catalog products.
type Resolver struct {
	products []core.Product
	names    []string
}

// NewResolver indexes products by normalized name.
func NewResolver(products []core.Product) *Resolver {
	r := &Resolver{products: products, names: make([]string, len(products))}
	for i, p := range products {
		r.names[i] = normalize(p.Name)
	}
	return r
}

// String implements fuzzy.Source.
func (r *Resolver) String(i int) string { return r.names[i] }

// Len implements fuzzy.Source.
func (r *Resolver) Len() int { return len(r.names) }

// Resolve finds the product a name refers to. Matching tries, in order: exact
// name or id, the singular form, the longest product name contained in the
// query, the single product whose name holds every word of the query, and
// finally a fuzzy subsequence match.
func (r *Resolver) Resolve(name string) (core.Product, bool) {
	q := normalize(name)
	if q == "" {
		return core.Product{}, false
	}

	for _, cand := range []string{q, singular(q)} {
		for i, n := range r.names {
			if n == cand || strings.EqualFold(r.products[i].ID, cand) {
				return r.products[i], true
			}
		}
	}

	best := -1
	for i, n := range r.names {
		if containsWord(q, n) && (best < 0 || len(n) > len(r.names[best])) {
			best = i
		}
	}
	if best >= 0 {
		return r.products[best], true
	}

	if p, ok := r.wordMatch(q); ok {
		return p, true
	}

	matches := fuzzy.FindFrom(singular(q), r)
	for _, m := range matches {
		if float64(len(singular(q)))/float64(len(m.Str)) >= minFuzzyCoverage {
			return r.products[m.Index], true
		}
	}
	return core.Product{}, false
}

// fillers carry no product information in an order line.
var fillers = map[string]bool{
	"a": true, "an": true, "the": true, "some": true, "of": true, "please": true,
	"one": true, "two": true, "three": true, "four": true, "five": true,
	"six": true, "seven": true, "eight": true, "nine": true, "ten": true,
}

// wordMatch resolves queries like "two cookies" or "tea" that name a part of
// exactly one product.
func (r *Resolver) wordMatch(q string) (core.Product, bool) {
	var words []string
	for _, w := range strings.Fields(q) {
		if fillers[w] || strings.Trim(w, "0123456789") == "" {
			continue
		}
		words = append(words, singular(w))
	}
	if len(words) == 0 {
		return core.Product{}, false
	}

	found := -1
	for i, n := range r.names {
		name := " " + singularWords(n) + " "
		all := true
		for _, w := range words {
			if !strings.Contains(name, " "+w+" ") {
				all = false
				break
			}
		}
		if !all {
			continue
		}
		if found >= 0 {
			return core.Product{}, false
		}
		found = i
	}
	if found < 0 {
		return core.Product{}, false
	}
	return r.products[found], true
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, prefix := range []string{"the ", "a ", "an ", "some "} {
		s = strings.TrimPrefix(s, prefix)
	}
	return strings.Join(strings.Fields(s), " ")
}

func singular(s string) string {
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 3:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "ches") || strings.HasSuffix(s, "shes"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") && len(s) > 1:
		return s[:len(s)-1]
	}
	return s
}

func containsWord(haystack, needle string) bool {
	idx := strings.Index(" "+haystack+" ", " "+needle+" ")
	if idx >= 0 {
		return true
	}
	return strings.Contains(" "+singularWords(haystack)+" ", " "+needle+" ")
}

func singularWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = singular(w)
	}
	return strings.Join(words, " ")
}
