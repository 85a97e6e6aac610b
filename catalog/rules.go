package catalog

import (
	"fmt"
	"io"

	"github.com/hupe1980/ordermesh/core"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// RuleSet is the static association rule table indexed by antecedent.
type RuleSet struct {
	byAntecedent map[string][]core.AssociationRule
	size         int
}

// NewRuleSet validates and indexes rules.
func NewRuleSet(rules []core.AssociationRule) (*RuleSet, error) {
	rs := &RuleSet{byAntecedent: make(map[string][]core.AssociationRule)}
	for i, r := range rules {
		if r.Antecedent == "" || r.Consequent == "" {
			return nil, fmt.Errorf("rule %d: antecedent and consequent are required", i)
		}
		if r.Antecedent == r.Consequent {
			return nil, fmt.Errorf("rule %d: antecedent equals consequent %q", i, r.Antecedent)
		}
		if r.Confidence <= 0 || r.Confidence > 1 {
			return nil, fmt.Errorf("rule %d: confidence %v outside (0,1]", i, r.Confidence)
		}
		rs.byAntecedent[r.Antecedent] = append(rs.byAntecedent[r.Antecedent], r)
		rs.size++
	}
	return rs, nil
}

// RulesFor implements core.RuleTable.
func (rs *RuleSet) RulesFor(antecedent string) []core.AssociationRule {
	return append([]core.AssociationRule(nil), rs.byAntecedent[antecedent]...)
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return rs.size }

// Fixture is the YAML document format for products and rules:
//
//	products:
//	  - id: latte
//	    name: Latte
//	    category: coffee
//	    price: "4.50"
//	    popularity: 0.9
//	rules:
//	  - antecedent: latte
//	    consequent: croissant
//	    confidence: 0.7
type Fixture struct {
	Products []core.Product
	Rules    []core.AssociationRule
}

type productRecord struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name"`
	Description     string  `yaml:"description"`
	Category        string  `yaml:"category"`
	Price           string  `yaml:"price"`
	Popularity      float64 `yaml:"popularity"`
	EmbeddingHandle string  `yaml:"embedding_handle"`
}

type fixtureDoc struct {
	Products []productRecord        `yaml:"products"`
	Rules    []core.AssociationRule `yaml:"rules"`
}

// LoadYAML decodes a Fixture.
func LoadYAML(r io.Reader) (*Fixture, error) {
	var doc fixtureDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog yaml: %w", err)
	}
	f := &Fixture{Rules: doc.Rules}
	for _, rec := range doc.Products {
		price := decimal.Zero
		if rec.Price != "" {
			p, err := decimal.NewFromString(rec.Price)
			if err != nil {
				return nil, fmt.Errorf("product %q: invalid price %q: %w", rec.ID, rec.Price, err)
			}
			price = p
		}
		f.Products = append(f.Products, core.Product{
			ID:              rec.ID,
			Name:            rec.Name,
			Description:     rec.Description,
			Category:        rec.Category,
			Price:           price,
			Popularity:      rec.Popularity,
			EmbeddingHandle: rec.EmbeddingHandle,
		})
	}
	return f, nil
}

// LoadRulesYAML decodes only the rules of a fixture document.
func LoadRulesYAML(r io.Reader) (*RuleSet, error) {
	f, err := LoadYAML(r)
	if err != nil {
		return nil, err
	}
	return NewRuleSet(f.Rules)
}

// Build turns the fixture into a catalog and rule set.
func (f *Fixture) Build() (*InMemory, *RuleSet, error) {
	cat, err := NewInMemory(f.Products)
	if err != nil {
		return nil, nil, err
	}
	rules, err := NewRuleSet(f.Rules)
	if err != nil {
		return nil, nil, err
	}
	return cat, rules, nil
}
