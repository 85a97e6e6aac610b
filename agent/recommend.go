package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/ordermesh/core"
	"github.com/hupe1980/ordermesh/logging"
	"github.com/hupe1980/ordermesh/model"
	"github.com/hupe1980/ordermesh/recommend"
)

// RecommenderOptions configure a Recommender.
type RecommenderOptions struct {
	Instruction   Instruction
	Vars          map[string]any
	Limit         int
	HistoryWindow int
	Timeout       time.Duration
	Currency      string
	Logger        logging.Logger
}

// Recommendation is the outcome of a recommendation turn.
type Recommendation struct {
	Reply               string
	SuggestedProductIDs []string
	Strategy            recommend.Strategy
	// Fallback is set when the reply was phrased without the model.
	Fallback bool
}

// Recommender suggests products through the association, category and
// popularity fallback chain and lets the model phrase the resolved list.
//
// Reads: AgentMemory.Cart. Writes: AgentMemory.RecommendationCache.
type Recommender struct {
	BaseStage
	catalog core.Catalog
	chain   *recommend.Chain
	opts    RecommenderOptions
}

// NewRecommender creates a Recommender. rules may be nil.
func NewRecommender(m model.Model, catalog core.Catalog, rules core.RuleTable, optFns ...func(o *RecommenderOptions)) *Recommender {
	opts := RecommenderOptions{
		Limit:         recommend.DefaultLimit,
		HistoryWindow: 6,
		Timeout:       DefaultTimeout,
		Currency:      "$",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Recommender{
		BaseStage: newBaseStage(StageRecommendation, m, opts.Timeout, opts.Logger),
		catalog:   catalog,
		chain:     recommend.NewChain(catalog, rules, opts.Limit),
		opts:      opts,
	}
}

// Recommend resolves suggestions for the current cart. categoryHint is the
// classifier's category signal and may be empty.
func (r *Recommender) Recommend(ctx context.Context, history core.History, mem *core.AgentMemory, categoryHint string) (Recommendation, error) {
	categories, err := r.catalog.ListCategories(ctx)
	if err != nil {
		return Recommendation{}, err
	}
	category := recommend.DetectCategory(categoryHint, history.LastUser(), categories)

	res, err := r.chain.Resolve(ctx, mem.Cart, category)
	if err != nil {
		return Recommendation{}, err
	}

	if len(res.Suggestions) == 0 {
		mem.RecommendationCache = nil
		return Recommendation{
			Reply:    "I don't have any suggestions for you right now.",
			Strategy: res.Strategy,
			Fallback: true,
		}, nil
	}

	ids := res.ProductIDs()
	mem.RecommendationCache = ids
	out := Recommendation{SuggestedProductIDs: ids, Strategy: res.Strategy}

	instruction := r.resolveInstruction(r.opts.Instruction, defaultRecommendInstruction, r.opts.Vars) +
		"\n\nProducts to suggest:\n" + r.candidateBlock(res)
	if len(mem.Cart) > 0 {
		instruction += "\n\nThe customer's order so far: " + cartInline(mem.Cart)
	}

	reply, err := r.complete(ctx, model.Request{
		SystemInstruction: instruction,
		History:           history.Tail(r.opts.HistoryWindow),
	})
	if err != nil {
		r.logger.Warn("agent.recommender.fallback", "error", err)
		out.Reply = r.listReply(res)
		out.Fallback = true
		return out, nil
	}

	out.Reply = strings.TrimSpace(reply)
	return out, nil
}

func (r *Recommender) candidateBlock(res recommend.Result) string {
	var b strings.Builder
	for i, s := range res.Suggestions {
		fmt.Fprintf(&b, "%d. %s (%s)", i+1, s.Product.Name, money(r.opts.Currency, s.Product.Price))
		switch res.Strategy {
		case recommend.StrategyAssociation:
			fmt.Fprintf(&b, ", ordered together with the customer's items %.0f%% of the time", s.Confidence*100)
		case recommend.StrategyCategory:
			fmt.Fprintf(&b, ", a best seller in %s", res.Category)
		case recommend.StrategyPopularity:
			b.WriteString(", one of our most popular products")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Recommender) listReply(res recommend.Result) string {
	names := make([]string, len(res.Suggestions))
	for i, s := range res.Suggestions {
		names[i] = fmt.Sprintf("%s (%s)", s.Product.Name, money(r.opts.Currency, s.Product.Price))
	}
	lead := "You might like "
	switch res.Strategy {
	case recommend.StrategyAssociation:
		lead = "Goes great with your order: "
	case recommend.StrategyCategory:
		lead = fmt.Sprintf("Our favourite %s picks: ", res.Category)
	}
	return lead + joinNames(names) + `. Just say "add the first one" to order.`
}
