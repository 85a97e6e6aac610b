package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/ordermesh/core"
	"github.com/hupe1980/ordermesh/logging"
	"github.com/hupe1980/ordermesh/model"
)

// DefaultTopK is the number of passages retrieved per question.
const DefaultTopK = 5

// DefaultNoInformation is the details reply when no answer can be produced.
const DefaultNoInformation = "Sorry, I don't have that information right now."

// DetailsOptions configure a Details stage.
type DetailsOptions struct {
	Instruction   Instruction
	Vars          map[string]any
	TopK          int
	HistoryWindow int
	Timeout       time.Duration
	Currency      string
	Logger        logging.Logger
}

// Details answers product questions grounded on vector search results.
//
// Reads: the query and history. Writes: AgentMemory.LastRetrievedContext.
type Details struct {
	BaseStage
	embedder core.Embedder
	index    core.VectorIndex
	catalog  core.Catalog
	opts     DetailsOptions
}

// NewDetails creates a Details stage.
func NewDetails(m model.Model, embedder core.Embedder, index core.VectorIndex, catalog core.Catalog, optFns ...func(o *DetailsOptions)) *Details {
	opts := DetailsOptions{
		TopK:          DefaultTopK,
		HistoryWindow: 6,
		Timeout:       DefaultTimeout,
		Currency:      "$",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Details{
		BaseStage: newBaseStage(StageDetails, m, opts.Timeout, opts.Logger),
		embedder:  embedder,
		index:     index,
		catalog:   catalog,
		opts:      opts,
	}
}

// Answer runs embed, search, ground and complete. Retrieval failures leave
// the grounding block empty; only an unreachable catalog is returned as an
// error.
func (d *Details) Answer(ctx context.Context, query string, history core.History, mem *core.AgentMemory) (string, error) {
	mem.LastRetrievedContext = nil

	passages, err := d.retrieve(ctx, query)
	if err != nil {
		return "", err
	}
	mem.LastRetrievedContext = passages

	instruction := d.resolveInstruction(d.opts.Instruction, defaultDetailsInstruction, d.opts.Vars) +
		"\n\nProduct information:\n" + groundingBlock(passages)

	reply, err := d.complete(ctx, model.Request{
		SystemInstruction: instruction,
		History:           history.Tail(d.opts.HistoryWindow),
	})
	if err != nil {
		d.logger.Warn("agent.details.fallback", "error", err)
		return DefaultNoInformation, nil
	}
	return strings.TrimSpace(reply), nil
}

func (d *Details) retrieve(ctx context.Context, query string) ([]core.RetrievedPassage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	vec, err := d.embedder.Embed(ctx, query)
	if err != nil {
		d.logger.Warn("agent.details.embed.failed", "error", err)
		return nil, nil
	}

	hits, err := d.index.Search(ctx, vec, d.opts.TopK)
	if err != nil {
		d.logger.Warn("agent.details.search.failed", "error", err)
		return nil, nil
	}

	passages := make([]core.RetrievedPassage, 0, len(hits))
	for _, h := range hits {
		p, err := d.catalog.GetProduct(ctx, h.ProductID)
		if core.Fatal(err) {
			return nil, err
		}
		if err != nil {
			continue // index ahead of catalog
		}
		passages = append(passages, core.RetrievedPassage{
			ProductID: p.ID,
			Text:      fmt.Sprintf("%s (%s): %s", p.Name, money(d.opts.Currency, p.Price), p.Description),
			Score:     h.Score,
		})
	}
	sortPassages(passages)
	return passages, nil
}

func sortPassages(ps []core.RetrievedPassage) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Score > ps[j].Score })
}

func groundingBlock(ps []core.RetrievedPassage) string {
	if len(ps) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, p := range ps {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, p.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
