package agent

import (
	"context"
	"strings"
	"time"

	"github.com/hupe1980/ordermesh/core"
	"github.com/hupe1980/ordermesh/logging"
	"github.com/hupe1980/ordermesh/model"
)

// ClassifierOptions configure a Classifier.
type ClassifierOptions struct {
	Instruction Instruction
	// Vars feed the instruction template; "Categories" ([]string) lists the
	// catalog categories the classifier may report.
	Vars          map[string]any
	HistoryWindow int
	Timeout       time.Duration
	Logger        logging.Logger
}

// Classification is the routing decision for an admitted turn.
type Classification struct {
	Agent     core.AgentKind
	Category  string
	Reasoning string
	Fallback  bool
}

// Classifier routes an admitted turn to exactly one specialist.
type Classifier struct {
	BaseStage
	opts ClassifierOptions
}

// NewClassifier creates a Classifier.
func NewClassifier(m model.Model, optFns ...func(o *ClassifierOptions)) *Classifier {
	opts := ClassifierOptions{
		HistoryWindow: DefaultHistoryWindow,
		Timeout:       DefaultTimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Classifier{
		BaseStage: newBaseStage(StageClassification, m, opts.Timeout, opts.Logger),
		opts:      opts,
	}
}

// Classify routes the latest turn using the recent history. Persistent
// failure routes to details, the specialist that never mutates the cart.
func (c *Classifier) Classify(ctx context.Context, history core.History) Classification {
	res, err := c.structured(ctx, model.Request{
		SystemInstruction: c.resolveInstruction(c.opts.Instruction, defaultClassifierInstruction, c.opts.Vars),
		History:           history.Tail(c.opts.HistoryWindow),
		Schema:            classificationSchema,
	})
	if err != nil {
		c.logger.Warn("agent.classifier.fallback", "error", err)
		return Classification{Agent: core.AgentDetails, Fallback: true}
	}

	kind, ok := core.ParseAgentKind(res.Get("agent").String())
	if !ok {
		kind = core.AgentDetails
	}
	return Classification{
		Agent:     kind,
		Category:  strings.TrimSpace(res.Get("category").String()),
		Reasoning: res.Get("reasoning").String(),
	}
}
