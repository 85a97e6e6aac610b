package agent

import (
	"context"
	"strings"
	"time"

	"github.com/hupe1980/ordermesh/core"
	"github.com/hupe1980/ordermesh/logging"
	"github.com/hupe1980/ordermesh/model"
)

// DefaultRefusal is returned when the guard rejects a turn without a message
// or cannot reach a decision.
const DefaultRefusal = "Sorry, I can only help with our menu, your order and product recommendations."

// GuardOptions configure a Guard.
type GuardOptions struct {
	Instruction    Instruction
	Vars           map[string]any
	HistoryWindow  int
	Timeout        time.Duration
	RefusalMessage string
	Logger         logging.Logger
}

// GuardResult is the admission decision for one turn.
type GuardResult struct {
	Decision       core.GuardDecision
	RefusalMessage string
	Reasoning      string
	// Fallback is set when the decision is the fail-closed default.
	Fallback bool
}

// Allowed reports whether the turn may proceed.
func (r GuardResult) Allowed() bool { return r.Decision == core.GuardAllowed }

// Guard admits or rejects a turn before any specialist work.
type Guard struct {
	BaseStage
	opts GuardOptions
}

// NewGuard creates a Guard.
func NewGuard(m model.Model, optFns ...func(o *GuardOptions)) *Guard {
	opts := GuardOptions{
		HistoryWindow:  DefaultHistoryWindow,
		Timeout:        DefaultTimeout,
		RefusalMessage: DefaultRefusal,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Guard{
		BaseStage: newBaseStage(StageGuard, m, opts.Timeout, opts.Logger),
		opts:      opts,
	}
}

// Admit judges the latest turn of history. It never returns an error: when
// the model fails twice the turn is rejected with the generic refusal.
func (g *Guard) Admit(ctx context.Context, history core.History) GuardResult {
	res, err := g.structured(ctx, model.Request{
		SystemInstruction: g.resolveInstruction(g.opts.Instruction, defaultGuardInstruction, g.opts.Vars),
		History:           history.Tail(g.opts.HistoryWindow),
		Schema:            guardSchema,
	})
	if err != nil {
		g.logger.Warn("agent.guard.fallback", "error", err)
		return GuardResult{Decision: core.GuardRejected, RefusalMessage: g.opts.RefusalMessage, Fallback: true}
	}

	out := GuardResult{Reasoning: res.Get("reasoning").String()}
	if res.Get("decision").String() == "allowed" {
		out.Decision = core.GuardAllowed
		return out
	}

	out.Decision = core.GuardRejected
	out.RefusalMessage = strings.TrimSpace(res.Get("message").String())
	if out.RefusalMessage == "" {
		out.RefusalMessage = g.opts.RefusalMessage
	}
	return out
}
