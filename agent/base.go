package agent

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/ordermesh/core"
	"github.com/hupe1980/ordermesh/logging"
	"github.com/hupe1980/ordermesh/model"
	"github.com/tidwall/gjson"
)

// StageKind names a pipeline stage.
type StageKind string

const (
	StageGuard          StageKind = "guard"
	StageClassification StageKind = "classification"
	StageDetails        StageKind = "details"
	StageOrderTaking    StageKind = "order_taking"
	StageRecommendation StageKind = "recommendation"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 30 * time.Second

// DefaultHistoryWindow is the number of recent messages a stage sends.
const DefaultHistoryWindow = 8

const stricterInstruction = "IMPORTANT: your previous reply could not be parsed. Reply with ONLY one JSON object " +
	"that matches the required fields and allowed values exactly. No markdown, no prose."

// Stage is the closed set of pipeline stages.
type Stage interface {
	Kind() StageKind
	isStage()
}

// BaseStage bundles the model handle, call timeout and logger shared by all
// stages. Embed it in concrete stages.
type BaseStage struct {
	kind    StageKind
	model   model.Model
	timeout time.Duration
	logger  logging.Logger
}

func newBaseStage(kind StageKind, m model.Model, timeout time.Duration, logger logging.Logger) BaseStage {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return BaseStage{kind: kind, model: m, timeout: timeout, logger: logging.OrNoOp(logger)}
}

// Kind returns the stage kind.
func (b *BaseStage) Kind() StageKind { return b.kind }

func (*BaseStage) isStage() {}

// structured issues a schema-constrained completion. A failed or invalid
// first attempt is retried once with a stricter instruction. The returned
// error is a *core.StageError classified as upstream or malformed.
func (b *BaseStage) structured(ctx context.Context, req model.Request) (gjson.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if attempt == 2 {
			req.SystemInstruction += "\n\n" + stricterInstruction
		}

		start := time.Now()
		text, err := model.Await(ctx, b.model, req, b.timeout)
		if err == nil {
			var res gjson.Result
			if res, err = req.Schema.Validate(text); err == nil {
				b.logCall(attempt, time.Since(start), nil)
				return res, nil
			}
		}

		b.logCall(attempt, time.Since(start), err)
		lastErr = err
		if errors.Is(err, core.ErrCallBudgetExceeded) {
			break
		}
	}
	return gjson.Result{}, core.NewStageError(string(b.kind), errorKind(lastErr), lastErr)
}

// complete issues a free-text completion with one retry.
func (b *BaseStage) complete(ctx context.Context, req model.Request) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		start := time.Now()
		text, err := model.Await(ctx, b.model, req, b.timeout)
		b.logCall(attempt, time.Since(start), err)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if errors.Is(err, core.ErrCallBudgetExceeded) {
			break
		}
	}
	return "", core.NewStageError(string(b.kind), errorKind(lastErr), lastErr)
}

func (b *BaseStage) logCall(attempt int, dur time.Duration, err error) {
	if sl, ok := b.logger.(*logging.StructuredLogger); ok {
		sl.LogModelCall(b.model.Info().Name, string(b.kind), attempt, dur, err)
		return
	}
	if err != nil {
		b.logger.Warn("agent.model.call.failed", "stage", b.kind, "attempt", attempt, "duration", dur, "error", err)
		return
	}
	b.logger.Debug("agent.model.call", "stage", b.kind, "attempt", attempt, "duration", dur)
}

func errorKind(err error) error {
	if errors.Is(err, core.ErrMalformedOutput) {
		return core.ErrMalformedOutput
	}
	return core.ErrUpstreamService
}
