package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/ordermesh/core"
)

// Await resolves a Generate call into the final response text. The call is
// bounded by timeout (when > 0). Every failure is reported as
// core.ErrUpstreamService. A call budget attached to ctx is charged first.
func Await(ctx context.Context, m Model, req Request, timeout time.Duration) (string, error) {
	if b := core.CallBudgetFrom(ctx); b != nil {
		if err := b.Spend(); err != nil {
			return "", err
		}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	respCh, errCh := m.Generate(ctx, req)

	var (
		final    string
		partials strings.Builder
		gotFinal bool
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", core.ErrUpstreamService, ctx.Err())
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partials.WriteString(r.Text)
				continue
			}
			final, gotFinal = r.Text, true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", fmt.Errorf("%w: %v", core.ErrUpstreamService, err)
			}
		}
	}

	if !gotFinal {
		final = partials.String()
	}

	if strings.TrimSpace(final) == "" {
		return "", fmt.Errorf("%w: empty response", core.ErrUpstreamService)
	}

	return final, nil
}
