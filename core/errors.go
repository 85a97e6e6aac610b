package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamService marks a failed or timed out model, embedding or
	// vector search call.
	ErrUpstreamService = errors.New("upstream service error")
	// ErrMalformedOutput marks a structured completion that failed validation.
	ErrMalformedOutput = errors.New("malformed structured output")
	// ErrUnresolvedReference marks a product name that matched nothing in the catalog.
	ErrUnresolvedReference = errors.New("unresolved product reference")
	// ErrCatalogUnavailable marks a catalog that cannot be reached. It fails the turn.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrProductNotFound is returned by catalogs for unknown product ids.
	ErrProductNotFound = errors.New("product not found")
	// ErrSessionNotFound is returned by session stores for unknown ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrVersionConflict is returned when a snapshot was saved concurrently.
	ErrVersionConflict = errors.New("session version conflict")
	// ErrCallBudgetExceeded is returned when a turn used up its model calls.
	ErrCallBudgetExceeded = errors.New("model call budget exceeded")
)

// StageError attaches the failing stage and error kind to an underlying error.
// Kind is one of the sentinel errors above so errors.Is works on either.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewStageError builds a StageError.
func NewStageError(stage string, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// Recoverable reports whether err may be retried or replaced by a stage default.
func Recoverable(err error) bool {
	return errors.Is(err, ErrUpstreamService) || errors.Is(err, ErrMalformedOutput) ||
		errors.Is(err, ErrCallBudgetExceeded)
}

// Fatal reports whether err must fail the whole turn.
func Fatal(err error) bool {
	return errors.Is(err, ErrCatalogUnavailable)
}
