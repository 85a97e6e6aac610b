package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/ordermesh/agent"
	"github.com/hupe1980/ordermesh/core"
)

// CallbackType defines the lifecycle points of a turn where callbacks run.
//
// Callbacks are executed synchronously in registration order. Only
// CallbackTurnStart and CallbackBeforeCommit can influence a turn: an error
// from the former rejects the turn, an error from the latter fails it and
// leaves the session memory untouched. Errors from every other type are
// logged and otherwise ignored.
type CallbackType string

const (
	// CallbackTurnStart runs once the session lock is held, before any stage.
	CallbackTurnStart CallbackType = "turn_start"

	// CallbackGuardDecision runs after the guard admitted or rejected the turn.
	CallbackGuardDecision CallbackType = "guard_decision"

	// CallbackRouted runs after classification picked a specialist.
	CallbackRouted CallbackType = "routed"

	// CallbackStageComplete runs after the specialist produced its reply.
	CallbackStageComplete CallbackType = "stage_complete"

	// CallbackFallback runs whenever a stage replaced model output with its
	// default.
	CallbackFallback CallbackType = "fallback"

	// CallbackBeforeCommit runs with the staged memory before it replaces the
	// session memory. Use it to enforce business rules on the cart.
	CallbackBeforeCommit CallbackType = "before_commit"

	// CallbackTurnComplete runs after the turn was committed.
	CallbackTurnComplete CallbackType = "turn_complete"

	// CallbackOnError runs when a turn fails or the snapshot cannot be saved.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries what a callback may inspect. Fields not relevant to
// a callback type are zero.
type CallbackContext struct {
	SessionID    string
	TurnID       string
	CallbackType CallbackType

	// Stage is the stage the callback refers to, if any.
	Stage agent.StageKind
	Agent core.AgentKind
	Guard core.GuardDecision

	// Memory is the staged memory (CallbackBeforeCommit only). Callbacks
	// must not mutate it.
	Memory *core.AgentMemory

	// Result is set for CallbackTurnComplete.
	Result *core.TurnResult

	Err error
}

// Callback defines the interface for turn lifecycle hooks.
//
// Implementations should be fast since they block the turn, and must not
// panic.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(CallbackTurnComplete, func(ctx context.Context, c *CallbackContext) error {
//	    log.Printf("turn %s: %s", c.TurnID, c.Result.Reply)
//	    return nil
//	})
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager is the registry of callbacks of an Engine. Registration
// and execution are safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback. Multiple callbacks of the same type run
// in registration order.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs all callbacks of the given type and stops at the
// first error, which it returns.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}
	return nil
}

// LoggingCallback forwards turn lifecycle events to a logging function.
//
// Example:
//
//	cb := NewLoggingCallback(CallbackFallback, func(msg string) { log.Print(msg) })
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger != nil {
		message := fmt.Sprintf("[%s] session=%s turn=%s stage=%s agent=%s",
			c.callbackType, callbackCtx.SessionID, callbackCtx.TurnID, callbackCtx.Stage, callbackCtx.Agent)
		if callbackCtx.Err != nil {
			message += " err=" + callbackCtx.Err.Error()
		}
		c.logger(message)
	}
	return nil
}

// MemoryValidationCallback validates the staged memory before commit.
//
// Example:
//
//	maxItems := NewMemoryValidationCallback(func(m *core.AgentMemory) error {
//	    if m.Cart.Items() > 20 {
//	        return errors.New("orders are limited to 20 items")
//	    }
//	    return nil
//	})
type MemoryValidationCallback struct {
	validator func(mem *core.AgentMemory) error
}

// NewMemoryValidationCallback creates a new memory validation callback.
func NewMemoryValidationCallback(validator func(mem *core.AgentMemory) error) *MemoryValidationCallback {
	return &MemoryValidationCallback{
		validator: validator,
	}
}

// Type returns CallbackBeforeCommit.
func (c *MemoryValidationCallback) Type() CallbackType {
	return CallbackBeforeCommit
}

// Execute runs the validator on the staged memory.
func (c *MemoryValidationCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.validator != nil && callbackCtx.Memory != nil {
		return c.validator(callbackCtx.Memory)
	}
	return nil
}
