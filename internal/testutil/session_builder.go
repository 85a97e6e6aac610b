package testutil

import (
	"github.com/hupe1980/ordermesh/core"
	"github.com/shopspring/decimal"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").User("hi").Assistant("hello").State(core.OrderCollecting).Build()
type SessionBuilder struct {
	id      string
	history core.History
	memory  *core.AgentMemory
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, memory: core.NewAgentMemory()}
}

// User appends a user message (chainable).
func (b *SessionBuilder) User(text string) *SessionBuilder {
	b.history = b.history.Append(core.NewUserMessage(text))
	return b
}

// Assistant appends an assistant message (chainable).
func (b *SessionBuilder) Assistant(text string) *SessionBuilder {
	b.history = b.history.Append(core.NewAssistantMessage(text))
	return b
}

// Line adds a cart line priced from a decimal string (chainable).
func (b *SessionBuilder) Line(id, name, price string, qty int) *SessionBuilder {
	b.memory.Cart.Upsert(core.CartLine{ProductID: id, Name: name, UnitPrice: decimal.RequireFromString(price), Quantity: qty})
	return b
}

// State sets the order state (chainable).
func (b *SessionBuilder) State(s core.OrderState) *SessionBuilder {
	b.memory.OrderState = s
	return b
}

// Recommended sets the recommendation cache (chainable).
func (b *SessionBuilder) Recommended(ids ...string) *SessionBuilder {
	b.memory.RecommendationCache = append([]string(nil), ids...)
	return b
}

// Memory returns a copy of the memory built so far.
func (b *SessionBuilder) Memory() *core.AgentMemory { return b.memory.Clone() }

// History returns the history built so far.
func (b *SessionBuilder) History() core.History { return b.history.Tail(0) }

// Build returns a *core.Session with the history and memory applied.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	s.Commit(b.history, b.memory.Clone())
	return s
}
