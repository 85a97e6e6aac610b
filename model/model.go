package model

import (
	"context"

	"github.com/hupe1980/ordermesh/core"
)

// Request is the normalized model input produced by a stage.
type Request struct {
	SystemInstruction string       `json:"system_instruction"`
	History           core.History `json:"history"`
	// Schema requests a JSON object response. Nil means free text.
	Schema *Schema `json:"schema,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	// NativeSchema is true when the provider enforces Request.Schema itself.
	NativeSchema bool `json:"native_schema"`
}

// Model is the minimal interface required by the stages to drive generation.
// Both channels are closed when the call finishes.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}
