package core

import "github.com/google/uuid"

// TurnResult is what the Turn API returns to the presentation layer.
type TurnResult struct {
	TurnID     string        `json:"turn_id"`
	SessionID  string        `json:"session_id"`
	Reply      string        `json:"reply"`
	Cart       Cart          `json:"cart"`
	OrderState OrderState    `json:"order_state"`
	OrderRef   string        `json:"order_ref,omitempty"`
	Agent      AgentKind     `json:"agent,omitempty"`
	Guard      GuardDecision `json:"guard"`
	// Failed is set when the turn could not be completed and memory was left
	// untouched.
	Failed bool `json:"failed,omitempty"`
}

// NewID returns a random identifier for sessions and turns.
func NewID() string { return uuid.NewString() }
