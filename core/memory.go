package core

// GuardDecision records the outcome of the guard stage for the current turn.
type GuardDecision string

const (
	GuardUnset    GuardDecision = ""
	GuardAllowed  GuardDecision = "allowed"
	GuardRejected GuardDecision = "rejected"
)

// AgentKind names the specialist a turn was routed to.
type AgentKind string

const (
	AgentUnset          AgentKind = ""
	AgentDetails        AgentKind = "details"
	AgentOrderTaking    AgentKind = "order_taking"
	AgentRecommendation AgentKind = "recommendation"
)

// AgentKinds lists the routable specialists in declaration order.
var AgentKinds = []AgentKind{AgentDetails, AgentOrderTaking, AgentRecommendation}

// ParseAgentKind maps a classifier label onto an AgentKind.
func ParseAgentKind(s string) (AgentKind, bool) {
	for _, k := range AgentKinds {
		if string(k) == s {
			return k, true
		}
	}
	return AgentUnset, false
}

// OrderState is the position of a session in the order lifecycle.
type OrderState string

const (
	OrderIdle                 OrderState = "idle"
	OrderCollecting           OrderState = "collecting"
	OrderAwaitingConfirmation OrderState = "awaiting_confirmation"
	OrderConfirmed            OrderState = "confirmed"
)

// RetrievedPassage is one grounding snippet produced by the details stage.
type RetrievedPassage struct {
	ProductID string  `json:"product_id"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
}

// AgentMemory is the typed state of one session. It is owned by exactly one
// Session and only mutated while that session's turn lock is held.
//
// Field ownership:
//   - GuardDecision: guard stage (via the engine)
//   - RoutedAgent: classification stage (via the engine)
//   - Cart, OrderState, OrderRef: order stage only
//   - LastRetrievedContext: details stage only
//   - RecommendationCache: written by the recommendation stage, read by the order stage
type AgentMemory struct {
	GuardDecision        GuardDecision      `json:"guard_decision"`
	RoutedAgent          AgentKind          `json:"routed_agent"`
	Cart                 Cart               `json:"cart"`
	OrderState           OrderState         `json:"order_state"`
	OrderRef             string             `json:"order_ref,omitempty"`
	LastRetrievedContext []RetrievedPassage `json:"last_retrieved_context,omitempty"`
	RecommendationCache  []string           `json:"recommendation_cache,omitempty"`
}

// NewAgentMemory returns memory for a fresh session.
func NewAgentMemory() *AgentMemory {
	return &AgentMemory{OrderState: OrderIdle, Cart: Cart{}}
}

// Clone returns a deep copy of the memory.
func (m *AgentMemory) Clone() *AgentMemory {
	if m == nil {
		return NewAgentMemory()
	}
	c := *m
	c.Cart = m.Cart.Clone()
	if m.LastRetrievedContext != nil {
		c.LastRetrievedContext = append([]RetrievedPassage(nil), m.LastRetrievedContext...)
	}
	if m.RecommendationCache != nil {
		c.RecommendationCache = append([]string(nil), m.RecommendationCache...)
	}
	if c.OrderState == "" {
		c.OrderState = OrderIdle
	}
	return &c
}

// ResetTurn clears the per-turn routing decisions before a new turn starts.
func (m *AgentMemory) ResetTurn() {
	m.GuardDecision = GuardUnset
	m.RoutedAgent = AgentUnset
}
