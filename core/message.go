package core

import "strings"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks messages typed by the customer.
	RoleUser Role = "user"
	// RoleAssistant marks replies produced by the engine.
	RoleAssistant Role = "assistant"
)

// Message is a single immutable conversation entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user authored message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant authored message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// History is the ordered, append-only sequence of messages of a session.
type History []Message

// Append returns a new History with m added. The receiver is never modified
// and the result never shares its backing array with it.
func (h History) Append(m Message) History {
	out := make(History, len(h), len(h)+1)
	copy(out, h)
	return append(out, m)
}

// Tail returns a copy of the last n messages (all messages when n <= 0 or n
// exceeds the length).
func (h History) Tail(n int) History {
	if n <= 0 || n > len(h) {
		n = len(h)
	}
	out := make(History, n)
	copy(out, h[len(h)-n:])
	return out
}

// LastUser returns the content of the most recent user message.
func (h History) LastUser() string {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Role == RoleUser {
			return h[i].Content
		}
	}
	return ""
}

// Transcript renders the messages as "role: content" lines.
func (h History) Transcript() string {
	var b strings.Builder
	for i, m := range h {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
