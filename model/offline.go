package model

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Offline is a keyword driven Model for demos and local development. It
// understands the guard, routing and order intent schemas well enough to
// walk through an order without network access and answers free-text
// requests from the grounding lines of the system instruction.
type Offline struct {
	info Info
}

// NewOffline creates an Offline model.
func NewOffline() *Offline {
	return &Offline{info: Info{Name: "offline", Provider: "mock", NativeSchema: true}}
}

// Info implements Model.
func (o *Offline) Info() Info { return o.info }

// Generate implements Model.
func (o *Offline) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)
	defer close(respCh)
	defer close(errCh)

	if err := ctx.Err(); err != nil {
		errCh <- err
		return respCh, errCh
	}
	text, err := o.answer(req)
	if err != nil {
		errCh <- err
		return respCh, errCh
	}
	respCh <- Response{Text: text, FinishReason: "stop"}
	return respCh, errCh
}

func (o *Offline) answer(req Request) (string, error) {
	msg := strings.ToLower(strings.TrimSpace(req.History.LastUser()))

	switch schemaName(req) {
	case "guard_decision":
		return marshal(map[string]any{"reasoning": "offline", "decision": "allowed", "message": ""})
	case "route_decision":
		return marshal(map[string]any{"reasoning": "offline", "agent": route(msg)})
	case "order_intent":
		intent := orderIntent(msg)
		items := []map[string]any{}
		if intent == "add" || intent == "remove" || intent == "modify" {
			items = orderItems(msg)
		}
		return marshal(map[string]any{"intent": intent, "items": items})
	case "":
		return groundedReply(req.SystemInstruction), nil
	default:
		return "{}", nil
	}
}

var (
	orderWords = []string{"order", "i'll have", "i will have", "i want", "i'd like", "get me", "add", "remove",
		"cancel", "confirm", "checkout", "place it", "that's all", "yes", "make it", "one more", "instead"}
	recommendWords = []string{"recommend", "suggest", "what goes", "goes well", "pair", "what should", "anything else good"}
)

func route(msg string) string {
	if containsAny(msg, recommendWords) {
		return "recommendation"
	}
	if containsAny(msg, orderWords) {
		return "order_taking"
	}
	return "details"
}

func orderIntent(msg string) string {
	switch {
	case containsAny(msg, []string{"cancel", "start over"}):
		return "cancel"
	case containsAny(msg, []string{"confirm", "checkout", "place it", "that's all", "that is all"}) || msg == "yes":
		return "confirm"
	case containsAny(msg, []string{"remove", "drop", "take off", "no more"}):
		return "remove"
	case containsAny(msg, []string{"make it", "change", "instead"}):
		return "modify"
	case containsAny(msg, orderWords) || msg != "":
		return "add"
	default:
		return "unclear"
	}
}

var (
	leadIn   = regexp.MustCompile(`^(please |can i (get|have) |could i (get|have) |i'?ll have |i will have |i want |i'?d like |get me |add |remove |drop |make it |order |and )+`)
	splitter = regexp.MustCompile(`\s*(?:,|\band\b|\bplus\b)\s*`)
	quantity = regexp.MustCompile(`^(\d+|a|an|one|two|three|four|five|six)\s+`)
	numerals = map[string]int{"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6}
	numbered = regexp.MustCompile(`^\d+\. ([^,]+)`)
	trailing = regexp.MustCompile(`\s*(please|to (my|the) order|from (my|the) order|too|as well)\s*[.!?]*$`)
)

func orderItems(msg string) []map[string]any {
	var items []map[string]any
	for _, part := range splitter.Split(msg, -1) {
		part = strings.Trim(part, " .!?")
		part = leadIn.ReplaceAllString(part, "")
		part = trailing.ReplaceAllString(part, "")
		if part == "" {
			continue
		}
		qty := 1
		if m := quantity.FindStringSubmatch(part); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				qty = n
			} else {
				qty = numerals[m[1]]
			}
			part = strings.TrimSpace(part[len(m[0]):])
		}
		if part == "" {
			continue
		}
		items = append(items, map[string]any{"product_name": part, "quantity": qty})
	}
	return items
}

func groundedReply(instruction string) string {
	var suggestions []string
	for _, line := range strings.Split(instruction, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[1] ") {
			return "Here is what I found: " + strings.TrimPrefix(line, "[1] ")
		}
		if m := numbered.FindStringSubmatch(line); m != nil {
			suggestions = append(suggestions, m[1])
		}
	}
	if len(suggestions) > 0 {
		return "I'd suggest " + strings.Join(suggestions, ", ") + "."
	}
	return "I can help with questions about our menu and with your order."
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
