package agent

import (
	"fmt"
	"strings"

	"github.com/hupe1980/ordermesh/core"
	"github.com/shopspring/decimal"
)

func money(currency string, d decimal.Decimal) string {
	return currency + d.StringFixed(2)
}

func describeLine(l core.CartLine) string {
	s := fmt.Sprintf("%d x %s", l.Quantity, l.Name)
	if l.Note != "" {
		s += " (" + l.Note + ")"
	}
	return s
}

// cartSummary renders the cart as a bulleted list with a total.
func cartSummary(currency string, cart core.Cart) string {
	if len(cart) == 0 {
		return "Your cart is empty."
	}
	var b strings.Builder
	for _, l := range cart {
		fmt.Fprintf(&b, "- %s: %s\n", describeLine(l), money(currency, l.Subtotal()))
	}
	fmt.Fprintf(&b, "Total: %s", money(currency, cart.Total()))
	return b.String()
}

// cartInline renders the cart on one line for prompts.
func cartInline(cart core.Cart) string {
	parts := make([]string, len(cart))
	for i, l := range cart {
		parts[i] = describeLine(l)
	}
	return strings.Join(parts, ", ")
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

func mergeVars(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
