package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/ordermesh/catalog"
	"github.com/hupe1980/ordermesh/core"
	"github.com/hupe1980/ordermesh/logging"
	"github.com/hupe1980/ordermesh/model"
	"github.com/hupe1980/ordermesh/order"
	"github.com/tidwall/gjson"
)

// OrderTakerOptions configure an OrderTaker.
type OrderTakerOptions struct {
	Instruction   Instruction
	Vars          map[string]any
	HistoryWindow int
	Timeout       time.Duration
	Currency      string
	Machine       *order.Machine
	Logger        logging.Logger
}

// OrderOutcome is the result of an order turn.
type OrderOutcome struct {
	Reply      string
	Intent     order.Intent
	Transition order.Result
	// Unresolved lists product names that matched nothing; the cart is
	// untouched when it is non-empty.
	Unresolved []string
	// Fallback is set when intent extraction failed and unclear was assumed.
	Fallback bool
}

// OrderTaker extracts the order intent of a turn, resolves product
// references and drives the order state machine.
//
// Reads: AgentMemory.RecommendationCache. Writes: AgentMemory.Cart,
// OrderState and OrderRef (through order.Machine only).
type OrderTaker struct {
	BaseStage
	catalog core.Catalog
	machine *order.Machine
	opts    OrderTakerOptions
}

// NewOrderTaker creates an OrderTaker.
func NewOrderTaker(m model.Model, catalog core.Catalog, optFns ...func(o *OrderTakerOptions)) *OrderTaker {
	opts := OrderTakerOptions{
		HistoryWindow: DefaultHistoryWindow,
		Timeout:       DefaultTimeout,
		Currency:      "$",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Machine == nil {
		opts.Machine = order.NewMachine()
	}
	return &OrderTaker{
		BaseStage: newBaseStage(StageOrderTaking, m, opts.Timeout, opts.Logger),
		catalog:   catalog,
		machine:   opts.Machine,
		opts:      opts,
	}
}

type requestedItem struct {
	name     string
	quantity int
	modifier string
}

// Handle processes one order turn against mem.
func (o *OrderTaker) Handle(ctx context.Context, history core.History, mem *core.AgentMemory) (OrderOutcome, error) {
	vars := mergeVars(o.opts.Vars, map[string]any{"Cart": cartInline(mem.Cart)})
	res, err := o.structured(ctx, model.Request{
		SystemInstruction: o.resolveInstruction(o.opts.Instruction, defaultOrderInstruction, vars),
		History:           history.Tail(o.opts.HistoryWindow),
		Schema:            orderIntentSchema,
	})

	intent, requested := order.IntentUnclear, []requestedItem(nil)
	if err != nil {
		o.logger.Warn("agent.order.fallback", "error", err)
	} else {
		intent, requested = parseIntent(res)
	}

	out := OrderOutcome{Intent: intent, Fallback: err != nil}

	cmd := order.Command{Intent: intent}
	if intent == order.IntentAdd || intent == order.IntentRemove || intent == order.IntentModify {
		items, unresolved, err := o.resolve(ctx, intent, requested, mem)
		if err != nil {
			return OrderOutcome{}, err
		}
		if len(unresolved) > 0 {
			out.Unresolved = unresolved
			out.Reply = unresolvedReply(unresolved)
			o.logger.Info("agent.order.unresolved", "names", unresolved, "error", core.ErrUnresolvedReference)
			return out, nil
		}
		cmd.Items = items
	}

	out.Transition = o.machine.Apply(mem, cmd)
	out.Reply = o.reply(out.Transition, mem)
	return out, nil
}

func parseIntent(res gjson.Result) (order.Intent, []requestedItem) {
	intent := order.Intent(res.Get("intent").String())
	var items []requestedItem
	for _, it := range res.Get("items").Array() {
		name := strings.TrimSpace(it.Get("product_name").String())
		if name == "" {
			continue
		}
		items = append(items, requestedItem{
			name:     name,
			quantity: int(it.Get("quantity").Int()),
			modifier: strings.TrimSpace(it.Get("modifier").String()),
		})
	}
	return intent, items
}

// resolve maps requested names onto products. Positional references ("the
// first one") resolve against the last recommendation for adds and against
// the cart for edits.
func (o *OrderTaker) resolve(ctx context.Context, intent order.Intent, requested []requestedItem, mem *core.AgentMemory) ([]order.Item, []string, error) {
	products, err := o.catalog.ListProducts(ctx)
	if err != nil {
		return nil, nil, err
	}
	resolver := catalog.NewResolver(products)

	positional := mem.RecommendationCache
	if intent != order.IntentAdd {
		positional = mem.Cart.ProductIDs()
	}

	var (
		items      []order.Item
		unresolved []string
	)
	for _, req := range requested {
		p, ok := o.resolvePosition(ctx, req.name, positional)
		if !ok {
			p, ok = resolver.Resolve(req.name)
		}
		if !ok {
			unresolved = append(unresolved, req.name)
			continue
		}
		items = append(items, order.Item{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  req.quantity,
			Modifier:  req.modifier,
		})
	}
	return items, unresolved, nil
}

func (o *OrderTaker) resolvePosition(ctx context.Context, name string, ids []string) (core.Product, bool) {
	idx, ok := ordinal(name, len(ids))
	if !ok {
		return core.Product{}, false
	}
	p, err := o.catalog.GetProduct(ctx, ids[idx])
	if err != nil {
		return core.Product{}, false
	}
	return p, true
}

var ordinals = map[string]int{
	"first": 0, "1st": 0, "second": 1, "2nd": 1, "third": 2, "3rd": 2,
	"fourth": 3, "4th": 3, "fifth": 4, "5th": 4,
}

// ordinal interprets positional references such as "the second one",
// "last" or "that one" (only when exactly one item is listed).
func ordinal(name string, n int) (int, bool) {
	if n == 0 {
		return 0, false
	}
	words := strings.Fields(strings.ToLower(name))
	for _, w := range words {
		w = strings.Trim(w, ".,!?")
		if i, ok := ordinals[w]; ok {
			return i, i < n
		}
		if w == "last" {
			return n - 1, true
		}
	}
	if n == 1 {
		switch strings.Join(words, " ") {
		case "it", "that", "that one", "this", "this one", "the one", "one":
			return 0, true
		}
	}
	return 0, false
}

func unresolvedReply(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return fmt.Sprintf("Sorry, I couldn't find %s on our menu. Which product did you mean?", joinNames(quoted))
}

const confirmAgain = "Let me know when you'd like to confirm again."

func (o *OrderTaker) reply(res order.Result, mem *core.AgentMemory) string {
	cur := o.opts.Currency
	switch res.Outcome {
	case order.OutcomeAdded:
		if res.From == core.OrderAwaitingConfirmation {
			return "Added to your order.\n" + cartSummary(cur, mem.Cart) + "\n" + confirmAgain
		}
		return "Added to your order.\n" + cartSummary(cur, mem.Cart) + "\nAnything else?"
	case order.OutcomeRemoved, order.OutcomeModified:
		var b strings.Builder
		if res.Outcome == order.OutcomeRemoved {
			b.WriteString("Removed from your order.")
		} else {
			b.WriteString("Updated your order.")
		}
		if len(res.Missing) > 0 {
			fmt.Fprintf(&b, " (%s wasn't in your cart.)", joinNames(res.Missing))
		}
		b.WriteString("\n" + cartSummary(cur, mem.Cart))
		if res.From == core.OrderAwaitingConfirmation {
			b.WriteString("\n" + confirmAgain)
		}
		return b.String()
	case order.OutcomeConfirmRequested:
		return "Here's your order:\n" + cartSummary(cur, mem.Cart) + "\nShall I place it?"
	case order.OutcomeConfirmed:
		return fmt.Sprintf("Your order is confirmed! Reference: %s. Total: %s.", mem.OrderRef, money(cur, mem.Cart.Total()))
	case order.OutcomeCancelled:
		return "Your order has been cancelled and your cart is empty."
	case order.OutcomeEmptyCart:
		return "Your cart is empty, so there's nothing to change or confirm yet. What would you like to order?"
	case order.OutcomeAlreadyConfirmed:
		return fmt.Sprintf("Your order %s is already confirmed. Say \"cancel\" if you want to cancel it.", mem.OrderRef)
	case order.OutcomeNoItems:
		return "Which product would you like?"
	default:
		return "Sorry, I didn't catch that. What would you like to do with your order?"
	}
}
