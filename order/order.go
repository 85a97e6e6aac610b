// Package order implements the order lifecycle state machine:
//
//	idle -> collecting -> awaiting_confirmation -> confirmed
//
// collecting is re-entrant, an edit while awaiting confirmation returns to
// collecting, and cancel from any state returns to idle with an empty cart.
// The machine only ever receives resolved items; name resolution happens in
// the order stage before Apply is called.
package order

import (
	"strings"

	"github.com/hupe1980/ordermesh/core"
	"github.com/lithammer/shortuuid/v4"
	"github.com/shopspring/decimal"
)

// Intent is the customer's order action extracted from a turn.
type Intent string

const (
	IntentAdd     Intent = "add"
	IntentRemove  Intent = "remove"
	IntentModify  Intent = "modify"
	IntentConfirm Intent = "confirm"
	IntentCancel  Intent = "cancel"
	IntentUnclear Intent = "unclear"
)

// Intents lists every intent label in schema order.
var Intents = []string{
	string(IntentAdd), string(IntentRemove), string(IntentModify),
	string(IntentConfirm), string(IntentCancel), string(IntentUnclear),
}

// Item is a resolved order line request. Quantity 0 means "unspecified".
type Item struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Modifier  string
}

// Command is one intent with its resolved items.
type Command struct {
	Intent Intent
	Items  []Item
}

// Outcome describes what Apply did, for reply rendering.
type Outcome string

const (
	OutcomeAdded            Outcome = "added"
	OutcomeRemoved          Outcome = "removed"
	OutcomeModified         Outcome = "modified"
	OutcomeConfirmRequested Outcome = "confirm_requested"
	OutcomeConfirmed        Outcome = "confirmed"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeEmptyCart        Outcome = "empty_cart"
	OutcomeAlreadyConfirmed Outcome = "already_confirmed"
	OutcomeNoItems          Outcome = "no_items"
	OutcomeUnclear          Outcome = "unclear"
)

// Result reports the transition taken.
type Result struct {
	From    core.OrderState
	To      core.OrderState
	Outcome Outcome
	// Missing lists item names a remove or modify referred to that were not
	// in the cart.
	Missing []string
}

// Changed reports whether the state moved.
func (r Result) Changed() bool { return r.From != r.To }

// Options configure a Machine.
type Options struct {
	// NewOrderRef generates the reference assigned on confirmation.
	NewOrderRef func() string
}

// Machine applies commands to AgentMemory. It holds no per-session state.
type Machine struct {
	opts Options
}

// NewMachine creates a Machine.
func NewMachine(optFns ...func(o *Options)) *Machine {
	opts := Options{NewOrderRef: NewOrderRef}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Machine{opts: opts}
}

// NewOrderRef returns a short human friendly order reference.
func NewOrderRef() string {
	return "ORD-" + strings.ToUpper(shortuuid.New()[:8])
}

// Apply executes cmd against mem and returns the transition. It is the only
// code that writes mem.OrderState.
func (m *Machine) Apply(mem *core.AgentMemory, cmd Command) Result {
	if mem.OrderState == "" {
		mem.OrderState = core.OrderIdle
	}
	res := Result{From: mem.OrderState}

	if cmd.Intent == IntentCancel {
		mem.Cart.Clear()
		mem.OrderRef = ""
		mem.OrderState = core.OrderIdle
		res.Outcome = OutcomeCancelled
		res.To = mem.OrderState
		return res
	}

	if mem.OrderState == core.OrderConfirmed {
		res.Outcome = OutcomeAlreadyConfirmed
		res.To = mem.OrderState
		return res
	}

	switch cmd.Intent {
	case IntentAdd:
		res = m.add(mem, cmd, res)
	case IntentRemove, IntentModify:
		res = m.edit(mem, cmd, res)
	case IntentConfirm:
		res = m.confirm(mem, res)
	default:
		res.Outcome = OutcomeUnclear
	}
	res.To = mem.OrderState
	return res
}

func (m *Machine) add(mem *core.AgentMemory, cmd Command, res Result) Result {
	if len(cmd.Items) == 0 {
		res.Outcome = OutcomeNoItems
		return res
	}
	for _, it := range cmd.Items {
		mem.Cart.Upsert(core.CartLine{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Note:      it.Modifier,
		})
	}
	mem.OrderState = core.OrderCollecting
	res.Outcome = OutcomeAdded
	return res
}

func (m *Machine) edit(mem *core.AgentMemory, cmd Command, res Result) Result {
	if mem.OrderState == core.OrderIdle && len(mem.Cart) == 0 {
		res.Outcome = OutcomeEmptyCart
		return res
	}
	if len(cmd.Items) == 0 {
		res.Outcome = OutcomeNoItems
		return res
	}

	for _, it := range cmd.Items {
		var present bool
		if cmd.Intent == IntentRemove {
			present = mem.Cart.Remove(it.ProductID, it.Quantity)
			res.Outcome = OutcomeRemoved
		} else {
			present = modify(&mem.Cart, it)
			res.Outcome = OutcomeModified
		}
		if !present {
			res.Missing = append(res.Missing, it.Name)
		}
	}

	mem.OrderState = core.OrderCollecting
	return res
}

// modify applies a quantity and/or modifier change. A product not yet in the
// cart is added, since "make it two lattes" on an empty line means the same.
func modify(cart *core.Cart, it Item) bool {
	if !cart.Contains(it.ProductID) {
		cart.Upsert(core.CartLine{ProductID: it.ProductID, Name: it.Name, UnitPrice: it.UnitPrice, Quantity: it.Quantity, Note: it.Modifier})
		return true
	}
	if it.Modifier != "" {
		cart.SetNote(it.ProductID, it.Modifier)
	}
	if it.Quantity > 0 {
		cart.SetQuantity(it.ProductID, it.Quantity)
	}
	return true
}

func (m *Machine) confirm(mem *core.AgentMemory, res Result) Result {
	if len(mem.Cart) == 0 {
		res.Outcome = OutcomeEmptyCart
		return res
	}
	switch mem.OrderState {
	case core.OrderAwaitingConfirmation:
		mem.OrderState = core.OrderConfirmed
		mem.OrderRef = m.opts.NewOrderRef()
		res.Outcome = OutcomeConfirmed
	default:
		mem.OrderState = core.OrderAwaitingConfirmation
		res.Outcome = OutcomeConfirmRequested
	}
	return res
}
