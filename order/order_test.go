package order

import (
	"testing"

	"github.com/hupe1980/ordermesh/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMachine() *Machine {
	return NewMachine(func(o *Options) { o.NewOrderRef = func() string { return "ORD-TEST" } })
}

func latte(q int) Item {
	return Item{ProductID: "latte", Name: "Latte", UnitPrice: decimal.RequireFromString("4.50"), Quantity: q}
}

func muffin(q int) Item {
	return Item{ProductID: "muffin", Name: "Muffin", UnitPrice: decimal.RequireFromString("3.00"), Quantity: q}
}

func TestMachine_AddConfirmAffirm(t *testing.T) {
	m := newMachine()
	mem := core.NewAgentMemory()

	res := m.Apply(mem, Command{Intent: IntentAdd, Items: []Item{latte(1)}})
	assert.Equal(t, core.OrderIdle, res.From)
	assert.Equal(t, core.OrderCollecting, res.To)
	assert.Equal(t, OutcomeAdded, res.Outcome)

	res = m.Apply(mem, Command{Intent: IntentConfirm})
	assert.Equal(t, core.OrderAwaitingConfirmation, res.To)
	assert.Equal(t, OutcomeConfirmRequested, res.Outcome)

	res = m.Apply(mem, Command{Intent: IntentConfirm})
	assert.Equal(t, core.OrderConfirmed, res.To)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, "ORD-TEST", mem.OrderRef)

	require.Len(t, mem.Cart, 1)
	assert.Equal(t, "latte", mem.Cart[0].ProductID)
	assert.Equal(t, 1, mem.Cart[0].Quantity)
}

func TestMachine_AddTwiceMerges(t *testing.T) {
	m := newMachine()
	mem := core.NewAgentMemory()

	m.Apply(mem, Command{Intent: IntentAdd, Items: []Item{latte(2)}})
	m.Apply(mem, Command{Intent: IntentAdd, Items: []Item{latte(2)}})

	require.Len(t, mem.Cart, 1)
	assert.Equal(t, 4, mem.Cart[0].Quantity)
	assert.Equal(t, core.OrderCollecting, mem.OrderState)
}

func TestMachine_EditWhileAwaitingReturnsToCollecting(t *testing.T) {
	for _, intent := range []Intent{IntentAdd, IntentRemove, IntentModify} {
		t.Run(string(intent), func(t *testing.T) {
			m := newMachine()
			mem := core.NewAgentMemory()
			m.Apply(mem, Command{Intent: IntentAdd, Items: []Item{latte(2), muffin(1)}})
			m.Apply(mem, Command{Intent: IntentConfirm})
			require.Equal(t, core.OrderAwaitingConfirmation, mem.OrderState)

			res := m.Apply(mem, Command{Intent: intent, Items: []Item{latte(1)}})
			assert.Equal(t, core.OrderAwaitingConfirmation, res.From)
			assert.Equal(t, core.OrderCollecting, res.To)
		})
	}
}

func TestMachine_RemoveToZeroDeletesLine(t *testing.T) {
	m := newMachine()
	mem := core.NewAgentMemory()
	m.Apply(mem, Command{Intent: IntentAdd, Items: []Item{latte(2), muffin(1)}})

	res := m.Apply(mem, Command{Intent: IntentRemove, Items: []Item{latte(2)}})
	assert.Equal(t, OutcomeRemoved, res.Outcome)
	require.Len(t, mem.Cart, 1)
	assert.Equal(t, "muffin", mem.Cart[0].ProductID)

	res = m.Apply(mem, Command{Intent: IntentRemove, Items: []Item{latte(1)}})
	assert.Equal(t, []string{"Latte"}, res.Missing)
	assert.Equal(t, core.OrderCollecting, mem.OrderState)
}

func TestMachine_ModifyQuantityAndModifier(t *testing.T) {
	m := newMachine()
	mem := core.NewAgentMemory()
	m.Apply(mem, Command{Intent: IntentAdd, Items: []Item{latte(1)}})

	it := latte(3)
	it.Modifier = "oat milk"
	m.Apply(mem, Command{Intent: IntentModify, Items: []Item{it}})

	require.Len(t, mem.Cart, 1)
	assert.Equal(t, 3, mem.Cart[0].Quantity)
	assert.Equal(t, "oat milk", mem.Cart[0].Note)
}

func TestMachine_CancelFromAnyState(t *testing.T) {
	m := newMachine()
	mem := core.NewAgentMemory()
	m.Apply(mem, Command{Intent: IntentAdd, Items: []Item{latte(1)}})
	m.Apply(mem, Command{Intent: IntentConfirm})
	m.Apply(mem, Command{Intent: IntentConfirm})
	require.Equal(t, core.OrderConfirmed, mem.OrderState)

	res := m.Apply(mem, Command{Intent: IntentCancel})
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, core.OrderIdle, mem.OrderState)
	assert.Empty(t, mem.Cart)
	assert.Empty(t, mem.OrderRef)
}

func TestMachine_NoOpTransitions(t *testing.T) {
	m := newMachine()

	t.Run("unclear never mutates", func(t *testing.T) {
		mem := core.NewAgentMemory()
		m.Apply(mem, Command{Intent: IntentAdd, Items: []Item{latte(1)}})
		before := mem.Clone()
		res := m.Apply(mem, Command{Intent: IntentUnclear, Items: []Item{latte(5)}})
		assert.Equal(t, OutcomeUnclear, res.Outcome)
		assert.False(t, res.Changed())
		assert.Equal(t, before, mem)
	})

	t.Run("idle edits and confirm explain the empty cart", func(t *testing.T) {
		for _, intent := range []Intent{IntentRemove, IntentModify, IntentConfirm} {
			mem := core.NewAgentMemory()
			res := m.Apply(mem, Command{Intent: intent, Items: []Item{latte(1)}})
			assert.Equal(t, OutcomeEmptyCart, res.Outcome)
			assert.Equal(t, core.OrderIdle, mem.OrderState)
			assert.Empty(t, mem.Cart)
		}
	})

	t.Run("confirmed is terminal except for cancel", func(t *testing.T) {
		mem := core.NewAgentMemory()
		m.Apply(mem, Command{Intent: IntentAdd, Items: []Item{latte(1)}})
		m.Apply(mem, Command{Intent: IntentConfirm})
		m.Apply(mem, Command{Intent: IntentConfirm})
		res := m.Apply(mem, Command{Intent: IntentAdd, Items: []Item{muffin(1)}})
		assert.Equal(t, OutcomeAlreadyConfirmed, res.Outcome)
		assert.Len(t, mem.Cart, 1)
	})

	t.Run("add without items", func(t *testing.T) {
		mem := core.NewAgentMemory()
		res := m.Apply(mem, Command{Intent: IntentAdd})
		assert.Equal(t, OutcomeNoItems, res.Outcome)
		assert.Equal(t, core.OrderIdle, mem.OrderState)
	})
}

func TestNewOrderRef(t *testing.T) {
	ref := NewOrderRef()
	assert.Len(t, ref, 12)
	assert.NotEqual(t, ref, NewOrderRef())
}
