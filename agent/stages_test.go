package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/ordermesh/core"
	"github.com/hupe1980/ordermesh/internal/testutil"
	"github.com/hupe1980/ordermesh/model"
	"github.com/hupe1980/ordermesh/recommend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history(msgs ...string) core.History {
	var h core.History
	for i, m := range msgs {
		if i%2 == 0 {
			h = h.Append(core.NewUserMessage(m))
		} else {
			h = h.Append(core.NewAssistantMessage(m))
		}
	}
	return h
}

func TestGuard_Allowed(t *testing.T) {
	m := model.NewMockModel("mock").
		ScriptText("guard_decision", `{"reasoning":"menu question","decision":"allowed","message":""}`)

	res := NewGuard(m).Admit(context.Background(), history("Do you have oat milk?"))
	assert.True(t, res.Allowed())
	assert.False(t, res.Fallback)
	assert.Equal(t, 1, m.Calls("guard_decision"))
}

func TestGuard_RejectedUsesModelMessage(t *testing.T) {
	m := model.NewMockModel("mock").
		ScriptText("guard_decision", `{"reasoning":"off topic","decision":"not_allowed","message":"I only talk coffee."}`)

	res := NewGuard(m).Admit(context.Background(), history("Write me a poem"))
	assert.False(t, res.Allowed())
	assert.Equal(t, "I only talk coffee.", res.RefusalMessage)
}

func TestGuard_RejectedWithoutMessageUsesDefault(t *testing.T) {
	m := model.NewMockModel("mock").
		ScriptText("guard_decision", `{"reasoning":"off topic","decision":"not_allowed","message":""}`)

	res := NewGuard(m).Admit(context.Background(), history("Write me a poem"))
	assert.Equal(t, core.GuardRejected, res.Decision)
	assert.Equal(t, DefaultRefusal, res.RefusalMessage)
}

func TestGuard_FailsClosed(t *testing.T) {
	m := model.NewMockModel("mock").ScriptText("guard_decision", "not json", "still not json")

	res := NewGuard(m).Admit(context.Background(), history("hi"))
	assert.Equal(t, core.GuardRejected, res.Decision)
	assert.True(t, res.Fallback)
	assert.Equal(t, DefaultRefusal, res.RefusalMessage)
	assert.Equal(t, 2, m.Calls("guard_decision"))

	// the retry carries the stricter instruction
	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.NotContains(t, reqs[0].SystemInstruction, stricterInstruction)
	assert.Contains(t, reqs[1].SystemInstruction, stricterInstruction)
}

func TestGuard_RetrySucceeds(t *testing.T) {
	m := model.NewMockModel("mock").Script("guard_decision",
		model.Reply{Err: errors.New("timeout")},
		model.Reply{Text: `{"reasoning":"ok","decision":"allowed","message":""}`},
	)

	res := NewGuard(m).Admit(context.Background(), history("A latte please"))
	assert.True(t, res.Allowed())
	assert.Equal(t, 2, m.Calls("guard_decision"))
}

func TestGuard_RespectsCallBudget(t *testing.T) {
	m := model.NewMockModel("mock").ScriptText("guard_decision", "garbage")
	ctx := core.WithCallBudget(context.Background(), core.NewCallBudget(1))

	res := NewGuard(m).Admit(ctx, history("hi"))
	assert.True(t, res.Fallback)
	assert.Equal(t, 1, m.Calls("guard_decision"))
}

func TestClassifier_Routes(t *testing.T) {
	tests := []struct {
		reply string
		want  core.AgentKind
		cat   string
	}{
		{`{"reasoning":"r","agent":"order_taking","category":null}`, core.AgentOrderTaking, ""},
		{`{"reasoning":"r","agent":"recommendation","category":"bakery"}`, core.AgentRecommendation, "bakery"},
		{`{"reasoning":"r","agent":"details","category":null}`, core.AgentDetails, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			m := model.NewMockModel("mock").ScriptText("route_decision", tt.reply)
			got := NewClassifier(m).Classify(context.Background(), history("hello"))
			assert.Equal(t, tt.want, got.Agent)
			assert.Equal(t, tt.cat, got.Category)
			assert.False(t, got.Fallback)
		})
	}
}

func TestClassifier_MalformedTwiceFallsBackToDetails(t *testing.T) {
	m := model.NewMockModel("mock").ScriptText("route_decision", `{"agent":"barista"}`)

	got := NewClassifier(m).Classify(context.Background(), history("hello"))
	assert.Equal(t, core.AgentDetails, got.Agent)
	assert.True(t, got.Fallback)
	assert.Equal(t, 2, m.Calls("route_decision"))
}

func TestClassifier_InstructionListsCategories(t *testing.T) {
	m := model.NewMockModel("mock").ScriptText("route_decision", `{"reasoning":"r","agent":"details","category":null}`)

	NewClassifier(m, func(o *ClassifierOptions) {
		o.Vars = map[string]any{"Store": "Bean There", "Categories": []string{"bakery", "coffee"}}
	}).Classify(context.Background(), history("hello"))

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].SystemInstruction, "Bean There")
	assert.Contains(t, reqs[0].SystemInstruction, "bakery, coffee")
}

type stubEmbedder struct{ err error }

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0}, nil
}

type stubIndex struct {
	hits []core.Hit
	err  error
	k    int
}

func (s *stubIndex) Search(_ context.Context, _ []float32, k int) ([]core.Hit, error) {
	s.k = k
	return s.hits, s.err
}

type downCatalog struct{ core.Catalog }

func (downCatalog) GetProduct(context.Context, string) (core.Product, error) {
	return core.Product{}, core.ErrCatalogUnavailable
}

func (downCatalog) ListProducts(context.Context) ([]core.Product, error) {
	return nil, core.ErrCatalogUnavailable
}

func (downCatalog) ListCategories(context.Context) ([]string, error) {
	return nil, core.ErrCatalogUnavailable
}

func TestDetails_GroundsOnHits(t *testing.T) {
	cat, _ := testutil.CoffeeShop(t)
	idx := &stubIndex{hits: []core.Hit{{ProductID: "latte", Score: 0.4}, {ProductID: "muffin", Score: 0.9}, {ProductID: "ghost", Score: 0.8}}}
	m := model.NewMockModel("mock").ScriptText("", "The muffin contains nuts.")
	mem := core.NewAgentMemory()

	reply, err := NewDetails(m, stubEmbedder{}, idx, cat).Answer(context.Background(), "Does the muffin have nuts?", history("Does the muffin have nuts?"), mem)
	require.NoError(t, err)
	assert.Equal(t, "The muffin contains nuts.", reply)
	assert.Equal(t, DefaultTopK, idx.k)

	require.Len(t, mem.LastRetrievedContext, 2)
	assert.Equal(t, "muffin", mem.LastRetrievedContext[0].ProductID)
	assert.Equal(t, "latte", mem.LastRetrievedContext[1].ProductID)

	instr := m.Requests()[0].SystemInstruction
	assert.Contains(t, instr, "[1] Blueberry Muffin ($3.40): Muffin with wild blueberries. Contains nuts.")
	assert.Contains(t, instr, "[2] Latte ($4.50)")
}

func TestDetails_NoHitsStillAnswers(t *testing.T) {
	cat, _ := testutil.CoffeeShop(t)
	m := model.NewMockModel("mock").ScriptText("", "I don't have that information.")
	mem := core.NewAgentMemory()
	mem.LastRetrievedContext = []core.RetrievedPassage{{ProductID: "stale"}}

	reply, err := NewDetails(m, stubEmbedder{}, &stubIndex{}, cat).Answer(context.Background(), "Do you sell pizza?", history("Do you sell pizza?"), mem)
	require.NoError(t, err)
	assert.Equal(t, "I don't have that information.", reply)
	assert.Empty(t, mem.LastRetrievedContext)
	assert.Contains(t, m.Requests()[0].SystemInstruction, "(none)")
}

func TestDetails_RetrievalFailureDegrades(t *testing.T) {
	cat, _ := testutil.CoffeeShop(t)

	for name, d := range map[string]*Details{
		"embed":  NewDetails(model.NewMockModel("mock").ScriptText("", "answer"), stubEmbedder{err: errors.New("down")}, &stubIndex{}, cat),
		"search": NewDetails(model.NewMockModel("mock").ScriptText("", "answer"), stubEmbedder{}, &stubIndex{err: errors.New("down")}, cat),
	} {
		t.Run(name, func(t *testing.T) {
			reply, err := d.Answer(context.Background(), "latte?", history("latte?"), core.NewAgentMemory())
			require.NoError(t, err)
			assert.Equal(t, "answer", reply)
		})
	}
}

func TestDetails_ModelFailureReturnsNoInformation(t *testing.T) {
	cat, _ := testutil.CoffeeShop(t)
	m := model.NewMockModel("mock").Script("", model.Reply{Err: errors.New("503")})

	reply, err := NewDetails(m, stubEmbedder{}, &stubIndex{}, cat).Answer(context.Background(), "latte?", history("latte?"), core.NewAgentMemory())
	require.NoError(t, err)
	assert.Equal(t, DefaultNoInformation, reply)
	assert.Equal(t, 2, m.Calls(""))
}

func TestDetails_CatalogOutageIsFatal(t *testing.T) {
	idx := &stubIndex{hits: []core.Hit{{ProductID: "latte", Score: 1}}}
	m := model.NewMockModel("mock")

	_, err := NewDetails(m, stubEmbedder{}, idx, downCatalog{}).Answer(context.Background(), "latte?", history("latte?"), core.NewAgentMemory())
	require.Error(t, err)
	assert.True(t, core.Fatal(err))
	assert.Equal(t, 0, m.Calls(""))
}

func TestRecommender_Association(t *testing.T) {
	cat, rules := testutil.CoffeeShop(t)
	mem := testutil.NewSessionBuilder("s").Line("latte", "Latte", "4.50", 1).Memory()
	m := model.NewMockModel("mock").ScriptText("", "Try a Butter Croissant!")

	rec, err := NewRecommender(m, cat, rules).Recommend(context.Background(), history("what goes with it?"), mem, "")
	require.NoError(t, err)
	assert.Equal(t, recommend.StrategyAssociation, rec.Strategy)
	assert.Equal(t, []string{"croissant", "cookie"}, rec.SuggestedProductIDs)
	assert.Equal(t, []string{"croissant", "cookie"}, mem.RecommendationCache)
	assert.Equal(t, "Try a Butter Croissant!", rec.Reply)

	instr := m.Requests()[0].SystemInstruction
	assert.Contains(t, instr, "1. Butter Croissant ($3.10)")
	assert.Contains(t, instr, "70%")
}

func TestRecommender_CategoryFromHint(t *testing.T) {
	cat, rules := testutil.CoffeeShop(t)
	mem := core.NewAgentMemory()
	m := model.NewMockModel("mock")

	rec, err := NewRecommender(m, cat, rules).Recommend(context.Background(), history("any pastries?"), mem, "bakery")
	require.NoError(t, err)
	assert.Equal(t, recommend.StrategyCategory, rec.Strategy)
	assert.Equal(t, []string{"croissant", "muffin", "cookie"}, rec.SuggestedProductIDs)
}

func TestRecommender_PopularityFallbackWithListReply(t *testing.T) {
	cat, rules := testutil.CoffeeShop(t)
	mem := core.NewAgentMemory()
	m := model.NewMockModel("mock").Script("", model.Reply{Err: errors.New("503")})

	rec, err := NewRecommender(m, cat, rules).Recommend(context.Background(), history("surprise me"), mem, "")
	require.NoError(t, err)
	assert.Equal(t, recommend.StrategyPopularity, rec.Strategy)
	assert.True(t, rec.Fallback)
	assert.Equal(t, []string{"latte", "cappuccino", "croissant"}, mem.RecommendationCache)
	assert.True(t, strings.HasPrefix(rec.Reply, "You might like Latte ($4.50)"))
}

func TestRecommender_CatalogOutage(t *testing.T) {
	_, err := NewRecommender(model.NewMockModel("mock"), downCatalog{}, nil).
		Recommend(context.Background(), history("surprise me"), core.NewAgentMemory(), "")
	assert.True(t, core.Fatal(err))
}

func intent(js string) *model.MockModel {
	return model.NewMockModel("mock").ScriptText("order_intent", js)
}

func TestOrderTaker_AddConfirmConfirm(t *testing.T) {
	cat, _ := testutil.CoffeeShop(t)
	mem := core.NewAgentMemory()

	out, err := NewOrderTaker(intent(`{"intent":"add","items":[{"product_name":"lattes","quantity":2,"modifier":"oat milk"}]}`), cat).
		Handle(context.Background(), history("Two lattes with oat milk"), mem)
	require.NoError(t, err)
	assert.Equal(t, core.OrderCollecting, mem.OrderState)
	require.Len(t, mem.Cart, 1)
	assert.Equal(t, "latte", mem.Cart[0].ProductID)
	assert.Equal(t, 2, mem.Cart[0].Quantity)
	assert.Equal(t, "oat milk", mem.Cart[0].Note)
	assert.Contains(t, out.Reply, "2 x Latte (oat milk): $9.00")

	confirm := intent(`{"intent":"confirm","items":[]}`)
	out, err = NewOrderTaker(confirm, cat).Handle(context.Background(), history("that's all"), mem)
	require.NoError(t, err)
	assert.Equal(t, core.OrderAwaitingConfirmation, mem.OrderState)
	assert.Contains(t, out.Reply, "Shall I place it?")

	out, err = NewOrderTaker(confirm, cat).Handle(context.Background(), history("yes"), mem)
	require.NoError(t, err)
	assert.Equal(t, core.OrderConfirmed, mem.OrderState)
	assert.NotEmpty(t, mem.OrderRef)
	assert.Contains(t, out.Reply, mem.OrderRef)
	assert.Contains(t, out.Reply, "$9.00")
}

func TestOrderTaker_UnresolvedNameLeavesCart(t *testing.T) {
	cat, _ := testutil.CoffeeShop(t)
	mem := testutil.NewSessionBuilder("s").Line("latte", "Latte", "4.50", 1).State(core.OrderCollecting).Memory()

	out, err := NewOrderTaker(intent(`{"intent":"add","items":[{"product_name":"croissant","quantity":1},{"product_name":"unicorn frappe","quantity":1}]}`), cat).
		Handle(context.Background(), history("a croissant and a unicorn frappe"), mem)
	require.NoError(t, err)
	assert.Equal(t, []string{"unicorn frappe"}, out.Unresolved)
	assert.Contains(t, out.Reply, `"unicorn frappe"`)
	assert.Equal(t, []string{"latte"}, mem.Cart.ProductIDs())
	assert.Equal(t, core.OrderCollecting, mem.OrderState)
}

func TestOrderTaker_OrdinalFromRecommendations(t *testing.T) {
	cat, _ := testutil.CoffeeShop(t)
	mem := testutil.NewSessionBuilder("s").Recommended("croissant", "cookie").Memory()

	_, err := NewOrderTaker(intent(`{"intent":"add","items":[{"product_name":"the second one","quantity":null}]}`), cat).
		Handle(context.Background(), history("I'll take the second one"), mem)
	require.NoError(t, err)
	require.Len(t, mem.Cart, 1)
	assert.Equal(t, "cookie", mem.Cart[0].ProductID)
	assert.Equal(t, 1, mem.Cart[0].Quantity)
}

func TestOrderTaker_EditWhileAwaitingReturnsToCollecting(t *testing.T) {
	cat, _ := testutil.CoffeeShop(t)
	mem := testutil.NewSessionBuilder("s").
		Line("latte", "Latte", "4.50", 1).
		Line("croissant", "Butter Croissant", "3.10", 1).
		State(core.OrderAwaitingConfirmation).Memory()

	out, err := NewOrderTaker(intent(`{"intent":"remove","items":[{"product_name":"croissant"}]}`), cat).
		Handle(context.Background(), history("actually no croissant"), mem)
	require.NoError(t, err)
	assert.Equal(t, core.OrderCollecting, mem.OrderState)
	assert.Equal(t, []string{"latte"}, mem.Cart.ProductIDs())
	assert.Contains(t, out.Reply, "confirm again")
}

func TestOrderTaker_AddWhileAwaitingAsksToConfirmAgain(t *testing.T) {
	cat, _ := testutil.CoffeeShop(t)
	mem := testutil.NewSessionBuilder("s").
		Line("latte", "Latte", "4.50", 1).
		State(core.OrderAwaitingConfirmation).Memory()

	out, err := NewOrderTaker(intent(`{"intent":"add","items":[{"product_name":"cookie","quantity":1}]}`), cat).
		Handle(context.Background(), history("oh and a cookie"), mem)
	require.NoError(t, err)
	assert.Equal(t, core.OrderCollecting, mem.OrderState)
	assert.Equal(t, []string{"latte", "cookie"}, mem.Cart.ProductIDs())
	assert.Contains(t, out.Reply, "confirm again")
	assert.NotContains(t, out.Reply, "Anything else?")
}

func TestOrderTaker_CancelFromConfirmed(t *testing.T) {
	cat, _ := testutil.CoffeeShop(t)
	mem := testutil.NewSessionBuilder("s").Line("latte", "Latte", "4.50", 1).State(core.OrderConfirmed).Memory()
	mem.OrderRef = "ORD-1"

	_, err := NewOrderTaker(intent(`{"intent":"cancel","items":[]}`), cat).Handle(context.Background(), history("cancel"), mem)
	require.NoError(t, err)
	assert.Equal(t, core.OrderIdle, mem.OrderState)
	assert.Empty(t, mem.Cart)
	assert.Empty(t, mem.OrderRef)
}

func TestOrderTaker_MalformedIntentIsUnclear(t *testing.T) {
	cat, _ := testutil.CoffeeShop(t)
	mem := testutil.NewSessionBuilder("s").Line("latte", "Latte", "4.50", 1).State(core.OrderCollecting).Memory()

	out, err := NewOrderTaker(intent(`{"intent":"buy"}`), cat).Handle(context.Background(), history("hmm"), mem)
	require.NoError(t, err)
	assert.True(t, out.Fallback)
	assert.Equal(t, "unclear", string(out.Intent))
	assert.Equal(t, core.OrderCollecting, mem.OrderState)
	assert.Len(t, mem.Cart, 1)
}

func TestOrderTaker_CatalogOutage(t *testing.T) {
	_, err := NewOrderTaker(intent(`{"intent":"add","items":[{"product_name":"latte"}]}`), downCatalog{}).
		Handle(context.Background(), history("latte"), core.NewAgentMemory())
	assert.True(t, core.Fatal(err))
}

func TestOrdinal(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
		ok   bool
	}{
		{"the first one", 3, 0, true},
		{"2nd", 3, 1, true},
		{"the third", 2, 0, false},
		{"last one", 3, 2, true},
		{"that one", 1, 0, true},
		{"that one", 2, 0, false},
		{"latte", 3, 0, false},
		{"first", 0, 0, false},
	}
	for _, tt := range tests {
		got, ok := ordinal(tt.name, tt.n)
		assert.Equal(t, tt.ok, ok, tt.name)
		if ok {
			assert.Equal(t, tt.want, got, tt.name)
		}
	}
}
