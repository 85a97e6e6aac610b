package anthropic

import (
	"testing"

	"github.com/hupe1980/ordermesh/core"
	"github.com/hupe1980/ordermesh/model"
	"github.com/stretchr/testify/assert"
)

func TestBuildMessages_MergesConsecutiveRoles(t *testing.T) {
	req := model.Request{History: core.History{
		core.NewUserMessage("hi"),
		core.NewUserMessage("anyone?"),
		core.NewAssistantMessage("hello"),
	}}

	msgs := buildMessages(req)
	assert.Len(t, msgs, 2)
}

func TestBuildMessages_PrefillsJSONForSchema(t *testing.T) {
	req := model.Request{
		History: core.History{core.NewUserMessage("hi")},
		Schema:  &model.Schema{Name: "guard_decision"},
	}

	msgs := buildMessages(req)
	assert.Len(t, msgs, 2)
	assert.Contains(t, systemPrompt(req), "Respond with a single JSON object")
}

func TestSystemPrompt_PlainText(t *testing.T) {
	assert.Equal(t, "be brief", systemPrompt(model.Request{SystemInstruction: "be brief"}))
	assert.False(t, NewModel(func(o *Options) { o.APIKey = "k" }).Info().NativeSchema)
}
