package agent

import (
	"github.com/hupe1980/ordermesh/model"
	"github.com/hupe1980/ordermesh/order"
)

var guardSchema = &model.Schema{
	Name:        "guard_decision",
	Description: "Whether the latest user message is in scope.",
	Fields: []model.Field{
		{Name: "reasoning", Type: model.TypeString, Required: true},
		{Name: "decision", Type: model.TypeString, Required: true, Enum: []string{"allowed", "not_allowed"}},
		{Name: "message", Type: model.TypeString, Required: true, Description: "Refusal shown when not allowed."},
	},
}

var classificationSchema = &model.Schema{
	Name:        "route_decision",
	Description: "The specialist that handles the latest user message.",
	Fields: []model.Field{
		{Name: "reasoning", Type: model.TypeString, Required: true},
		{Name: "agent", Type: model.TypeString, Required: true, Enum: []string{"details", "order_taking", "recommendation"}},
		{Name: "category", Type: model.TypeString, Description: "Product category the user asks about."},
	},
}

var orderIntentSchema = &model.Schema{
	Name:        "order_intent",
	Description: "The order action requested by the latest user message.",
	Fields: []model.Field{
		{Name: "intent", Type: model.TypeString, Required: true, Enum: order.Intents},
		{Name: "items", Type: model.TypeArray, Required: true, Items: []model.Field{
			{Name: "product_name", Type: model.TypeString, Required: true},
			{Name: "quantity", Type: model.TypeInteger},
			{Name: "modifier", Type: model.TypeString},
		}},
	},
}
