package tool

import (
	"github.com/shopquery/shopquery/cart"
	"github.com/shopquery/shopquery/core"
)

// CartTool wraps one cart operation. Add and remove variants implement
// MutatingTool so the executor applies the conservative retry policy.
type CartTool struct {
	*FunctionTool
	service *cart.Service
}

// Applied implements MutatingTool.
func (t *CartTool) Applied(inv *Invocation) bool {
	return t.service.Applied(inv.ConversationID, inv.OpKey())
}

type cartAddArgs struct {
	SKU      string `json:"sku" description:"Product identifier to add"`
	Name     string `json:"name,omitempty" description:"Display name of the product"`
	Quantity *int   `json:"quantity" description:"Units to add, default 1"`
}

type cartRemoveArgs struct {
	SKU string `json:"sku" description:"Product identifier to remove"`
}

// NewCartViewTool returns the read-only cart snapshot capability.
func NewCartViewTool(service *cart.Service) *FunctionTool {
	return NewFunctionTool(
		"cart_view",
		"Show the current contents of the shopping cart.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(inv *Invocation, _ map[string]any) (*core.ToolResult, error) {
			return cartResult(service.View(inv.ConversationID)), nil
		})
}

// NewCartAddTool returns the mutating add-to-cart capability.
func NewCartAddTool(service *cart.Service) *CartTool {
	ft := NewFunctionToolFromStruct(
		"cart_add",
		"Add a product to the shopping cart by its identifier.",
		cartAddArgs{},
		func(inv *Invocation, args map[string]any) (*core.ToolResult, error) {
			sku, _ := args["sku"].(string)
			name, _ := args["name"].(string)
			quantity := 1
			if raw, ok := args["quantity"].(float64); ok && raw > 0 {
				quantity = int(raw)
			}
			return cartResult(service.Add(inv.ConversationID, inv.OpKey(), sku, name, quantity)), nil
		})
	return &CartTool{FunctionTool: ft, service: service}
}

// NewCartRemoveTool returns the mutating remove-from-cart capability.
func NewCartRemoveTool(service *cart.Service) *CartTool {
	ft := NewFunctionToolFromStruct(
		"cart_remove",
		"Remove a product from the shopping cart by its identifier.",
		cartRemoveArgs{},
		func(inv *Invocation, args map[string]any) (*core.ToolResult, error) {
			sku, _ := args["sku"].(string)
			return cartResult(service.Remove(inv.ConversationID, inv.OpKey(), sku)), nil
		})
	return &CartTool{FunctionTool: ft, service: service}
}

func cartResult(items []cart.Item) *core.ToolResult {
	encoded := make([]any, 0, len(items))
	for _, item := range items {
		encoded = append(encoded, map[string]any{
			"sku":      item.SKU,
			"name":     item.Name,
			"quantity": item.Quantity,
		})
	}
	return &core.ToolResult{Data: map[string]any{"items": encoded}}
}
