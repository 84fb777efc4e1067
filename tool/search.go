package tool

import (
	"fmt"

	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/retrieval"
)

// searchArgs is the argument schema shared by the retrieval tools.
type searchArgs struct {
	Query string `json:"query" description:"Natural-language search text"`
	Limit *int   `json:"limit" description:"Maximum number of passages to return"`
}

// NewProductSearchTool returns the semantic product search capability backed
// by the given index.
func NewProductSearchTool(index retrieval.Index, defaultLimit int) *FunctionTool {
	return newRetrievalTool(
		"product_search",
		"Search the product catalog for items matching a natural-language query.",
		retrieval.SourceProduct, index, defaultLimit,
	)
}

// NewReviewLookupTool returns the review retrieval capability backed by the
// given index.
func NewReviewLookupTool(index retrieval.Index, defaultLimit int) *FunctionTool {
	return newRetrievalTool(
		"review_lookup",
		"Retrieve customer review snippets relevant to a product or query.",
		retrieval.SourceReview, index, defaultLimit,
	)
}

func newRetrievalTool(name, description, source string, index retrieval.Index, defaultLimit int) *FunctionTool {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	return NewFunctionToolFromStruct(name, description, searchArgs{},
		func(inv *Invocation, args map[string]any) (*core.ToolResult, error) {
			query, _ := args["query"].(string)
			limit := defaultLimit
			if raw, ok := args["limit"].(float64); ok && raw > 0 {
				limit = int(raw)
			}

			passages, err := index.Search(inv.Context, retrieval.Query{
				Text:   query,
				Source: source,
				Limit:  limit,
			})
			if err != nil {
				return nil, fmt.Errorf("search index: %w", err)
			}
			if len(passages) == 0 {
				return nil, NewToolError(name, "no matching passages", CodeNoResults)
			}
			return &core.ToolResult{Passages: passages}, nil
		})
}
