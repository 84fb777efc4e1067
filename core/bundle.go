package core

import "sort"

// ContextBundle is the deduplicated, ordered collection of passages gathered
// from all successful tool calls of a turn. It is immutable per turn and
// passed by value through the pipeline; ordering depends only on content
// (score, then id) so synthesis is stable regardless of which tool finished
// first.
type ContextBundle struct {
	Passages []Passage      `json:"passages"`
	CartData map[string]any `json:"cart_data,omitempty"`
}

// Empty reports whether the bundle carries no retrieval context at all.
func (b ContextBundle) Empty() bool { return len(b.Passages) == 0 && len(b.CartData) == 0 }

// AssembleBundle merges the results of the given tool calls into a bundle.
// Passages are deduplicated by id (highest score wins) and sorted by
// descending score with id as tiebreaker. Cart state from later calls
// replaces earlier state since cart tools return full snapshots.
func AssembleBundle(calls []ToolCall) ContextBundle {
	seen := map[string]Passage{}
	var cart map[string]any
	for _, call := range calls {
		if !call.Succeeded() {
			continue
		}
		for _, p := range call.Result.Passages {
			if prev, ok := seen[p.ID]; !ok || p.Score > prev.Score {
				seen[p.ID] = p
			}
		}
		if len(call.Result.Data) > 0 {
			cart = call.Result.Data
		}
	}
	passages := make([]Passage, 0, len(seen))
	for _, p := range seen {
		passages = append(passages, p)
	}
	sort.Slice(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].ID < passages[j].ID
	})
	return ContextBundle{Passages: passages, CartData: cart}
}

// Top returns at most n highest-ranked passages.
func (b ContextBundle) Top(n int) []Passage {
	if n >= len(b.Passages) {
		return b.Passages
	}
	return b.Passages[:n]
}
