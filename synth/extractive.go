package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopquery/shopquery/core"
)

// Extractive is a model-free synthesizer that lists the top passages
// verbatim. It backs offline setups and tests where deterministic output
// matters more than fluency.
type Extractive struct {
	// MaxPassages caps how many passages make it into the answer. Zero
	// means 3.
	MaxPassages int
}

// NewExtractive creates an extractive synthesizer.
func NewExtractive() *Extractive { return &Extractive{} }

// Synthesize builds the answer from the bundle without a model call.
func (s *Extractive) Synthesize(_ context.Context, _ string, bundle core.ContextBundle, emit func(delta string)) (string, error) {
	if bundle.Empty() {
		if emit != nil {
			emit(AnswerNoResults)
		}
		return AnswerNoResults, nil
	}

	limit := s.MaxPassages
	if limit <= 0 {
		limit = 3
	}

	var sb strings.Builder
	sb.WriteString("Here is what I found:\n")
	for i, p := range bundle.Top(limit) {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, p.Text))
	}
	if len(bundle.CartData) > 0 {
		sb.WriteString(fmt.Sprintf("Your cart: %v\n", bundle.CartData))
	}
	answer := sb.String()
	if emit != nil {
		emit(answer)
	}
	return answer, nil
}
