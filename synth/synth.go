// Package synth produces the user-facing answer from the assembled context
// bundle, streaming deltas as the model generates them.
package synth

import (
	"context"
	"fmt"
	"time"

	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/logging"
	"github.com/shopquery/shopquery/model"
	"github.com/shopquery/shopquery/prompt"
)

// Fixed answers for turns that never reach the model.
const (
	// AnswerNoResults is returned when every tool came back empty and there
	// is nothing to ground an answer in.
	AnswerNoResults = "I couldn't find matching products for that. Try rephrasing or broadening your search."

	// AnswerOutOfScope is returned for queries outside product finding.
	AnswerOutOfScope = "I can help you find products, check reviews, and manage your cart. That one is outside what I can do."
)

// Options configures the synthesizer.
type Options struct {
	// Timeout bounds one synthesis call.
	Timeout time.Duration

	Prompts *prompt.Library
	Logger  logging.Logger
}

// Synthesizer grounds answers strictly in retrieved context. Deltas are
// delivered through the emit callback in generation order; the returned
// string is the complete answer.
type Synthesizer struct {
	model   model.Model
	prompts *prompt.Library
	timeout time.Duration
	logger  logging.Logger
}

// New creates a synthesizer on top of the given model.
func New(m model.Model, optFns ...func(o *Options)) *Synthesizer {
	opts := Options{
		Timeout: 30 * time.Second,
		Prompts: prompt.NewLibrary(),
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Synthesizer{model: m, prompts: opts.Prompts, timeout: opts.Timeout, logger: opts.Logger}
}

// Synthesize streams an answer for the query from the bundle. An empty
// bundle short-circuits to the fixed degraded answer without a model call,
// so an all-tools-failed turn still completes with something honest. emit
// may be nil when the caller only wants the final text.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, bundle core.ContextBundle, emit func(delta string)) (string, error) {
	if bundle.Empty() {
		s.logger.Debug("synth.degraded", "reason", "empty bundle")
		if emit != nil {
			emit(AnswerNoResults)
		}
		return AnswerNoResults, nil
	}

	rendered, err := s.prompts.Render(prompt.KeySynthesize, map[string]any{
		"Query":    query,
		"Passages": bundle.Passages,
		"CartData": bundle.CartData,
	})
	if err != nil {
		return "", fmt.Errorf("render synthesis prompt: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	respCh, errCh := s.model.Generate(ctx, model.Request{
		Messages: []model.Message{{Role: "user", Text: rendered}},
		Stream:   true,
	})

	var answer string
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				if err := <-errCh; err != nil {
					return "", core.NewError(core.KindTransient, "synthesis failed", err)
				}
				return answer, nil
			}
			if resp.Partial {
				if emit != nil {
					emit(resp.Text)
				}
				continue
			}
			answer = resp.Text
		}
	}
}
