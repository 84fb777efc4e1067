// Package router decides what kind of request a query is before any planning
// happens. The model-backed classifier is the production path; the keyword
// classifier is a deterministic fallback used in tests and when no model is
// configured.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/internal/util"
	"github.com/shopquery/shopquery/logging"
	"github.com/shopquery/shopquery/model"
	"github.com/shopquery/shopquery/prompt"
)

// Classifier assigns an intent to a query given the conversation so far.
type Classifier interface {
	Classify(ctx context.Context, query string, history []core.Exchange) (core.Intent, error)
}

// Options configures the model-backed classifier.
type Options struct {
	// Timeout bounds one classification call.
	Timeout time.Duration

	// MinConfidence is the threshold below which a classification is
	// treated as out of scope rather than acted on.
	MinConfidence float64

	Prompts *prompt.Library
	Logger  logging.Logger
}

// ModelClassifier asks a language model to label the query. Classification
// never fails a turn: on model errors or unparseable replies it degrades to
// an out of scope intent with a zero confidence.
type ModelClassifier struct {
	model   model.Model
	prompts *prompt.Library
	timeout time.Duration
	minConf float64
	logger  logging.Logger
}

// NewModelClassifier creates a classifier on top of the given model.
func NewModelClassifier(m model.Model, optFns ...func(o *Options)) *ModelClassifier {
	opts := Options{
		Timeout:       8 * time.Second,
		MinConfidence: 0.5,
		Prompts:       prompt.NewLibrary(),
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelClassifier{
		model:   m,
		prompts: opts.Prompts,
		timeout: opts.Timeout,
		minConf: opts.MinConfidence,
		logger:  opts.Logger,
	}
}

// Classify implements Classifier.
func (c *ModelClassifier) Classify(ctx context.Context, query string, history []core.Exchange) (core.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rendered, err := c.prompts.Render(prompt.KeyIntent, map[string]any{
		"Query":   query,
		"History": history,
	})
	if err != nil {
		return core.Intent{}, fmt.Errorf("render intent prompt: %w", err)
	}

	text, err := model.Complete(ctx, c.model, model.Request{
		Messages: []model.Message{{Role: "user", Text: rendered}},
	})
	if err != nil {
		c.logger.Warn("router.classify.failed", "error", err.Error())
		return uncertain("classification unavailable"), nil
	}

	var intent core.Intent
	if err := json.Unmarshal([]byte(util.ExtractJSON(text)), &intent); err != nil {
		c.logger.Warn("router.classify.unparseable", "reply", text)
		return uncertain("unparseable classification"), nil
	}
	if !known(intent.Label) {
		return uncertain(fmt.Sprintf("unknown label %q", intent.Label)), nil
	}
	if intent.Confidence < c.minConf {
		c.logger.Debug("router.classify.low_confidence", "label", intent.Label, "confidence", intent.Confidence)
		return uncertain("low confidence"), nil
	}
	return intent, nil
}

func uncertain(rationale string) core.Intent {
	return core.Intent{Label: core.IntentOutOfScope, Confidence: 0, Rationale: rationale}
}

func known(label string) bool {
	switch label {
	case core.IntentProductQuery, core.IntentReviewQuery, core.IntentCartAction, core.IntentOutOfScope:
		return true
	}
	return false
}

// KeywordClassifier labels queries by keyword heuristics. It is deterministic
// and model-free, useful in tests and offline setups.
type KeywordClassifier struct{}

// NewKeywordClassifier creates a keyword classifier.
func NewKeywordClassifier() *KeywordClassifier { return &KeywordClassifier{} }

var (
	cartWords    = []string{"cart", "basket", "checkout", "add ", "remove "}
	reviewWords  = []string{"review", "rating", "rated", "stars", "opinions", "complaints"}
	productWords = []string{"buy", "find", "best", "price", "cheap", "recommend", "looking for", "under $", "compare"}
)

// Classify implements Classifier.
func (c *KeywordClassifier) Classify(_ context.Context, query string, _ []core.Exchange) (core.Intent, error) {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, cartWords):
		return core.Intent{Label: core.IntentCartAction, Confidence: 0.7, Rationale: "cart keyword"}, nil
	case containsAny(q, reviewWords):
		return core.Intent{Label: core.IntentReviewQuery, Confidence: 0.7, Rationale: "review keyword"}, nil
	case containsAny(q, productWords):
		return core.Intent{Label: core.IntentProductQuery, Confidence: 0.7, Rationale: "product keyword"}, nil
	}
	return core.Intent{Label: core.IntentOutOfScope, Confidence: 0.6, Rationale: "no shopping keyword"}, nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
