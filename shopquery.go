// Package shopquery provides a high-level façade over the orchestration
// engine and its services (checkpoints, feedback, tools, models & logging)
// for building a product-finding chat assistant. Most applications interact
// with this package by:
//  1. Creating a ShopQuery via New() (optionally overriding the in-memory defaults)
//  2. Registering tools (the built-in search, review and cart tools or custom ones)
//  3. Submitting queries asynchronously (Submit) or synchronously (SubmitSync)
//  4. Correlating user feedback to answers via the trace id (RecordFeedback)
//
// The façade delegates orchestration to engine.Engine while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments supply durable stores, real models and a
// structured logger.
package shopquery

import (
	"context"

	"github.com/shopquery/shopquery/checkpoint"
	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/engine"
	"github.com/shopquery/shopquery/feedback"
	"github.com/shopquery/shopquery/logging"
	"github.com/shopquery/shopquery/planner"
	"github.com/shopquery/shopquery/router"
	"github.com/shopquery/shopquery/synth"
	"github.com/shopquery/shopquery/tool"
)

// Options configures the ShopQuery instance.
type Options struct {
	// EngineConfig tunes turn execution (re-planning bounds, buffers).
	EngineConfig engine.Config

	// Stores (default to in-memory implementations if not provided).
	Checkpoints core.CheckpointStore
	Feedback    core.FeedbackStore

	// Pipeline stages (default to the model-free implementations).
	Classifier  router.Classifier
	Planner     planner.Planner
	Synthesizer engine.Synthesizer

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// ShopQuery is the high-level façade aggregating the engine, the feedback
// correlator and the tool registry.
type ShopQuery struct {
	opts     Options
	engine   *engine.Engine
	feedback *feedback.Correlator
}

// New creates a ShopQuery instance with optional overrides. Any unset
// dependency is initialized with an in-memory, model-free implementation.
func New(optFns ...func(o *Options)) *ShopQuery {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Checkpoints:  checkpoint.NewInMemoryStore(),
		Feedback:     feedback.NewInMemoryStore(),
		Classifier:   router.NewKeywordClassifier(),
		Planner:      planner.NewRulePlanner(),
		Synthesizer:  synth.NewExtractive(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	eng := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Checkpoints = opts.Checkpoints
		o.Classifier = opts.Classifier
		o.Planner = opts.Planner
		o.Synthesizer = opts.Synthesizer
		o.Logger = opts.Logger
	})

	correlator := feedback.NewCorrelator(opts.Checkpoints, opts.Feedback, func(o *feedback.Options) {
		o.Logger = opts.Logger
	})

	return &ShopQuery{opts: opts, engine: eng, feedback: correlator}
}

// RegisterTool adds a tool to the underlying engine.
func (s *ShopQuery) RegisterTool(t tool.Tool) { s.engine.RegisterTool(t) }

// RegisterHook adds a lifecycle hook to the underlying engine.
func (s *ShopQuery) RegisterHook(h engine.Hook) { s.engine.RegisterHook(h) }

// Tools returns the registered tool definitions.
func (s *ShopQuery) Tools() []tool.Definition { return s.engine.Tools() }

// Engine exposes the underlying engine for advanced wiring.
func (s *ShopQuery) Engine() *engine.Engine { return s.engine }

// Submit starts a turn asynchronously, returning the trace id and the unit
// stream. See engine.Engine.Submit for the full contract.
func (s *ShopQuery) Submit(ctx context.Context, conversationID, query string) (string, <-chan core.Unit, <-chan error, error) {
	return s.engine.Submit(ctx, conversationID, query)
}

// SubmitSync runs a turn to completion and returns the collected result.
func (s *ShopQuery) SubmitSync(ctx context.Context, conversationID, query string) (*engine.Result, error) {
	return s.engine.SubmitSync(ctx, conversationID, query)
}

// Cancel requests cancellation of an in-flight turn by trace id.
func (s *ShopQuery) Cancel(traceID string) error { return s.engine.Cancel(traceID) }

// RecordFeedback validates and stores one feedback submission against the
// turn identified by its trace id.
func (s *ShopQuery) RecordFeedback(ctx context.Context, sub feedback.Submission) (*core.FeedbackRecord, error) {
	return s.feedback.Record(ctx, sub)
}

// FeedbackByTrace returns all feedback recorded for a trace id.
func (s *ShopQuery) FeedbackByTrace(ctx context.Context, traceID string) ([]core.FeedbackRecord, error) {
	return s.feedback.ByTrace(ctx, traceID)
}
