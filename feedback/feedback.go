// Package feedback correlates user feedback with the turn that produced the
// answer. Submissions carry the trace id the caller received with the final
// answer unit; the correlator verifies the trace exists before recording.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/logging"
)

// Submission is one piece of user feedback about a delivered answer.
type Submission struct {
	TraceID   string         `json:"trace_id"`
	Sentiment core.Sentiment `json:"sentiment"`
	Comment   string         `json:"comment,omitempty"`
}

// Correlator validates submissions against the checkpoint history and
// appends accepted records to the feedback store. Multiple submissions per
// trace id are all retained; the referenced turn is never mutated.
type Correlator struct {
	checkpoints core.CheckpointStore
	store       core.FeedbackStore
	logger      logging.Logger
}

// Options configures a Correlator.
type Options struct {
	Logger logging.Logger
}

// NewCorrelator wires a correlator over the two stores.
func NewCorrelator(checkpoints core.CheckpointStore, store core.FeedbackStore, optFns ...func(o *Options)) *Correlator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Correlator{checkpoints: checkpoints, store: store, logger: opts.Logger}
}

// Record validates and persists one submission, returning the stored record.
// Unknown trace ids return core.ErrNotFound; a malformed sentiment returns a
// validation error. Feedback is accepted for any recorded turn regardless of
// its final status: a thumbs-down on a failed turn is signal too.
func (c *Correlator) Record(ctx context.Context, sub Submission) (*core.FeedbackRecord, error) {
	if sub.TraceID == "" {
		return nil, core.NewError(core.KindValidation, "trace_id is required", nil)
	}
	if !sub.Sentiment.Valid() {
		return nil, core.NewError(core.KindValidation, fmt.Sprintf("unknown sentiment %q", sub.Sentiment), nil)
	}

	turn, err := c.checkpoints.TurnByTrace(ctx, sub.TraceID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, core.NewError(core.KindPersistence, "resolve trace", err)
	}

	rec := core.FeedbackRecord{
		ID:        uuid.NewString(),
		TraceID:   sub.TraceID,
		Sentiment: sub.Sentiment,
		Comment:   sub.Comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.store.Append(ctx, rec); err != nil {
		return nil, core.NewError(core.KindPersistence, "append feedback", err)
	}
	c.logger.Info("feedback.recorded",
		"trace_id", rec.TraceID,
		"sentiment", string(rec.Sentiment),
		"turn_status", string(turn.Status),
	)
	return &rec, nil
}

// ByTrace returns all feedback recorded for a trace id in insertion order.
func (c *Correlator) ByTrace(ctx context.Context, traceID string) ([]core.FeedbackRecord, error) {
	return c.store.ByTrace(ctx, traceID)
}
