package feedback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopquery/shopquery/checkpoint"
	"github.com/shopquery/shopquery/core"
)

func newFixture(t *testing.T) (*Correlator, *core.Turn) {
	t.Helper()
	checkpoints := checkpoint.NewInMemoryStore()
	turn := core.NewTurn("c1", 0, "waterproof tent under 200")
	turn.Status = core.StatusCompleted
	require.NoError(t, checkpoints.AppendTurn(context.Background(), "c1", turn))
	return NewCorrelator(checkpoints, NewInMemoryStore()), turn
}

func TestRecordFeedback(t *testing.T) {
	c, turn := newFixture(t)

	rec, err := c.Record(context.Background(), Submission{
		TraceID:   turn.TraceID,
		Sentiment: core.SentimentPositive,
		Comment:   "exactly what I wanted",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, turn.TraceID, rec.TraceID)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestRecordUnknownTrace(t *testing.T) {
	c, _ := newFixture(t)
	_, err := c.Record(context.Background(), Submission{
		TraceID:   "no-such-trace",
		Sentiment: core.SentimentNegative,
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRecordInvalidSubmission(t *testing.T) {
	c, turn := newFixture(t)

	_, err := c.Record(context.Background(), Submission{Sentiment: core.SentimentPositive})
	assert.True(t, core.IsKind(err, core.KindValidation), "missing trace id")

	_, err = c.Record(context.Background(), Submission{TraceID: turn.TraceID, Sentiment: "meh"})
	assert.True(t, core.IsKind(err, core.KindValidation), "unknown sentiment")
}

func TestMultipleRecordsPerTrace(t *testing.T) {
	c, turn := newFixture(t)
	ctx := context.Background()

	for _, s := range []core.Sentiment{core.SentimentPositive, core.SentimentNegative, core.SentimentPositive} {
		_, err := c.Record(ctx, Submission{TraceID: turn.TraceID, Sentiment: s})
		require.NoError(t, err)
	}

	recs, err := c.ByTrace(ctx, turn.TraceID)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, core.SentimentNegative, recs[1].Sentiment)
}

func TestFeedbackOnFailedTurnAccepted(t *testing.T) {
	checkpoints := checkpoint.NewInMemoryStore()
	turn := core.NewTurn("c1", 0, "q")
	turn.Status = core.StatusFailed
	require.NoError(t, checkpoints.AppendTurn(context.Background(), "c1", turn))

	c := NewCorrelator(checkpoints, NewInMemoryStore())
	_, err := c.Record(context.Background(), Submission{TraceID: turn.TraceID, Sentiment: core.SentimentNegative})
	assert.NoError(t, err)
}

func TestByTraceUnknownIsEmpty(t *testing.T) {
	c, _ := newFixture(t)
	recs, err := c.ByTrace(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, recs)
}
