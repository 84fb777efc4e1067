package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/model"
)

func TestModelClassifier(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddResponse("hiking boots", `{"label": "product_query", "confidence": 0.92, "rationale": "asks for a product"}`)

	c := NewModelClassifier(m)
	intent, err := c.Classify(context.Background(), "best hiking boots under $150", nil)
	require.NoError(t, err)
	assert.Equal(t, core.IntentProductQuery, intent.Label)
	assert.InDelta(t, 0.92, intent.Confidence, 1e-9)
	assert.True(t, intent.InScope())
}

func TestModelClassifierFencedReply(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddResponse("reviews", "```json\n{\"label\": \"review_query\", \"confidence\": 0.8}\n```")

	c := NewModelClassifier(m)
	intent, err := c.Classify(context.Background(), "what do reviews say about this tent", nil)
	require.NoError(t, err)
	assert.Equal(t, core.IntentReviewQuery, intent.Label)
}

func TestModelClassifierDegradesOnError(t *testing.T) {
	m := model.NewMockModel("mock")
	m.FailWith(errors.New("provider down"))

	c := NewModelClassifier(m)
	intent, err := c.Classify(context.Background(), "anything", nil)
	require.NoError(t, err, "classification never fails the turn")
	assert.Equal(t, core.IntentOutOfScope, intent.Label)
	assert.Zero(t, intent.Confidence)
}

func TestModelClassifierLowConfidence(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddResponse("ambiguous", `{"label": "product_query", "confidence": 0.2}`)

	c := NewModelClassifier(m)
	intent, err := c.Classify(context.Background(), "ambiguous", nil)
	require.NoError(t, err)
	assert.Equal(t, core.IntentOutOfScope, intent.Label)
}

func TestModelClassifierUnknownLabel(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddResponse("weird", `{"label": "chitchat", "confidence": 0.99}`)

	c := NewModelClassifier(m)
	intent, err := c.Classify(context.Background(), "weird", nil)
	require.NoError(t, err)
	assert.Equal(t, core.IntentOutOfScope, intent.Label)
}

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier()
	cases := map[string]string{
		"add the blue tent to my cart":     core.IntentCartAction,
		"what are the reviews like":        core.IntentReviewQuery,
		"best waterproof jacket under $99": core.IntentProductQuery,
		"tell me a joke":                   core.IntentOutOfScope,
	}
	for query, want := range cases {
		intent, err := c.Classify(context.Background(), query, nil)
		require.NoError(t, err)
		assert.Equal(t, want, intent.Label, query)
	}
}
