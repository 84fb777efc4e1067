package core

import (
	"encoding/json"
	"time"
)

// ToolCall is the audit record of one executed plan step. Every outcome,
// success or terminal failure, is appended to the turn regardless of whether
// it contributed to the final answer.
type ToolCall struct {
	StepID    string          `json:"step_id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    *ToolResult     `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Attempts  int             `json:"attempts"`
	Latency   time.Duration   `json:"latency"`
	StartedAt time.Time       `json:"started_at"`
}

// Succeeded reports whether the call produced a usable result.
func (c ToolCall) Succeeded() bool { return c.Error == "" && c.Result != nil }

// ToolResult is the structured payload a tool returns. Retrieval tools fill
// Passages; cart tools fill Data with the updated cart state.
type ToolResult struct {
	Passages []Passage      `json:"passages,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Passage is one ranked retrieval result: a product description or review
// snippet with its relevance score and source metadata.
type Passage struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
