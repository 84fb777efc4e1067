package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockModel is an in-memory Model for tests and examples. Responses are
// matched by substring against the last user message; unmatched prompts fall
// back to a generic echo. FailWith forces every call to error, FailNTimes
// only the next n calls, exercising fallback and retry paths.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	failWith  error
	failNext  int
	failErr   error
	calls     int
}

// NewMockModel constructs an empty mock.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: map[string]string{},
	}
}

// AddResponse registers a canned reply for prompts containing substr.
func (m *MockModel) AddResponse(substr, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[substr] = response
}

// FailWith makes subsequent calls return err instead of generating.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// FailNTimes makes the next n calls return err, then generates normally.
func (m *MockModel) FailNTimes(err error, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
	m.failNext = n
}

// Calls returns how many times Generate has been invoked.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements Model. Streaming requests emit word-sized deltas
// before the final chunk.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.calls++
	failWith := m.failWith
	if failWith == nil && m.failNext > 0 {
		m.failNext--
		failWith = m.failErr
	}
	full := m.lookupLocked(req)
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if failWith != nil {
			errCh <- failWith
			return
		}
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}
		if req.Stream {
			for _, word := range strings.SplitAfter(full, " ") {
				if word == "" {
					continue
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Text: word, Partial: true}:
				}
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Text: full, Partial: false, FinishReason: "stop"}:
		}
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

func (m *MockModel) lookupLocked(req Request) string {
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = req.Messages[i].Text
			break
		}
	}
	probe := last + "\n" + req.System
	for substr, response := range m.responses {
		if strings.Contains(probe, substr) {
			return response
		}
	}
	return fmt.Sprintf("Mock response to: %s", last)
}
