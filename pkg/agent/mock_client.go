package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
)

// MockLLMClient provides a controllable implementation of LLMClient for testing.
// Responses and errors are consumed in call order unless a handler is set.
// It is safe for concurrent use and records every request it receives.
type MockLLMClient struct {
	mu            sync.Mutex
	responses     []llm.CompletionResponse
	responseIndex int
	errors        []error
	errorIndex    int
	handler       func(llm.CompletionRequest) (llm.CompletionResponse, error)
	requests      []llm.CompletionRequest
	model         string
}

// NewMockLLMClient creates a new mock client with predefined responses.
// A nil entry in errors lets the corresponding call take the next response.
func NewMockLLMClient(responses []llm.CompletionResponse, errors []error) *MockLLMClient {
	return &MockLLMClient{
		responses: responses,
		errors:    errors,
		model:     "mock-model",
	}
}

// NewMockLLMClientFunc creates a mock client that answers every call with handler.
func NewMockLLMClientFunc(handler func(llm.CompletionRequest) (llm.CompletionResponse, error)) *MockLLMClient {
	return &MockLLMClient{
		handler: handler,
		model:   "mock-model",
	}
}

// NewMockLLMClientWithText creates a mock client returning the given texts in order.
func NewMockLLMClientWithText(texts ...string) *MockLLMClient {
	responses := make([]llm.CompletionResponse, len(texts))
	for i, text := range texts {
		responses[i] = llm.CompletionResponse{Content: text, StopReason: "end_turn"}
	}
	return NewMockLLMClient(responses, nil)
}

// Complete returns the next predefined response or error.
//
//nolint:gocritic // CompletionRequest size acceptable for interface consistency
func (m *MockLLMClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	handler := m.handler
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return llm.CompletionResponse{}, err //nolint:wrapcheck // mirror backend behavior
	}

	if handler != nil {
		return handler(req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.errorIndex < len(m.errors) {
		err := m.errors[m.errorIndex]
		m.errorIndex++
		if err != nil {
			return llm.CompletionResponse{}, err
		}
	}

	if m.responseIndex >= len(m.responses) {
		return llm.CompletionResponse{}, fmt.Errorf("mock client: no more responses")
	}

	resp := m.responses[m.responseIndex]
	m.responseIndex++
	return resp, nil
}

// GetModelName returns the mock model name.
func (m *MockLLMClient) GetModelName() string {
	return m.model
}

// CallCount returns how many times Complete was called.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received so far.
func (m *MockLLMClient) Requests() []llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.CompletionRequest(nil), m.requests...)
}

// LastRequest returns the most recent request, or false when there was none.
func (m *MockLLMClient) LastRequest() (llm.CompletionRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return llm.CompletionRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}
