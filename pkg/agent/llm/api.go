// Package llm provides interfaces and types for Large Language Model client implementations.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem CompletionRole = "system"
	// RoleUser indicates a message from the human user.
	RoleUser CompletionRole = "user"
	// RoleAssistant indicates a message from the AI assistant.
	RoleAssistant CompletionRole = "assistant"
)

const (
	// DefaultMaxTokens is the output budget used when a request does not set one.
	DefaultMaxTokens = 4096

	// PlanningMaxTokens is the output budget for decomposition and synthesis calls,
	// which process the whole request or the whole transcript.
	PlanningMaxTokens = 8192

	// TemperatureDefault is the default temperature for planning and judgment tasks.
	TemperatureDefault = 0.3

	// TemperatureDeterministic is the temperature for procedural, reproducible tasks.
	TemperatureDeterministic = 0.2

	// TemperatureSynthesis is the temperature for merging subtask outputs.
	// Faithfulness to the transcript matters more than variety.
	TemperatureSynthesis = 0.1
)

// Reasoning trace markers. Backends that return the reasoning segment separately
// re-embed it between these markers so callers see one convention.
const (
	ReasoningOpen  = "<think>"
	ReasoningClose = "</think>"
)

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Role    CompletionRole
	Content string
}

// CompletionRequest represents a request to generate a completion.
//
//nolint:govet // value semantics preferred over pointer indirection
type CompletionRequest struct {
	Messages    []CompletionMessage
	Model       string // Backend model id; empty means the client's default
	MaxTokens   int
	Temperature float32
	Reasoning   bool // Ask for an explicit reasoning trace before the answer
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	Content          string // Main response text, reasoning embedded between markers when present
	StopReason       string // Why the response stopped: "end_turn", "max_tokens", etc.
	PromptTokens     int
	CompletionTokens int
}

// LLMClient defines the interface for language model interactions.
type LLMClient interface { //nolint:revive // Keep name for backward compatibility
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model name for this LLM client.
	GetModelName() string
}

// NewCompletionRequest creates a new completion request with default values.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureDefault,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{
		Role:    RoleSystem,
		Content: content,
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{
		Role:    RoleUser,
		Content: content,
	}
}

// EmbedReasoning joins a separately returned reasoning segment and the answer
// body using the marker convention. An empty trace returns the body unchanged.
func EmbedReasoning(trace, body string) string {
	trace = strings.TrimSpace(trace)
	if trace == "" {
		return body
	}
	return ReasoningOpen + "\n" + trace + "\n" + ReasoningClose + "\n" + body
}

// SplitReasoning separates the reasoning trace from the final answer.
// Every marked segment is removed from the body and the segments are joined
// into the trace. An unterminated open marker treats the remainder as trace.
func SplitReasoning(text string) (trace, body string) {
	var traces []string
	var rest strings.Builder

	remaining := text
	for {
		start := strings.Index(remaining, ReasoningOpen)
		if start == -1 {
			rest.WriteString(remaining)
			break
		}
		rest.WriteString(remaining[:start])
		afterOpen := remaining[start+len(ReasoningOpen):]

		end := strings.Index(afterOpen, ReasoningClose)
		if end == -1 {
			traces = append(traces, strings.TrimSpace(afterOpen))
			break
		}
		traces = append(traces, strings.TrimSpace(afterOpen[:end]))
		remaining = afterOpen[end+len(ReasoningClose):]
	}

	nonEmpty := traces[:0]
	for _, t := range traces {
		if t != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}

	return strings.Join(nonEmpty, "\n\n"), strings.TrimSpace(rest.String())
}

// LLMConfig represents configuration for an LLM client.
type LLMConfig struct { //nolint:revive // Keep name for backward compatibility
	Provider    string
	APIKey      string
	ModelName   string
	Host        string
	MaxTokens   int
	Temperature float32
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	}
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}
