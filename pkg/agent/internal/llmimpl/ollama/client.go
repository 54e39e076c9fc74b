// Package ollama adapts the local Ollama runtime to the llm.LLMClient interface.
// Ollama serves the sized model tiers, so the request's Model selects the tag.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llmerrors"
)

// DefaultHost is used when the configured host cannot be parsed.
const DefaultHost = "http://localhost:11434"

// Client wraps the Ollama API client to implement llm.LLMClient interface.
type Client struct {
	client *api.Client
	model  string
}

// NewOllamaClientWithModel creates a client for hostURL whose default model is model.
func NewOllamaClientWithModel(hostURL, model string) *Client {
	parsedURL, err := url.Parse(hostURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		parsedURL, _ = url.Parse(DefaultHost)
	}

	return &Client{
		client: api.NewClient(parsedURL, http.DefaultClient),
		model:  model,
	}
}

// Complete implements the llm.LLMClient interface. When in.Reasoning is set the
// model's think mode is enabled and the thinking text is re-embedded between
// reasoning markers ahead of the answer.
//
//nolint:gocritic // CompletionRequest size acceptable for interface consistency
func (o *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	messages, err := convertMessagesToOllama(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "message conversion error")
	}

	model := in.Model
	if model == "" {
		model = o.model
	}

	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Think:    &api.ThinkValue{Value: in.Reasoning},
		Options: map[string]any{
			"temperature": in.Temperature,
		},
	}
	if in.MaxTokens > 0 {
		req.Options["num_predict"] = in.MaxTokens
	}

	var response api.ChatResponse
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}

	content := response.Message.Content
	if in.Reasoning {
		content = llm.EmbedReasoning(response.Message.Thinking, content)
	}

	return llm.CompletionResponse{
		Content:          content,
		StopReason:       getStopReason(&response),
		PromptTokens:     response.PromptEvalCount,
		CompletionTokens: response.EvalCount,
	}, nil
}

// GetModelName returns the client's default model.
func (o *Client) GetModelName() string {
	return o.model
}

func convertMessagesToOllama(messages []llm.CompletionMessage) ([]api.Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("message list cannot be empty")
	}

	result := make([]api.Message, 0, len(messages))
	for i := range messages {
		result = append(result, api.Message{
			Role:    string(messages[i].Role),
			Content: messages[i].Content,
		})
	}
	return result, nil
}

// getStopReason converts Ollama's done_reason to our stop reason format.
func getStopReason(resp *api.ChatResponse) string {
	if !resp.Done {
		return "incomplete"
	}

	switch resp.DoneReason {
	case "stop", "":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return resp.DoneReason
	}
}

// classifyError converts Ollama errors to our error types, keeping the cause.
func classifyError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		errType := llmerrors.TypeForStatus(statusErr.StatusCode)
		if strings.Contains(statusErr.ErrorMessage, "not found") {
			errType = llmerrors.ErrorTypeBadPrompt
		}
		return &llmerrors.Error{
			Type:       errType,
			Err:        err,
			StatusCode: statusErr.StatusCode,
			Message:    fmt.Sprintf("ollama: %s", statusErr.ErrorMessage),
		}
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "ollama server not reachable")
	case strings.Contains(errStr, "model") && strings.Contains(errStr, "not found"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "ollama model not found")
	default:
		return llmerrors.Classify(err, 0)
	}
}
