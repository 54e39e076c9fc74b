// Package anthropic adapts Anthropic Claude models to the llm.LLMClient interface.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llmerrors"
)

const (
	// minThinkingBudget is the smallest extended-thinking budget the API accepts.
	minThinkingBudget = 1024
	// minReasoningMaxTokens keeps room for an answer after the thinking budget.
	minReasoningMaxTokens = 2 * minThinkingBudget
)

// ClaudeClient wraps the Anthropic API client to implement llm.LLMClient interface.
//
//nolint:govet // Simple client struct, logical grouping preferred
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudeClientWithModel creates a Claude client whose default model is model.
func NewClaudeClientWithModel(apiKey, model string, opts ...option.RequestOption) *ClaudeClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &ClaudeClient{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
	}
}

// ensureAlternation extracts system messages into the system prompt and merges
// consecutive user turns so the remaining list strictly alternates and ends with user.
func ensureAlternation(messages []llm.CompletionMessage) (systemPrompt string, alternating []llm.CompletionMessage, err error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	var systemParts []string
	var userParts []string
	flush := func() {
		if len(userParts) > 0 {
			alternating = append(alternating, llm.CompletionMessage{
				Role:    llm.RoleUser,
				Content: strings.Join(userParts, "\n\n"),
			})
			userParts = nil
		}
	}

	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case llm.RoleAssistant:
			flush()
			if len(alternating) == 0 {
				return "", nil, fmt.Errorf("first message must be user role, got: %s", msg.Role)
			}
			if alternating[len(alternating)-1].Role == llm.RoleAssistant {
				return "", nil, fmt.Errorf("alternation violation at index %d: consecutive assistant messages", i)
			}
			alternating = append(alternating, *msg)
		default:
			userParts = append(userParts, msg.Content)
		}
	}
	flush()

	if len(alternating) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}
	if last := alternating[len(alternating)-1]; last.Role != llm.RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got: %s", last.Role)
	}

	return strings.Join(systemParts, "\n\n"), alternating, nil
}

// buildParams converts a completion request into Messages API parameters.
// Reasoning requests enable extended thinking; the API then requires the
// default temperature, so the requested one is dropped.
//
//nolint:gocritic // CompletionRequest passed by value to match interface
func (c *ClaudeClient) buildParams(in llm.CompletionRequest) (anthropic.MessageNewParams, error) {
	systemPrompt, alternating, err := ensureAlternation(in.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	messages := make([]anthropic.MessageParam, 0, len(alternating))
	for i := range alternating {
		block := anthropic.NewTextBlock(alternating[i].Content)
		if alternating[i].Role == llm.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	model := c.model
	if in.Model != "" {
		model = anthropic.Model(in.Model)
	}

	maxTokens := int64(in.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	if in.Reasoning {
		if params.MaxTokens < minReasoningMaxTokens {
			params.MaxTokens = minReasoningMaxTokens
		}
		budget := params.MaxTokens / 2
		if budget < minThinkingBudget {
			budget = minThinkingBudget
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	} else {
		params.Temperature = anthropic.Float(float64(in.Temperature))
	}

	return params, nil
}

// Complete implements the llm.LLMClient interface.
//
//nolint:gocritic // CompletionRequest is passed by value to match interface
func (c *ClaudeClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	params, err := c.buildParams(in)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "message alternation error")
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty response from Claude API")
	}

	var text, thinking strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "thinking":
			thinking.WriteString(block.AsThinking().Thinking)
		}
	}

	return llm.CompletionResponse{
		Content:          llm.EmbedReasoning(thinking.String(), text.String()),
		StopReason:       string(resp.StopReason),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// GetModelName returns the client's default model.
func (c *ClaudeClient) GetModelName() string {
	return string(c.model)
}

// classifyError maps Anthropic SDK errors to our structured error types.
func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &llmerrors.Error{
			Type:       llmerrors.TypeForStatus(apiErr.StatusCode),
			Err:        err,
			StatusCode: apiErr.StatusCode,
			Message:    fmt.Sprintf("anthropic API returned status %d", apiErr.StatusCode),
		}
	}
	return llmerrors.Classify(err, 0)
}
