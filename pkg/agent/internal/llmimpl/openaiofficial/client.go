// Package openaiofficial adapts OpenAI models to the llm.LLMClient interface
// through the official Go SDK and the Responses API.
package openaiofficial

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llmerrors"
)

// OfficialClient wraps the official OpenAI Go client to implement llm.LLMClient interface.
//
//nolint:govet // Simple struct, field alignment not critical
type OfficialClient struct {
	client openai.Client
	model  string
}

// NewOfficialClientWithModel creates an OpenAI client whose default model is model.
func NewOfficialClientWithModel(apiKey, model string, opts ...option.RequestOption) *OfficialClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OfficialClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// buildParams moves system messages into Instructions and renders the
// remaining turns as a single input transcript.
//
//nolint:gocritic // CompletionRequest passed by value to match interface
func (o *OfficialClient) buildParams(in llm.CompletionRequest) (responses.ResponseNewParams, error) {
	if len(in.Messages) == 0 {
		return responses.ResponseNewParams{}, fmt.Errorf("message list cannot be empty")
	}

	var instructions []string
	var input strings.Builder
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			instructions = append(instructions, msg.Content)
		case llm.RoleAssistant:
			fmt.Fprintf(&input, "Assistant: %s\n\n", msg.Content)
		default:
			input.WriteString(msg.Content)
			input.WriteString("\n\n")
		}
	}

	model := o.model
	if in.Model != "" {
		model = in.Model
	}

	params := responses.ResponseNewParams{
		Model: model,
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(strings.TrimSpace(input.String()))},
	}
	if len(instructions) > 0 {
		params.Instructions = openai.String(strings.Join(instructions, "\n\n"))
	}
	if in.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(in.MaxTokens))
	}

	// Reasoning models reject sampling parameters.
	if in.Reasoning {
		params.Reasoning = shared.ReasoningParam{
			Effort:  shared.ReasoningEffortMedium,
			Summary: shared.ReasoningSummaryAuto,
		}
	} else {
		params.Temperature = openai.Float(float64(in.Temperature))
	}

	return params, nil
}

// Complete implements the llm.LLMClient interface. Reasoning summaries are
// re-embedded between reasoning markers ahead of the answer text.
//
//nolint:gocritic // CompletionRequest passed by value to match interface
func (o *OfficialClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	params, err := o.buildParams(in)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "invalid request")
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	var summaries []string
	for i := range resp.Output {
		item := &resp.Output[i]
		if item.Type != "reasoning" {
			continue
		}
		for _, s := range item.AsReasoning().Summary {
			summaries = append(summaries, s.Text)
		}
	}

	return llm.CompletionResponse{
		Content:          llm.EmbedReasoning(strings.Join(summaries, "\n\n"), resp.OutputText()),
		StopReason:       string(resp.Status),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// GetModelName returns the client's default model.
func (o *OfficialClient) GetModelName() string {
	return o.model
}

func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &llmerrors.Error{
			Type:       llmerrors.TypeForStatus(apiErr.StatusCode),
			Err:        err,
			StatusCode: apiErr.StatusCode,
			Message:    fmt.Sprintf("OpenAI Responses API returned status %d", apiErr.StatusCode),
		}
	}
	return llmerrors.Classify(err, 0)
}
