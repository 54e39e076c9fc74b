// Package google adapts Gemini models to the llm.LLMClient interface.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llmerrors"
)

// GeminiClient implements llm.LLMClient on top of the genai SDK.
// The SDK client is created on first use.
type GeminiClient struct {
	config genai.ClientConfig
	model  string

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiClientWithModel creates a Gemini API client whose default model is model.
func NewGeminiClientWithModel(apiKey, model string) *GeminiClient {
	return newGeminiClient(genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model)
}

func newGeminiClient(config genai.ClientConfig, model string) *GeminiClient {
	return &GeminiClient{config: config, model: model}
}

func (g *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	cfg := g.config
	client, err := genai.NewClient(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	g.client = client
	return client, nil
}

// Complete implements the llm.LLMClient interface. Thought parts are returned
// when reasoning is requested and re-embedded between reasoning markers.
//
//nolint:gocritic // CompletionRequest passed by value to match interface
func (g *GeminiClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	client, err := g.sdk(ctx)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, "failed to create Gemini client")
	}

	contents, systemInstruction, err := convertMessagesToGemini(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "message conversion error")
	}

	temperature := in.Temperature
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if in.MaxTokens > 0 {
		config.MaxOutputTokens = int32(in.MaxTokens)
	}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}
	if in.Reasoning {
		config.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}

	model := g.model
	if in.Model != "" {
		model = in.Model
	}

	result, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from Gemini API")
	}

	candidate := result.Candidates[0]
	var text, thoughts strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		if part.Thought {
			thoughts.WriteString(part.Text)
		} else {
			text.WriteString(part.Text)
		}
	}

	response := llm.CompletionResponse{
		Content:    llm.EmbedReasoning(thoughts.String(), text.String()),
		StopReason: getStopReason(candidate),
	}
	if result.UsageMetadata != nil {
		response.PromptTokens = int(result.UsageMetadata.PromptTokenCount)
		response.CompletionTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	return response, nil
}

// GetModelName returns the client's default model.
func (g *GeminiClient) GetModelName() string {
	return g.model
}

// convertMessagesToGemini splits out the system instruction and maps the
// assistant role onto Gemini's "model" role.
func convertMessagesToGemini(messages []llm.CompletionMessage) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("message list cannot be empty")
	}

	var system []string
	var contents []*genai.Content
	for i := range messages {
		msg := &messages[i]

		var role genai.Role
		switch msg.Role {
		case llm.RoleSystem:
			system = append(system, msg.Content)
			continue
		case llm.RoleUser:
			role = genai.RoleUser
		case llm.RoleAssistant:
			role = genai.RoleModel
		default:
			return nil, "", fmt.Errorf("unsupported message role: %s", msg.Role)
		}
		if msg.Content == "" {
			continue
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	if len(contents) == 0 {
		return nil, "", fmt.Errorf("must have at least one non-system message")
	}
	return contents, strings.Join(system, "\n\n"), nil
}

func getStopReason(candidate *genai.Candidate) string {
	switch candidate.FinishReason {
	case genai.FinishReasonStop, "":
		return "end_turn"
	case genai.FinishReasonMaxTokens:
		return "max_tokens"
	default:
		return strings.ToLower(string(candidate.FinishReason))
	}
}

func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llmerrors.Error{
			Type:       llmerrors.TypeForStatus(apiErr.Code),
			Err:        err,
			StatusCode: apiErr.Code,
			Message:    fmt.Sprintf("Gemini API error %d: %s", apiErr.Code, apiErr.Message),
		}
	}
	return llmerrors.Classify(err, 0)
}
