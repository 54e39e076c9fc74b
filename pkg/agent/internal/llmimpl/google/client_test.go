package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
)

func TestConvertMessagesToGemini(t *testing.T) {
	contents, system, err := convertMessagesToGemini([]llm.CompletionMessage{
		llm.NewSystemMessage("You document APIs."),
		llm.NewUserMessage("Document the parser"),
		{Role: llm.RoleAssistant, Content: "Draft"},
		llm.NewUserMessage("Shorter"),
	})
	require.NoError(t, err)
	assert.Equal(t, "You document APIs.", system)
	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)

	_, _, err = convertMessagesToGemini(nil)
	assert.Error(t, err)

	_, _, err = convertMessagesToGemini([]llm.CompletionMessage{llm.NewSystemMessage("only")})
	assert.Error(t, err)
}

func TestGetStopReason(t *testing.T) {
	assert.Equal(t, "end_turn", getStopReason(&genai.Candidate{FinishReason: genai.FinishReasonStop}))
	assert.Equal(t, "max_tokens", getStopReason(&genai.Candidate{FinishReason: genai.FinishReasonMaxTokens}))
	assert.Equal(t, "safety", getStopReason(&genai.Candidate{FinishReason: genai.FinishReasonSafety}))
}

func TestCompleteSeparatesThoughts(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role": "model",
					"parts": []map[string]any{
						{"text": "ordering the sections", "thought": true},
						{"text": "Unified response"},
					},
				},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 14, "candidatesTokenCount": 6},
		})
	}))
	defer srv.Close()

	client := newGeminiClient(genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	}, "gemini-2.5-flash")

	resp, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages:    []llm.CompletionMessage{llm.NewSystemMessage("merge"), llm.NewUserMessage("transcript")},
		Temperature: 0.1,
		Reasoning:   true,
	})
	require.NoError(t, err)

	trace, answer := llm.SplitReasoning(resp.Content)
	assert.Equal(t, "ordering the sections", trace)
	assert.Equal(t, "Unified response", answer)
	assert.Equal(t, 14, resp.PromptTokens)
	assert.Equal(t, 6, resp.CompletionTokens)
	assert.Equal(t, "end_turn", resp.StopReason)

	cfg, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, cfg, "thinkingConfig")
}
