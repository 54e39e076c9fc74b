package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llmerrors"
)

func TestEnsureAlternation(t *testing.T) {
	tests := []struct {
		name         string
		input        []llm.CompletionMessage
		expectSystem string
		expectMsgLen int
		errContains  string
	}{
		{
			name:        "empty messages",
			input:       []llm.CompletionMessage{},
			errContains: "message list cannot be empty",
		},
		{
			name: "system messages extracted and joined",
			input: []llm.CompletionMessage{
				llm.NewSystemMessage("You are a tester"),
				llm.NewSystemMessage("Be concise"),
				llm.NewUserMessage("Write tests"),
			},
			expectSystem: "You are a tester\n\nBe concise",
			expectMsgLen: 1,
		},
		{
			name: "consecutive user messages merged",
			input: []llm.CompletionMessage{
				llm.NewUserMessage("Task"),
				llm.NewUserMessage("Context"),
			},
			expectMsgLen: 1,
		},
		{
			name: "ends with assistant",
			input: []llm.CompletionMessage{
				llm.NewUserMessage("Hello"),
				{Role: llm.RoleAssistant, Content: "Hi"},
			},
			errContains: "last message must be user",
		},
		{
			name: "starts with assistant",
			input: []llm.CompletionMessage{
				{Role: llm.RoleAssistant, Content: "Hi"},
				llm.NewUserMessage("Hello"),
			},
			errContains: "first message must be user",
		},
		{
			name:        "only system",
			input:       []llm.CompletionMessage{llm.NewSystemMessage("rules")},
			errContains: "at least one non-system message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, msgs, err := ensureAlternation(tt.input)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectSystem, system)
			assert.Len(t, msgs, tt.expectMsgLen)
		})
	}
}

func TestBuildParamsReasoning(t *testing.T) {
	client := NewClaudeClientWithModel("key", "claude-sonnet-4-5")

	params, err := client.buildParams(llm.CompletionRequest{
		Messages:    []llm.CompletionMessage{llm.NewUserMessage("plan")},
		MaxTokens:   512,
		Temperature: 0.1,
		Reasoning:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(minReasoningMaxTokens), params.MaxTokens)
	require.NotNil(t, params.Thinking.OfEnabled)
	assert.Equal(t, int64(minThinkingBudget), params.Thinking.OfEnabled.BudgetTokens)
	assert.False(t, params.Temperature.Valid())

	params, err = client.buildParams(llm.CompletionRequest{
		Messages:    []llm.CompletionMessage{llm.NewUserMessage("plan")},
		Model:       "claude-haiku-4-5",
		Temperature: 0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4-5", string(params.Model))
	assert.Equal(t, int64(llm.DefaultMaxTokens), params.MaxTokens)
	assert.Nil(t, params.Thinking.OfEnabled)
	assert.True(t, params.Temperature.Valid())
}

func TestCompleteEmbedsThinking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":   "msg_1",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "thinking", "thinking": "consider the graph", "signature": "sig"},
				{"type": "text", "text": "merged answer"},
			},
			"model":       "claude-sonnet-4-5",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 20, "output_tokens": 9},
		})
	}))
	defer srv.Close()

	client := NewClaudeClientWithModel("key", "claude-sonnet-4-5", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	resp, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages:  []llm.CompletionMessage{llm.NewUserMessage("merge")},
		Reasoning: true,
	})
	require.NoError(t, err)

	trace, body := llm.SplitReasoning(resp.Content)
	assert.Equal(t, "consider the graph", trace)
	assert.Equal(t, "merged answer", body)
	assert.Equal(t, 20, resp.PromptTokens)
	assert.Equal(t, 9, resp.CompletionTokens)
}

func TestCompleteClassifiesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	client := NewClaudeClientWithModel("bad", "claude-sonnet-4-5", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth))
}
