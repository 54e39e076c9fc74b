package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llmerrors"
	"github.com/theinterneti/augment-adam-sub002/pkg/logx"
	"github.com/theinterneti/augment-adam-sub002/pkg/utils"
)

// UsageExtractor returns prompt and completion token counts for a call.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor prefers backend-reported usage and falls back to tiktoken estimates.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	promptTokens, completionTokens = resp.PromptTokens, resp.CompletionTokens

	if promptTokens == 0 {
		var sb strings.Builder
		for i := range req.Messages {
			sb.WriteString(req.Messages[i].Content)
			sb.WriteString("\n")
		}
		promptTokens = utils.CountTokensSimple(sb.String())
	}
	if completionTokens == 0 {
		completionTokens = utils.CountTokensSimple(resp.Content)
	}
	return promptTokens, completionTokens
}

// Middleware records latency, token usage and outcome of every Complete call.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}
	logger = logx.OrNop(logger)

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := req.Model
				if model == "" {
					model = next.GetModelName()
				}

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
				}

				call := CallFromContext(ctx)
				recorder.ObserveRequest(model, call, promptTokens, completionTokens, err == nil, errorLabel(err), duration)

				logger.Log(logx.LevelDebug, "backend call", map[string]any{
					"model":      model,
					"request":    call.RequestID,
					"stage":      call.Stage,
					"tokens":     promptTokens + completionTokens,
					"success":    err == nil,
					"durationMs": duration.Milliseconds(),
				})

				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}

// errorLabel classifies errors for metrics labeling.
func errorLabel(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case strings.HasPrefix(err.Error(), "circuit breaker"):
		return "circuit_breaker"
	}
	var llmErr *llmerrors.Error
	if errors.As(err, &llmErr) {
		return llmErr.Type.String()
	}
	return "unknown"
}
