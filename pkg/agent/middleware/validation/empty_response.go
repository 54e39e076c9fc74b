// Package validation rejects backend responses that carry no usable answer.
package validation

import (
	"context"
	"strings"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llmerrors"
	"github.com/theinterneti/augment-adam-sub002/pkg/logx"
)

// GuidanceMessage is appended as a user turn when the first response was empty.
const GuidanceMessage = "Your previous reply contained no answer. Respond with the requested content."

// EmptyResponseMiddleware retries once with guidance when a response body
// (reasoning trace excluded) is blank, then fails with ErrorTypeEmptyResponse.
func EmptyResponseMiddleware(logger *logx.Logger) llm.Middleware {
	logger = logx.OrNop(logger)

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				const maxAttempts = 2

				for attempt := 1; attempt <= maxAttempts; attempt++ {
					resp, err := next.Complete(ctx, req)
					if err != nil && !llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse) {
						return resp, err //nolint:wrapcheck // pass through unchanged
					}
					if err == nil && !isEmpty(resp) {
						return resp, nil
					}

					logger.Log(logx.LevelWarn, "empty backend response", map[string]any{
						"attempt": attempt,
						"model":   req.Model,
					})

					retryReq := req
					retryReq.Messages = append(append([]llm.CompletionMessage(nil), req.Messages...), llm.NewUserMessage(GuidanceMessage))
					req = retryReq
				}

				return llm.CompletionResponse{}, llmerrors.NewError(
					llmerrors.ErrorTypeEmptyResponse,
					"backend returned no content after guidance",
				)
			},
			next.GetModelName,
		)
	}
}

func isEmpty(resp llm.CompletionResponse) bool {
	_, body := llm.SplitReasoning(resp.Content)
	return strings.TrimSpace(body) == ""
}
