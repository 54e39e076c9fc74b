// Package retry provides retry middleware for backend clients.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llmerrors"
	"github.com/theinterneti/augment-adam-sub002/pkg/logx"
)

// Middleware retries failed Complete calls according to the policy, with exponential backoff.
// Exhausting attempts on a retryable error yields an ErrorTypeServiceUnavailable error.
func Middleware(policy *Policy, logger *logx.Logger) llm.Middleware {
	logger = logx.OrNop(logger)

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				var lastErr error

				for attempt := 1; attempt <= policy.Config.MaxAttempts; attempt++ {
					if attempt > 1 {
						delay := policy.CalculateDelay(attempt)
						logger.Log(logx.LevelWarn, "retrying backend call", map[string]any{
							"attempt": attempt,
							"delay":   delay,
							"model":   req.Model,
							"error":   lastErr,
						})
						if delay > 0 {
							select {
							case <-ctx.Done():
								return llm.CompletionResponse{}, fmt.Errorf("retry cancelled: %w", ctx.Err())
							case <-time.After(delay):
							}
						}
					}

					resp, err := next.Complete(ctx, req)
					if err == nil {
						return resp, nil
					}
					lastErr = err

					if !policy.ShouldRetry(err) || ctx.Err() != nil {
						return llm.CompletionResponse{}, err
					}
				}

				return llm.CompletionResponse{}, llmerrors.NewServiceUnavailableError(lastErr, policy.Config.MaxAttempts)
			},
			next.GetModelName,
		)
	}
}
