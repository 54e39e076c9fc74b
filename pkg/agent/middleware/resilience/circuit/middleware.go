package circuit

import (
	"context"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
)

// Middleware rejects calls while the breaker for the requested model is open.
// The model is taken from req.Model, falling back to the client's name.
func Middleware(registry *Registry) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				model := req.Model
				if model == "" {
					model = next.GetModelName()
				}
				breaker := registry.For(model)

				if !breaker.Allow() {
					return llm.CompletionResponse{}, &Error{Model: model, State: breaker.GetState()}
				}

				resp, err := next.Complete(ctx, req)
				breaker.Record(err == nil)

				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}
