package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/internal/llmimpl/anthropic"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/internal/llmimpl/google"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/internal/llmimpl/ollama"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/internal/llmimpl/openaiofficial"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/metrics"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/resilience/circuit"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/resilience/retry"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/validation"
	"github.com/theinterneti/augment-adam-sub002/pkg/config"
	"github.com/theinterneti/augment-adam-sub002/pkg/logx"
	"github.com/theinterneti/augment-adam-sub002/pkg/selector"
)

// LLMClientFactory creates provider clients with properly configured middleware chains.
// One client is built per provider; the model is chosen per request through
// CompletionRequest.Model, so circuit breakers and metrics are keyed by model.
type LLMClientFactory struct {
	config          *config.Config
	metricsRecorder metrics.Recorder
	circuitBreakers *circuit.Registry
	retryPolicy     *retry.Policy
	logger          *logx.Logger

	mu      sync.Mutex
	clients map[string]llm.LLMClient

	// newRaw builds the provider client; replaced in tests.
	newRaw func(provider, model string) (llm.LLMClient, error)
}

// NewLLMClientFactory creates a new LLM client factory with the given configuration.
// A nil recorder disables metrics.
func NewLLMClientFactory(cfg *config.Config, recorder metrics.Recorder, logger *logx.Logger) *LLMClientFactory {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	f := &LLMClientFactory{
		config:          cfg,
		metricsRecorder: recorder,
		circuitBreakers: circuit.NewRegistry(cfg.Resilience.Circuit),
		retryPolicy:     retry.NewPolicy(cfg.Resilience.Retry, nil),
		logger:          logx.OrNop(logger),
		clients:         make(map[string]llm.LLMClient),
	}
	f.newRaw = f.rawClient
	return f
}

// rawClient creates the unwrapped client for a provider.
func (f *LLMClientFactory) rawClient(provider, model string) (llm.LLMClient, error) {
	providers := f.config.Providers
	switch provider {
	case config.ProviderOllama:
		return ollama.NewOllamaClientWithModel(providers.Ollama.Host, model), nil
	case config.ProviderAnthropic:
		if providers.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("provider %s: %s is not set", provider, config.EnvAnthropicAPIKey)
		}
		return anthropic.NewClaudeClientWithModel(providers.Anthropic.APIKey, model), nil
	case config.ProviderOpenAI:
		if providers.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("provider %s: %s is not set", provider, config.EnvOpenAIAPIKey)
		}
		return openaiofficial.NewOfficialClientWithModel(providers.OpenAI.APIKey, model), nil
	case config.ProviderGoogle:
		if providers.Google.APIKey == "" {
			return nil, fmt.Errorf("provider %s: %s is not set", provider, config.EnvGoogleAPIKey)
		}
		return google.NewGeminiClientWithModel(providers.Google.APIKey, model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// ClientForProvider returns the middleware-wrapped client for provider, building it on first use.
func (f *LLMClientFactory) ClientForProvider(provider string) (llm.LLMClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[provider]; ok {
		return client, nil
	}

	rawClient, err := f.newRaw(provider, f.defaultModelFor(provider))
	if err != nil {
		return nil, err
	}

	// Metrics -> CircuitBreaker -> Retry -> EmptyResponse -> RawClient.
	// Per-call timeouts are applied by each pipeline stage with its own budget.
	client := llm.Chain(rawClient,
		metrics.Middleware(f.metricsRecorder, nil, f.logger),
		circuit.Middleware(f.circuitBreakers),
		retry.Middleware(f.retryPolicy, f.logger),
		validation.EmptyResponseMiddleware(f.logger),
	)
	f.clients[provider] = client
	return client, nil
}

// defaultModelFor returns the first configured model (in size order) served by provider.
func (f *LLMClientFactory) defaultModelFor(provider string) string {
	for _, size := range selector.AllSizes {
		if ref, ok := f.config.ModelFor(size); ok && ref.Provider == provider {
			return ref.Name
		}
	}
	return ""
}

// ModelName returns the backend model id serving size, falling back to the medium tier.
func (f *LLMClientFactory) ModelName(size selector.ModelSize) string {
	if ref, ok := f.config.ModelFor(size); ok {
		return ref.Name
	}
	ref, _ := f.config.ModelFor(selector.SizeMedium)
	return ref.Name
}

// ProviderFor returns the provider configured for a backend model id.
// Ids that no tier maps to are served by Ollama.
func (f *LLMClientFactory) ProviderFor(model string) string {
	for _, size := range selector.AllSizes {
		if ref, ok := f.config.ModelFor(size); ok && ref.Name == model {
			return ref.Provider
		}
	}
	return config.ProviderOllama
}

// CircuitStates reports the breaker state of every model called so far.
func (f *LLMClientFactory) CircuitStates() map[string]circuit.State {
	return f.circuitBreakers.States()
}

// Backend returns a client that routes each request to the provider serving
// req.Model. An empty model is served by the medium tier.
func (f *LLMClientFactory) Backend() llm.LLMClient {
	return &Backend{factory: f}
}

// Backend dispatches completion requests across providers by model id.
type Backend struct {
	factory *LLMClientFactory
}

// Complete implements llm.LLMClient.
//
//nolint:gocritic // CompletionRequest size acceptable for interface consistency
func (b *Backend) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if req.Model == "" {
		req.Model = b.GetModelName()
	}
	provider := b.factory.ProviderFor(req.Model)

	client, err := b.factory.ClientForProvider(provider)
	if err != nil {
		return llm.CompletionResponse{}, fmt.Errorf("model %s: %w", req.Model, err)
	}
	return client.Complete(ctx, req) //nolint:wrapcheck // errors are classified by the middleware chain
}

// GetModelName returns the medium-tier model.
func (b *Backend) GetModelName() string {
	return b.factory.ModelName(selector.SizeMedium)
}
