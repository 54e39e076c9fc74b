// Package agent builds the generation backend used by every pipeline stage.
//
// The package is organized as follows:
//   - llm: request/response types, the LLMClient contract and middleware chaining
//   - llmerrors: classification of backend failures
//   - middleware: metrics, retry, circuit breaking, timeouts and empty-response validation
//   - internal/llmimpl: provider adapters (Ollama, Anthropic, OpenAI, Gemini)
//
// LLMClientFactory wires the adapters to configuration and wraps them in the
// middleware chain; its Backend routes each request to the provider serving
// the requested model. MockLLMClient is a scripted double for tests.
package agent
