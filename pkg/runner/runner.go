// Package runner executes single subtasks against the generation backend.
// Every expertise shares one contract; specializations differ only in their
// system prompt and whether they splice in workspace context.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/metrics"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/resilience/timeout"
	"github.com/theinterneti/augment-adam-sub002/pkg/logx"
	"github.com/theinterneti/augment-adam-sub002/pkg/plan"
	"github.com/theinterneti/augment-adam-sub002/pkg/selector"
	"github.com/theinterneti/augment-adam-sub002/pkg/templates"
)

// DefaultTimeout bounds a subtask call when no timeout is configured.
const DefaultTimeout = 60 * time.Second

// Status is the outcome of one subtask execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the output of one subtask execution.
type Result struct {
	SubtaskID      string        `json:"subtask_id"`
	Content        string        `json:"content"`
	ReasoningTrace string        `json:"reasoning_trace,omitempty"`
	Status         Status        `json:"status"`
	Error          string        `json:"error,omitempty"`
	Model          string        `json:"model,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// OK reports whether the execution succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Runner executes one subtask with its assignment. Execute never returns an
// error: failures are reported in the Result.
type Runner interface {
	Execute(ctx context.Context, st plan.Subtask, a selector.Assignment) Result
}

// ContextProvider supplies optional surrounding context for the active work item.
type ContextProvider interface {
	Context(ctx context.Context) (string, error)
}

// ContextFunc adapts a function to ContextProvider.
type ContextFunc func(ctx context.Context) (string, error)

// Context implements ContextProvider.
func (f ContextFunc) Context(ctx context.Context) (string, error) { return f(ctx) }

// StaticContext always returns the same text.
type StaticContext string

// Context implements ContextProvider.
func (s StaticContext) Context(context.Context) (string, error) { return string(s), nil }

// ModelNamer resolves a model tier to a backend model id.
type ModelNamer interface {
	ModelName(size selector.ModelSize) string
}

// ModelMap is a fixed ModelNamer. Unmapped tiers resolve to "".
type ModelMap map[selector.ModelSize]string

// ModelName implements ModelNamer.
func (m ModelMap) ModelName(size selector.ModelSize) string { return m[size] }

// Slots bounds how many agents of each tier run at once.
type Slots interface {
	Acquire(ctx context.Context, size string) (release func(), err error)
}

// Config holds what every specialized runner shares.
type Config struct {
	Client  llm.LLMClient
	Models  ModelNamer
	Timeout time.Duration
	// Context is consulted only by workspace-aware specializations.
	Context ContextProvider
	// Slots, when set, is the active agent registry.
	Slots  Slots
	Logger *logx.Logger
}

// Specialized runs subtasks of one expertise.
type Specialized struct {
	expertise plan.Expertise
	profile   selector.Profile
	system    string
	client    llm.LLMClient
	models    ModelNamer
	context   ContextProvider
	slots     Slots
	renderer  *templates.Renderer
	logger    *logx.Logger
}

// NewSpecialized creates the runner for expertise from its embedded system prompt.
func NewSpecialized(expertise plan.Expertise, cfg Config) (*Specialized, error) {
	renderer, err := templates.Shared()
	if err != nil {
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}
	system, err := renderer.Render(templates.AgentTemplate(string(expertise)), &templates.TemplateData{})
	if err != nil {
		return nil, fmt.Errorf("no system prompt for %s: %w", expertise, err)
	}

	d := cfg.Timeout
	if d == 0 {
		d = DefaultTimeout
	}
	models := cfg.Models
	if models == nil {
		models = ModelMap{}
	}

	return &Specialized{
		expertise: expertise,
		profile:   selector.ProfileFor(expertise),
		system:    system,
		client:    llm.Chain(cfg.Client, timeout.Middleware(d)),
		models:    models,
		context:   cfg.Context,
		slots:     cfg.Slots,
		renderer:  renderer,
		logger:    logx.OrNop(cfg.Logger).WithComponent("runner/" + string(expertise)),
	}, nil
}

// Expertise returns the specialization.
func (s *Specialized) Expertise() plan.Expertise { return s.expertise }

// Profile returns the subtasks this runner accepts.
func (s *Specialized) Profile() selector.Profile { return s.profile }

// SystemPrompt returns the specialization's system prompt.
func (s *Specialized) SystemPrompt() string { return s.system }

// Execute implements Runner.
func (s *Specialized) Execute(ctx context.Context, st plan.Subtask, a selector.Assignment) Result {
	start := time.Now()
	result := Result{
		SubtaskID: st.ID,
		Model:     s.models.ModelName(a.ModelSize),
	}
	fail := func(err error) Result {
		result.Status = StatusError
		result.Error = err.Error()
		result.Duration = time.Since(start)
		s.logger.Log(logx.LevelWarn, "subtask failed", map[string]any{
			"request_id": logx.RequestID(ctx),
			"subtask":    st.ID,
			"model":      result.Model,
			"error":      result.Error,
		})
		return result
	}

	if s.slots != nil {
		release, err := s.slots.Acquire(ctx, string(a.ModelSize))
		if err != nil {
			return fail(fmt.Errorf("no %s agent slot: %w", a.ModelSize, err))
		}
		defer release()
	}

	prompt, err := s.renderer.Render(templates.SubtaskTemplate, &templates.TemplateData{
		Description: st.Description,
		Context:     s.workspaceContext(ctx),
	})
	if err != nil {
		return fail(err)
	}

	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(s.system),
		llm.NewUserMessage(prompt),
	})
	req.Model = result.Model
	req.Reasoning = a.Reasoning.Enabled()
	req.Temperature = Temperature(st, a)

	ctx = metrics.WithCall(ctx, logx.RequestID(ctx), metrics.StageExecute)
	resp, err := s.client.Complete(ctx, req)
	if err != nil {
		return fail(err)
	}

	trace, body := llm.SplitReasoning(resp.Content)
	if a.Reasoning.Enabled() {
		result.ReasoningTrace = trace
	}
	result.Content = body
	result.Status = StatusSuccess
	result.Duration = time.Since(start)

	s.logger.Log(logx.LevelDebug, "subtask completed", map[string]any{
		"request_id": logx.RequestID(ctx),
		"subtask":    st.ID,
		"model":      result.Model,
		"reasoning":  a.Reasoning,
		"durationMs": result.Duration.Milliseconds(),
	})
	return result
}

// workspaceContext returns the provider's text for workspace-aware runners.
// A failing provider is treated as having no context.
func (s *Specialized) workspaceContext(ctx context.Context) string {
	if s.context == nil || !s.profile.Has(selector.CapabilityWorkspaceAware) {
		return ""
	}
	text, err := s.context.Context(ctx)
	if err != nil {
		s.logger.Log(logx.LevelDebug, "context provider failed", map[string]any{"error": err.Error()})
		return ""
	}
	return strings.TrimSpace(text)
}

// Temperature picks the sampling temperature: procedural work (high
// complexity without reasoning) runs deterministic, everything else uses
// the default.
func Temperature(st plan.Subtask, a selector.Assignment) float32 {
	if st.Complexity == plan.ComplexityHigh && !a.Reasoning.Enabled() {
		return llm.TemperatureDeterministic
	}
	return llm.TemperatureDefault
}
