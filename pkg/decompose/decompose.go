// Package decompose turns a free-form user request into a repaired graph of subtasks.
package decompose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/metrics"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/resilience/timeout"
	"github.com/theinterneti/augment-adam-sub002/pkg/logx"
	"github.com/theinterneti/augment-adam-sub002/pkg/plan"
	"github.com/theinterneti/augment-adam-sub002/pkg/resources"
	"github.com/theinterneti/augment-adam-sub002/pkg/templates"
)

// ErrEmptyRequest is returned when the request is blank.
var ErrEmptyRequest = errors.New("empty request")

// DefaultTimeout bounds the decomposition call when no timeout is configured.
const DefaultTimeout = 120 * time.Second

// Decomposer asks the backend for a subtask list and validates the result.
type Decomposer struct {
	client   llm.LLMClient
	model    string
	timeout  time.Duration
	prune    PruneConfig
	renderer *templates.Renderer
	logger   *logx.Logger
}

// Option configures a Decomposer.
type Option func(*Decomposer)

// WithModel sets the backend model id used for decomposition.
func WithModel(model string) Option {
	return func(d *Decomposer) { d.model = model }
}

// WithTimeout bounds the backend call.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Decomposer) { d.timeout = timeout }
}

// WithPruneConfig replaces the pruning constants.
func WithPruneConfig(cfg PruneConfig) Option {
	return func(d *Decomposer) { d.prune = cfg }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger *logx.Logger) Option {
	return func(d *Decomposer) { d.logger = logger }
}

// New creates a Decomposer calling client.
func New(client llm.LLMClient, opts ...Option) (*Decomposer, error) {
	renderer, err := templates.Shared()
	if err != nil {
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}

	d := &Decomposer{
		timeout:  DefaultTimeout,
		prune:    DefaultPruneConfig(),
		renderer: renderer,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logx.OrNop(d.logger)
	d.client = llm.Chain(client, timeout.Middleware(d.timeout))
	return d, nil
}

// Prompt renders the decomposition prompt for request at the given resources.
func (d *Decomposer) Prompt(request string, snap resources.Snapshot) (string, error) {
	expertise := make([]string, len(plan.AllExpertise))
	for i, e := range plan.AllExpertise {
		expertise[i] = string(e)
	}

	prompt, err := d.renderer.Render(templates.DecomposeTemplate, &templates.TemplateData{
		Request:      request,
		Expertise:    expertise,
		Memory:       snap.Memory,
		CPU:          snap.CPU,
		ActiveAgents: snap.ActiveAgents,
		Constrained:  d.prune.Constrained(snap.Memory),
		MaxSubtasks:  d.prune.Limit(snap.Memory),
	})
	if err != nil {
		return "", fmt.Errorf("render decomposition prompt: %w", err)
	}
	return prompt, nil
}

// Decompose splits request into subtasks sized for the given resources.
// A failed backend call is returned as an error. A response that cannot be
// parsed degrades to a single subtask covering the whole request.
func (d *Decomposer) Decompose(ctx context.Context, request string, snap resources.Snapshot) ([]plan.Subtask, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, ErrEmptyRequest
	}

	prompt, err := d.Prompt(request, snap)
	if err != nil {
		return nil, err
	}

	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage(prompt)})
	req.Model = d.model
	req.MaxTokens = llm.PlanningMaxTokens

	ctx = metrics.WithCall(ctx, logx.RequestID(ctx), metrics.StageDecompose)
	start := time.Now()
	resp, err := d.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("decomposition call failed: %w", err)
	}

	subtasks, err := ParseResponse(resp.Content)
	if err != nil {
		d.logger.Log(logx.LevelWarn, "unparseable decomposition, using whole request", map[string]any{
			"request_id": logx.RequestID(ctx),
			"error":      err.Error(),
		})
		subtasks = Fallback(request)
	}

	subtasks = d.Finalize(subtasks, snap.Memory)
	d.logger.Log(logx.LevelInfo, "decomposed request", map[string]any{
		"request_id": logx.RequestID(ctx),
		"subtasks":   len(subtasks),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return subtasks, nil
}

// Finalize normalizes, prunes and repairs a parsed subtask list.
func (d *Decomposer) Finalize(subtasks []plan.Subtask, memory float64) []plan.Subtask {
	subtasks = Normalize(subtasks)

	if before := len(subtasks); d.prune.Applies(before, memory) {
		subtasks = Prune(subtasks, memory, d.prune)
		d.logger.Log(logx.LevelWarn, "pruned subtasks under memory pressure", map[string]any{
			"memory": memory,
			"from":   before,
			"to":     len(subtasks),
		})
	}

	if report := plan.Repair(subtasks); report.Changed() {
		d.logger.Log(logx.LevelDebug, "repaired dependency graph", map[string]any{
			"cycles_cleared":     strings.Join(report.Cleared, ","),
			"dangling_dropped":   report.DanglingDropped,
			"duplicates_dropped": report.DuplicatesDropped,
		})
	}
	return subtasks
}
