// Package aggregate merges per-subtask results into one answer.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/metrics"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/resilience/timeout"
	"github.com/theinterneti/augment-adam-sub002/pkg/logx"
	"github.com/theinterneti/augment-adam-sub002/pkg/plan"
	"github.com/theinterneti/augment-adam-sub002/pkg/runner"
	"github.com/theinterneti/augment-adam-sub002/pkg/templates"
	"github.com/theinterneti/augment-adam-sub002/pkg/utils"
)

// NoResultsMessage is returned when there is nothing to aggregate.
const NoResultsMessage = "No results were produced for this request."

const (
	// DefaultTimeout bounds the synthesis call when no timeout is configured.
	DefaultTimeout = 120 * time.Second

	// DefaultEntryTokens caps each subtask's output in the synthesis transcript.
	DefaultEntryTokens = 3000
)

// Aggregator merges results, calling the backend for synthesis when there is
// more than one.
type Aggregator struct {
	client      llm.LLMClient
	model       string
	timeout     time.Duration
	entryTokens int
	counter     *utils.TokenCounter
	renderer    *templates.Renderer
	logger      *logx.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithModel sets the backend model id used for synthesis.
func WithModel(model string) Option {
	return func(a *Aggregator) { a.model = model }
}

// WithTimeout bounds the synthesis call.
func WithTimeout(timeout time.Duration) Option {
	return func(a *Aggregator) { a.timeout = timeout }
}

// WithEntryTokens caps each transcript entry; zero or less disables the cap.
func WithEntryTokens(n int) Option {
	return func(a *Aggregator) { a.entryTokens = n }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger *logx.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// New creates an Aggregator calling client.
func New(client llm.LLMClient, opts ...Option) (*Aggregator, error) {
	renderer, err := templates.Shared()
	if err != nil {
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}

	a := &Aggregator{
		timeout:     DefaultTimeout,
		entryTokens: DefaultEntryTokens,
		counter:     utils.SharedTokenCounter(),
		renderer:    renderer,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logx.OrNop(a.logger)
	a.client = llm.Chain(client, timeout.Middleware(a.timeout))
	return a, nil
}

// Aggregate returns the final answer. It never fails: with no results it
// returns NoResultsMessage, a single successful result is returned verbatim,
// and a failed synthesis call degrades to Concatenate.
func (a *Aggregator) Aggregate(ctx context.Context, results map[string]runner.Result, subtasks map[string]plan.Subtask) string {
	order := Order(results, subtasks)

	switch len(order) {
	case 0:
		return NoResultsMessage
	case 1:
		if r := results[order[0]]; r.OK() {
			return r.Content
		}
		return Concatenate(order, results, subtasks)
	}

	answer, err := a.synthesize(ctx, order, results, subtasks)
	if err != nil {
		a.logger.Log(logx.LevelWarn, "synthesis failed, concatenating results", map[string]any{
			"request_id": logx.RequestID(ctx),
			"results":    len(order),
			"error":      err.Error(),
		})
		return Concatenate(order, results, subtasks)
	}
	return answer
}

func (a *Aggregator) synthesize(ctx context.Context, order []string, results map[string]runner.Result, subtasks map[string]plan.Subtask) (string, error) {
	system, err := a.renderer.Render(templates.SynthesisTemplate, &templates.TemplateData{})
	if err != nil {
		return "", err //nolint:wrapcheck // renderer errors name the template
	}

	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(system),
		llm.NewUserMessage(a.Transcript(order, results, subtasks)),
	})
	req.Model = a.model
	req.Reasoning = true
	req.Temperature = llm.TemperatureSynthesis
	req.MaxTokens = llm.PlanningMaxTokens

	ctx = metrics.WithCall(ctx, logx.RequestID(ctx), metrics.StageSynthesize)
	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("synthesis call failed: %w", err)
	}

	_, body := llm.SplitReasoning(resp.Content)
	if body == "" {
		return "", fmt.Errorf("synthesis returned no answer")
	}
	return body, nil
}

// Transcript renders results in order as the synthesis input. Each entry
// carries the subtask description, expertise, status and output (or error),
// with output capped at the configured token budget.
func (a *Aggregator) Transcript(order []string, results map[string]runner.Result, subtasks map[string]plan.Subtask) string {
	var sb strings.Builder
	for i, id := range order {
		st, r := subtasks[id], results[id]

		fmt.Fprintf(&sb, "### Subtask %d: %s\n", i+1, describe(id, st))
		if st.Expertise != "" {
			fmt.Fprintf(&sb, "Expertise: %s\n", st.Expertise)
		}
		fmt.Fprintf(&sb, "Status: %s\n\n", r.Status)

		if r.OK() {
			content := r.Content
			if a.entryTokens > 0 {
				content = a.counter.TruncateToTokenLimit(content, a.entryTokens)
			}
			sb.WriteString(content)
		} else {
			sb.WriteString(errorMarker(r))
		}
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

// Concatenate joins results in order, each under its subtask description as a
// heading, with failed subtasks shown as "Error: ..." lines.
func Concatenate(order []string, results map[string]runner.Result, subtasks map[string]plan.Subtask) string {
	sections := make([]string, 0, len(order))
	for _, id := range order {
		r := results[id]
		body := r.Content
		if !r.OK() {
			body = errorMarker(r)
		}
		sections = append(sections, "## "+describe(id, subtasks[id])+"\n\n"+strings.TrimSpace(body))
	}
	return strings.Join(sections, "\n\n")
}

// Order returns the ids of results dependency-first. Subtasks are walked in
// id order so identical graphs always give the same order; results without a
// known subtask come last, sorted by id.
func Order(results map[string]runner.Result, subtasks map[string]plan.Subtask) []string {
	known := make([]plan.Subtask, 0, len(subtasks))
	for _, st := range subtasks {
		known = append(known, st)
	}
	sort.Slice(known, func(i, j int) bool { return known[i].ID < known[j].ID })

	order := make([]string, 0, len(results))
	for _, id := range plan.TopologicalOrder(known) {
		if _, ok := results[id]; ok {
			order = append(order, id)
		}
	}

	var orphans []string
	for id := range results {
		if _, ok := subtasks[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	return append(order, orphans...)
}

func describe(id string, st plan.Subtask) string {
	if d := strings.TrimSpace(st.Description); d != "" {
		return d
	}
	return id
}

func errorMarker(r runner.Result) string {
	msg := r.Error
	if msg == "" {
		msg = "subtask failed"
	}
	return "Error: " + msg
}
