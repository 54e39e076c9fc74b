// Package orchestra runs the full pipeline for one request: sample resources,
// decompose, select agents, execute in dependency order and aggregate.
package orchestra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/theinterneti/augment-adam-sub002/pkg/logx"
	"github.com/theinterneti/augment-adam-sub002/pkg/plan"
	"github.com/theinterneti/augment-adam-sub002/pkg/resources"
	"github.com/theinterneti/augment-adam-sub002/pkg/runner"
	"github.com/theinterneti/augment-adam-sub002/pkg/selector"
)

// ErrNoSubtasks is returned when decomposition yields nothing to execute.
var ErrNoSubtasks = errors.New("decomposition produced no subtasks")

// Stage names used in logs and metrics.
const (
	StageDecompose = "decompose"
	StageSelect    = "select"
	StageExecute   = "execute"
	StageAggregate = "aggregate"
)

// Decomposer splits a request into subtasks.
type Decomposer interface {
	Decompose(ctx context.Context, request string, snap resources.Snapshot) ([]plan.Subtask, error)
}

// Selector assigns an agent configuration to every subtask.
type Selector interface {
	Select(subtasks []plan.Subtask, snap resources.Snapshot) map[string]selector.Assignment
	Order(subtasks []plan.Subtask) []string
}

// Aggregator merges results into the final answer.
type Aggregator interface {
	Aggregate(ctx context.Context, results map[string]runner.Result, subtasks map[string]plan.Subtask) string
}

// Deps are the pipeline stages.
type Deps struct {
	Monitor    resources.Provider
	Decomposer Decomposer
	Selector   Selector
	Runner     runner.Runner
	Aggregator Aggregator

	// Parallel runs independent subtasks concurrently, at most MaxParallel at a time.
	Parallel    bool
	MaxParallel int

	Metrics *Metrics
	Logger  *logx.Logger
}

// Orchestrator coordinates the pipeline stages.
type Orchestrator struct {
	deps   Deps
	logger *logx.Logger
	newID  func() string
}

// New validates deps and creates an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Monitor == nil:
		return nil, fmt.Errorf("orchestra: resource monitor is required")
	case deps.Decomposer == nil:
		return nil, fmt.Errorf("orchestra: decomposer is required")
	case deps.Selector == nil:
		return nil, fmt.Errorf("orchestra: selector is required")
	case deps.Runner == nil:
		return nil, fmt.Errorf("orchestra: runner is required")
	case deps.Aggregator == nil:
		return nil, fmt.Errorf("orchestra: aggregator is required")
	}
	if deps.MaxParallel < 1 {
		deps.MaxParallel = 1
	}
	return &Orchestrator{
		deps:   deps,
		logger: logx.OrNop(deps.Logger),
		newID:  uuid.NewString,
	}, nil
}

// Outcome is everything the pipeline produced for one request.
type Outcome struct {
	RequestID   string                         `json:"request_id"`
	Request     string                         `json:"request"`
	Answer      string                         `json:"answer,omitempty"`
	Subtasks    []plan.Subtask                 `json:"subtasks"`
	Assignments map[string]selector.Assignment `json:"assignments"`
	// SelectionOrder is the order assignments were made in.
	SelectionOrder []string `json:"selection_order"`
	// ExecutionOrder is the dependency-respecting order subtasks were started in.
	ExecutionOrder []string                 `json:"execution_order"`
	Results        map[string]runner.Result `json:"results,omitempty"`
	Snapshot       resources.Snapshot       `json:"snapshot"`
	Duration       time.Duration            `json:"duration"`
}

// Plan decomposes request and assigns agents without executing anything.
func (o *Orchestrator) Plan(ctx context.Context, request string) (*Outcome, error) {
	out := &Outcome{RequestID: o.newID(), Request: request}
	ctx = logx.WithRequestID(ctx, out.RequestID)

	start := time.Now()
	err := o.plan(ctx, out)
	out.Duration = time.Since(start)
	if err != nil {
		o.deps.Metrics.observeRequest("error")
		return nil, err
	}
	return out, nil
}

// Handle runs the whole pipeline. Only a failed decomposition is returned as
// an error; failures after that degrade into the answer.
func (o *Orchestrator) Handle(ctx context.Context, request string) (*Outcome, error) {
	out := &Outcome{RequestID: o.newID(), Request: request}
	ctx = logx.WithRequestID(ctx, out.RequestID)

	start := time.Now()
	if err := o.plan(ctx, out); err != nil {
		o.deps.Metrics.observeRequest("error")
		return nil, err
	}

	stageStart := time.Now()
	out.Results = o.execute(ctx, out)
	o.deps.Metrics.observeStage(StageExecute, time.Since(stageStart))

	stageStart = time.Now()
	out.Answer = o.deps.Aggregator.Aggregate(ctx, out.Results, plan.ByID(out.Subtasks))
	o.deps.Metrics.observeStage(StageAggregate, time.Since(stageStart))

	out.Duration = time.Since(start)
	failed := 0
	for _, r := range out.Results {
		if !r.OK() {
			failed++
		}
	}
	status := "success"
	if failed > 0 {
		status = "partial"
	}
	o.deps.Metrics.observeRequest(status)

	o.logger.Log(logx.LevelInfo, "request completed", map[string]any{
		"request_id": out.RequestID,
		"subtasks":   len(out.Subtasks),
		"failed":     failed,
		"durationMs": out.Duration.Milliseconds(),
	})
	return out, nil
}

func (o *Orchestrator) plan(ctx context.Context, out *Outcome) error {
	snap := o.deps.Monitor.Available(ctx)

	stageStart := time.Now()
	subtasks, err := o.deps.Decomposer.Decompose(ctx, out.Request, snap)
	o.deps.Metrics.observeStage(StageDecompose, time.Since(stageStart))
	if err != nil {
		return fmt.Errorf("decompose request %s: %w", out.RequestID, err)
	}
	if len(subtasks) == 0 {
		return ErrNoSubtasks
	}
	out.Subtasks = subtasks

	// Resources are sampled again: decomposition may have taken long enough
	// for headroom to change.
	stageStart = time.Now()
	out.Snapshot = o.deps.Monitor.Available(ctx)
	out.Assignments = o.deps.Selector.Select(subtasks, out.Snapshot)
	out.SelectionOrder = o.deps.Selector.Order(subtasks)
	o.deps.Metrics.observeStage(StageSelect, time.Since(stageStart))
	o.deps.Metrics.observeSnapshot(out.Snapshot)
	o.deps.Metrics.observeAssignments(out.Assignments)

	if o.deps.Parallel {
		for _, level := range plan.Levels(subtasks) {
			out.ExecutionOrder = append(out.ExecutionOrder, level...)
		}
	} else {
		out.ExecutionOrder = plan.TopologicalOrder(subtasks)
	}
	return nil
}

// execute runs every subtask. A subtask starts only after all of its
// dependencies have a result; failed dependencies do not block dependents.
func (o *Orchestrator) execute(ctx context.Context, out *Outcome) map[string]runner.Result {
	idx := plan.ByID(out.Subtasks)
	results := make(map[string]runner.Result, len(out.Subtasks))

	run := func(ctx context.Context, id string) runner.Result {
		st := idx[id]
		a, ok := out.Assignments[id]
		if !ok {
			// Every subtask is assigned by Select; this guards custom selectors.
			a = selector.Assignment{SubtaskID: id, Expertise: st.Expertise, ModelSize: selector.SizeSmall, Reasoning: selector.ReasoningDisabled}
		}
		r := o.deps.Runner.Execute(ctx, st, a)
		o.deps.Metrics.observeResult(string(st.Expertise), r)
		return r
	}

	if !o.deps.Parallel {
		for _, id := range out.ExecutionOrder {
			results[id] = run(ctx, id)
		}
		return results
	}

	var mu sync.Mutex
	for _, level := range plan.Levels(out.Subtasks) {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.deps.MaxParallel)
		for _, id := range level {
			g.Go(func() error {
				r := run(gctx, id)
				mu.Lock()
				results[id] = r
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait() // runners report failures in their results
	}
	return results
}
