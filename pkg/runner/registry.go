package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/theinterneti/augment-adam-sub002/pkg/logx"
	"github.com/theinterneti/augment-adam-sub002/pkg/plan"
	"github.com/theinterneti/augment-adam-sub002/pkg/selector"
)

// Registry routes subtasks to the runner for their expertise.
type Registry struct {
	mu       sync.RWMutex
	runners  map[plan.Expertise]Runner
	profiles map[plan.Expertise]selector.Profile
	logger   *logx.Logger
}

// NewRegistry creates a specialized runner for every known expertise.
func NewRegistry(cfg Config) (*Registry, error) {
	r := &Registry{
		runners:  make(map[plan.Expertise]Runner, len(plan.AllExpertise)),
		profiles: make(map[plan.Expertise]selector.Profile, len(plan.AllExpertise)),
		logger:   logx.OrNop(cfg.Logger).WithComponent("runner"),
	}
	for _, expertise := range plan.AllExpertise {
		s, err := NewSpecialized(expertise, cfg)
		if err != nil {
			return nil, err
		}
		r.Register(expertise, s, s.Profile())
	}
	return r, nil
}

// Register installs runner for expertise, replacing any existing one.
func (r *Registry) Register(expertise plan.Expertise, runner Runner, profile selector.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[expertise] = runner
	r.profiles[expertise] = profile
}

// For returns the runner for st: the runner registered for its expertise when
// that profile accepts it, otherwise any runner whose profile does (in
// expertise order), otherwise the development runner.
func (r *Registry) For(st plan.Subtask) (Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if runner, ok := r.runners[st.Expertise]; ok && r.profiles[st.Expertise].Matches(st) {
		return runner, true
	}
	for _, expertise := range plan.AllExpertise {
		if runner, ok := r.runners[expertise]; ok && r.profiles[expertise].Matches(st) {
			return runner, true
		}
	}
	runner, ok := r.runners[plan.ExpertiseDevelopment]
	return runner, ok
}

// Execute implements Runner by routing to the matching specialization.
func (r *Registry) Execute(ctx context.Context, st plan.Subtask, a selector.Assignment) Result {
	runner, ok := r.For(st)
	if !ok {
		r.logger.Log(logx.LevelError, "no runner for subtask", map[string]any{
			"subtask":   st.ID,
			"expertise": st.Expertise,
		})
		return Result{
			SubtaskID: st.ID,
			Status:    StatusError,
			Error:     fmt.Sprintf("no runner for expertise %q", st.Expertise),
		}
	}
	return runner.Execute(ctx, st, a)
}
