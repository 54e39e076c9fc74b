// Package selector assigns a model tier and reasoning mode to every subtask,
// degrading toward cheaper tiers when the host lacks headroom.
package selector

import (
	"github.com/theinterneti/augment-adam-sub002/pkg/logx"
	"github.com/theinterneti/augment-adam-sub002/pkg/plan"
	"github.com/theinterneti/augment-adam-sub002/pkg/resources"
)

// Assignment is the agent configuration chosen for one subtask.
type Assignment struct {
	SubtaskID string         `json:"subtask_id"`
	Expertise plan.Expertise `json:"expertise"`
	ModelSize ModelSize      `json:"model_size"`
	Reasoning ReasoningMode  `json:"reasoning"`
	// Degraded is set when the admission check forced a cheaper choice.
	Degraded bool `json:"degraded,omitempty"`
	// Requested is the tier before degradation.
	Requested ModelSize `json:"requested,omitempty"`
}

// PreferenceSource is the read-only configuration consulted on every Select.
type PreferenceSource interface {
	PreferredModelSize() ModelSize
	PreferReasoning() bool
}

// Preferences is a fixed PreferenceSource.
type Preferences struct {
	ModelSize ModelSize
	Reasoning bool
}

func (p Preferences) PreferredModelSize() ModelSize {
	if p.ModelSize == "" {
		return SizeAuto
	}
	return p.ModelSize
}

func (p Preferences) PreferReasoning() bool { return p.Reasoning }

// DefaultLadder is the degradation order tried after the admission check fails.
//
//nolint:gochecknoglobals
var DefaultLadder = []ModelSize{SizeMedium, SizeSmall, SizeTiny}

// Selector maps subtasks to assignments.
type Selector struct {
	policy *PolicyTable
	costs  Costs
	ladder []ModelSize
	prefs  PreferenceSource
	logger *logx.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithPolicy replaces the policy table.
func WithPolicy(t *PolicyTable) Option {
	return func(s *Selector) { s.policy = t }
}

// WithCosts replaces the cost table.
func WithCosts(c Costs) Option {
	return func(s *Selector) { s.costs = c }
}

// WithLadder replaces the degradation ladder.
func WithLadder(sizes ...ModelSize) Option {
	return func(s *Selector) { s.ladder = sizes }
}

// WithPreferences sets the user override source.
func WithPreferences(p PreferenceSource) Option {
	return func(s *Selector) { s.prefs = p }
}

// WithLogger sets the logger.
func WithLogger(l *logx.Logger) Option {
	return func(s *Selector) { s.logger = l }
}

// New returns a Selector with the default policy, costs and ladder.
func New(opts ...Option) *Selector {
	s := &Selector{
		policy: DefaultPolicy(),
		costs:  DefaultCosts(),
		ladder: DefaultLadder,
		prefs:  Preferences{ModelSize: SizeAuto},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logx.OrNop(s.logger)
	return s
}

// Admit reports whether snap has headroom for cost on both resources.
func Admit(cost Cost, snap resources.Snapshot) bool {
	return snap.Memory >= cost.Memory && snap.CPU >= cost.CPU
}

// EstimateCost prices a tier with the selector's cost table.
func (s *Selector) EstimateCost(size ModelSize, reasoning ReasoningMode) Cost {
	return s.costs.Estimate(size, reasoning)
}

// Order returns the order in which Select assigns subtasks: ascending
// dependency count, ties broken by id.
func (s *Selector) Order(subtasks []plan.Subtask) []string {
	return plan.OrderByDependencyCount(subtasks)
}

// Select assigns every subtask against the same snapshot.
func (s *Selector) Select(subtasks []plan.Subtask, snap resources.Snapshot) map[string]Assignment {
	idx := plan.Index(subtasks)
	assignments := make(map[string]Assignment, len(subtasks))
	for _, id := range s.Order(subtasks) {
		assignments[id] = s.Assign(*idx[id], snap)
	}
	return assignments
}

// Assign picks the configuration for one subtask: policy lookup, user
// overrides, admission check, then the degradation ladder. The smallest tier
// is accepted unconditionally when nothing else fits.
func (s *Selector) Assign(st plan.Subtask, snap resources.Snapshot) Assignment {
	base := s.policy.Lookup(st.Expertise, st.Complexity)
	if size := s.prefs.PreferredModelSize(); size != SizeAuto && size != "" {
		base.ModelSize = size
	}
	if s.prefs.PreferReasoning() {
		base.Reasoning = ReasoningEnabled
	}

	assignment := Assignment{
		SubtaskID: st.ID,
		Expertise: st.Expertise,
		ModelSize: base.ModelSize,
		Reasoning: base.Reasoning,
	}

	baseCost := s.costs.Estimate(base.ModelSize, base.Reasoning)
	if Admit(baseCost, snap) {
		s.logger.Debug("subtask %s -> %s (reasoning %s)", st.ID, base.ModelSize, base.Reasoning)
		return assignment
	}

	chosen := s.costs.Smallest()
	for _, size := range s.ladder {
		cost := s.costs.Estimate(size, ReasoningDisabled)
		// Only strictly cheaper steps keep degradation monotonic.
		if cost.Exceeds(baseCost) || cost == baseCost {
			continue
		}
		if Admit(cost, snap) {
			chosen = size
			break
		}
	}

	assignment.ModelSize = chosen
	assignment.Reasoning = ReasoningDisabled
	if chosen != base.ModelSize || base.Reasoning != ReasoningDisabled {
		assignment.Degraded = true
		assignment.Requested = base.ModelSize
		s.logger.Log(logx.LevelWarn, "degraded assignment", map[string]any{
			"subtask":   st.ID,
			"from":      string(base.ModelSize),
			"to":        string(chosen),
			"memory":    snap.Memory,
			"cpu":       snap.CPU,
			"reasoning": string(base.Reasoning),
		})
	}
	return assignment
}
