package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theinterneti/augment-adam-sub002/pkg/plan"
	"github.com/theinterneti/augment-adam-sub002/pkg/resources"
)

func snapshot(memory, cpu float64) resources.Snapshot {
	return resources.Snapshot{Memory: memory, CPU: cpu}
}

func subtask(id string, e plan.Expertise, c plan.Complexity, deps ...string) plan.Subtask {
	return plan.Subtask{ID: id, Description: id, Expertise: e, Complexity: c, Dependencies: deps}
}

func TestParseModelSize(t *testing.T) {
	tests := []struct {
		in      string
		want    ModelSize
		wantErr bool
	}{
		{"auto", SizeAuto, false},
		{"", SizeAuto, false},
		{"Medium", SizeMedium, false},
		{"moe_large", SizeMoELarge, false},
		{"8b", SizeMedium, false},
		{"30b-a3b", SizeMoESmall, false},
		{"huge", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseModelSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "235b-a22b", SizeMoELarge.Label())
	assert.True(t, SizeMoESmall.IsMoE())
	assert.False(t, SizeLarge.IsMoE())
}

func TestEstimateCost(t *testing.T) {
	costs := DefaultCosts()

	assert.Equal(t, Cost{Memory: 0.3, CPU: 0.3}, costs.Estimate(SizeMedium, ReasoningDisabled))

	withReasoning := costs.Estimate(SizeMedium, ReasoningEnabled)
	assert.InDelta(t, 0.45, withReasoning.Memory, 1e-9)
	assert.InDelta(t, 0.45, withReasoning.CPU, 1e-9)

	assert.Equal(t, SizeTiny, costs.Smallest())
	require.NoError(t, costs.Validate())
}

func TestValidatePolicy(t *testing.T) {
	require.NoError(t, ValidatePolicy(DefaultPolicy()))

	broken := DefaultPolicy()
	delete(broken.Entries, PolicyKey{plan.ExpertiseSecurity, plan.ComplexityLow})
	broken.Entries[PolicyKey{plan.ExpertiseTesting, plan.ComplexityHigh}] = Choice{ModelSize: "giant", Reasoning: ReasoningEnabled}

	err := ValidatePolicy(broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing entry for security/low")
	assert.Contains(t, err.Error(), `unknown model size "giant"`)

	assert.Error(t, ValidatePolicy(nil))
}

func TestPolicyLookupDefault(t *testing.T) {
	table := DefaultPolicy()
	assert.Equal(t, table.Default, table.Lookup("astrology", plan.ComplexityHigh))
	assert.Equal(t, Choice{SizeMoELarge, ReasoningEnabled}, table.Lookup(plan.ExpertiseArchitecture, plan.ComplexityHigh))
	assert.Equal(t, Choice{SizeSmall, ReasoningDisabled}, table.Lookup(plan.ExpertiseReleaseEngineering, plan.ComplexityHigh))
}

func TestAssignAcceptsPolicyWhenAdmitted(t *testing.T) {
	s := New()
	a := s.Assign(subtask("t1", plan.ExpertiseTesting, plan.ComplexityMedium), snapshot(1, 1))

	assert.Equal(t, SizeMedium, a.ModelSize)
	assert.Equal(t, ReasoningDisabled, a.Reasoning)
	assert.Equal(t, plan.ExpertiseTesting, a.Expertise)
	assert.False(t, a.Degraded)
}

func TestAssignOverrides(t *testing.T) {
	tests := []struct {
		name          string
		prefs         Preferences
		wantSize      ModelSize
		wantReasoning ReasoningMode
	}{
		{"auto keeps table", Preferences{ModelSize: SizeAuto}, SizeSmall, ReasoningDisabled},
		{"size override", Preferences{ModelSize: SizeLarge}, SizeLarge, ReasoningDisabled},
		{"reasoning override", Preferences{Reasoning: true}, SizeSmall, ReasoningEnabled},
		{"both", Preferences{ModelSize: SizeMini, Reasoning: true}, SizeMini, ReasoningEnabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(WithPreferences(tt.prefs))
			a := s.Assign(subtask("x", plan.ExpertiseReleaseEngineering, plan.ComplexityMedium), snapshot(1, 1))
			assert.Equal(t, tt.wantSize, a.ModelSize)
			assert.Equal(t, tt.wantReasoning, a.Reasoning)
		})
	}
}

func TestAssignDegradationLadder(t *testing.T) {
	// architecture/high is moe-large with reasoning: 0.6/0.6.
	st := subtask("arch", plan.ExpertiseArchitecture, plan.ComplexityHigh)
	tests := []struct {
		name     string
		snap     resources.Snapshot
		want     ModelSize
		degraded bool
	}{
		{"fits", snapshot(0.7, 0.7), SizeMoELarge, false},
		{"medium", snapshot(0.5, 0.35), SizeMedium, true},
		{"small", snapshot(0.2, 0.2), SizeSmall, true},
		{"tiny", snapshot(0.05, 0.05), SizeTiny, true},
		{"starved accepts smallest", snapshot(0, 0), SizeTiny, true},
		{"cpu bound", snapshot(1, 0.15), SizeSmall, true},
	}

	s := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := s.Assign(st, tt.snap)
			assert.Equal(t, tt.want, a.ModelSize)
			assert.Equal(t, tt.degraded, a.Degraded)
			if tt.degraded {
				assert.Equal(t, ReasoningDisabled, a.Reasoning)
				assert.Equal(t, SizeMoELarge, a.Requested)
			}
		})
	}
}

func TestAssignLadderSkipsMoreExpensiveSteps(t *testing.T) {
	// documentation/low is mini (0.05); medium and small must never be chosen.
	s := New()
	a := s.Assign(subtask("d", plan.ExpertiseDocumentation, plan.ComplexityLow), snapshot(0.04, 1))
	assert.Equal(t, SizeTiny, a.ModelSize)
	assert.True(t, a.Degraded)
}

func TestFallbackMonotonicity(t *testing.T) {
	s := New(WithPreferences(Preferences{Reasoning: true}))
	costs := DefaultCosts()

	for _, expertise := range plan.AllExpertise {
		for _, complexity := range plan.AllComplexity {
			st := subtask("m", expertise, complexity)
			prev := Cost{Memory: 2, CPU: 2}
			for step := 100; step >= 0; step-- {
				level := float64(step) / 100
				a := s.Assign(st, snapshot(level, level))
				cost := costs.Estimate(a.ModelSize, a.Reasoning)
				assert.False(t, cost.Exceeds(prev),
					"%s/%s at %.2f: %v exceeds previous %v", expertise, complexity, level, cost, prev)
				prev = cost
			}
		}
	}
}

func TestSelectCoversEverySubtask(t *testing.T) {
	subtasks := []plan.Subtask{
		subtask("t2", plan.ExpertiseReleaseEngineering, plan.ComplexityLow, "t1"),
		subtask("t1", plan.ExpertiseTesting, plan.ComplexityMedium),
	}
	s := New()

	assignments := s.Select(subtasks, snapshot(1, 1))

	require.Len(t, assignments, 2)
	assert.Equal(t, "t1", assignments["t1"].SubtaskID)
	assert.Equal(t, SizeMini, assignments["t2"].ModelSize)
	assert.Equal(t, []string{"t1", "t2"}, s.Order(subtasks))
}

func TestProfileMatches(t *testing.T) {
	p := NewProfile(plan.ComplexityMedium, []plan.Expertise{plan.ExpertiseTesting}, CapabilityTestAuthoring)

	assert.True(t, p.Matches(subtask("a", plan.ExpertiseTesting, plan.ComplexityLow)))
	assert.False(t, p.Matches(subtask("b", plan.ExpertiseTesting, plan.ComplexityHigh)))
	assert.False(t, p.Matches(subtask("c", plan.ExpertiseSecurity, plan.ComplexityLow)))
	assert.True(t, p.Has(CapabilityTestAuthoring))
	assert.False(t, p.Has(CapabilityProfiling))

	for _, e := range plan.AllExpertise {
		assert.True(t, ProfileFor(e).Matches(subtask("x", e, plan.ComplexityHigh)), e)
	}
	assert.True(t, ProfileFor(plan.ExpertiseDevelopment).Has(CapabilityWorkspaceAware))
	assert.False(t, ProfileFor(plan.ExpertiseDocumentation).Has(CapabilityWorkspaceAware))
}
