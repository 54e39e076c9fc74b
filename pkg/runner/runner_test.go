package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/limiter"
	"github.com/theinterneti/augment-adam-sub002/pkg/plan"
	"github.com/theinterneti/augment-adam-sub002/pkg/selector"
)

var models = ModelMap{
	selector.SizeSmall:    "qwen3:4b",
	selector.SizeMedium:   "qwen3:8b",
	selector.SizeMoELarge: "qwen3:235b-a22b",
}

func subtask(id string, expertise plan.Expertise, complexity plan.Complexity) plan.Subtask {
	return plan.Subtask{ID: id, Description: "Do " + id, Expertise: expertise, Complexity: complexity, Dependencies: []string{}}
}

func assignment(st plan.Subtask, size selector.ModelSize, reasoning bool) selector.Assignment {
	return selector.Assignment{
		SubtaskID: st.ID,
		Expertise: st.Expertise,
		ModelSize: size,
		Reasoning: selector.ReasoningFrom(reasoning),
	}
}

func newRunner(t *testing.T, expertise plan.Expertise, cfg Config) *Specialized {
	t.Helper()
	if cfg.Models == nil {
		cfg.Models = models
	}
	r, err := NewSpecialized(expertise, cfg)
	require.NoError(t, err)
	return r
}

func TestExecuteWithReasoning(t *testing.T) {
	mock := agent.NewMockLLMClientWithText("<think>\nconsider the layers\n</think>\nUse a service layer.")
	r := newRunner(t, plan.ExpertiseArchitecture, Config{Client: mock})

	st := subtask("t1", plan.ExpertiseArchitecture, plan.ComplexityHigh)
	res := r.Execute(context.Background(), st, assignment(st, selector.SizeMoELarge, true))

	assert.True(t, res.OK())
	assert.Equal(t, "t1", res.SubtaskID)
	assert.Equal(t, "Use a service layer.", res.Content)
	assert.Equal(t, "consider the layers", res.ReasoningTrace)
	assert.Equal(t, "qwen3:235b-a22b", res.Model)
	assert.Empty(t, res.Error)

	req, ok := mock.LastRequest()
	require.True(t, ok)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, r.SystemPrompt(), req.Messages[0].Content)
	assert.Equal(t, "Do t1", req.Messages[1].Content)
	assert.True(t, req.Reasoning)
	assert.Equal(t, "qwen3:235b-a22b", req.Model)
	assert.InDelta(t, llm.TemperatureDefault, req.Temperature, 1e-6)
}

func TestExecuteWithoutReasoningDropsTrace(t *testing.T) {
	mock := agent.NewMockLLMClientWithText("<think>stray</think>Tag v1.2.0 and push.")
	r := newRunner(t, plan.ExpertiseReleaseEngineering, Config{Client: mock})

	st := subtask("t2", plan.ExpertiseReleaseEngineering, plan.ComplexityHigh)
	res := r.Execute(context.Background(), st, assignment(st, selector.SizeSmall, false))

	assert.True(t, res.OK())
	assert.Equal(t, "Tag v1.2.0 and push.", res.Content)
	assert.Empty(t, res.ReasoningTrace)

	req, _ := mock.LastRequest()
	assert.False(t, req.Reasoning)
	assert.InDelta(t, llm.TemperatureDeterministic, req.Temperature, 1e-6)
}

func TestExecuteCapturesBackendError(t *testing.T) {
	mock := agent.NewMockLLMClient(nil, []error{errors.New("rate limited")})
	r := newRunner(t, plan.ExpertiseTesting, Config{Client: mock})

	st := subtask("t3", plan.ExpertiseTesting, plan.ComplexityMedium)
	res := r.Execute(context.Background(), st, assignment(st, selector.SizeMedium, false))

	assert.False(t, res.OK())
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "rate limited", res.Error)
	assert.Empty(t, res.Content)
	assert.Equal(t, "t3", res.SubtaskID)
}

func TestExecuteTimeout(t *testing.T) {
	slow := llm.WrapClient(func(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
		<-ctx.Done()
		return llm.CompletionResponse{}, ctx.Err()
	}, func() string { return "slow" })
	r := newRunner(t, plan.ExpertiseDocumentation, Config{Client: slow, Timeout: 20 * time.Millisecond})

	st := subtask("t4", plan.ExpertiseDocumentation, plan.ComplexityLow)
	res := r.Execute(context.Background(), st, assignment(st, selector.SizeSmall, false))

	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, context.DeadlineExceeded.Error())
}

func TestWorkspaceContext(t *testing.T) {
	tests := []struct {
		name      string
		expertise plan.Expertise
		provider  ContextProvider
		want      string
	}{
		{
			name:      "development splices context",
			expertise: plan.ExpertiseDevelopment,
			provider:  StaticContext("main.go is open\n"),
			want:      "Do t\n\n## Context\n\nmain.go is open",
		},
		{
			name:      "documentation ignores context",
			expertise: plan.ExpertiseDocumentation,
			provider:  StaticContext("main.go is open"),
			want:      "Do t",
		},
		{
			name:      "failing provider is ignored",
			expertise: plan.ExpertiseSecurity,
			provider: ContextFunc(func(context.Context) (string, error) {
				return "", errors.New("editor not connected")
			}),
			want: "Do t",
		},
		{
			name:      "empty context",
			expertise: plan.ExpertisePerformance,
			provider:  StaticContext("  "),
			want:      "Do t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := agent.NewMockLLMClientWithText("ok")
			r := newRunner(t, tt.expertise, Config{Client: mock, Context: tt.provider})

			st := subtask("t", tt.expertise, plan.ComplexityLow)
			res := r.Execute(context.Background(), st, assignment(st, selector.SizeSmall, false))
			require.True(t, res.OK())

			req, _ := mock.LastRequest()
			assert.Equal(t, tt.want, req.Messages[1].Content)
		})
	}
}

func TestExecuteHoldsAgentSlot(t *testing.T) {
	slots := limiter.NewLimiter(map[string]int{string(selector.SizeSmall): 1}, 1)

	var activeDuringCall int
	mock := agent.NewMockLLMClientFunc(func(llm.CompletionRequest) (llm.CompletionResponse, error) {
		activeDuringCall = slots.Active()
		return llm.CompletionResponse{Content: "done"}, nil
	})
	r := newRunner(t, plan.ExpertiseSourceControl, Config{Client: mock, Slots: slots})

	st := subtask("t5", plan.ExpertiseSourceControl, plan.ComplexityLow)
	res := r.Execute(context.Background(), st, assignment(st, selector.SizeSmall, false))

	require.True(t, res.OK())
	assert.Equal(t, 1, activeDuringCall)
	assert.Equal(t, 0, slots.Active())
}

func TestExecuteWithoutFreeSlot(t *testing.T) {
	slots := limiter.NewLimiter(map[string]int{string(selector.SizeSmall): 1}, 1)
	require.NoError(t, slots.ReserveAgent(string(selector.SizeSmall)))

	mock := agent.NewMockLLMClientWithText("never")
	r := newRunner(t, plan.ExpertiseSourceControl, Config{Client: mock, Slots: slots})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	st := subtask("t6", plan.ExpertiseSourceControl, plan.ComplexityLow)
	res := r.Execute(ctx, st, assignment(st, selector.SizeSmall, false))

	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "no small agent slot")
	assert.Zero(t, mock.CallCount())
}

func TestTemperature(t *testing.T) {
	high := subtask("h", plan.ExpertiseDevelopment, plan.ComplexityHigh)
	low := subtask("l", plan.ExpertiseDevelopment, plan.ComplexityLow)

	assert.InDelta(t, llm.TemperatureDeterministic, Temperature(high, assignment(high, selector.SizeLarge, false)), 1e-6)
	assert.InDelta(t, llm.TemperatureDefault, Temperature(high, assignment(high, selector.SizeLarge, true)), 1e-6)
	assert.InDelta(t, llm.TemperatureDefault, Temperature(low, assignment(low, selector.SizeSmall, false)), 1e-6)
}

type stubRunner struct{ calls []string }

func (s *stubRunner) Execute(_ context.Context, st plan.Subtask, _ selector.Assignment) Result {
	s.calls = append(s.calls, st.ID)
	return Result{SubtaskID: st.ID, Status: StatusSuccess, Content: "stub"}
}

func TestRegistryRouting(t *testing.T) {
	mock := agent.NewMockLLMClientFunc(func(req llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{Content: req.Messages[0].Content}, nil
	})
	reg, err := NewRegistry(Config{Client: mock, Models: models})
	require.NoError(t, err)

	for _, expertise := range plan.AllExpertise {
		st := subtask("s", expertise, plan.ComplexityMedium)
		res := reg.Execute(context.Background(), st, assignment(st, selector.SizeMedium, false))
		require.True(t, res.OK(), expertise)

		runner, ok := reg.For(st)
		require.True(t, ok)
		specialized, ok := runner.(*Specialized)
		require.True(t, ok)
		assert.Equal(t, expertise, specialized.Expertise())
		assert.Equal(t, specialized.SystemPrompt(), res.Content, "system prompt of %s", expertise)
	}

	unknown := subtask("u", plan.Expertise("astrology"), plan.ComplexityLow)
	runner, ok := reg.For(unknown)
	require.True(t, ok)
	assert.Equal(t, plan.ExpertiseDevelopment, runner.(*Specialized).Expertise())

	stub := &stubRunner{}
	reg.Register(plan.ExpertiseTesting, stub, selector.ProfileFor(plan.ExpertiseTesting))
	st := subtask("x", plan.ExpertiseTesting, plan.ComplexityHigh)
	res := reg.Execute(context.Background(), st, assignment(st, selector.SizeMedium, true))
	assert.Equal(t, "stub", res.Content)
	assert.Equal(t, []string{"x"}, stub.calls)
}

func TestRegistryWithoutRunners(t *testing.T) {
	reg := &Registry{
		runners:  map[plan.Expertise]Runner{},
		profiles: map[plan.Expertise]selector.Profile{},
	}
	st := subtask("z", plan.ExpertiseTesting, plan.ComplexityLow)
	res := reg.Execute(context.Background(), st, assignment(st, selector.SizeSmall, false))
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "no runner")
}
