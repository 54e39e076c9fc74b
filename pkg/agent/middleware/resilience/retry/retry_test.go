package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llmerrors"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/resilience/circuit"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"wrapped canceled", fmt.Errorf("call: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("http: %w", context.DeadlineExceeded), true},
		{"circuit open", &circuit.Error{State: circuit.Open}, false},
		{"auth", llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key"), false},
		{"bad prompt", llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "too long"), false},
		{"exhausted", llmerrors.NewError(llmerrors.ErrorTypeServiceUnavailable, "gone"), false},
		{"rate limit", llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "slow down"), true},
		{"wrapped auth", fmt.Errorf("call: %w", llmerrors.NewError(llmerrors.ErrorTypeAuth, "x")), false},
		{"unclassified 401", errors.New("HTTP 401 Unauthorized"), false},
		{"unclassified 404", errors.New("404 Not Found"), false},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"unexpected", errors.New("something completely unexpected"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRetry(tt.err))
		})
	}
}

func TestNewPolicyDefaults(t *testing.T) {
	p := NewPolicy(Config{}, nil)
	require.NotNil(t, p.Classifier)
	assert.Equal(t, 1, p.Config.MaxAttempts)
	assert.False(t, p.ShouldRetry(nil))
}

func TestCalculateDelay(t *testing.T) {
	p := NewPolicy(Config{
		MaxAttempts:   10,
		InitialDelay:  time.Second,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}, nil)

	assert.Equal(t, time.Duration(0), p.CalculateDelay(1))
	assert.Equal(t, time.Second, p.CalculateDelay(2))
	assert.Equal(t, 2*time.Second, p.CalculateDelay(3))
	assert.Equal(t, 4*time.Second, p.CalculateDelay(4))
	assert.Equal(t, 5*time.Second, p.CalculateDelay(10))
}

func TestCalculateDelayJitterBounds(t *testing.T) {
	p := NewPolicy(Config{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}, nil)

	for i := 0; i < 20; i++ {
		delay := p.CalculateDelay(2)
		assert.GreaterOrEqual(t, delay, 900*time.Millisecond)
		assert.LessOrEqual(t, delay, 1100*time.Millisecond)
	}
}

type scriptedClient struct {
	errs  []error
	calls int
}

func (s *scriptedClient) Complete(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	s.calls++
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return llm.CompletionResponse{}, s.errs[s.calls-1]
	}
	return llm.CompletionResponse{Content: "ok"}, nil
}

func (s *scriptedClient) GetModelName() string { return "scripted" }

func fastPolicy(attempts int) *Policy {
	return NewPolicy(Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}, nil)
}

func TestMiddlewareRecoversFromTransient(t *testing.T) {
	base := &scriptedClient{errs: []error{errors.New("connection refused"), nil}}
	client := llm.Chain(base, Middleware(fastPolicy(3), nil))

	resp, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, base.calls)
}

func TestMiddlewareStopsOnPermanentError(t *testing.T) {
	authErr := llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key")
	base := &scriptedClient{errs: []error{authErr, nil}}
	client := llm.Chain(base, Middleware(fastPolicy(3), nil))

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth))
	assert.Equal(t, 1, base.calls)
}

func TestMiddlewareExhaustion(t *testing.T) {
	transient := errors.New("503 service unavailable")
	base := &scriptedClient{errs: []error{transient, transient, transient}}
	client := llm.Chain(base, Middleware(fastPolicy(3), nil))

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeServiceUnavailable))
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, base.calls)
}
