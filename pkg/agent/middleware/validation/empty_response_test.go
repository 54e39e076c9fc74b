package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llmerrors"
)

type sequenceClient struct {
	replies  []string
	requests []llm.CompletionRequest
}

func (s *sequenceClient) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	s.requests = append(s.requests, req)
	reply := s.replies[len(s.requests)-1]
	return llm.CompletionResponse{Content: reply}, nil
}

func (s *sequenceClient) GetModelName() string { return "seq" }

func TestEmptyResponseRetriesWithGuidance(t *testing.T) {
	base := &sequenceClient{replies: []string{"<think>only thoughts</think>", "real answer"}}
	client := llm.Chain(base, EmptyResponseMiddleware(nil))

	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("task")})
	resp, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "real answer", resp.Content)

	require.Len(t, base.requests, 2)
	assert.Len(t, base.requests[0].Messages, 1)
	last := base.requests[1].Messages[len(base.requests[1].Messages)-1]
	assert.Equal(t, GuidanceMessage, last.Content)
	assert.Len(t, req.Messages, 1, "caller's request must not be mutated")
}

func TestEmptyResponseGivesUp(t *testing.T) {
	base := &sequenceClient{replies: []string{"", "   "}}
	client := llm.Chain(base, EmptyResponseMiddleware(nil))

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse))
	assert.Len(t, base.requests, 2)
}
