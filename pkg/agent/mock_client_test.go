package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/llm"
)

func TestMockLLMClient(t *testing.T) {
	responses := []llm.CompletionResponse{
		{Content: "response1"},
		{Content: "response2"},
	}
	errs := []error{nil, errors.New("test error")}

	client := NewMockLLMClient(responses, errs)

	t.Run("Complete interleaves responses and errors in order", func(t *testing.T) {
		resp, err := client.Complete(context.Background(), llm.CompletionRequest{Model: "a"})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if resp.Content != "response1" {
			t.Errorf("got %q, want %q", resp.Content, "response1")
		}

		_, err = client.Complete(context.Background(), llm.CompletionRequest{Model: "b"})
		if err == nil || err.Error() != "test error" {
			t.Errorf("expected scripted error, got %v", err)
		}

		resp, err = client.Complete(context.Background(), llm.CompletionRequest{Model: "c"})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if resp.Content != "response2" {
			t.Errorf("got %q, want %q", resp.Content, "response2")
		}

		_, err = client.Complete(context.Background(), llm.CompletionRequest{})
		if err == nil {
			t.Error("expected error once responses are exhausted, got nil")
		}
	})

	t.Run("requests are recorded", func(t *testing.T) {
		if got := client.CallCount(); got != 4 {
			t.Errorf("CallCount() = %d, want 4", got)
		}
		reqs := client.Requests()
		if reqs[0].Model != "a" || reqs[2].Model != "c" {
			t.Errorf("unexpected recorded models: %q, %q", reqs[0].Model, reqs[2].Model)
		}
		last, ok := client.LastRequest()
		if !ok || last.Model != "" {
			t.Errorf("LastRequest() = %+v, %v", last, ok)
		}
	})

	t.Run("canceled context fails fast", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewMockLLMClientWithText("x").Complete(ctx, llm.CompletionRequest{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestMockLLMClientFunc(t *testing.T) {
	client := NewMockLLMClientFunc(func(req llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{Content: "echo " + req.Model}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Complete(context.Background(), llm.CompletionRequest{Model: "m"})
			if err != nil || resp.Content != "echo m" {
				t.Errorf("unexpected result %q, %v", resp.Content, err)
			}
		}()
	}
	wg.Wait()

	if got := client.CallCount(); got != 20 {
		t.Errorf("CallCount() = %d, want 20", got)
	}
	if client.GetModelName() != "mock-model" {
		t.Errorf("unexpected model name %q", client.GetModelName())
	}
}
