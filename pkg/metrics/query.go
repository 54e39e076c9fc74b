// Package metrics queries a Prometheus server for per-request backend usage.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// StageUsage is token and call usage of one pipeline stage.
type StageUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	Calls            int64 `json:"calls"`
	Failures         int64 `json:"failures"`
}

// RequestMetrics is aggregated backend usage for one handled request.
type RequestMetrics struct {
	RequestID        string                 `json:"request_id"`
	PromptTokens     int64                  `json:"prompt_tokens"`
	CompletionTokens int64                  `json:"completion_tokens"`
	TotalTokens      int64                  `json:"total_tokens"`
	Calls            int64                  `json:"calls"`
	Failures         int64                  `json:"failures"`
	Stages           map[string]*StageUsage `json:"stages"`
	Models           []string               `json:"models"`
}

// Querier is the subset of the Prometheus HTTP API the service needs.
type Querier interface {
	Query(ctx context.Context, query string, ts time.Time, opts ...v1.Option) (model.Value, v1.Warnings, error)
}

// QueryService provides methods to query metrics from Prometheus.
type QueryService struct {
	queryAPI Querier
	now      func() time.Time
}

// NewQueryService creates a new metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return NewQueryServiceWithAPI(v1.NewAPI(client)), nil
}

// NewQueryServiceWithAPI creates a service over an existing API.
func NewQueryServiceWithAPI(q Querier) *QueryService {
	return &QueryService{queryAPI: q, now: time.Now}
}

// GetRequestMetrics retrieves token and call totals for requestID, broken
// down by pipeline stage.
func (q *QueryService) GetRequestMetrics(ctx context.Context, requestID string) (*RequestMetrics, error) {
	out := &RequestMetrics{
		RequestID: requestID,
		Stages:    map[string]*StageUsage{},
	}
	stage := func(name string) *StageUsage {
		s, ok := out.Stages[name]
		if !ok {
			s = &StageUsage{}
			out.Stages[name] = s
		}
		return s
	}

	tokens, err := q.vector(ctx, fmt.Sprintf(`sum by (stage, type) (adam_llm_tokens_total{request_id=%q})`, requestID))
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	for _, sample := range tokens {
		s := stage(string(sample.Metric["stage"]))
		n := int64(sample.Value)
		switch sample.Metric["type"] {
		case "prompt":
			s.PromptTokens += n
			out.PromptTokens += n
		case "completion":
			s.CompletionTokens += n
			out.CompletionTokens += n
		}
	}
	out.TotalTokens = out.PromptTokens + out.CompletionTokens

	calls, err := q.vector(ctx, fmt.Sprintf(`sum by (stage, status) (adam_llm_requests_total{request_id=%q})`, requestID))
	if err != nil {
		return nil, fmt.Errorf("failed to query calls: %w", err)
	}
	for _, sample := range calls {
		s := stage(string(sample.Metric["stage"]))
		n := int64(sample.Value)
		s.Calls += n
		out.Calls += n
		if sample.Metric["status"] == "error" {
			s.Failures += n
			out.Failures += n
		}
	}

	models, err := q.vector(ctx, fmt.Sprintf(`group by (model) (adam_llm_requests_total{request_id=%q})`, requestID))
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	for _, sample := range models {
		if name, ok := sample.Metric["model"]; ok {
			out.Models = append(out.Models, string(name))
		}
	}
	sort.Strings(out.Models)

	return out, nil
}

func (q *QueryService) vector(ctx context.Context, query string) (model.Vector, error) {
	result, _, err := q.queryAPI.Query(ctx, query, q.now())
	if err != nil {
		return nil, err //nolint:wrapcheck // callers add the query purpose
	}
	vector, _ := result.(model.Vector)
	return vector, nil
}
