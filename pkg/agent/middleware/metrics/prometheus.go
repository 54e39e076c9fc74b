package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names queried back by pkg/metrics.
const (
	RequestsTotalName   = "adam_llm_requests_total"
	TokensTotalName     = "adam_llm_tokens_total"
	RequestDurationName = "adam_llm_request_duration_seconds"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the backend call metrics with reg.
// A nil reg uses the default registry.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: RequestsTotalName,
				Help: "Total number of backend calls by model, request, stage and status",
			},
			[]string{"model", "request_id", "stage", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: TokensTotalName,
				Help: "Total number of tokens used by backend calls",
			},
			[]string{"model", "request_id", "stage", "type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    RequestDurationName,
				Help:    "Duration of backend calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"model", "stage"},
		),
	}
}

// ObserveRequest records metrics for a completed backend call.
func (p *PrometheusRecorder) ObserveRequest(
	model string,
	call CallInfo,
	promptTokens, completionTokens int,
	success bool,
	errorType string,
	duration time.Duration,
) {
	status := "success"
	if !success {
		status = "error"
	}
	stage := string(call.Stage)

	p.requestsTotal.WithLabelValues(model, call.RequestID, stage, status, errorType).Inc()

	if success {
		p.tokensTotal.WithLabelValues(model, call.RequestID, stage, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(model, call.RequestID, stage, "completion").Add(float64(completionTokens))
	}

	p.requestDuration.WithLabelValues(model, stage).Observe(duration.Seconds())
}
