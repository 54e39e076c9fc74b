package orchestra

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/theinterneti/augment-adam-sub002/pkg/resources"
	"github.com/theinterneti/augment-adam-sub002/pkg/runner"
	"github.com/theinterneti/augment-adam-sub002/pkg/selector"
)

// Pipeline metric names.
const (
	RequestsTotalName    = "adam_requests_total"
	SubtasksTotalName    = "adam_subtasks_total"
	AssignmentsTotalName = "adam_assignments_total"
	StageDurationName    = "adam_stage_duration_seconds"
	HeadroomName         = "adam_resource_headroom"
)

// Metrics records pipeline-level outcomes. A nil *Metrics records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	subtasks      *prometheus.CounterVec
	assignments   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	headroom      *prometheus.GaugeVec
}

// NewMetrics registers the pipeline metrics with reg. A nil reg uses the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: RequestsTotalName,
				Help: "Requests handled by the pipeline, by outcome",
			},
			[]string{"status"},
		),
		subtasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: SubtasksTotalName,
				Help: "Subtasks executed, by expertise and status",
			},
			[]string{"expertise", "status"},
		),
		assignments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: AssignmentsTotalName,
				Help: "Agent assignments, by model size, reasoning mode and degradation",
			},
			[]string{"model_size", "reasoning", "degraded"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    StageDurationName,
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		headroom: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: HeadroomName,
				Help: "Resource headroom seen at the last selection, as a fraction of the ceiling",
			},
			[]string{"resource"},
		),
	}
}

func (m *Metrics) observeRequest(status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(status).Inc()
}

func (m *Metrics) observeStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) observeSnapshot(snap resources.Snapshot) {
	if m == nil {
		return
	}
	m.headroom.WithLabelValues("memory").Set(snap.Memory)
	m.headroom.WithLabelValues("cpu").Set(snap.CPU)
}

func (m *Metrics) observeAssignments(assignments map[string]selector.Assignment) {
	if m == nil {
		return
	}
	for _, a := range assignments {
		m.assignments.WithLabelValues(string(a.ModelSize), string(a.Reasoning), strconv.FormatBool(a.Degraded)).Inc()
	}
}

func (m *Metrics) observeResult(expertise string, r runner.Result) {
	if m == nil {
		return
	}
	m.subtasks.WithLabelValues(expertise, string(r.Status)).Inc()
}
