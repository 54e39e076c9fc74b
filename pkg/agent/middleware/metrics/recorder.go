// Package metrics records backend call latency, token usage and outcomes.
package metrics

import (
	"context"
	"time"
)

// Stage names the pipeline step a backend call belongs to.
type Stage string

const (
	StageDecompose  Stage = "decompose"
	StageExecute    Stage = "execute"
	StageSynthesize Stage = "synthesize"
	StageUnknown    Stage = "unknown"
)

// CallInfo labels a backend call with the request and stage it serves.
type CallInfo struct {
	RequestID string
	Stage     Stage
}

type callInfoKey struct{}

// WithCall attaches call labels to ctx for the metrics middleware.
func WithCall(ctx context.Context, requestID string, stage Stage) context.Context {
	return context.WithValue(ctx, callInfoKey{}, CallInfo{RequestID: requestID, Stage: stage})
}

// CallFromContext returns the labels attached by WithCall.
func CallFromContext(ctx context.Context) CallInfo {
	if info, ok := ctx.Value(callInfoKey{}).(CallInfo); ok {
		if info.Stage == "" {
			info.Stage = StageUnknown
		}
		return info
	}
	return CallInfo{Stage: StageUnknown}
}

// Recorder defines the interface for recording backend call metrics.
type Recorder interface {
	// ObserveRequest records metrics for a completed backend call.
	ObserveRequest(
		model string,
		call CallInfo,
		promptTokens, completionTokens int,
		success bool,
		errorType string,
		duration time.Duration,
	)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveRequest does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveRequest(_ string, _ CallInfo, _, _ int, _ bool, _ string, _ time.Duration) {
}
