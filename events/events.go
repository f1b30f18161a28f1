// Package events defines the debug event topics and payload types
// published on the bus. Payloads are flat value types: subscribers
// receive copies, never references into a subsystem's authoritative
// store.
package events

import (
	"time"

	"github.com/dshills/devprobe/event/topic"
)

// Topics for all debug events.
const (
	// TopicBreakpointHit is published when a checkpoint condition matches.
	TopicBreakpointHit topic.Topic = "debug.breakpoint.hit"

	// TopicConsoleResult is published after each console execution.
	TopicConsoleResult topic.Topic = "debug.console.result"

	// TopicMemorySample is published on each memory monitor tick.
	TopicMemorySample topic.Topic = "debug.memory.sample"

	// TopicNetworkUpdated is published on every network event transition.
	TopicNetworkUpdated topic.Topic = "debug.network.updated"

	// TopicPerformanceSample is published on each performance monitor tick.
	TopicPerformanceSample topic.Topic = "debug.performance.sample"

	// TopicAlertRaised is published for degraded or failed internal operations.
	TopicAlertRaised topic.Topic = "debug.alert.raised"

	// TopicAll matches every debug event.
	TopicAll topic.Topic = "debug.**"
)

// AlertKind classifies an alert.
type AlertKind string

// Alert kinds.
const (
	// AlertMemoryPressure signals a memory sample over the configured threshold.
	AlertMemoryPressure AlertKind = "memory_pressure"

	// AlertPerformanceDegradation signals frame time or CPU over threshold.
	AlertPerformanceDegradation AlertKind = "performance_degradation"

	// AlertSamplingFailure signals a failed or dropped telemetry operation.
	AlertSamplingFailure AlertKind = "sampling_failure"

	// AlertEvaluationFailure signals a breakpoint condition that failed to evaluate.
	AlertEvaluationFailure AlertKind = "evaluation_failure"

	// AlertTimeout signals a network event swept as stale.
	AlertTimeout AlertKind = "timeout"
)

// BreakpointHit is the payload for TopicBreakpointHit.
type BreakpointHit struct {
	// BreakpointID identifies the breakpoint that matched.
	BreakpointID int

	// Location is the symbolic checkpoint site name.
	Location string

	// Condition is the expression that evaluated true (empty for unconditional).
	Condition string

	// HitCount is the breakpoint's hit count after this hit.
	HitCount int

	// Context is a snapshot of the values supplied at the checkpoint.
	Context map[string]any
}

// ConsoleResult is the payload for TopicConsoleResult.
type ConsoleResult struct {
	// Input is the text that was executed.
	Input string

	// Kind is the result variant: "value", "error", or "void".
	Kind string

	// Value is the rendered result, when Kind is "value".
	Value string

	// ErrMessage is the captured error, when Kind is "error".
	ErrMessage string

	// Timestamp is when the entry was executed.
	Timestamp time.Time
}

// MemorySampleTaken is the payload for TopicMemorySample.
type MemorySampleTaken struct {
	// Timestamp is when the sample was taken.
	Timestamp time.Time

	// UsedBytes is the heap bytes in use.
	UsedBytes uint64

	// HeapObjects is the number of live heap objects.
	HeapObjects uint64
}

// NetworkEventUpdated is the payload for TopicNetworkUpdated.
type NetworkEventUpdated struct {
	// EventID identifies the network event.
	EventID string

	// State is the lifecycle state: "pending", "completed", or "failed".
	State string

	// Method is the request method.
	Method string

	// URL is the request URL.
	URL string

	// Status is the response status code, when completed.
	Status int

	// Latency is response time minus request time, when completed.
	Latency time.Duration
}

// PerformanceSampleTaken is the payload for TopicPerformanceSample.
type PerformanceSampleTaken struct {
	// Timestamp is when the sample was taken.
	Timestamp time.Time

	// FrameTime is the most recent frame duration reported by the host.
	FrameTime time.Duration

	// AvgFrameTime is the rolling average frame duration.
	AvgFrameTime time.Duration

	// CPUPercent is the process CPU usage over the last interval.
	CPUPercent float64
}

// AlertRaised is the payload for TopicAlertRaised.
type AlertRaised struct {
	// Kind classifies the alert.
	Kind AlertKind

	// Source names the subsystem that raised the alert.
	Source string

	// Message is a human-readable description.
	Message string

	// Timestamp is when the alert was raised.
	Timestamp time.Time
}
