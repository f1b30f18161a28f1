// Package monitor provides the periodic samplers: memory usage,
// network request lifecycle tracking, and frame/CPU performance.
// Each monitor keeps a bounded ring of recent samples, publishes a
// sample event per tick, and raises alerts when thresholds are
// crossed. Monitors are started with a context and stopped with
// Stop, which waits for the sampling goroutine so no events are
// emitted after it returns.
package monitor
