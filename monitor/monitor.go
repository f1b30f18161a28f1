package monitor

import (
	"context"
	"errors"
)

// Publisher is the subset of the event bus monitors publish on.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Sentinel errors for the monitors.
var (
	// ErrAlreadyRunning is returned when Start is called on a running monitor.
	ErrAlreadyRunning = errors.New("monitor is already running")

	// ErrNotRunning is returned when Stop is called on a stopped monitor.
	ErrNotRunning = errors.New("monitor is not running")

	// ErrStatsUnavailable is returned when the host stats source fails.
	ErrStatsUnavailable = errors.New("host statistics unavailable")
)
