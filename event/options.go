package event

import (
	"time"

	"github.com/dshills/devprobe/event/dispatch"
)

// busConfig holds the configuration for a bus.
type busConfig struct {
	asyncQueueSize   int
	asyncWorkerCount int
	defaultTimeout   time.Duration
	panicHandler     dispatch.PanicHandler
}

// defaultBusConfig returns the default bus configuration.
func defaultBusConfig() busConfig {
	return busConfig{
		asyncQueueSize:   1024,
		asyncWorkerCount: 4,
		defaultTimeout:   5 * time.Second,
	}
}

// BusOption configures a Bus.
type BusOption func(*busConfig)

// WithQueueSize sets the async delivery queue size.
func WithQueueSize(size int) BusOption {
	return func(c *busConfig) {
		if size > 0 {
			c.asyncQueueSize = size
		}
	}
}

// WithWorkerCount sets the number of async delivery workers.
func WithWorkerCount(count int) BusOption {
	return func(c *busConfig) {
		if count > 0 {
			c.asyncWorkerCount = count
		}
	}
}

// WithHandlerTimeout sets the default async handler execution timeout.
func WithHandlerTimeout(timeout time.Duration) BusOption {
	return func(c *busConfig) {
		c.defaultTimeout = timeout
	}
}

// WithPanicHandler sets the callback invoked when a subscriber panics.
func WithPanicHandler(h dispatch.PanicHandler) BusOption {
	return func(c *busConfig) {
		c.panicHandler = h
	}
}
