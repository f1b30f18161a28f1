package config

import "errors"

// Sentinel errors for configuration loading and validation.
var (
	// ErrInvalidInterval indicates a sampling interval at or below zero.
	ErrInvalidInterval = errors.New("sampling interval must be positive")

	// ErrInvalidCapacity indicates a buffer capacity below one.
	ErrInvalidCapacity = errors.New("buffer capacity must be at least 1")

	// ErrInvalidThreshold indicates a negative alert threshold.
	ErrInvalidThreshold = errors.New("threshold must not be negative")

	// ErrInvalidLogLevel indicates an unrecognized logging level name.
	ErrInvalidLogLevel = errors.New("unknown log level")
)
