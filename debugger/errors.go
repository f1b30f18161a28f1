package debugger

import "errors"

// Sentinel errors for manager lifecycle operations.
var (
	// ErrAlreadyEnabled is returned by EnableStrict when the engine
	// is already running.
	ErrAlreadyEnabled = errors.New("debugger already enabled")

	// ErrAlreadyDisabled is returned by DisableStrict when the
	// engine is not running.
	ErrAlreadyDisabled = errors.New("debugger already disabled")
)
