package app

import "errors"

// Sentinel errors returned by the public API; check with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start is called on a running relay.
	ErrAlreadyRunning = errors.New("wolrelay: already running")

	// ErrNotRunning is returned when Stop is called on a stopped relay.
	ErrNotRunning = errors.New("wolrelay: not running")

	// ErrNoAdapters is returned when discovery finds no usable adapter.
	ErrNoAdapters = errors.New("wolrelay: no usable network adapters discovered")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("wolrelay: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("wolrelay: invalid configuration")
)
