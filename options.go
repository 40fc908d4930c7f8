package wolrelay

import (
	"time"

	"github.com/rs/zerolog"
)

// Option configures optional behavior of a Relay.
type Option func(*options)

// options holds the optional configuration for a Relay instance.
type options struct {
	logger        *zerolog.Logger
	watchPath     string
	watchDebounce time.Duration
}

func defaultOptions() options {
	return options{}
}

// WithLogger sets the logger used by the relay and its components.
// If not provided, logging is disabled.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithConfigWatcher enables watching the config file at path. Changes are
// not applied live; the relay logs a warning that a restart is required.
func WithConfigWatcher(path string) Option {
	return func(o *options) {
		o.watchPath = path
	}
}

// WithConfigWatcherDebounce adjusts how long the watcher waits after a file
// change before logging. Only meaningful together with WithConfigWatcher.
func WithConfigWatcherDebounce(d time.Duration) Option {
	return func(o *options) {
		o.watchDebounce = d
	}
}
