// Package app holds the relay's lifecycle state machine and the sentinel
// errors shared by the public API.
package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ShutdownTimeout is the maximum time Stop waits for goroutines to exit.
const ShutdownTimeout = 10 * time.Second

// State represents the lifecycle state of the relay.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// Lifecycle manages the relay's state machine and tracks its goroutines so
// shutdown can wait for all of them.
type Lifecycle struct {
	mu     sync.RWMutex
	state  State
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewLifecycle creates a lifecycle manager in StateStopped.
func NewLifecycle(logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{state: StateStopped, logger: logger}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo attempts to move to a new state, rejecting invalid edges.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	valid := false
	switch oldState {
	case StateStopped, StateCrashed:
		valid = newState == StateStarting
	case StateStarting:
		valid = newState == StateRunning || newState == StateCrashed || newState == StateStopping
	case StateRunning:
		valid = newState == StateStopping || newState == StateCrashed
	case StateStopping:
		valid = newState == StateStopped || newState == StateCrashed
	}
	if !valid {
		l.mu.Unlock()
		if oldState == StateStopped || oldState == StateCrashed {
			return ErrNotRunning
		}
		return ErrAlreadyRunning
	}

	l.state = newState
	l.mu.Unlock()

	l.logger.Info().
		Str("from", oldState.String()).
		Str("to", newState.String()).
		Str("reason", reason).
		Msg("state transition")
	return nil
}

// CanStart reports whether Start may be called.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateStopped || l.state == StateCrashed
}

// CanStop reports whether Stop may be called.
func (l *Lifecycle) CanStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateStarting || l.state == StateRunning
}

// AddWorker registers a goroutine the shutdown path must wait for.
func (l *Lifecycle) AddWorker() {
	l.wg.Add(1)
}

// WorkerDone marks a registered goroutine as finished.
func (l *Lifecycle) WorkerDone() {
	l.wg.Done()
}

// WaitWorkers blocks until all registered goroutines finish or the timeout
// elapses, returning ErrShutdownTimeout in the latter case.
func (l *Lifecycle) WaitWorkers(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}
