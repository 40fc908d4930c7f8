// Package wolrelay implements a Wake-on-LAN magic packet relay. It listens
// for magic packets on a set of incoming network adapters, debounces repeats
// for the same target, and re-broadcasts each packet on the outgoing
// adapters so sleeping machines on other segments can be woken.
//
// Example usage:
//
//	cfg := wolrelay.DefaultConfig()
//	r, err := wolrelay.New(cfg, wolrelay.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := r.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Stop()
package wolrelay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lanward/wolrelay/internal/app"
	"github.com/lanward/wolrelay/internal/gate"
	"github.com/lanward/wolrelay/internal/listener"
	"github.com/lanward/wolrelay/internal/metrics"
	"github.com/lanward/wolrelay/internal/netif"
	"github.com/lanward/wolrelay/internal/packet"
	"github.com/lanward/wolrelay/internal/relay"
	"github.com/lanward/wolrelay/internal/watcher"
)

// Sentinel errors returned by Relay methods; check with errors.Is.
var (
	ErrAlreadyRunning  = app.ErrAlreadyRunning
	ErrNotRunning      = app.ErrNotRunning
	ErrNoAdapters      = app.ErrNoAdapters
	ErrShutdownTimeout = app.ErrShutdownTimeout
	ErrInvalidConfig   = app.ErrInvalidConfig
)

// State is the lifecycle state of a Relay.
type State = app.State

// Lifecycle states.
const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)

// Config holds the runtime configuration of a Relay. Use DefaultConfig for
// sensible defaults; zero values for ports and windows are filled in by
// SetDefaults.
type Config struct {
	// OutgoingPort is the UDP destination port for relayed packets.
	OutgoingPort int
	// RepeatCount is how many copies of each packet are sent per adapter.
	RepeatCount int
	// RepeatDelay is the pause between repeated copies.
	RepeatDelay time.Duration
	// SendBack includes the receiving adapter among the broadcast targets.
	SendBack bool

	// UDPEnabled and UDPPort control the UDP listener.
	UDPEnabled bool
	UDPPort    int
	// TCPEnabled and TCPPort control the TCP listener.
	TCPEnabled bool
	TCPPort    int

	// ShapePattern matches the hex encoding of a whole magic packet;
	// ExtractPattern captures the six hardware address octets. Empty values
	// select the standard magic packet patterns.
	ShapePattern   string
	ExtractPattern string

	// DebounceEnabled suppresses repeats for the same target inside
	// DebounceWindow. Entries older than ExpireWindow are evicted every
	// SweepInterval.
	DebounceEnabled bool
	DebounceWindow  time.Duration
	ExpireWindow    time.Duration
	SweepInterval   time.Duration

	// PrimaryAddr names the primary adapter by IPv4 address. PrimaryOnly
	// restricts both directions to it. IncomingAddrs and OutgoingAddrs are
	// optional allow-lists; empty means all discovered adapters.
	PrimaryAddr   string
	PrimaryOnly   bool
	IncomingAddrs []string
	OutgoingAddrs []string

	// TrustedSources restricts accepted source IPs; empty trusts everyone.
	TrustedSources []string

	// MetricsAddr, when set, serves Prometheus metrics on that address.
	MetricsAddr string
}

// DefaultConfig returns a Config with defaults: UDP listener on port 9,
// TCP disabled, one copy per packet, debouncing on.
func DefaultConfig() Config {
	return Config{
		OutgoingPort:    9,
		RepeatCount:     1,
		RepeatDelay:     10 * time.Millisecond,
		UDPEnabled:      true,
		UDPPort:         9,
		TCPPort:         9,
		DebounceEnabled: true,
		DebounceWindow:  time.Second,
		ExpireWindow:    5 * time.Minute,
		SweepInterval:   time.Minute,
	}
}

// SetDefaults fills zero-valued fields that have a usable default.
func (c *Config) SetDefaults() {
	if c.OutgoingPort == 0 {
		c.OutgoingPort = 9
	}
	if c.RepeatCount == 0 {
		c.RepeatCount = 1
	}
	if c.UDPPort == 0 {
		c.UDPPort = 9
	}
	if c.TCPPort == 0 {
		c.TCPPort = 9
	}
	if c.DebounceWindow == 0 {
		c.DebounceWindow = time.Second
	}
	if c.ExpireWindow == 0 {
		c.ExpireWindow = 5 * time.Minute
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}
}

// Validate checks the configuration, returning an error wrapping
// ErrInvalidConfig when a field is unusable.
func (c *Config) Validate() error {
	if !c.UDPEnabled && !c.TCPEnabled {
		return fmt.Errorf("%w: at least one of UDP or TCP must be enabled", app.ErrInvalidConfig)
	}
	if c.OutgoingPort < 1 || c.OutgoingPort > 65535 {
		return fmt.Errorf("%w: outgoing port %d out of range", app.ErrInvalidConfig, c.OutgoingPort)
	}
	if c.UDPEnabled && (c.UDPPort < 1 || c.UDPPort > 65535) {
		return fmt.Errorf("%w: UDP port %d out of range", app.ErrInvalidConfig, c.UDPPort)
	}
	if c.TCPEnabled && (c.TCPPort < 1 || c.TCPPort > 65535) {
		return fmt.Errorf("%w: TCP port %d out of range", app.ErrInvalidConfig, c.TCPPort)
	}
	if c.RepeatCount < 1 {
		return fmt.Errorf("%w: repeat count must be at least 1", app.ErrInvalidConfig)
	}
	if c.DebounceEnabled {
		if c.DebounceWindow <= 0 || c.ExpireWindow <= 0 || c.SweepInterval <= 0 {
			return fmt.Errorf("%w: debounce windows must be positive", app.ErrInvalidConfig)
		}
	}
	if _, err := packet.NewMatcher(c.ShapePattern, c.ExtractPattern); err != nil {
		return fmt.Errorf("%w: %v", app.ErrInvalidConfig, err)
	}
	return nil
}

// Relay is an embeddable magic packet relay. Use New to create an instance,
// then Start to begin listening.
type Relay struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	logger    zerolog.Logger
	matcher   *packet.Matcher
	metrics   *metrics.Metrics

	// discover enumerates adapters; replaced in tests.
	discover func() ([]netif.Adapter, error)

	mu     sync.Mutex
	cancel context.CancelFunc
	set    *listener.Set
	views  *netif.Views
	sender *relay.Sender
}

// New creates a Relay in StateStopped; call Start to begin relaying.
func New(cfg Config, opts ...Option) (*Relay, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := zerolog.Nop()
	if o.logger != nil {
		logger = *o.logger
	}

	matcher, err := packet.NewMatcher(cfg.ShapePattern, cfg.ExtractPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", app.ErrInvalidConfig, err)
	}

	return &Relay{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger),
		logger:    logger,
		matcher:   matcher,
		metrics:   metrics.New(),
		discover:  func() ([]netif.Adapter, error) { return netif.Discover(logger) },
	}, nil
}

// Start discovers adapters, binds the listeners and begins relaying in the
// background. It returns once the listeners are bound, or an error if the
// relay is already running, no adapter is usable, or nothing could bind.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lifecycle.CanStart() {
		return app.ErrAlreadyRunning
	}
	if err := r.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	adapters, err := r.discover()
	if err != nil {
		_ = r.lifecycle.TransitionTo(app.StateCrashed, "adapter discovery failed")
		return fmt.Errorf("discover adapters: %w", err)
	}
	if len(adapters) == 0 {
		_ = r.lifecycle.TransitionTo(app.StateCrashed, "no adapters")
		return app.ErrNoAdapters
	}

	views := netif.BuildViews(adapters, netif.FilterConfig{
		PrimaryAddr:   r.config.PrimaryAddr,
		PrimaryOnly:   r.config.PrimaryOnly,
		IncomingAddrs: r.config.IncomingAddrs,
		OutgoingAddrs: r.config.OutgoingAddrs,
	})
	if len(views.Incoming) == 0 || len(views.Outgoing) == 0 {
		_ = r.lifecycle.TransitionTo(app.StateCrashed, "adapter filters matched nothing")
		return app.ErrNoAdapters
	}
	r.views = views
	for _, ad := range views.All {
		r.logger.Info().
			Str("name", ad.Name).
			Str("addr", ad.Addr.String()).
			Str("broadcast", ad.Broadcast.String()).
			Bool("primary", ad.Primary).
			Msg("discovered adapter")
	}

	if r.config.DebounceEnabled && r.config.ExpireWindow < r.config.DebounceWindow {
		r.logger.Warn().
			Dur("expire_window", r.config.ExpireWindow).
			Dur("debounce_window", r.config.DebounceWindow).
			Msg("expire window is shorter than the debounce window; repeats may slip through after a sweep")
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.sender = relay.NewSender(r.config.OutgoingPort, r.config.RepeatCount, r.config.RepeatDelay, r.metrics, r.logger)

	var fwd relay.Forwarder = r.sender
	if r.config.DebounceEnabled {
		g := gate.New(r.config.DebounceWindow, r.config.ExpireWindow)
		queued := relay.NewQueuedSender(r.sender, g, r.metrics, r.logger)
		fwd = queued

		r.lifecycle.AddWorker()
		go func() {
			defer r.lifecycle.WorkerDone()
			g.Run(runCtx, r.config.SweepInterval, r.logger)
		}()
		r.lifecycle.AddWorker()
		go func() {
			defer r.lifecycle.WorkerDone()
			queued.Run(runCtx)
		}()
	}

	set := listener.NewSet(listener.Config{
		UDPEnabled:     r.config.UDPEnabled,
		UDPPort:        r.config.UDPPort,
		TCPEnabled:     r.config.TCPEnabled,
		TCPPort:        r.config.TCPPort,
		TrustedSources: r.config.TrustedSources,
		SendBack:       r.config.SendBack,
	}, views, r.matcher, fwd, r.metrics, r.logger)

	if err := set.Start(runCtx); err != nil {
		cancel()
		_ = r.lifecycle.TransitionTo(app.StateCrashed, "listener start failed")
		return err
	}
	r.set = set

	r.lifecycle.AddWorker()
	go func() {
		defer r.lifecycle.WorkerDone()
		set.Wait()
	}()

	if r.config.MetricsAddr != "" {
		r.lifecycle.AddWorker()
		go func() {
			defer r.lifecycle.WorkerDone()
			r.metrics.Serve(runCtx, r.config.MetricsAddr, r.logger)
		}()
	}

	if r.opts.watchPath != "" {
		w := watcher.New(r.opts.watchPath, r.opts.watchDebounce, r.logger)
		if err := w.Start(runCtx); err != nil {
			r.logger.Warn().Err(err).Msg("config watcher could not start")
		} else {
			r.lifecycle.AddWorker()
			go func() {
				defer r.lifecycle.WorkerDone()
				w.Wait()
			}()
		}
	}

	return r.lifecycle.TransitionTo(app.StateRunning, "listeners bound")
}

// Stop gracefully shuts the relay down, waiting up to ShutdownTimeout for
// all goroutines to exit. Returns ErrShutdownTimeout if they do not.
func (r *Relay) Stop() error {
	r.mu.Lock()
	if !r.lifecycle.CanStop() {
		r.mu.Unlock()
		return app.ErrNotRunning
	}
	if err := r.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	err := r.lifecycle.WaitWorkers(app.ShutdownTimeout)
	if err != nil {
		_ = r.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = r.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Status returns the current lifecycle state. Safe to call concurrently.
func (r *Relay) Status() State {
	return r.lifecycle.State()
}

// Wake builds a magic packet for hwAddr and broadcasts it on the outgoing
// adapters. The relay must be running.
func (r *Relay) Wake(hwAddr string) error {
	r.mu.Lock()
	sender, views := r.sender, r.views
	r.mu.Unlock()

	if sender == nil || views == nil || !r.lifecycle.CanStop() {
		return app.ErrNotRunning
	}
	return sender.ForwardHardwareAddr(hwAddr, views.Outgoing)
}
