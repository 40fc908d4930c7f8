// Package metrics exposes relay counters via Prometheus. Collection is
// always on; the HTTP exposition endpoint only runs when an address is
// configured.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds the relay's counters. Create with New; the zero value panics
// on use.
type Metrics struct {
	registry *prometheus.Registry

	// Received counts inbound buffers per transport, before any checks.
	Received *prometheus.CounterVec

	// Relayed counts magic packets broadcast onto an outgoing adapter.
	Relayed prometheus.Counter

	// Debounced counts requests dropped by the debounce gate.
	Debounced prometheus.Counter

	// Untrusted counts buffers discarded by the trusted-source check.
	Untrusted prometheus.Counter

	// Malformed counts buffers that did not match the packet shape.
	Malformed prometheus.Counter

	// SendErrors counts failed broadcasts to a single adapter.
	SendErrors prometheus.Counter
}

// New creates the counter set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wolrelay",
			Name:      "packets_received_total",
			Help:      "Inbound buffers received, by transport.",
		}, []string{"transport"}),
		Relayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wolrelay",
			Name:      "packets_relayed_total",
			Help:      "Magic packets broadcast onto an outgoing adapter.",
		}),
		Debounced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wolrelay",
			Name:      "packets_debounced_total",
			Help:      "Requests dropped by the debounce gate.",
		}),
		Untrusted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wolrelay",
			Name:      "packets_untrusted_total",
			Help:      "Buffers discarded because the source was not trusted.",
		}),
		Malformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wolrelay",
			Name:      "packets_malformed_total",
			Help:      "Buffers that did not match the configured packet shape.",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wolrelay",
			Name:      "send_errors_total",
			Help:      "Failed broadcasts to a single outgoing adapter.",
		}),
	}
}

// Handler returns the exposition handler for the metric registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the exposition endpoint on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics endpoint failed")
	}
}
