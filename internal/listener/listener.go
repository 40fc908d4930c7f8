// Package listener runs the per-adapter UDP and TCP magic packet listeners.
//
// Each incoming adapter gets one goroutine per enabled transport. Received
// buffers flow through the trusted-source check, the packet codec, and the
// outgoing-adapter selection before being handed to the relay sender. A
// malformed packet never stops a listener.
package listener

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lanward/wolrelay/internal/metrics"
	"github.com/lanward/wolrelay/internal/netif"
	"github.com/lanward/wolrelay/internal/packet"
	"github.com/lanward/wolrelay/internal/relay"
)

// readBufferSize bounds a single datagram or TCP read.
const readBufferSize = 1024

// ErrNoListeners is returned by Start when no listener could bind.
var ErrNoListeners = errors.New("listener: no listener could be bound")

// Config controls transports, ports and trust for the listener set.
type Config struct {
	UDPEnabled     bool
	UDPPort        int
	TCPEnabled     bool
	TCPPort        int
	TrustedSources []string
	SendBack       bool
}

// Set owns all listening goroutines. Create with NewSet, bind and launch with
// Start, then Wait for teardown after cancelling the context.
type Set struct {
	cfg     Config
	views   *netif.Views
	matcher *packet.Matcher
	fwd     relay.Forwarder
	metrics *metrics.Metrics
	logger  zerolog.Logger

	trusted map[string]struct{}

	wg       sync.WaitGroup
	udpAddrs []net.Addr
	tcpAddrs []net.Addr
}

// NewSet builds a listener set over the incoming adapter view. The
// trusted-source list is frozen into a set here; an empty list trusts
// everyone.
func NewSet(cfg Config, views *netif.Views, matcher *packet.Matcher, fwd relay.Forwarder, m *metrics.Metrics, logger zerolog.Logger) *Set {
	trusted := make(map[string]struct{}, len(cfg.TrustedSources))
	for _, addr := range cfg.TrustedSources {
		trusted[addr] = struct{}{}
	}
	return &Set{
		cfg:     cfg,
		views:   views,
		matcher: matcher,
		fwd:     fwd,
		metrics: m,
		logger:  logger,
		trusted: trusted,
	}
}

// Start binds one listener per incoming adapter per enabled transport and
// launches the accept loops. A bind failure disables only that listener;
// ErrNoListeners is returned when none could bind.
func (s *Set) Start(ctx context.Context) error {
	for _, ad := range s.views.Incoming {
		if s.cfg.UDPEnabled {
			conn, err := bindUDP(ctx, ad, s.cfg.UDPPort)
			if err != nil {
				s.logger.Error().Err(err).
					Str("adapter", ad.Addr.String()).
					Int("port", s.cfg.UDPPort).
					Msg("udp bind failed")
			} else {
				s.udpAddrs = append(s.udpAddrs, conn.LocalAddr())
				s.wg.Add(1)
				go s.runUDP(ctx, conn, ad)
			}
		}
		if s.cfg.TCPEnabled {
			ln, err := bindTCP(ctx, ad, s.cfg.TCPPort)
			if err != nil {
				s.logger.Error().Err(err).
					Str("adapter", ad.Addr.String()).
					Int("port", s.cfg.TCPPort).
					Msg("tcp bind failed")
			} else {
				s.tcpAddrs = append(s.tcpAddrs, ln.Addr())
				s.wg.Add(1)
				go s.runTCP(ctx, ln, ad)
			}
		}
	}

	if len(s.udpAddrs)+len(s.tcpAddrs) == 0 {
		return ErrNoListeners
	}
	return nil
}

// Wait blocks until every listener goroutine has exited.
func (s *Set) Wait() {
	s.wg.Wait()
}

// UDPAddrs returns the bound UDP listener addresses, in adapter order.
func (s *Set) UDPAddrs() []net.Addr {
	return s.udpAddrs
}

// TCPAddrs returns the bound TCP listener addresses, in adapter order.
func (s *Set) TCPAddrs() []net.Addr {
	return s.tcpAddrs
}

// handle runs one received buffer through trust check, codec and selection.
func (s *Set) handle(buf []byte, src, transport string, receiving netif.Adapter) {
	s.metrics.Received.WithLabelValues(transport).Inc()

	if len(s.trusted) > 0 {
		if _, ok := s.trusted[src]; !ok {
			s.metrics.Untrusted.Inc()
			s.logger.Warn().
				Str("source", src).
				Str("transport", transport).
				Msg("dropped packet from untrusted source")
			return
		}
	}

	if !s.matcher.IsMagic(buf) {
		s.metrics.Malformed.Inc()
		s.logger.Warn().
			Str("source", src).
			Str("transport", transport).
			Int("len", len(buf)).
			Msg("dropped packet not matching magic shape")
		return
	}

	hwAddr, ok := s.matcher.HardwareAddr(buf)
	if !ok {
		// Shape matched but the capture pattern did not; nothing to wake.
		s.logger.Debug().Str("source", src).Msg("hardware address extraction failed")
		return
	}

	// Rebuild from the extracted address rather than echoing buf, so a
	// relaxed shape (SecureOn passwords, trailing bytes) still produces the
	// canonical 102-byte packet on the wire.
	pkt, err := packet.Build(hwAddr)
	if err != nil {
		s.metrics.Malformed.Inc()
		s.logger.Warn().
			Str("source", src).
			Str("target", hwAddr).
			Msg("extracted hardware address did not form a canonical packet")
		return
	}

	outgoing := netif.SelectOutgoing(s.views.Outgoing, receiving, s.cfg.SendBack)

	s.logger.Info().
		Str("source", src).
		Str("transport", transport).
		Str("target", hwAddr).
		Str("adapter", receiving.Addr.String()).
		Int("outgoing", len(outgoing)).
		Msg("accepted wake request")

	s.fwd.Forward(pkt, hwAddr, outgoing)
}
