// Package relay broadcasts magic packets onto outgoing adapters, either
// inline (direct mode) or through a debounce gate and work queue drained by a
// background loop (debounced mode).
package relay

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/lanward/wolrelay/internal/metrics"
	"github.com/lanward/wolrelay/internal/netif"
	"github.com/lanward/wolrelay/internal/packet"
)

// Forwarder accepts a validated relay request. Implemented by Sender (direct
// mode) and QueuedSender (debounced mode); listeners do not care which.
type Forwarder interface {
	Forward(pkt []byte, hwAddr string, outgoing []netif.Adapter)
}

// sendFunc performs one adapter's broadcast; swapped out in tests.
type sendFunc func(ad netif.Adapter, port int, pkt []byte, repeat int, delay time.Duration) error

// Sender broadcasts packets inline to every adapter in the fan-out set.
// A failure on one adapter is logged and does not stop the remaining sends.
type Sender struct {
	port        int
	repeat      int
	repeatDelay time.Duration
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	send        sendFunc
}

// NewSender creates a direct-mode sender broadcasting on the given outgoing
// port, repeating each packet repeat times with repeatDelay between copies.
func NewSender(port, repeat int, repeatDelay time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Sender {
	if repeat < 1 {
		repeat = 1
	}
	return &Sender{
		port:        port,
		repeat:      repeat,
		repeatDelay: repeatDelay,
		metrics:     m,
		logger:      logger,
		send:        broadcast,
	}
}

// Forward broadcasts pkt to every outgoing adapter's broadcast address.
func (s *Sender) Forward(pkt []byte, hwAddr string, outgoing []netif.Adapter) {
	for _, ad := range outgoing {
		if err := s.send(ad, s.port, pkt, s.repeat, s.repeatDelay); err != nil {
			s.metrics.SendErrors.Inc()
			s.logger.Error().Err(err).
				Str("adapter", ad.Addr.String()).
				Str("target", hwAddr).
				Msg("broadcast failed")
			continue
		}
		s.metrics.Relayed.Inc()
		s.logger.Info().
			Str("adapter", ad.Addr.String()).
			Str("broadcast", ad.Broadcast.String()).
			Str("target", hwAddr).
			Int("repeat", s.repeat).
			Msg("relayed magic packet")
	}
}

// ForwardHardwareAddr builds the canonical packet for hwAddr and forwards it.
// Used when there is no caller-supplied raw packet, e.g. the wake subcommand.
func (s *Sender) ForwardHardwareAddr(hwAddr string, outgoing []netif.Adapter) error {
	canonical, err := packet.Normalize(hwAddr)
	if err != nil {
		return err
	}
	pkt, err := packet.Build(canonical)
	if err != nil {
		return err
	}
	s.Forward(pkt, canonical, outgoing)
	return nil
}
