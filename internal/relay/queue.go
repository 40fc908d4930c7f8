package relay

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lanward/wolrelay/internal/gate"
	"github.com/lanward/wolrelay/internal/metrics"
	"github.com/lanward/wolrelay/internal/netif"
)

// Request is one accepted unit of relay work. Created by a listener on
// successful validation, consumed exactly once by the drain loop, never
// mutated after creation.
type Request struct {
	Packet       []byte
	HardwareAddr string
	Outgoing     []netif.Adapter
}

// QueuedSender decorates a direct Sender with the debounce gate and an
// unbounded multi-producer queue. Accepted requests are enqueued and drained
// by a single background loop, one request's full fan-out completing before
// the next begins.
type QueuedSender struct {
	direct  *Sender
	gate    *gate.Gate
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu      sync.Mutex
	pending []Request
	notify  chan struct{}
}

// NewQueuedSender creates a debounced sender around direct.
func NewQueuedSender(direct *Sender, g *gate.Gate, m *metrics.Metrics, logger zerolog.Logger) *QueuedSender {
	return &QueuedSender{
		direct:  direct,
		gate:    g,
		metrics: m,
		logger:  logger,
		notify:  make(chan struct{}, 1),
	}
}

// Forward consults the gate and enqueues the request on acceptance. Rejected
// requests are dropped without enqueueing.
func (q *QueuedSender) Forward(pkt []byte, hwAddr string, outgoing []netif.Adapter) {
	if !q.gate.TryAccept(hwAddr) {
		q.metrics.Debounced.Inc()
		q.logger.Debug().Str("target", hwAddr).Msg("debounced relay request")
		return
	}

	q.mu.Lock()
	q.pending = append(q.pending, Request{Packet: pkt, HardwareAddr: hwAddr, Outgoing: outgoing})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled. Requests still queued at
// shutdown are dropped; relaying is best-effort.
func (q *QueuedSender) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		}

		for {
			req, ok := q.pop()
			if !ok {
				break
			}
			q.direct.Forward(req.Packet, req.HardwareAddr, req.Outgoing)
		}
	}
}

func (q *QueuedSender) pop() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Request{}, false
	}
	req := q.pending[0]
	q.pending = q.pending[1:]
	return req, true
}

// Pending returns the number of queued requests.
func (q *QueuedSender) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
