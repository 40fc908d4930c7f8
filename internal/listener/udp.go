package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/lanward/wolrelay/internal/netif"
)

func bindUDP(ctx context.Context, ad netif.Adapter, port int) (net.PacketConn, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	conn, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort(ad.Addr.String(), strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listen udp %s:%d: %w", ad.Addr, port, err)
	}
	return conn, nil
}

// reuseAddrControl sets SO_REUSEADDR before bind so listeners come back up
// immediately after a restart.
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// runUDP processes datagrams in arrival order, one at a time, until the
// context is cancelled.
func (s *Set) runUDP(ctx context.Context, conn net.PacketConn, ad netif.Adapter) {
	defer s.wg.Done()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	log := s.logger.With().Str("adapter", ad.Addr.String()).Str("transport", "udp").Logger()
	log.Info().Str("listen", conn.LocalAddr().String()).Msg("listener started")

	buf := make([]byte, readBufferSize)
	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info().Msg("listener stopped")
				return
			}
			log.Error().Err(err).Msg("read failed")
			continue
		}
		s.handle(buf[:n], udpSourceIP(src), "udp", ad)
	}
}

func udpSourceIP(addr net.Addr) string {
	if ua, ok := addr.(*net.UDPAddr); ok {
		return ua.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
