package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/lanward/wolrelay/internal/netif"
)

func bindTCP(ctx context.Context, ad netif.Adapter, port int) (net.Listener, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(ctx, "tcp4", net.JoinHostPort(ad.Addr.String(), strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s:%d: %w", ad.Addr, port, err)
	}
	return ln, nil
}

// runTCP accepts connections until the context is cancelled. Accepted
// connections are handled concurrently with each other and with the accept
// loop; any accept failure other than cancellation is logged and the loop
// continues.
func (s *Set) runTCP(ctx context.Context, ln net.Listener, ad netif.Adapter) {
	defer s.wg.Done()
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer ln.Close()

	log := s.logger.With().Str("adapter", ad.Addr.String()).Str("transport", "tcp").Logger()
	log.Info().Str("listen", ln.Addr().String()).Msg("listener started")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info().Msg("listener stopped")
				return
			}
			log.Error().Err(err).Msg("accept failed")
			continue
		}
		s.wg.Add(1)
		go s.handleConn(ctx, conn, ad)
	}
}

// handleConn performs the single read a TCP wake request consists of.
func (s *Set) handleConn(ctx context.Context, conn net.Conn, ad netif.Adapter) {
	defer s.wg.Done()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	buf := make([]byte, readBufferSize)
	n, err := conn.Read(buf)
	if n == 0 {
		if err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
			s.logger.Warn().Err(err).
				Str("adapter", ad.Addr.String()).
				Msg("tcp read failed")
		}
		return
	}
	s.handle(buf[:n], tcpSourceIP(conn), "tcp", ad)
}

func tcpSourceIP(conn net.Conn) string {
	if ta, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return ta.IP.String()
	}
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
