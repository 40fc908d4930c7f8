package relay

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/lanward/wolrelay/internal/netif"
)

// broadcast binds a datagram socket on the adapter's unicast address and
// writes pkt to the adapter's broadcast address on the given port, repeat
// times. Binding to the adapter pins the egress interface.
func broadcast(ad netif.Adapter, port int, pkt []byte, repeat int, delay time.Duration) error {
	lc := net.ListenConfig{Control: broadcastControl}
	conn, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort(ad.Addr.String(), "0"))
	if err != nil {
		return fmt.Errorf("bind %s: %w", ad.Addr, err)
	}
	defer conn.Close()

	dst := &net.UDPAddr{IP: ad.Broadcast, Port: port}
	for i := 0; i < repeat; i++ {
		if _, err := conn.WriteTo(pkt, dst); err != nil {
			return fmt.Errorf("broadcast to %s: %w", dst, err)
		}
		if i < repeat-1 && delay > 0 {
			time.Sleep(delay)
		}
	}
	return nil
}

// broadcastControl enables SO_REUSEADDR and SO_BROADCAST before bind.
func broadcastControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
