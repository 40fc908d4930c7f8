package wolrelay

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/lanward/wolrelay/internal/netif"
)

func loopbackAdapter(t *testing.T) netif.Adapter {
	t.Helper()
	return netif.Adapter{
		Name:      "lo",
		Addr:      net.IPv4(127, 0, 0, 1).To4(),
		Mask:      net.CIDRMask(8, 32),
		Broadcast: net.IPv4(127, 255, 255, 255).To4(),
		Primary:   true,
	}
}

// freeUDPPort grabs an ephemeral port and releases it for the relay to bind.
func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("probe port: %v", err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()
	return port
}

func newTestRelay(t *testing.T) *Relay {
	t.Helper()
	cfg := DefaultConfig()
	cfg.UDPPort = freeUDPPort(t)
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.discover = func() ([]netif.Adapter, error) {
		return []netif.Adapter{loopbackAdapter(t)}, nil
	}
	return r
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no transport", func(c *Config) { c.UDPEnabled = false; c.TCPEnabled = false }},
		{"bad udp port", func(c *Config) { c.UDPPort = 70000 }},
		{"bad shape pattern", func(c *Config) { c.ShapePattern = "(" }},
		{"negative repeat", func(c *Config) { c.RepeatCount = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfigSetDefaults(t *testing.T) {
	var cfg Config
	cfg.UDPEnabled = true
	cfg.SetDefaults()

	if cfg.UDPPort != 9 {
		t.Errorf("UDPPort = %d, want 9", cfg.UDPPort)
	}
	if cfg.RepeatCount != 1 {
		t.Errorf("RepeatCount = %d, want 1", cfg.RepeatCount)
	}
	if cfg.DebounceWindow != time.Second {
		t.Errorf("DebounceWindow = %v, want 1s", cfg.DebounceWindow)
	}
}

func TestRelayLifecycle(t *testing.T) {
	r := newTestRelay(t)

	if got := r.Status(); got != StateStopped {
		t.Fatalf("Status = %v before Start, want Stopped", got)
	}
	if err := r.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop before Start = %v, want ErrNotRunning", err)
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := r.Status(); got != StateRunning {
		t.Fatalf("Status = %v after Start, want Running", got)
	}

	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start = %v, want ErrAlreadyRunning", err)
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := r.Status(); got != StateStopped {
		t.Fatalf("Status = %v after Stop, want Stopped", got)
	}
}

func TestStartFailsWithoutAdapters(t *testing.T) {
	r := newTestRelay(t)
	r.discover = func() ([]netif.Adapter, error) { return nil, nil }

	if err := r.Start(context.Background()); !errors.Is(err, ErrNoAdapters) {
		t.Fatalf("Start = %v, want ErrNoAdapters", err)
	}
	if got := r.Status(); got != StateCrashed {
		t.Fatalf("Status = %v, want Crashed", got)
	}
}

func TestStartFailsWhenFiltersMatchNothing(t *testing.T) {
	r := newTestRelay(t)
	r.config.IncomingAddrs = []string{"192.0.2.99"}

	if err := r.Start(context.Background()); !errors.Is(err, ErrNoAdapters) {
		t.Fatalf("Start = %v, want ErrNoAdapters", err)
	}
}

func TestWakeRequiresRunningRelay(t *testing.T) {
	r := newTestRelay(t)
	if err := r.Wake("00:11:22:33:44:55"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Wake on stopped relay = %v, want ErrNotRunning", err)
	}
}

func TestRelayEndToEnd(t *testing.T) {
	// A recognized magic packet sent to the listener must come back out on
	// the outgoing broadcast port.
	sink, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		t.Fatalf("bind sink: %v", err)
	}
	defer sink.Close()

	r := newTestRelay(t)
	r.config.SendBack = true
	r.config.OutgoingPort = sink.LocalAddr().(*net.UDPAddr).Port

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop()

	conn, err := net.Dial("udp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(r.config.UDPPort)))
	if err != nil {
		t.Fatalf("dial listener: %v", err)
	}
	defer conn.Close()

	pkt := make([]byte, 0, 102)
	for i := 0; i < 6; i++ {
		pkt = append(pkt, 0xff)
	}
	hw := []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	for i := 0; i < 16; i++ {
		pkt = append(pkt, hw...)
	}
	if _, err := conn.Write(pkt); err != nil {
		t.Fatalf("send magic packet: %v", err)
	}

	sink.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, _, err := sink.ReadFrom(buf)
	if err != nil {
		t.Fatalf("relayed packet not received: %v", err)
	}
	if n != len(pkt) {
		t.Fatalf("relayed %d bytes, want %d", n, len(pkt))
	}
}
