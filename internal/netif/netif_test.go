package netif

import (
	"bytes"
	"net"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func adapter(addr string) Adapter {
	return Adapter{
		Addr:      net.ParseIP(addr).To4(),
		Mask:      net.CIDRMask(24, 32),
		Broadcast: net.ParseIP("192.168.1.255").To4(),
	}
}

func TestBroadcastAddr(t *testing.T) {
	tests := []struct {
		name string
		addr string
		mask net.IPMask
		want string
	}{
		{"class C", "192.168.1.10", net.CIDRMask(24, 32), "192.168.1.255"},
		{"class A", "10.1.2.3", net.CIDRMask(8, 32), "10.255.255.255"},
		{"narrow subnet", "172.16.4.9", net.CIDRMask(30, 32), "172.16.4.11"},
		{"host mask", "192.168.1.10", net.CIDRMask(32, 32), "192.168.1.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BroadcastAddr(net.ParseIP(tt.addr), tt.mask)
			if err != nil {
				t.Fatalf("BroadcastAddr returned error: %v", err)
			}
			if got.String() != tt.want {
				t.Fatalf("BroadcastAddr(%s, %s) = %s, want %s", tt.addr, net.IP(tt.mask), got, tt.want)
			}
		})
	}
}

func TestBroadcastAddrNormalizesMaskLength(t *testing.T) {
	// A 16-byte mask on a 4-byte address is normalized, not rejected.
	got, err := BroadcastAddr(net.ParseIP("192.168.1.10"), net.CIDRMask(120, 128))
	if err != nil {
		t.Fatalf("BroadcastAddr returned error: %v", err)
	}
	if got.String() != "192.168.1.255" {
		t.Fatalf("BroadcastAddr = %s, want 192.168.1.255", got)
	}
}

func TestBroadcastAddrRejectsIPv6(t *testing.T) {
	if _, err := BroadcastAddr(net.ParseIP("fe80::1"), net.CIDRMask(64, 128)); err == nil {
		t.Fatal("BroadcastAddr accepted an IPv6 address")
	}
}

func TestAdaptersFromAddrsLogsSkippedAddresses(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("192.168.1.10"), Mask: net.CIDRMask(24, 32)},
		// Unusable mask length: the entry is skipped with a log record.
		&net.IPNet{IP: net.ParseIP("192.168.2.10"), Mask: net.IPMask(bytes.Repeat([]byte{0xff}, 10))},
		// IPv6 addresses are skipped silently; they are expected on every
		// interface and carry no broadcast semantics.
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
	}

	got := adaptersFromAddrs("eth0", addrs, logger)
	if len(got) != 1 || got[0].Addr.String() != "192.168.1.10" {
		t.Fatalf("adapters = %v, want only 192.168.1.10", got)
	}
	if !strings.Contains(buf.String(), "no broadcast address") {
		t.Fatalf("skipped address not logged, log output: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "eth0") {
		t.Fatalf("log record missing interface name: %s", buf.String())
	}
}

func TestBuildViewsPrimaryPromotion(t *testing.T) {
	t.Run("configured primary match", func(t *testing.T) {
		all := []Adapter{adapter("192.168.1.10"), adapter("10.0.0.5")}
		v := BuildViews(all, FilterConfig{PrimaryAddr: "10.0.0.5"})

		if v.All[0].Primary || !v.All[1].Primary {
			t.Fatalf("primary flags = [%v %v], want [false true]", v.All[0].Primary, v.All[1].Primary)
		}
	})

	t.Run("no match promotes first", func(t *testing.T) {
		all := []Adapter{adapter("192.168.1.10"), adapter("10.0.0.5")}
		v := BuildViews(all, FilterConfig{PrimaryAddr: "172.16.0.1"})

		if !v.All[0].Primary || v.All[1].Primary {
			t.Fatalf("primary flags = [%v %v], want [true false]", v.All[0].Primary, v.All[1].Primary)
		}
	})

	t.Run("exactly one primary", func(t *testing.T) {
		all := []Adapter{adapter("192.168.1.10"), adapter("10.0.0.5"), adapter("172.16.0.1")}
		v := BuildViews(all, FilterConfig{})

		count := 0
		for _, a := range v.All {
			if a.Primary {
				count++
			}
		}
		if count != 1 {
			t.Fatalf("primary count = %d, want 1", count)
		}
	})

	t.Run("empty list", func(t *testing.T) {
		v := BuildViews(nil, FilterConfig{PrimaryAddr: "10.0.0.5"})
		if len(v.All) != 0 || len(v.Incoming) != 0 || len(v.Outgoing) != 0 {
			t.Fatal("views from empty adapter list are not empty")
		}
	})
}

func TestBuildViewsFiltering(t *testing.T) {
	all := []Adapter{adapter("192.168.1.10"), adapter("10.0.0.5"), adapter("172.16.0.1")}

	t.Run("primary only", func(t *testing.T) {
		v := BuildViews(append([]Adapter{}, all...), FilterConfig{
			PrimaryAddr: "10.0.0.5",
			PrimaryOnly: true,
			// Allow-lists are ignored when primary-only is set.
			IncomingAddrs: []string{"192.168.1.10"},
		})
		if len(v.Incoming) != 1 || v.Incoming[0].Addr.String() != "10.0.0.5" {
			t.Fatalf("Incoming = %v, want only 10.0.0.5", v.Incoming)
		}
		if len(v.Outgoing) != 1 || v.Outgoing[0].Addr.String() != "10.0.0.5" {
			t.Fatalf("Outgoing = %v, want only 10.0.0.5", v.Outgoing)
		}
	})

	t.Run("independent allow lists", func(t *testing.T) {
		v := BuildViews(append([]Adapter{}, all...), FilterConfig{
			IncomingAddrs: []string{"192.168.1.10"},
			OutgoingAddrs: []string{"10.0.0.5", "172.16.0.1"},
		})
		if len(v.Incoming) != 1 || v.Incoming[0].Addr.String() != "192.168.1.10" {
			t.Fatalf("Incoming = %v, want only 192.168.1.10", v.Incoming)
		}
		if len(v.Outgoing) != 2 {
			t.Fatalf("Outgoing has %d adapters, want 2", len(v.Outgoing))
		}
	})

	t.Run("empty allow list retains all", func(t *testing.T) {
		v := BuildViews(append([]Adapter{}, all...), FilterConfig{})
		if len(v.Incoming) != 3 || len(v.Outgoing) != 3 {
			t.Fatalf("Incoming/Outgoing = %d/%d adapters, want 3/3", len(v.Incoming), len(v.Outgoing))
		}
	})

	t.Run("allow list preserves discovery order", func(t *testing.T) {
		v := BuildViews(append([]Adapter{}, all...), FilterConfig{
			OutgoingAddrs: []string{"172.16.0.1", "192.168.1.10"},
		})
		if v.Outgoing[0].Addr.String() != "192.168.1.10" || v.Outgoing[1].Addr.String() != "172.16.0.1" {
			t.Fatalf("Outgoing order = %v, want discovery order", v.Outgoing)
		}
	})
}

func TestSelectOutgoing(t *testing.T) {
	outgoing := []Adapter{adapter("192.168.1.10"), adapter("10.0.0.5")}
	receiving := adapter("192.168.1.10")

	t.Run("send back disabled excludes receiving adapter", func(t *testing.T) {
		got := SelectOutgoing(outgoing, receiving, false)
		if len(got) != 1 || got[0].Addr.String() != "10.0.0.5" {
			t.Fatalf("SelectOutgoing = %v, want only 10.0.0.5", got)
		}
	})

	t.Run("send back enabled includes receiving adapter", func(t *testing.T) {
		got := SelectOutgoing(outgoing, receiving, true)
		if len(got) != 2 {
			t.Fatalf("SelectOutgoing returned %d adapters, want 2", len(got))
		}
	})

	t.Run("receiving adapter not in outgoing view", func(t *testing.T) {
		got := SelectOutgoing(outgoing, adapter("172.16.0.1"), false)
		if len(got) != 2 {
			t.Fatalf("SelectOutgoing returned %d adapters, want 2", len(got))
		}
	})
}
