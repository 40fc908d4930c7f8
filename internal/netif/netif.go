// Package netif discovers usable local network adapters and derives the
// incoming and outgoing relay views from them.
//
// Discovery runs once at startup. The resulting views are immutable; changing
// adapter filters requires a restart.
package netif

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
)

// Adapter is a local IPv4 network endpoint the relay can listen on or
// broadcast from. Immutable once discovery completes, except for the Primary
// flag which is settled while building the views.
type Adapter struct {
	Name      string
	Addr      net.IP
	Mask      net.IPMask
	Broadcast net.IP
	Primary   bool
}

// String returns the adapter's unicast address, the identity used by
// configuration allow-lists.
func (a Adapter) String() string {
	return a.Addr.String()
}

// BroadcastAddr computes the directed broadcast address for an IPv4 address
// and mask: address bytes OR'd with the inverted mask bytes. It fails when
// the (normalized) byte lengths differ, which keeps IPv6 leakage out of the
// relay.
func BroadcastAddr(addr net.IP, mask net.IPMask) (net.IP, error) {
	ip4 := addr.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("netif: %s is not an IPv4 address", addr)
	}
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(ip4) != len(mask) {
		return nil, fmt.Errorf("netif: address %s and mask %s have mismatched lengths", addr, net.IP(mask))
	}

	bcast := make(net.IP, len(ip4))
	for i := range ip4 {
		bcast[i] = ip4[i] | ^mask[i]
	}
	return bcast, nil
}

// Discover enumerates operational, non-loopback interfaces and returns one
// Adapter per usable IPv4 unicast address. Addresses with an all-zero mask or
// a mask/address length mismatch are skipped. No Primary flag is set here;
// see BuildViews.
func Discover(logger zerolog.Logger) ([]Adapter, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("netif: listing interfaces: %w", err)
	}

	var adapters []Adapter
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			logger.Debug().Err(err).
				Str("interface", iface.Name).
				Msg("skipping interface, could not list addresses")
			continue
		}
		adapters = append(adapters, adaptersFromAddrs(iface.Name, addrs, logger)...)
	}
	return adapters, nil
}

// adaptersFromAddrs converts one interface's addresses, skipping non-IPv4
// and zero-mask entries silently and logging broadcast derivation failures.
func adaptersFromAddrs(name string, addrs []net.Addr, logger zerolog.Logger) []Adapter {
	var adapters []Adapter
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipnet.IP.To4()
		if ip4 == nil || zeroMask(ipnet.Mask) {
			continue
		}
		bcast, err := BroadcastAddr(ip4, ipnet.Mask)
		if err != nil {
			logger.Debug().Err(err).
				Str("interface", name).
				Str("addr", ipnet.IP.String()).
				Msg("skipping address, no broadcast address")
			continue
		}
		adapters = append(adapters, Adapter{
			Name:      name,
			Addr:      ip4,
			Mask:      ipnet.Mask,
			Broadcast: bcast,
		})
	}
	return adapters
}

func zeroMask(mask net.IPMask) bool {
	for _, b := range mask {
		if b != 0 {
			return false
		}
	}
	return true
}
