package netif

// FilterConfig controls how the incoming and outgoing views are derived from
// the full adapter list. Allow-lists hold adapter unicast addresses in
// dotted-quad form.
type FilterConfig struct {
	PrimaryAddr   string
	PrimaryOnly   bool
	IncomingAddrs []string
	OutgoingAddrs []string
}

// Views holds the three read-only adapter sequences the relay works with.
// Built once after discovery; safe for concurrent reads thereafter.
type Views struct {
	All      []Adapter
	Incoming []Adapter
	Outgoing []Adapter
}

// BuildViews settles the primary flag and derives the filtered views.
//
// The adapter whose address equals cfg.PrimaryAddr becomes primary; when no
// adapter matches, the first discovered one is promoted. Incoming and
// outgoing filtering are independent: primary-only wins over both
// allow-lists, a non-empty allow-list retains only listed addresses, and an
// empty one retains everything.
func BuildViews(all []Adapter, cfg FilterConfig) *Views {
	primaryIdx := -1
	for i := range all {
		if cfg.PrimaryAddr != "" && all[i].Addr.String() == cfg.PrimaryAddr {
			primaryIdx = i
			break
		}
	}
	if primaryIdx < 0 && len(all) > 0 {
		primaryIdx = 0
	}
	for i := range all {
		all[i].Primary = i == primaryIdx
	}

	return &Views{
		All:      all,
		Incoming: filter(all, cfg.PrimaryOnly, cfg.IncomingAddrs),
		Outgoing: filter(all, cfg.PrimaryOnly, cfg.OutgoingAddrs),
	}
}

func filter(all []Adapter, primaryOnly bool, allow []string) []Adapter {
	if primaryOnly {
		var out []Adapter
		for _, a := range all {
			if a.Primary {
				out = append(out, a)
			}
		}
		return out
	}
	if len(allow) == 0 {
		out := make([]Adapter, len(all))
		copy(out, all)
		return out
	}

	allowed := make(map[string]struct{}, len(allow))
	for _, addr := range allow {
		allowed[addr] = struct{}{}
	}
	var out []Adapter
	for _, a := range all {
		if _, ok := allowed[a.Addr.String()]; ok {
			out = append(out, a)
		}
	}
	return out
}

// SelectOutgoing computes the fan-out set for a request received on the given
// adapter: every outgoing adapter, minus the receiving one when sendBack is
// disabled.
func SelectOutgoing(outgoing []Adapter, receiving Adapter, sendBack bool) []Adapter {
	out := make([]Adapter, 0, len(outgoing))
	for _, a := range outgoing {
		if !sendBack && a.Addr.Equal(receiving.Addr) {
			continue
		}
		out = append(out, a)
	}
	return out
}
