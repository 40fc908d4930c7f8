// Package gate implements the per-target debounce gate: at most one accepted
// relay request per hardware address per window, with a periodic sweep that
// evicts stale ledger entries to bound memory.
package gate

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// shardCount spreads ledger keys over independent locks so concurrent
// TryAccept calls from different listeners rarely contend.
const shardCount = 16

type shard struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// Gate decides whether a forward request for a hardware address may proceed.
// Safe for concurrent use.
type Gate struct {
	window time.Duration
	expiry time.Duration
	now    func() time.Time
	shards [shardCount]*shard
}

// New creates a gate with the given debounce window and ledger-entry expiry.
// Entries older than expiry are removed by Sweep; expiry should be at least
// the window, but a shorter expiry only loosens debouncing (callers log the
// misconfiguration, it is never fatal).
func New(window, expiry time.Duration) *Gate {
	g := &Gate{
		window: window,
		expiry: expiry,
		now:    time.Now,
	}
	for i := range g.shards {
		g.shards[i] = &shard{entries: make(map[string]time.Time)}
	}
	return g
}

func (g *Gate) shard(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return g.shards[h.Sum32()%shardCount]
}

// TryAccept reports whether a request for key may be forwarded now. The first
// call for a key accepts and starts its cooldown; further calls within the
// window reject without touching the recorded timestamp.
func (g *Gate) TryAccept(key string) bool {
	s := g.shard(key)
	now := g.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.entries[key]; ok && now.Sub(last) < g.window {
		return false
	}
	s.entries[key] = now
	return true
}

// Sweep removes every ledger entry older than the expiry and returns how many
// were evicted. A key accepted concurrently with its eviction simply
// re-creates the entry.
func (g *Gate) Sweep() int {
	now := g.now()
	removed := 0
	for _, s := range g.shards {
		s.mu.Lock()
		for key, last := range s.entries {
			if now.Sub(last) > g.expiry {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of ledger entries across all shards.
func (g *Gate) Len() int {
	n := 0
	for _, s := range g.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Run sweeps the ledger on a fixed interval until ctx is cancelled.
func (g *Gate) Run(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := g.Sweep(); removed > 0 {
				logger.Debug().Int("removed", removed).Int("remaining", g.Len()).
					Msg("swept debounce ledger")
			}
		}
	}
}
