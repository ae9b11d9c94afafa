package devnode

import (
	"sync"
	"time"
)

type nonceKey struct {
	account string
	nonce   string
}

// replayGuard remembers (account, nonce) pairs for ttl and rejects repeats.
// Expired pairs are swept at most once per half ttl, or sooner when the set
// grows past sweepAt.
type replayGuard struct {
	ttl     time.Duration
	sweepAt int

	mu        sync.Mutex
	expiry    map[nonceKey]time.Time
	lastSweep time.Time
}

func newReplayGuard(ttl time.Duration) *replayGuard {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &replayGuard{ttl: ttl, sweepAt: 4096, expiry: map[nonceKey]time.Time{}}
}

func (g *replayGuard) allow(account, nonce string, now time.Time) bool {
	if nonce == "" {
		return false
	}
	k := nonceKey{account: account, nonce: nonce}

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.expiry) > g.sweepAt || (len(g.expiry) > 0 && now.Sub(g.lastSweep) > g.ttl/2) {
		for key, until := range g.expiry {
			if !until.After(now) {
				delete(g.expiry, key)
			}
		}
		g.lastSweep = now
	}
	if until, seen := g.expiry[k]; seen && until.After(now) {
		return false
	}
	g.expiry[k] = now.Add(g.ttl)
	return true
}

func (g *replayGuard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.expiry)
}
