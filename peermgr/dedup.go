package peermgr

import (
	"sync"
	"time"
)

// dedupTTL is how long a seen key is remembered before it can be forgotten,
// bounding the suppression cache's memory use the same way the fork
// package's orphan pool bounds its own TTL-based eviction.
const dedupTTL = 10 * time.Minute

const maxDedupEntries = 100000

// dedupCache suppresses messages already seen, keyed by an arbitrary
// string (the caller combines sender+nonce, or message-kind+content-hash,
// into one string before calling Seen).
type dedupCache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	// order is an insertion-ordered key list, used to evict the oldest
	// entries once the cache is at capacity without scanning the whole map.
	order []string
}

func newDedupCache() *dedupCache {
	return &dedupCache{seen: make(map[string]time.Time)}
}

// Seen reports whether key was already recorded within dedupTTL, and
// records it (refreshing its timestamp) if not expired duplicate handling
// is needed by the caller either way.
func (c *dedupCache) Seen(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seenAt, ok := c.seen[key]; ok && now.Sub(seenAt) < dedupTTL {
		return true
	}

	if _, existed := c.seen[key]; !existed {
		if len(c.order) >= maxDedupEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.seen, oldest)
		}
		c.order = append(c.order, key)
	}
	c.seen[key] = now
	return false
}
