package peermgr

import (
	"sync"
	"time"

	"github.com/xai-blockchain/xai-sub002/wire"
)

// tokenBucket is a classic token-bucket limiter: capacity tokens refill at
// refillPerSecond, and Allow consumes one token per call, succeeding only if
// one was available.
type tokenBucket struct {
	mu             sync.Mutex
	capacity       float64
	tokens         float64
	refillPerSecond float64
	last           time.Time
}

func newTokenBucket(capacity, refillPerSecond float64, now time.Time) *tokenBucket {
	return &tokenBucket{capacity: capacity, tokens: capacity, refillPerSecond: refillPerSecond, last: now}
}

func (b *tokenBucket) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillPerSecond
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RateLimits configures the per-peer, per-kind buckets and the aggregate
// ingress bucket shared across every peer.
type RateLimits struct {
	PerKindCapacity float64
	PerKindRefill   float64
	AggregateCapacity float64
	AggregateRefill   float64
}

// DefaultRateLimits returns reasonable defaults: a handful of messages per
// second per kind per peer, and an aggregate ceiling that keeps a small
// number of noisy peers from starving the rest.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		PerKindCapacity:   20,
		PerKindRefill:     5,
		AggregateCapacity: 200,
		AggregateRefill:   50,
	}
}

// peerLimiter holds one token bucket per message kind for a single peer,
// created lazily as new kinds are seen.
type peerLimiter struct {
	cfg RateLimits

	mu      sync.Mutex
	buckets map[wire.MessageKind]*tokenBucket
}

func newPeerLimiter(cfg RateLimits) *peerLimiter {
	return &peerLimiter{cfg: cfg, buckets: make(map[wire.MessageKind]*tokenBucket)}
}

func (l *peerLimiter) Allow(kind wire.MessageKind, now time.Time) bool {
	l.mu.Lock()
	b, ok := l.buckets[kind]
	if !ok {
		b = newTokenBucket(l.cfg.PerKindCapacity, l.cfg.PerKindRefill, now)
		l.buckets[kind] = b
	}
	l.mu.Unlock()
	return b.Allow(now)
}
