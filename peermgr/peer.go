package peermgr

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/xai-blockchain/xai-sub002/wire"
)

// SessionState is where a peer sits in its connection lifecycle.
type SessionState int32

const (
	StateUnconnected SessionState = iota
	StateHandshaking
	StateConnected
	StateBanned
)

func (s SessionState) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateBanned:
		return "banned"
	default:
		return "unknown"
	}
}

// reputation bounds, clamped on every adjustment.
const (
	minReputation = -100
	maxReputation = 100
	banThreshold  = -50
)

// PeerRecord is everything the node tracks about one peer: its announced
// identity, network address, connection state, reputation, and the
// per-kind rate limiter guarding its traffic. Exported fields are safe to
// read without the manager's lock only while the peer is not concurrently
// being updated; callers that need a consistent view should go through
// Manager's accessor methods.
type PeerRecord struct {
	NodeID     string
	Address    string
	PubKeyHex  string
	LastSeen   time.Time
	Reputation int32

	state   int32 // SessionState, accessed atomically
	limiter *peerLimiter

	mu       sync.RWMutex
	tipHash  wire.BlockHash
	tipWork  string
	tipHeight uint64
}

func newPeerRecord(nodeID, address string, limits RateLimits) *PeerRecord {
	return &PeerRecord{
		NodeID:   nodeID,
		Address:  address,
		LastSeen: time.Time{},
		limiter:  newPeerLimiter(limits),
		state:    int32(StateUnconnected),
	}
}

// State returns the peer's current session state.
func (p *PeerRecord) State() SessionState {
	return SessionState(atomic.LoadInt32(&p.state))
}

// transition moves the peer to next, returning an error if the transition
// is not a legal step in unconnected -> handshaking -> connected -> banned
// (banned is absorbing and reachable from anywhere).
func (p *PeerRecord) transition(next SessionState) error {
	for {
		cur := SessionState(atomic.LoadInt32(&p.state))
		if !legalTransition(cur, next) {
			return errors.Errorf("peermgr: illegal session transition %s -> %s", cur, next)
		}
		if atomic.CompareAndSwapInt32(&p.state, int32(cur), int32(next)) {
			return nil
		}
	}
}

func legalTransition(from, to SessionState) bool {
	if to == StateBanned {
		return from != StateBanned
	}
	switch from {
	case StateUnconnected:
		return to == StateHandshaking
	case StateHandshaking:
		return to == StateConnected
	case StateConnected:
		return false
	default:
		return false
	}
}

// AdjustReputation applies delta, clamped to [minReputation, maxReputation],
// and bans the peer once it falls to or below banThreshold.
func (p *PeerRecord) AdjustReputation(delta int32) {
	rep := atomic.AddInt32(&p.Reputation, delta)
	if rep > maxReputation {
		atomic.StoreInt32(&p.Reputation, maxReputation)
		rep = maxReputation
	} else if rep < minReputation {
		atomic.StoreInt32(&p.Reputation, minReputation)
		rep = minReputation
	}
	if rep <= banThreshold {
		p.transition(StateBanned)
	}
}

// SetTip records the peer's last-announced chain tip, learned from its
// hello message.
func (p *PeerRecord) SetTip(height uint64, hash wire.BlockHash, work string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tipHeight = height
	p.tipHash = hash
	p.tipWork = work
}

// Tip returns the peer's last-announced chain tip.
func (p *PeerRecord) Tip() (height uint64, hash wire.BlockHash, work string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tipHeight, p.tipHash, p.tipWork
}
