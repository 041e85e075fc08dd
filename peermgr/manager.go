package peermgr

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/xai-blockchain/xai-sub002/crypto"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// ErrPeerWithSameIDExists signals a second peer announcing an already-known
// node ID, mirroring the single-ready-peer-per-ID invariant.
var ErrPeerWithSameIDExists = errors.New("peermgr: a peer with this node ID already exists")

// Manager owns the set of known peers, their session state, rate limiting,
// and duplicate-message suppression. It does not own the transport: the
// transport decodes each envelope and the caller hands it to Manager, which
// verifies, de-duplicates and rate-limits it and returns an accept/drop
// decision (or an error) for the relay package to act on.
type Manager struct {
	self   *crypto.PrivateKey
	limits RateLimits

	mu    sync.RWMutex
	peers map[string]*PeerRecord

	aggregate *tokenBucket
	dedup     *dedupCache
}

// New builds a Manager that signs outgoing envelopes with self.
func New(self *crypto.PrivateKey, limits RateLimits) *Manager {
	now := time.Now()
	return &Manager{
		self:      self,
		limits:    limits,
		peers:     make(map[string]*PeerRecord),
		aggregate: newTokenBucket(limits.AggregateCapacity, limits.AggregateRefill, now),
		dedup:     newDedupCache(),
	}
}

// AddPeer registers a newly dialed or accepted peer in StateUnconnected.
func (m *Manager) AddPeer(nodeID, address string) (*PeerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.peers[nodeID]; ok {
		return nil, errors.Wrapf(ErrPeerWithSameIDExists, "node id %s", nodeID)
	}
	rec := newPeerRecord(nodeID, address, m.limits)
	m.peers[nodeID] = rec
	return rec, nil
}

// Peer looks up a registered peer by node ID.
func (m *Manager) Peer(nodeID string) (*PeerRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.peers[nodeID]
	return rec, ok
}

// Peers returns every registered peer currently in StateConnected.
func (m *Manager) Peers() []*PeerRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*PeerRecord
	for _, rec := range m.peers {
		if rec.State() == StateConnected {
			out = append(out, rec)
		}
	}
	return out
}

// RemovePeer drops a peer from the registry entirely, e.g. after its
// connection closes.
func (m *Manager) RemovePeer(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, nodeID)
}

// BeginHandshake transitions a peer from unconnected to handshaking.
func (m *Manager) BeginHandshake(nodeID string) error {
	rec, ok := m.Peer(nodeID)
	if !ok {
		return errors.Errorf("peermgr: unknown peer %s", nodeID)
	}
	return rec.transition(StateHandshaking)
}

// CompleteHandshake transitions a peer from handshaking to connected once
// its verified hello has been processed.
func (m *Manager) CompleteHandshake(nodeID string, hello *wire.HelloPayload) error {
	rec, ok := m.Peer(nodeID)
	if !ok {
		return errors.Errorf("peermgr: unknown peer %s", nodeID)
	}
	if err := rec.transition(StateConnected); err != nil {
		return err
	}
	rec.LastSeen = time.Now()
	rec.PubKeyHex = nodeID
	rec.SetTip(hello.TipHeight, hello.TipHash, hello.TipWork)
	return nil
}

// Sign produces a signed envelope carrying payload, using the node's own
// identity key.
func (m *Manager) Sign(payload wire.Payload) (*wire.Envelope, error) {
	return Sign(payload, m.self, time.Now())
}

// AcceptResult tells the caller what to do with an inbound envelope.
type AcceptResult int

const (
	// AcceptMessage means the envelope is fresh, verified, and within
	// rate limits: the caller should process it.
	AcceptMessage AcceptResult = iota
	// AcceptDuplicateMessage means the envelope was already seen (by
	// sender+nonce or by kind+content hash) and should be silently
	// dropped.
	AcceptDuplicateMessage
	// AcceptRateLimited means the sending peer (or the aggregate
	// ingress bucket) is over its rate limit; the caller should drop
	// the message and may want to penalize the peer's reputation.
	AcceptRateLimited
)

// Accept verifies, de-duplicates, and rate-limits an inbound envelope from
// nodeID, returning the decision the caller (the relay package) should act
// on. A non-nil error means the envelope itself is invalid (bad signature,
// stale timestamp, unknown peer) and the connection should be penalized or
// dropped; the caller should not process the payload in that case either.
func (m *Manager) Accept(nodeID string, env *wire.Envelope, contentHash string) (AcceptResult, error) {
	rec, ok := m.Peer(nodeID)
	if !ok {
		return 0, errors.Errorf("peermgr: unknown peer %s", nodeID)
	}
	if rec.State() == StateBanned {
		return 0, errors.Errorf("peermgr: peer %s is banned", nodeID)
	}

	now := time.Now()
	if err := Verify(env, now); err != nil {
		return 0, err
	}

	if !m.aggregate.Allow(now) {
		return AcceptRateLimited, nil
	}
	if !rec.limiter.Allow(env.Message.Payload.Kind, now) {
		return AcceptRateLimited, nil
	}

	nonceKey := env.Message.SenderID + ":" + env.Message.Nonce
	if m.dedup.Seen(nonceKey, now) {
		return AcceptDuplicateMessage, nil
	}
	if contentHash != "" {
		contentKey := string(env.Message.Payload.Kind) + ":" + contentHash
		if m.dedup.Seen(contentKey, now) {
			return AcceptDuplicateMessage, nil
		}
	}

	rec.LastSeen = now
	return AcceptMessage, nil
}
