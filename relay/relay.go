package relay

import (
	"github.com/xai-blockchain/xai-sub002/fork"
	"github.com/xai-blockchain/xai-sub002/ledger"
	"github.com/xai-blockchain/xai-sub002/mempool"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// headersPerRequest bounds how many headers a single get_headers reply
// carries, so a long catch-up is fetched in pages rather than one huge
// response.
const headersPerRequest = 2000

// Network is the minimal peer-facing surface Relay needs: sign and send an
// envelope to one peer, or every connected peer but one.
type Network interface {
	Sign(payload wire.Payload) (*wire.Envelope, error)
	SendTo(nodeID string, env *wire.Envelope) error
	Broadcast(env *wire.Envelope, excludeNodeID string) []string
	ConnectedPeerIDs() []string
}

// Persister checkpoints chain state once a block is connected. It's the
// subset of persist.Checkpointer's surface Relay needs, so a block that
// arrives from a peer is checkpointed the same way a self-mined one is,
// rather than only on the mining path.
type Persister interface {
	OnConnect(height uint64, tipHash wire.BlockHash, cumulativeWork string, block *wire.Block, utxo *ledger.UTXOSet) error
}

// Relay dispatches inbound envelopes to the chain and mempool, and gossips
// newly accepted transactions and blocks back out to every other peer. It
// also drives header-first catch-up sync: when a peer announces more
// cumulative work than this node's tip, Relay requests headers, then the
// full blocks, from the best-scoring peer. A timed-out header request is
// retried against the next-best peer; a timed-out block request only
// demotes the peer it was sent to and is not re-sent.
type Relay struct {
	net       Network
	chain     *fork.Manager
	pool      *mempool.TxPool
	persister Persister
	scores    *peerScore
	tracker   *requestTracker
}

// New builds a Relay wired to chain and pool, communicating over net.
// persister may be nil, in which case accepted blocks are not checkpointed
// (the caller is expected to checkpoint them some other way, e.g. mining's
// own path).
func New(net Network, chain *fork.Manager, pool *mempool.TxPool, persister Persister) *Relay {
	r := &Relay{net: net, chain: chain, pool: pool, persister: persister, scores: newPeerScore()}
	r.tracker = newRequestTracker(r.onRequestTimeout)
	return r
}

// HandleEnvelope dispatches one verified, de-duplicated inbound envelope
// from nodeID.
func (r *Relay) HandleEnvelope(nodeID string, env *wire.Envelope) error {
	payload := env.Message.Payload
	switch payload.Kind {
	case wire.KindTx:
		return r.handleTx(nodeID, env)
	case wire.KindBlock:
		return r.handleBlock(nodeID, env)
	case wire.KindGetHeaders:
		return r.handleGetHeaders(nodeID, payload.GetHeaders)
	case wire.KindHeaders:
		return r.handleHeaders(nodeID, payload.Headers)
	case wire.KindGetBlock:
		return r.handleGetBlock(nodeID, payload.GetBlock)
	case wire.KindPing:
		return r.handlePing(nodeID, payload.Ping)
	case wire.KindPong:
		r.scores.Promote(nodeID)
		return nil
	default:
		return nil
	}
}

func (r *Relay) handleTx(nodeID string, env *wire.Envelope) error {
	tx := env.Message.Payload.Tx
	// AddTransaction is rejected for duplicates/conflicts/fee-too-low, all
	// of which are normal gossip noise, not relay-layer errors: only a
	// structural problem with the envelope itself is returned upward.
	if _, err := r.pool.AddTransaction(tx, r.currentUTXOSet()); err != nil {
		return nil //nolint:nilerr
	}
	r.net.Broadcast(env, nodeID)
	return nil
}

func (r *Relay) handleBlock(nodeID string, env *wire.Envelope) error {
	block := env.Message.Payload.Block
	result, unlocked, err := r.chain.AcceptBlock(block)
	if err != nil {
		r.scores.Demote(nodeID)
		return err
	}
	if result == fork.AcceptDuplicate {
		return nil
	}
	r.net.Broadcast(env, nodeID)
	r.scores.Promote(nodeID)

	if (result == fork.AcceptExtendedTip || result == fork.AcceptReorganized) && r.persister != nil {
		hash, hashErr := block.Hash()
		if hashErr == nil {
			if err := r.persister.OnConnect(block.Header.Height, hash, r.chain.TipCumulativeWork(), block, r.currentUTXOSet()); err != nil {
				return err
			}
		}
	}

	for _, child := range unlocked {
		childEnv, signErr := r.net.Sign(wire.Payload{Kind: wire.KindBlock, Block: child})
		if signErr != nil {
			continue
		}
		r.net.Broadcast(childEnv, "")
	}
	return nil
}

func (r *Relay) handlePing(nodeID string, ping *wire.PingPayload) error {
	env, err := r.net.Sign(wire.Payload{Kind: wire.KindPong, Pong: &wire.PongPayload{Nonce: ping.Nonce}})
	if err != nil {
		return err
	}
	return r.net.SendTo(nodeID, env)
}

// currentUTXOSet exposes the fork manager's committed UTXO set to the
// mempool for revalidating a transaction against the current tip. Kept as
// a method rather than a stored field so it always reflects the latest
// reorganization.
func (r *Relay) currentUTXOSet() *ledger.UTXOSet {
	return r.chain.CommittedUTXOSet()
}

// RequestCatchUp asks the best-scoring connected peer for headers after
// the node's current tip, kicking off header-first catch-up sync.
func (r *Relay) RequestCatchUp() error {
	candidates := r.scores.Rank(r.net.ConnectedPeerIDs())
	if len(candidates) == 0 {
		return nil
	}
	return r.requestHeadersFrom(candidates[0])
}

func (r *Relay) requestHeadersFrom(nodeID string) error {
	_, tipHash := r.chain.Tip()
	requestID := NewRequestID()
	env, err := r.net.Sign(wire.Payload{Kind: wire.KindGetHeaders, GetHeaders: &wire.GetHeadersPayload{
		StartHash: tipHash,
		Limit:     headersPerRequest,
		RequestID: requestID,
	}})
	if err != nil {
		return err
	}
	r.tracker.Track(requestID, nodeID, wire.KindGetHeaders)
	return r.net.SendTo(nodeID, env)
}

func (r *Relay) handleGetHeaders(nodeID string, req *wire.GetHeadersPayload) error {
	headers, err := r.chain.HeadersAfter(req.StartHash, int(req.Limit))
	if err != nil {
		return err
	}
	env, err := r.net.Sign(wire.Payload{Kind: wire.KindHeaders, Headers: &wire.HeadersPayload{
		Headers:   headers,
		RequestID: req.RequestID,
	}})
	if err != nil {
		return err
	}
	return r.net.SendTo(nodeID, env)
}

func (r *Relay) handleHeaders(nodeID string, resp *wire.HeadersPayload) error {
	repliedBy, ok := r.tracker.Resolve(resp.RequestID)
	if !ok || repliedBy != nodeID {
		// Unsolicited or stale reply; ignore rather than penalize, since a
		// slow-but-eventually-correct peer shouldn't be demoted for a
		// response that arrived after its own timeout already fired.
		return nil
	}
	r.scores.Promote(nodeID)

	for _, header := range resp.Headers {
		hash, err := header.Hash()
		if err != nil {
			continue
		}
		if r.chain.HaveBlock(hash) {
			continue
		}
		requestID := NewRequestID()
		env, err := r.net.Sign(wire.Payload{Kind: wire.KindGetBlock, GetBlock: &wire.GetBlockPayload{
			Hash:      hash,
			RequestID: requestID,
		}})
		if err != nil {
			continue
		}
		r.tracker.Track(requestID, nodeID, wire.KindGetBlock)
		if err := r.net.SendTo(nodeID, env); err != nil {
			continue
		}
	}

	if len(resp.Headers) == headersPerRequest {
		return r.requestHeadersFrom(nodeID)
	}
	return nil
}

func (r *Relay) handleGetBlock(nodeID string, req *wire.GetBlockPayload) error {
	block, ok := r.chain.Block(req.Hash)
	if !ok {
		return nil
	}
	env, err := r.net.Sign(wire.Payload{Kind: wire.KindBlock, Block: block})
	if err != nil {
		return err
	}
	return r.net.SendTo(nodeID, env)
}

func (r *Relay) onRequestTimeout(nodeID, requestID string, kind wire.MessageKind) {
	r.scores.Demote(nodeID)
	candidates := r.scores.Rank(r.net.ConnectedPeerIDs())
	for _, candidate := range candidates {
		if candidate == nodeID {
			continue
		}
		if kind == wire.KindGetHeaders {
			r.requestHeadersFrom(candidate) //nolint:errcheck
		}
		return
	}
}
