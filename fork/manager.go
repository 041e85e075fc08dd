package fork

import (
	"math/big"
	"sync"

	"github.com/pkg/errors"

	"github.com/xai-blockchain/xai-sub002/chaincfg"
	"github.com/xai-blockchain/xai-sub002/consensus"
	"github.com/xai-blockchain/xai-sub002/ledger"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// node is one entry in the hash-indexed block arena: a header plus the
// bookkeeping needed to compare and connect chains without holding every
// full block in memory.
type node struct {
	hash    wire.BlockHash
	header  wire.BlockHeader
	parent  *node
	diff    *ledger.Diff
	cumWork *big.Int
}

// HeaderStore is an optional persistent record of every header this node
// has ever connected, written as each one joins the arena. Snapshot/Recover
// only retain the main chain's tip, so without a HeaderStore a restarted
// node forgets every side-chain and historical header it once knew; with
// one wired, SeedHeader can restore them before the node starts answering
// get_headers requests.
type HeaderStore interface {
	Put(hash wire.BlockHash, header *wire.BlockHeader) error
}

// Manager is the node's single authority on which chain is the main chain.
// It holds every known block header in a hash-indexed arena (never a cyclic
// object graph), tracks the current tip, and performs atomic
// reorganizations when a competing branch accumulates more work.
type Manager struct {
	params *chaincfg.Params

	mu          sync.RWMutex
	nodes       map[wire.BlockHash]*node
	fullBlocks  map[wire.BlockHash]*wire.Block
	tip         *node
	utxo        *ledger.UTXOSet
	orphans     *orphanPool
	headerStore HeaderStore

	// onDisconnect/onConnect let the mempool service react to a
	// reorganization: transactions in disconnected blocks are returned for
	// re-admission, transactions now mined are removed. Both are nil
	// until wired by SetCallbacks.
	onDisconnect func(block *wire.Block)
	onConnect    func(block *wire.Block)
}

// New returns a Manager seeded with genesis as height-0 tip.
func New(params *chaincfg.Params, genesis *wire.Block, utxo *ledger.UTXOSet) (*Manager, error) {
	hash, err := genesis.Hash()
	if err != nil {
		return nil, err
	}
	root := &node{
		hash:    hash,
		header:  genesis.Header,
		cumWork: consensus.BlockWork(genesis.Header.Bits),
	}
	return &Manager{
		params:     params,
		nodes:      map[wire.BlockHash]*node{hash: root},
		fullBlocks: map[wire.BlockHash]*wire.Block{hash: genesis},
		tip:        root,
		utxo:       utxo,
		orphans:    newOrphanPool(),
	}, nil
}

// NewFromTip returns a Manager resuming from a persisted snapshot: the
// in-memory header arena is seeded with a single root node at tipBlock's
// height rather than genesis, since the full historical header chain isn't
// retained across restarts. A later side chain connecting below this
// height is treated as unknown, the same as if it pre-dated the node's
// retention window.
func NewFromTip(params *chaincfg.Params, tipBlock *wire.Block, cumulativeWork string, utxo *ledger.UTXOSet) (*Manager, error) {
	hash, err := tipBlock.Hash()
	if err != nil {
		return nil, err
	}
	cumWork, ok := new(big.Int).SetString(cumulativeWork, 10)
	if !ok {
		return nil, errors.Errorf("fork: invalid cumulative work %q", cumulativeWork)
	}
	root := &node{
		hash:    hash,
		header:  tipBlock.Header,
		cumWork: cumWork,
	}
	return &Manager{
		params:     params,
		nodes:      map[wire.BlockHash]*node{hash: root},
		fullBlocks: map[wire.BlockHash]*wire.Block{hash: tipBlock},
		tip:        root,
		utxo:       utxo,
		orphans:    newOrphanPool(),
	}, nil
}

// SetCallbacks wires the mempool-facing reorganization hooks.
func (m *Manager) SetCallbacks(onDisconnect, onConnect func(block *wire.Block)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = onDisconnect
	m.onConnect = onConnect
}

// SetHeaderStore wires a persistent header store; every header accepted
// from this point on is also written there.
func (m *Manager) SetHeaderStore(store HeaderStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headerStore = store
}

// SeedHeader restores a previously-known header into the arena without
// touching the committed UTXO set, for replaying a HeaderStore's contents
// at startup. Headers must be seeded in ascending height order so each
// one's parent already exists; a header whose parent is missing, or that
// is already known, is silently skipped.
func (m *Manager) SeedHeader(hash wire.BlockHash, header wire.BlockHeader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[hash]; ok {
		return
	}
	parent, ok := m.nodes[header.PreviousHash]
	if !ok {
		return
	}
	work := consensus.BlockWork(header.Bits)
	cumWork := new(big.Int).Add(parent.cumWork, work)
	m.nodes[hash] = &node{hash: hash, header: header, parent: parent, cumWork: cumWork}
}

// Tip returns the current main-chain tip's header and hash.
func (m *Manager) Tip() (wire.BlockHeader, wire.BlockHash) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tip.header, m.tip.hash
}

// TipCumulativeWork returns the main chain's total accumulated work, used to
// answer a peer's hello handshake and to decide whether to request a
// competing chain's headers.
func (m *Manager) TipCumulativeWork() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tip.cumWork.Text(10)
}

// HaveBlock reports whether hash is already known, either on some chain or
// in the orphan pool.
func (m *Manager) HaveBlock(hash wire.BlockHash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.nodes[hash]; ok {
		return true
	}
	return m.orphans.has(hash)
}

// Block returns the full block for hash, if this node still holds it.
// Side-chain blocks remain in fullBlocks indefinitely so a later
// reorganization, or a peer's get_block request, can still retrieve them.
func (m *Manager) Block(hash wire.BlockHash) (*wire.Block, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	block, ok := m.fullBlocks[hash]
	return block, ok
}

// CommittedUTXOSet returns the UTXO set as of the current main-chain tip,
// for the mempool to validate incoming transactions against.
func (m *Manager) CommittedUTXOSet() *ledger.UTXOSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.utxo
}

// HeadersAfter walks the main chain from its tip back to startHash (or to
// genesis if startHash is unknown), returning up to limit headers in
// ascending height order, oldest first. It answers a peer's get_headers
// request for header-first catch-up sync.
func (m *Manager) HeadersAfter(startHash wire.BlockHash, limit int) ([]*wire.BlockHeader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var chain []*node
	for n := m.tip; n != nil; n = n.parent {
		chain = append(chain, n)
		if n.hash == startHash {
			break
		}
	}
	// chain is tip-to-root; reverse to root-to-tip and drop startHash itself.
	headers := make([]*wire.BlockHeader, 0, len(chain))
	for i := len(chain) - 2; i >= 0; i-- {
		header := chain[i].header
		headers = append(headers, &header)
		if len(headers) >= limit {
			break
		}
	}
	return headers, nil
}
