package fork

import (
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/xai-blockchain/xai-sub002/consensus"
	"github.com/xai-blockchain/xai-sub002/ledger"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// AcceptResult tells the caller (the relay package, most commonly) what
// happened to a block it submitted.
type AcceptResult int

const (
	// AcceptExtendedTip means the block extended the main chain and is now
	// the tip.
	AcceptExtendedTip AcceptResult = iota

	// AcceptSideChain means the block connected to a known ancestor but did
	// not have enough cumulative work to become the tip.
	AcceptSideChain

	// AcceptReorganized means the block connected to a side chain that, as
	// a result, now has more cumulative work than the previous main chain,
	// and a reorganization was performed.
	AcceptReorganized

	// AcceptOrphan means the block's parent is unknown; it was stashed in
	// the orphan pool.
	AcceptOrphan

	// AcceptDuplicate means the block (or its hash) is already known.
	AcceptDuplicate
)

// AcceptBlock validates and, if valid, incorporates block into the known
// block set. It never mutates the committed UTXO set for a side chain: side
// chains are tracked purely by header and cumulative work until (if ever)
// they overtake the main chain, at which point Reorganize connects them for
// real.
func (m *Manager) AcceptBlock(block *wire.Block) (AcceptResult, []*wire.Block, error) {
	hash, err := block.Hash()
	if err != nil {
		return 0, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[hash]; ok {
		return AcceptDuplicate, nil, nil
	}
	if m.orphans.has(hash) {
		return AcceptDuplicate, nil, nil
	}

	parent, ok := m.nodes[block.Header.PreviousHash]
	if !ok {
		m.orphans.add(block, hash)
		return AcceptOrphan, nil, nil
	}

	if err := m.connectHeaderLocked(block, hash, parent); err != nil {
		return 0, nil, err
	}

	newNode := m.nodes[hash]
	previousTip := m.tip
	var becameTip bool
	// Strictly more work is required to switch tips: on equal cumulative
	// work the main chain is kept, so the first chain to arrive at a given
	// amount of work wins ties.
	if newNode.cumWork.Cmp(m.tip.cumWork) > 0 {
		if err := m.reorganizeLocked(newNode); err != nil {
			delete(m.nodes, hash)
			return 0, nil, err
		}
		becameTip = true
	}

	unlocked := m.orphans.claimChildren(hash)

	switch {
	case !becameTip:
		return AcceptSideChain, unlocked, nil
	case parent == previousTip:
		return AcceptExtendedTip, unlocked, nil
	default:
		return AcceptReorganized, unlocked, nil
	}
}

// connectHeaderLocked records block's header in the arena without touching
// the committed UTXO set; full validation against the ledger only happens
// when (and if) the block is actually connected to the main chain by
// reorganizeLocked.
func (m *Manager) connectHeaderLocked(block *wire.Block, hash wire.BlockHash, parent *node) error {
	if err := ledger.ValidateBlockShape(block, m.params.MaxBlockSize, m.params.MaxTxSize); err != nil {
		return err
	}
	if err := consensus.CheckProofOfWork(&block.Header, m.params); err != nil {
		return err
	}
	if block.Header.Height != parent.header.Height+1 {
		return consensus.RuleError{Description: "block height does not immediately follow its parent"}
	}
	if err := consensus.CheckBlockTimestamp(&block.Header, ancestorTimestampsLocked(parent, m.params.MedianTimeBlocks), time.Now(), m.params); err != nil {
		return err
	}

	work := consensus.BlockWork(block.Header.Bits)
	cumWork := new(big.Int).Add(parent.cumWork, work)

	m.nodes[hash] = &node{
		hash:    hash,
		header:  block.Header,
		parent:  parent,
		cumWork: cumWork,
	}
	m.blocksByHash()[hash] = block

	if m.headerStore != nil {
		header := block.Header
		if err := m.headerStore.Put(hash, &header); err != nil {
			delete(m.nodes, hash)
			delete(m.fullBlocks, hash)
			return errors.Wrap(err, "fork: persisting header")
		}
	}
	return nil
}

// ancestorTimestampsLocked walks back from parent collecting up to n block
// timestamps (most recent first) for the median-past-time rule.
func ancestorTimestampsLocked(parent *node, n int) []int64 {
	timestamps := make([]int64, 0, n)
	for p := parent; p != nil && len(timestamps) < n; p = p.parent {
		timestamps = append(timestamps, p.header.Timestamp)
	}
	return timestamps
}

// blocksByHash lazily initializes the full-block cache used to replay a
// side chain's transactions during a reorganization. Side chains are
// common but usually short-lived, so keeping full blocks (not just headers)
// for every known node trades memory for reorg simplicity, matching the
// teacher's in-memory orphan/side-chain handling.
func (m *Manager) blocksByHash() map[wire.BlockHash]*wire.Block {
	if m.fullBlocks == nil {
		m.fullBlocks = make(map[wire.BlockHash]*wire.Block)
	}
	return m.fullBlocks
}
