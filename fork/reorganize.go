package fork

import (
	"strconv"

	"github.com/xai-blockchain/xai-sub002/ledger"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// reorganizeLocked makes newTip the main chain tip. It walks both the
// current tip and newTip back to their common ancestor, disconnects every
// block after that point on the old chain (reverting its UTXO effects and
// returning its transactions to the mempool via onDisconnect), then
// connects every block from the fork point to newTip in order (applying
// each one's UTXO effects for real and notifying onConnect). If any block
// on the new chain fails to apply — because side-chain validation only
// checked header-level rules, never the full ledger — the entire
// reorganization is rolled back and the old tip is restored, so the UTXO
// set is never left partially migrated.
func (m *Manager) reorganizeLocked(newTip *node) error {
	_, disconnect, connect := m.pathLocked(m.tip, newTip)

	if uint64(len(disconnect)) > m.params.MaxReorgDepth {
		return ReorgTooDeepError{Depth: uint64(len(disconnect)), Max: m.params.MaxReorgDepth}
	}

	var appliedDiffs []*ledger.Diff
	rollback := func() {
		for i := len(appliedDiffs) - 1; i >= 0; i-- {
			m.utxo.RevertBlock(appliedDiffs[i])
		}
		// Re-apply disconnect in ascending-height order (reverse of its
		// tip-first order) so each block's parent is already restored
		// before it's re-applied.
		for i := len(disconnect) - 1; i >= 0; i-- {
			n := disconnect[i]
			block := m.fullBlocks[n.hash]
			diff, err := m.utxo.ApplyBlock(block, n.header.Height, m.maxSupply(), m.subsidyFor(n.header.Height))
			if err == nil {
				n.diff = diff
			}
		}
	}

	// disconnect is tip-first; revert in that same order so a block that
	// spends an output created by another disconnected block is always
	// unwound before the block that created the output, matching the
	// inverse of commit order.
	for _, n := range disconnect {
		if n.diff != nil {
			m.utxo.RevertBlock(n.diff)
		}
		if m.onDisconnect != nil {
			if block, ok := m.fullBlocks[n.hash]; ok {
				m.onDisconnect(block)
			}
		}
	}

	for _, n := range connect {
		block, ok := m.fullBlocks[n.hash]
		if !ok {
			rollback()
			return UnknownBlockError{Hash: n.hash}
		}
		diff, err := m.utxo.ApplyBlock(block, n.header.Height, m.maxSupply(), m.subsidyFor(n.header.Height))
		if err != nil {
			rollback()
			return err
		}
		n.diff = diff
		appliedDiffs = append(appliedDiffs, diff)
		if m.onConnect != nil {
			m.onConnect(block)
		}
	}

	m.tip = newTip
	return nil
}

// pathLocked returns the common ancestor of a and b, the chain of nodes
// from a back down to (exclusive of) that ancestor in disconnect order
// (tip-first), and the chain from the ancestor up to b in connect order
// (ancestor-first).
func (m *Manager) pathLocked(a, b *node) (ancestor *node, disconnect, connect []*node) {
	aChain := map[wire.BlockHash]*node{}
	for n := a; n != nil; n = n.parent {
		aChain[n.hash] = n
	}

	var bPath []*node
	n := b
	for {
		if _, ok := aChain[n.hash]; ok {
			ancestor = n
			break
		}
		bPath = append(bPath, n)
		n = n.parent
	}
	for i, j := 0, len(bPath)-1; i < j; i, j = i+1, j-1 {
		bPath[i], bPath[j] = bPath[j], bPath[i]
	}
	connect = bPath

	for n := a; n != ancestor; n = n.parent {
		disconnect = append(disconnect, n)
	}
	return ancestor, disconnect, connect
}

func (m *Manager) maxSupply() uint64 {
	return m.params.MaxSupply
}

func (m *Manager) subsidyFor(height uint64) uint64 {
	return m.params.HalvingSchedule(height)
}

// ReorgTooDeepError reports that a candidate chain would require
// disconnecting more blocks than MaxReorgDepth allows, the safety net
// against a deep reorganization caused by stale or adversarial peers.
type ReorgTooDeepError struct {
	Depth uint64
	Max   uint64
}

func (e ReorgTooDeepError) Error() string {
	return "reorganization would disconnect " + strconv.FormatUint(e.Depth, 10) +
		" blocks, more than the maximum of " + strconv.FormatUint(e.Max, 10)
}

// UnknownBlockError reports that a node in the arena has no corresponding
// full block cached, which should never happen for a node created by
// connectHeaderLocked.
type UnknownBlockError struct {
	Hash wire.BlockHash
}

func (e UnknownBlockError) Error() string {
	return "no cached block body for " + e.Hash.String()
}

