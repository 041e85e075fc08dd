// Package ledger maintains the node's UTXO set: the authoritative record of
// every spendable output, and the rules for applying or reverting a block
// against it.
package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xai-blockchain/xai-sub002/wire"
)

// UTXOEntry describes a single unspent output: who it pays, how much, and
// whether it came from a coinbase (coinbase outputs are otherwise identical
// to ordinary outputs in this ledger — there is no maturity period, per the
// simplified single-chain design).
type UTXOEntry struct {
	Address     string
	Amount      uint64
	BlockHeight uint64
	IsCoinbase  bool
}

// NewUTXOEntry builds the UTXOEntry recorded for a transaction output
// accepted at blockHeight.
func NewUTXOEntry(out *wire.TxOut, isCoinbase bool, blockHeight uint64) *UTXOEntry {
	return &UTXOEntry{
		Address:     out.Address,
		Amount:      out.Amount,
		BlockHeight: blockHeight,
		IsCoinbase:  isCoinbase,
	}
}

// utxoCollection indexes entries by the outpoint they satisfy.
type utxoCollection map[wire.Outpoint]*UTXOEntry

func (uc utxoCollection) String() string {
	parts := make([]string, 0, len(uc))
	for outpoint, entry := range uc {
		parts = append(parts, fmt.Sprintf("(%s, %d) => %d@%s", outpoint.TxID, outpoint.Index, entry.Amount, entry.Address))
	}
	sort.Strings(parts)
	return "[ " + strings.Join(parts, ", ") + " ]"
}

func (uc utxoCollection) clone() utxoCollection {
	clone := make(utxoCollection, len(uc))
	for outpoint, entry := range uc {
		clone[outpoint] = entry
	}
	return clone
}

// UTXOSet is the full set of unspent outputs at the current chain tip, plus
// the running circulating supply those outputs imply.
type UTXOSet struct {
	entries            utxoCollection
	circulatingSupply  uint64
}

// NewUTXOSet returns an empty UTXO set, as used for a freshly initialized
// chain before the genesis block is applied.
func NewUTXOSet() *UTXOSet {
	return &UTXOSet{entries: utxoCollection{}}
}

// Get looks up the entry backing an outpoint.
func (s *UTXOSet) Get(outpoint wire.Outpoint) (*UTXOEntry, bool) {
	entry, ok := s.entries[outpoint]
	return entry, ok
}

// Contains reports whether outpoint is currently unspent.
func (s *UTXOSet) Contains(outpoint wire.Outpoint) bool {
	_, ok := s.entries[outpoint]
	return ok
}

// CirculatingSupply returns the sum of every entry's amount, maintained
// incrementally as blocks are applied and reverted.
func (s *UTXOSet) CirculatingSupply() uint64 {
	return s.circulatingSupply
}

// Clone returns a deep-enough copy of the set for speculative validation
// (e.g. a candidate fork) without mutating the caller's set.
func (s *UTXOSet) Clone() *UTXOSet {
	return &UTXOSet{
		entries:           s.entries.clone(),
		circulatingSupply: s.circulatingSupply,
	}
}

// Entries returns a snapshot of every unspent outpoint and its entry, for
// serialization by the persist package. The caller must not mutate the
// returned entries.
func (s *UTXOSet) Entries() map[wire.Outpoint]UTXOEntry {
	out := make(map[wire.Outpoint]UTXOEntry, len(s.entries))
	for outpoint, entry := range s.entries {
		out[outpoint] = *entry
	}
	return out
}

// NewUTXOSetFromEntries rebuilds a UTXOSet from a previously serialized
// snapshot, as loaded by the persist package at startup.
func NewUTXOSetFromEntries(entries map[wire.Outpoint]UTXOEntry) *UTXOSet {
	s := NewUTXOSet()
	for outpoint, entry := range entries {
		e := entry
		s.entries[outpoint] = &e
		s.circulatingSupply += e.Amount
	}
	return s
}

// Diff is the set of additions and removals a single block makes to a UTXO
// set. Applying a block computes and commits a Diff; reverting one inverts
// it.
type Diff struct {
	toAdd    utxoCollection
	toRemove utxoCollection
}

func newDiff() *Diff {
	return &Diff{toAdd: utxoCollection{}, toRemove: utxoCollection{}}
}

// ApplyBlock validates block against s for acceptance at the given height
// and, if valid, commits its effect: every input's outpoint is removed and
// every output's outpoint is added. It returns the Diff committed, so the
// fork manager can invert it later with RevertBlock without recomputing
// validation.
func (s *UTXOSet) ApplyBlock(block *wire.Block, height uint64, maxSupply, expectedSubsidy uint64) (*Diff, error) {
	if len(block.Transactions) == 0 {
		return nil, validationError(ErrFirstTxNotCoinbase, "block has no transactions")
	}
	coinbase := block.Transactions[0]
	if !coinbase.IsCoinbase() {
		return nil, validationError(ErrFirstTxNotCoinbase, "first transaction in block is not a coinbase")
	}
	for i, tx := range block.Transactions[1:] {
		if tx.IsCoinbase() {
			return nil, validationError(ErrFirstTxNotCoinbase,
				fmt.Sprintf("transaction %d is a coinbase but is not first in the block", i+1))
		}
	}

	diff := newDiff()
	spentInBlock := make(map[wire.Outpoint]bool)
	var totalFees uint64

	for _, tx := range block.Transactions[1:] {
		fee, err := validateTxAgainstDiff(s, diff, tx, spentInBlock)
		if err != nil {
			return nil, err
		}
		totalFees += fee

		for _, in := range tx.TxIn {
			spentInBlock[in.PreviousOutpoint] = true
			entry, _ := lookup(s, diff, in.PreviousOutpoint)
			diff.toRemove[in.PreviousOutpoint] = entry
		}
		id, err := tx.TxID()
		if err != nil {
			return nil, err
		}
		for idx, out := range tx.TxOut {
			diff.toAdd[wire.Outpoint{TxID: id, Index: uint32(idx)}] = NewUTXOEntry(out, false, height)
		}
	}

	coinbaseTotal := outputSum(coinbase)
	if coinbaseTotal > totalFees+expectedSubsidy {
		return nil, validationError(ErrBadCoinbaseAmount,
			fmt.Sprintf("coinbase mints %d, more than subsidy %d plus fees %d", coinbaseTotal, expectedSubsidy, totalFees))
	}
	if coinbaseTotal > totalFees && s.circulatingSupply+(coinbaseTotal-totalFees) > maxSupply {
		return nil, validationError(ErrSupplyCapExceeded,
			fmt.Sprintf("applying coinbase would push circulating supply past the %d cap", maxSupply))
	}

	coinbaseID, err := coinbase.TxID()
	if err != nil {
		return nil, err
	}
	for idx, out := range coinbase.TxOut {
		if out.Amount == 0 {
			return nil, validationError(ErrZeroAmount, "coinbase output pays zero")
		}
		diff.toAdd[wire.Outpoint{TxID: coinbaseID, Index: uint32(idx)}] = NewUTXOEntry(out, true, height)
	}

	s.commit(diff)
	return diff, nil
}

// RevertBlock undoes a previously committed Diff, restoring every removed
// entry and deleting every added one. Used by the fork manager to
// disconnect blocks during a reorganization.
func (s *UTXOSet) RevertBlock(diff *Diff) {
	inverse := &Diff{toAdd: diff.toRemove, toRemove: diff.toAdd}
	s.commit(inverse)
}

func (s *UTXOSet) commit(diff *Diff) {
	for outpoint, entry := range diff.toRemove {
		if _, ok := s.entries[outpoint]; ok {
			s.circulatingSupply -= entry.Amount
			delete(s.entries, outpoint)
		}
	}
	for outpoint, entry := range diff.toAdd {
		s.entries[outpoint] = entry
		s.circulatingSupply += entry.Amount
	}
}

// lookup resolves an outpoint against s as modified by an in-progress diff,
// so a transaction within a block may spend an output created earlier in
// the same block.
func lookup(s *UTXOSet, diff *Diff, outpoint wire.Outpoint) (*UTXOEntry, bool) {
	if entry, ok := diff.toAdd[outpoint]; ok {
		if _, removed := diff.toRemove[outpoint]; !removed {
			return entry, true
		}
	}
	if _, removed := diff.toRemove[outpoint]; removed {
		return nil, false
	}
	return s.Get(outpoint)
}

func outputSum(tx *wire.Transaction) uint64 {
	var total uint64
	for _, out := range tx.TxOut {
		total += out.Amount
	}
	return total
}
