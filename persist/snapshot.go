// Package persist saves and restores chain state to disk: a checksummed
// UTXO-set snapshot taken every few blocks, rotated backups of prior
// snapshots, and an append-only block log that lets the node replay forward
// from the last good snapshot if the most recent one is missing or corrupt.
package persist

import (
	"github.com/xai-blockchain/xai-sub002/ledger"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// EntryRecord is one UTXO entry paired with the outpoint it satisfies, the
// on-disk shape of ledger.UTXOSet's entries (a Go map can't be a JSON object
// key unless it's string-like, so the set is flattened to a slice here).
type EntryRecord struct {
	Outpoint wire.Outpoint    `json:"outpoint"`
	Entry    ledger.UTXOEntry `json:"entry"`
}

// Snapshot is the full chain state needed to resume without replaying from
// genesis: the tip block itself (so fork.Manager can reseed its in-memory
// header arena at the snapshot height instead of from genesis), its
// accumulated work, and every unspent output.
type Snapshot struct {
	Height         uint64         `json:"height"`
	TipHash        wire.BlockHash `json:"tip_hash"`
	TipHeader      wire.BlockHeader `json:"tip_header"`
	CumulativeWork string         `json:"cumulative_work"`
	Entries        []EntryRecord  `json:"entries"`
}

// NewSnapshot captures the current state of a UTXO set at height/tipHash.
func NewSnapshot(height uint64, tipHash wire.BlockHash, tipHeader wire.BlockHeader, cumulativeWork string, utxo *ledger.UTXOSet) *Snapshot {
	entries := utxo.Entries()
	records := make([]EntryRecord, 0, len(entries))
	for outpoint, entry := range entries {
		records = append(records, EntryRecord{Outpoint: outpoint, Entry: entry})
	}
	return &Snapshot{
		Height:         height,
		TipHash:        tipHash,
		TipHeader:      tipHeader,
		CumulativeWork: cumulativeWork,
		Entries:        records,
	}
}

// UTXOSet rebuilds a ledger.UTXOSet from the snapshot's flattened entries.
func (s *Snapshot) UTXOSet() *ledger.UTXOSet {
	entries := make(map[wire.Outpoint]ledger.UTXOEntry, len(s.Entries))
	for _, rec := range s.Entries {
		entries[rec.Outpoint] = rec.Entry
	}
	return ledger.NewUTXOSetFromEntries(entries)
}
