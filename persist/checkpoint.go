package persist

import (
	"github.com/xai-blockchain/xai-sub002/ledger"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// Checkpointer snapshots the UTXO set every Interval connected blocks and
// truncates the block log to the blocks after the oldest snapshot the store
// still keeps as a backup, so replay can start from any retained snapshot.
type Checkpointer struct {
	store    *Store
	log      *BlockLog
	Interval uint64
}

// NewCheckpointer builds a Checkpointer writing snapshots to store and
// trimming log on each checkpoint.
func NewCheckpointer(store *Store, log *BlockLog, interval uint64) *Checkpointer {
	return &Checkpointer{store: store, log: log, Interval: interval}
}

// OnConnect is called by the fork manager's onConnect hook for every block
// newly connected to the main chain. It always appends the block to the log
// (so replay is possible at any height since the last checkpoint) and, once
// every Interval blocks, also writes a fresh snapshot and truncates the log.
func (c *Checkpointer) OnConnect(height uint64, tipHash wire.BlockHash, cumulativeWork string, block *wire.Block, utxo *ledger.UTXOSet) error {
	if err := c.log.Append(height, block); err != nil {
		return err
	}
	if c.Interval == 0 || height%c.Interval != 0 {
		return nil
	}
	snapshot := NewSnapshot(height, tipHash, block.Header, cumulativeWork, utxo)
	if err := c.store.Save(snapshot); err != nil {
		return err
	}
	var keepAfter uint64
	if span := c.Interval * uint64(c.store.maxBackups); height > span {
		keepAfter = height - span
	}
	return c.log.Truncate(keepAfter)
}

// Recover loads the latest valid snapshot (the primary file, else the
// newest backup that verifies) and returns it with every block logged after
// its height, in ascending order, for the caller to re-apply. If no snapshot
// verifies, it returns a nil Snapshot and every logged block, and the caller
// starts from genesis.
func Recover(store *Store, log *BlockLog) (*Snapshot, []*wire.Block, error) {
	snapshot, err := store.Load()
	if err != nil {
		if err == ErrNoValidSnapshot {
			blocks, replayErr := log.ReplaySince(0)
			if replayErr != nil {
				return nil, nil, replayErr
			}
			return nil, blocks, nil
		}
		return nil, nil, err
	}
	blocks, err := log.ReplaySince(snapshot.Height)
	if err != nil {
		return nil, nil, err
	}
	return snapshot, blocks, nil
}
