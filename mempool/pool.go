package mempool

import (
	"sort"
	"sync"
	"time"

	"github.com/xai-blockchain/xai-sub002/ledger"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// Entry is a single transaction admitted to the pool, along with the
// bookkeeping needed to order and evict it.
type Entry struct {
	Tx      *wire.Transaction
	TxID    wire.TxID
	Fee     uint64
	Size    int
	AddedAt time.Time

	// Deps lists the TxIDs of other pool entries this entry spends an
	// output of: its unconfirmed parents. A chained mempool admits such a
	// transaction even though its parent has not yet been mined, so these
	// dependencies must be placed first when a block is assembled.
	Deps []wire.TxID
}

// FeeRate returns the entry's fee per serialized byte, the metric used for
// both mining-order selection and eviction.
func (e *Entry) FeeRate() float64 {
	if e.Size == 0 {
		return 0
	}
	return float64(e.Fee) / float64(e.Size)
}

// TxPool holds every transaction the node has accepted but not yet seen
// mined, indexed for fast duplicate, conflict, and lookup checks.
type TxPool struct {
	policy Policy

	mu             sync.RWMutex
	entries        map[wire.TxID]*Entry
	outpointOwners map[wire.Outpoint]wire.TxID
	totalSize      int
}

// New returns an empty pool governed by policy.
func New(policy Policy) *TxPool {
	return &TxPool{
		policy:         policy,
		entries:        make(map[wire.TxID]*Entry),
		outpointOwners: make(map[wire.Outpoint]wire.TxID),
	}
}

// Count returns the number of transactions currently held.
func (p *TxPool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Has reports whether txid is already in the pool.
func (p *TxPool) Has(txid wire.TxID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[txid]
	return ok
}

// Get returns the pool entry for txid, if present.
func (p *TxPool) Get(txid wire.TxID) (*Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[txid]
	return e, ok
}

// AddTransaction runs tx through the full admission pipeline against
// utxoSet (the chain's current UTXO set): structural and signature
// validation, duplicate rejection, fee-floor enforcement, conflict/RBF
// resolution, and finally the pool's size and count caps, evicting the
// lowest fee-rate entries if admitting tx would exceed them.
//
// If tx spends an outpoint that utxoSet does not yet know about, it is
// retried against the pool's own unconfirmed outputs before being rejected:
// a transaction may spend a still-pending parent's output as long as that
// parent is itself sitting in the pool (a chained mempool).
func (p *TxPool) AddTransaction(tx *wire.Transaction, utxoSet *ledger.UTXOSet) (*Entry, error) {
	fee, err := utxoSet.ValidateTx(tx)
	if isMissingTxOut(err) {
		p.mu.RLock()
		overlay := p.mempoolOutputsLocked()
		p.mu.RUnlock()
		fee, err = utxoSet.ValidateTxWithMempoolOutputs(tx, overlay)
	}
	if err != nil {
		return nil, policyError(RejectInvalid, "transaction rejected by ledger validation: %s", err)
	}

	txid, err := tx.TxID()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entries[txid]; exists {
		return nil, policyError(RejectDuplicate, "transaction %s already in the pool", txid)
	}

	size := tx.SerializeSize()
	feeRate := float64(fee) / float64(size)
	if fee < p.policy.MinRelayFee {
		return nil, policyError(RejectInsufficientFee,
			"transaction %s pays fee %d, below the minimum relay fee %d", txid, fee, p.policy.MinRelayFee)
	}

	conflicts, err := p.conflictsForReplace(tx, txid, fee, feeRate)
	if err != nil {
		return nil, err
	}
	for _, conflict := range conflicts {
		p.removeLocked(conflict.TxID)
	}

	entry := &Entry{Tx: tx, TxID: txid, Fee: fee, Size: size, AddedAt: time.Now(), Deps: p.dependenciesLocked(tx)}
	p.insertLocked(entry)

	if err := p.enforceCapsLocked(entry); err != nil {
		p.removeLocked(txid)
		return nil, err
	}

	return entry, nil
}

// isMissingTxOut reports whether err is the ledger's ErrMissingTxOut, the
// only rejection reason worth retrying against the pool's own unconfirmed
// outputs.
func isMissingTxOut(err error) bool {
	verr, ok := err.(ledger.ValidationError)
	return ok && verr.ErrorCode == ledger.ErrMissingTxOut
}

// mempoolOutputsLocked exposes every output of every currently pooled
// transaction as a spendable ledger entry, so ValidateTxWithMempoolOutputs
// can admit a transaction spending one of them even though it is not yet
// part of the committed UTXO set.
func (p *TxPool) mempoolOutputsLocked() map[wire.Outpoint]ledger.UTXOEntry {
	outputs := make(map[wire.Outpoint]ledger.UTXOEntry, len(p.entries))
	for _, entry := range p.entries {
		for idx, out := range entry.Tx.TxOut {
			outputs[wire.Outpoint{TxID: entry.TxID, Index: uint32(idx)}] = ledger.UTXOEntry{
				Address: out.Address,
				Amount:  out.Amount,
			}
		}
	}
	return outputs
}

// dependenciesLocked returns the TxIDs of every pooled transaction that tx
// spends an output of: its unconfirmed parents.
func (p *TxPool) dependenciesLocked(tx *wire.Transaction) []wire.TxID {
	seen := make(map[wire.TxID]bool)
	var deps []wire.TxID
	for _, in := range tx.TxIn {
		parentID := in.PreviousOutpoint.TxID
		if seen[parentID] {
			continue
		}
		if _, ok := p.entries[parentID]; ok {
			seen[parentID] = true
			deps = append(deps, parentID)
		}
	}
	return deps
}

// conflictsForReplace finds every pool entry that spends an outpoint also
// spent by tx. If any conflict exists, tx replaces all of them only if its
// fee rate strictly exceeds every conflicting entry's fee rate, and its
// absolute fee covers theirs plus the policy's relay fee bump (the
// replace-by-fee rule, including the bandwidth-griefing guard that requires
// a replacement to pay for the relay bandwidth it consumes); otherwise the
// new transaction is rejected.
func (p *TxPool) conflictsForReplace(tx *wire.Transaction, txid wire.TxID, fee uint64, feeRate float64) ([]*Entry, error) {
	seen := make(map[wire.TxID]*Entry)
	for _, in := range tx.TxIn {
		owner, ok := p.outpointOwners[in.PreviousOutpoint]
		if !ok {
			continue
		}
		if owner == txid {
			continue
		}
		if entry, ok := p.entries[owner]; ok {
			seen[owner] = entry
		}
	}
	if len(seen) == 0 {
		return nil, nil
	}

	conflicts := make([]*Entry, 0, len(seen))
	var displacedFee uint64
	for _, entry := range seen {
		if feeRate <= entry.FeeRate() {
			return nil, policyError(RejectConflict,
				"transaction %s conflicts with pooled %s and does not pay a higher fee rate", txid, entry.TxID)
		}
		displacedFee += entry.Fee
		conflicts = append(conflicts, entry)
	}
	if fee < displacedFee+p.policy.RelayFeeBump {
		return nil, policyError(RejectConflict,
			"transaction %s does not pay the relay fee bump required to replace %d conflicting transaction(s)",
			txid, len(conflicts))
	}
	return conflicts, nil
}

func (p *TxPool) insertLocked(entry *Entry) {
	p.entries[entry.TxID] = entry
	p.totalSize += entry.Size
	for _, in := range entry.Tx.TxIn {
		p.outpointOwners[in.PreviousOutpoint] = entry.TxID
	}
}

func (p *TxPool) removeLocked(txid wire.TxID) {
	entry, ok := p.entries[txid]
	if !ok {
		return
	}
	delete(p.entries, txid)
	p.totalSize -= entry.Size
	for _, in := range entry.Tx.TxIn {
		if p.outpointOwners[in.PreviousOutpoint] == txid {
			delete(p.outpointOwners, in.PreviousOutpoint)
		}
	}
}

// RemoveTransaction removes txid from the pool, used when a block that
// mines it is connected, or when it is displaced by a reorganization and
// later found to be invalid.
func (p *TxPool) RemoveTransaction(txid wire.TxID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txid)
}

// enforceCapsLocked evicts the lowest fee-rate entries, breaking ties by
// oldest AddedAt, until the pool is back within its configured size and
// count caps. If the just-inserted entry itself is the one evicted, the
// pool was full of only-better transactions and the caller should treat
// this as an outright rejection.
func (p *TxPool) enforceCapsLocked(justInserted *Entry) error {
	for p.totalSize > p.policy.MaxMempoolSize || len(p.entries) > p.policy.MaxMempoolCount {
		victim := p.lowestFeeRateLocked()
		if victim == nil {
			break
		}
		if victim.TxID == justInserted.TxID {
			return policyError(RejectFull,
				"pool is full and transaction %s does not clear the eviction threshold", justInserted.TxID)
		}
		p.removeLocked(victim.TxID)
	}
	return nil
}

func (p *TxPool) lowestFeeRateLocked() *Entry {
	var worst *Entry
	for _, e := range p.entries {
		if worst == nil {
			worst = e
			continue
		}
		if e.FeeRate() < worst.FeeRate() {
			worst = e
			continue
		}
		if e.FeeRate() == worst.FeeRate() && e.AddedAt.Before(worst.AddedAt) {
			worst = e
		}
	}
	return worst
}

// SelectForMining returns pool entries ordered for block assembly: highest
// fee rate first, with a topological pass that defers any entry spending
// another pool entry's output until that parent has already been placed.
// The result never exceeds maxSize total serialized bytes.
func (p *TxPool) SelectForMining(maxSize int) []*Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ordered := make([]*Entry, 0, len(p.entries))
	for _, e := range p.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].FeeRate() != ordered[j].FeeRate() {
			return ordered[i].FeeRate() > ordered[j].FeeRate()
		}
		return ordered[i].AddedAt.Before(ordered[j].AddedAt)
	})

	placed := make(map[wire.TxID]bool, len(ordered))
	result := make([]*Entry, 0, len(ordered))
	size := 0

	var place func(e *Entry) bool
	place = func(e *Entry) bool {
		if placed[e.TxID] {
			return true
		}
		for _, in := range e.Tx.TxIn {
			parentID := in.PreviousOutpoint.TxID
			if parent, ok := p.entries[parentID]; ok && !placed[parentID] {
				if !place(parent) {
					return false
				}
			}
		}
		if size+e.Size > maxSize {
			return false
		}
		placed[e.TxID] = true
		result = append(result, e)
		size += e.Size
		return true
	}

	for _, e := range ordered {
		place(e)
	}
	return result
}
