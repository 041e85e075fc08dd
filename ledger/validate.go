package ledger

import (
	"bytes"
	"fmt"

	"github.com/xai-blockchain/xai-sub002/crypto"
	"github.com/xai-blockchain/xai-sub002/util"
	"github.com/xai-blockchain/xai-sub002/util/base58"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// ValidateTx checks tx for structural and signature validity against s, the
// chain's current (or candidate) UTXO set, without committing anything. It
// is the entry point the mempool uses for admission, and is also the first
// step ApplyBlock runs for each of a block's non-coinbase transactions.
func (s *UTXOSet) ValidateTx(tx *wire.Transaction) (fee uint64, err error) {
	return validateTxAgainstDiff(s, newDiff(), tx, nil)
}

// ValidateTxWithMempoolOutputs behaves like ValidateTx, but additionally
// treats mempoolOutputs as spendable: outputs belonging to transactions that
// are still unconfirmed in the mempool, not yet part of s. This lets the
// mempool admit a child transaction that spends a still-pending parent's
// output (a chained mempool), while every other rule — signatures, double
// spends, balance — is enforced exactly as ValidateTx enforces it.
func (s *UTXOSet) ValidateTxWithMempoolOutputs(tx *wire.Transaction, mempoolOutputs map[wire.Outpoint]UTXOEntry) (fee uint64, err error) {
	diff := newDiff()
	for outpoint, entry := range mempoolOutputs {
		e := entry
		diff.toAdd[outpoint] = &e
	}
	return validateTxAgainstDiff(s, diff, tx, nil)
}

// validateTxAgainstDiff validates tx against s as modified by an
// in-progress diff, so earlier transactions in the same block are visible
// to later ones. spentInBlock tracks outpoints already claimed earlier in
// the same block, catching intra-block double-spends that a diff lookup
// alone would not (the diff only records the effect of already-processed
// transactions, which is exactly what spentInBlock duplicates for a
// same-block same-outpoint check with a clearer error).
func validateTxAgainstDiff(s *UTXOSet, diff *Diff, tx *wire.Transaction, spentInBlock map[wire.Outpoint]bool) (uint64, error) {
	if tx.IsCoinbase() {
		return 0, validationError(ErrNoInputsOrOutputs, "coinbase transaction cannot be validated as a spend")
	}
	if len(tx.TxOut) == 0 {
		return 0, validationError(ErrNoInputsOrOutputs, "transaction has no outputs")
	}
	if len(tx.TxIn) != len(tx.PubKeys) || len(tx.TxIn) != len(tx.Sigs) {
		return 0, validationError(ErrBadSignature, "input count does not match pubkey/signature count")
	}

	seen := make(map[wire.Outpoint]bool, len(tx.TxIn))
	var totalIn uint64

	preimage, err := tx.CanonicalPreimage()
	if err != nil {
		return 0, err
	}
	hash := util.Hash256(preimage)

	for i, in := range tx.TxIn {
		outpoint := in.PreviousOutpoint
		if seen[outpoint] || (spentInBlock != nil && spentInBlock[outpoint]) {
			return 0, validationError(ErrDoubleSpend,
				fmt.Sprintf("outpoint (%s, %d) spent more than once", outpoint.TxID, outpoint.Index))
		}
		seen[outpoint] = true

		entry, ok := lookup(s, diff, outpoint)
		if !ok {
			return 0, validationError(ErrMissingTxOut,
				fmt.Sprintf("outpoint (%s, %d) does not exist in the UTXO set", outpoint.TxID, outpoint.Index))
		}

		pubKey, err := crypto.ParsePublicKey(tx.PubKeys[i])
		if err != nil {
			return 0, validationError(ErrBadSignature, fmt.Sprintf("input %d: malformed public key: %s", i, err))
		}
		if !addressMatches(entry.Address, pubKey) {
			return 0, validationError(ErrUnownedOutput,
				fmt.Sprintf("input %d: public key does not own outpoint (%s, %d)", i, outpoint.TxID, outpoint.Index))
		}

		sig, err := crypto.ParseSignature(tx.Sigs[i])
		if err != nil {
			return 0, validationError(ErrBadSignature, fmt.Sprintf("input %d: malformed signature: %s", i, err))
		}
		if !sig.Verify(hash, pubKey) {
			return 0, validationError(ErrBadSignature, fmt.Sprintf("input %d: signature does not verify", i))
		}

		totalIn += entry.Amount
	}

	var totalOut uint64
	for _, out := range tx.TxOut {
		if out.Amount == 0 {
			return 0, validationError(ErrZeroAmount, "transaction output pays zero")
		}
		totalOut += out.Amount
	}

	if totalOut+tx.Fee > totalIn {
		return 0, validationError(ErrSpendExceedsInputs,
			fmt.Sprintf("outputs (%d) plus fee (%d) exceed inputs (%d)", totalOut, tx.Fee, totalIn))
	}

	return totalIn - totalOut, nil
}

// addressMatches reports whether pubKey hashes to the address recorded on
// the UTXO entry it is attempting to spend. It decodes the base58check
// payload directly rather than re-encoding for a specific network, so the
// ledger itself stays network-agnostic: the version byte was already
// checked when the address was first accepted onto the network.
func addressMatches(entryAddress string, pubKey *crypto.PublicKey) bool {
	payload, _, err := base58.CheckDecode(entryAddress)
	if err != nil {
		return false
	}
	return bytes.Equal(payload, util.Hash160(pubKey.SerializeCompressed()))
}

// ValidateBlockShape checks the structural invariants of a block that must
// hold before it is even considered for UTXO application: a correct Merkle
// root and serialized size within the configured caps. Consensus-level
// checks (proof of work, timestamps) live in the consensus package; the
// fork manager calls this before them when it connects a block.
func ValidateBlockShape(block *wire.Block, maxBlockSize, maxTxSize int) error {
	if block.SerializeSize() > maxBlockSize {
		return validationError(ErrBlockTooBig,
			fmt.Sprintf("block size %d exceeds maximum %d", block.SerializeSize(), maxBlockSize))
	}
	for i, tx := range block.Transactions {
		if tx.SerializeSize() > maxTxSize {
			return validationError(ErrTxTooBig,
				fmt.Sprintf("transaction %d size %d exceeds maximum %d", i, tx.SerializeSize(), maxTxSize))
		}
	}

	root, err := wire.BuildMerkleRoot(block.Transactions)
	if err != nil {
		return err
	}
	if root != block.Header.MerkleRoot {
		return validationError(ErrBadMerkleRoot,
			fmt.Sprintf("computed merkle root %s does not match header root %s", root, block.Header.MerkleRoot))
	}
	return nil
}
