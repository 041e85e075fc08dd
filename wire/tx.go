// Package wire defines the block, transaction, and peer-to-peer message
// types exchanged by the node, along with their canonical serialization.
package wire

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xai-blockchain/xai-sub002/util"
)

// TxID identifies a transaction by the hash of its canonical pre-image.
type TxID [util.HashSize]byte

// String returns the hex encoding of the TxID.
func (id TxID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalJSON encodes the TxID as a hex string, so it appears human-readable
// in envelope payloads and snapshot files rather than as a byte array.
func (id TxID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes a hex-string TxID.
func (id *TxID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(decoded) != len(id) {
		return fmt.Errorf("wire: invalid TxID length %d", len(decoded))
	}
	copy(id[:], decoded)
	return nil
}

// BlockHash identifies a block by the hash of its serialized header.
type BlockHash [util.HashSize]byte

// String returns the hex encoding of the BlockHash.
func (h BlockHash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalJSON encodes the BlockHash as a hex string.
func (h BlockHash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex-string BlockHash.
func (h *BlockHash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(decoded) != len(h) {
		return fmt.Errorf("wire: invalid BlockHash length %d", len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// IsZero reports whether h is the all-zero hash, used to mark "no parent"
// for the genesis block.
func (h BlockHash) IsZero() bool {
	return h == BlockHash{}
}

// Outpoint references a single output of a previous transaction.
type Outpoint struct {
	TxID  TxID   `json:"txid"`
	Index uint32 `json:"index"`
}

// TxIn spends a previously unspent output.
type TxIn struct {
	PreviousOutpoint Outpoint `json:"previous_outpoint"`
}

// TxOut pays an amount, denominated in the smallest indivisible unit, to an
// address.
type TxOut struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// Transaction is the node's transaction type. A coinbase transaction has no
// inputs and exactly one output; it is the only transaction allowed to mint
// supply.
type Transaction struct {
	Version   uint32     `json:"version"`
	TxIn      []*TxIn    `json:"inputs"`
	TxOut     []*TxOut   `json:"outputs"`
	Fee       uint64     `json:"fee"`
	Timestamp int64      `json:"timestamp"`
	Nonce     uint64     `json:"nonce"`
	PubKeys   [][]byte   `json:"pubkeys"`
	Sigs      [][]byte   `json:"signatures"`
}

// IsCoinbase reports whether tx is a coinbase (reward-minting) transaction.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.TxIn) == 0
}

// preimage is the JSON-tagged view of a transaction used to compute its
// signing/identifying hash: every field except the signatures.
type preimage struct {
	Version   uint32   `json:"version"`
	TxIn      []*TxIn  `json:"inputs"`
	TxOut     []*TxOut `json:"outputs"`
	Fee       uint64   `json:"fee"`
	Timestamp int64    `json:"timestamp"`
	Nonce     uint64   `json:"nonce"`
	PubKeys   [][]byte `json:"pubkeys"`
}

// CanonicalPreimage returns the canonical byte string that is hashed to
// produce the TxID and that each signature in tx signs. It excludes the
// signatures themselves, per the ledger's signature scheme.
func (tx *Transaction) CanonicalPreimage() ([]byte, error) {
	pre := preimage{
		Version:   tx.Version,
		TxIn:      tx.TxIn,
		TxOut:     tx.TxOut,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		Nonce:     tx.Nonce,
		PubKeys:   tx.PubKeys,
	}
	return util.CanonicalJSON(pre)
}

// TxID computes the transaction's identifying hash over its canonical
// preimage.
func (tx *Transaction) TxID() (TxID, error) {
	pre, err := tx.CanonicalPreimage()
	if err != nil {
		return TxID{}, err
	}
	return TxID(util.Hash256(pre)), nil
}

// SerializeSize approximates the transaction's on-wire size in bytes, used
// to enforce the per-transaction and per-block size caps.
func (tx *Transaction) SerializeSize() int {
	size := 16 // version, fee, timestamp, nonce fixed-width fields
	size += len(tx.TxIn) * (util.HashSize + 4)
	for _, out := range tx.TxOut {
		size += len(out.Address) + 8
	}
	for i := range tx.PubKeys {
		size += len(tx.PubKeys[i])
	}
	for i := range tx.Sigs {
		size += len(tx.Sigs[i])
	}
	return size
}

// NewCoinbaseTransaction builds the reward-minting transaction for a block
// at the given height, paying reward+fees to addr.
func NewCoinbaseTransaction(rewardPlusFees uint64, addr string, height uint64, timestamp time.Time) *Transaction {
	return &Transaction{
		Version:   1,
		TxIn:      nil,
		TxOut:     []*TxOut{{Address: addr, Amount: rewardPlusFees}},
		Fee:       0,
		Timestamp: timestamp.Unix(),
		Nonce:     height,
	}
}
