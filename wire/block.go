package wire

import (
	"time"

	"github.com/xai-blockchain/xai-sub002/util"
)

// BlockHeader is the fixed-size, hashed part of a block.
type BlockHeader struct {
	PreviousHash BlockHash `json:"previous_hash"`
	MerkleRoot   BlockHash `json:"merkle_root"`
	Timestamp    int64     `json:"timestamp"`
	Bits         uint32    `json:"bits"`
	Nonce        uint64    `json:"nonce"`
	Height       uint64    `json:"height"`
}

// CanonicalBytes returns the canonical serialization hashed to produce the
// block hash.
func (h *BlockHeader) CanonicalBytes() ([]byte, error) {
	return util.CanonicalJSON(h)
}

// Hash computes the block hash over the header's canonical serialization.
func (h *BlockHeader) Hash() (BlockHash, error) {
	b, err := h.CanonicalBytes()
	if err != nil {
		return BlockHash{}, err
	}
	return BlockHash(util.Hash256(b)), nil
}

// Block is a header plus its ordered transaction list. The first
// transaction must be the coinbase.
type Block struct {
	Header       BlockHeader    `json:"header"`
	Transactions []*Transaction `json:"transactions"`
}

// Coinbase returns the block's mandatory first transaction.
func (b *Block) Coinbase() *Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return b.Transactions[0]
}

// Hash returns the block's header hash.
func (b *Block) Hash() (BlockHash, error) {
	return b.Header.Hash()
}

// SerializeSize approximates the block's on-wire size in bytes.
func (b *Block) SerializeSize() int {
	size := 96 // fixed header fields
	for _, tx := range b.Transactions {
		size += tx.SerializeSize()
	}
	return size
}

// BuildMerkleRoot computes the block's Merkle root over its transaction IDs,
// duplicating the last leaf when the count at a level is odd. Sender and
// verifier must use this exact algorithm for the root to match.
func BuildMerkleRoot(transactions []*Transaction) (BlockHash, error) {
	if len(transactions) == 0 {
		return BlockHash{}, nil
	}

	leaves := make([]BlockHash, len(transactions))
	for i, tx := range transactions {
		id, err := tx.TxID()
		if err != nil {
			return BlockHash{}, err
		}
		leaves[i] = BlockHash(id)
	}

	level := leaves
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]BlockHash, len(level)/2)
		for i := 0; i < len(next); i++ {
			pair := append(append([]byte{}, level[2*i][:]...), level[2*i+1][:]...)
			next[i] = BlockHash(util.Hash256(pair))
		}
		level = next
	}
	return level[0], nil
}

// MedianTime returns the median timestamp of the given recent ancestor
// headers (newest last), per the median-past-11 consensus rule.
func MedianTime(recentTimestamps []int64) time.Time {
	if len(recentTimestamps) == 0 {
		return time.Unix(0, 0)
	}
	sorted := append([]int64{}, recentTimestamps...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return time.Unix(sorted[len(sorted)/2], 0)
}
