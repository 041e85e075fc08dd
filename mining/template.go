// Package mining assembles block templates from the current chain tip and
// mempool, and drives the proof-of-work search that turns a template into a
// solved block.
package mining

import (
	"time"

	"github.com/xai-blockchain/xai-sub002/chaincfg"
	"github.com/xai-blockchain/xai-sub002/consensus"
	"github.com/xai-blockchain/xai-sub002/mempool"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// CoinbaseFlags names this node's miner. It is appended nowhere in the
// wire format (this node's coinbase carries no arbitrary script), and
// nothing in this package logs or embeds it.
const CoinbaseFlags = "/xai-sub002/"

// Template is a fully assembled, unsolved block: a valid header missing
// only its winning nonce, plus the transaction set it commits to.
type Template struct {
	Block  *wire.Block
	Height uint64
	Fees   uint64
}

// ChainTip is the minimal view of fork.Manager the template builder needs,
// kept as an interface so this package does not import fork directly (and
// so tests can supply a fake tip without building a whole Manager).
type ChainTip interface {
	Tip() (wire.BlockHeader, wire.BlockHash)
}

// NewTemplate builds a block template extending tip's current chain: it
// selects transactions from pool up to maxBlockSize, computes the required
// difficulty bits for the new height, and assembles a coinbase paying
// minerAddress the block subsidy plus the selected transactions' fees.
func NewTemplate(
	params *chaincfg.Params,
	tip ChainTip,
	pool *mempool.TxPool,
	minerAddress string,
	maxBlockSize uint32,
	recentAncestorTimestamps []int64,
	firstBlockTime time.Time,
	now time.Time,
) (*Template, error) {
	tipHeader, tipHash := tip.Tip()

	budget := maxBlockSize
	const coinbaseReserve = 512 // headroom for the coinbase transaction itself
	if budget > coinbaseReserve {
		budget -= coinbaseReserve
	} else {
		budget = 0
	}

	entries := pool.SelectForMining(int(budget))
	height := tipHeader.Height + 1
	subsidy := params.HalvingSchedule(height)

	var fees uint64
	txs := make([]*wire.Transaction, 0, len(entries)+1)
	for _, e := range entries {
		fees += e.Fee
		txs = append(txs, e.Tx)
	}

	coinbase := wire.NewCoinbaseTransaction(subsidy+fees, minerAddress, height, now)
	allTxs := append([]*wire.Transaction{coinbase}, txs...)

	root, err := wire.BuildMerkleRoot(allTxs)
	if err != nil {
		return nil, err
	}

	bits := consensus.NextRequiredBits(&tipHeader, firstBlockTime, wire.MedianTime(recentAncestorTimestamps), params)

	header := wire.BlockHeader{
		PreviousHash: tipHash,
		MerkleRoot:   root,
		Timestamp:    now.Unix(),
		Bits:         bits,
		Height:       height,
	}

	return &Template{
		Block:  &wire.Block{Header: header, Transactions: allTxs},
		Height: height,
		Fees:   fees,
	}, nil
}
