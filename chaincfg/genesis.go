package chaincfg

import (
	"time"

	"github.com/xai-blockchain/xai-sub002/wire"
)

// GenesisWireBlock materializes p's genesis specification as a full
// wire.Block: a single coinbase transaction paying out every configured
// allocation, at height 0, with no previous hash.
func (p *Params) GenesisWireBlock() (*wire.Block, error) {
	outs := make([]*wire.TxOut, 0, len(p.GenesisBlock.Allocations))
	for _, alloc := range p.GenesisBlock.Allocations {
		outs = append(outs, &wire.TxOut{Address: alloc.Address, Amount: alloc.Amount})
	}

	coinbase := &wire.Transaction{
		Version:   1,
		TxOut:     outs,
		Timestamp: p.GenesisBlock.Timestamp,
		Nonce:     0,
	}

	merkleRoot, err := wire.BuildMerkleRoot([]*wire.Transaction{coinbase})
	if err != nil {
		return nil, err
	}

	header := wire.BlockHeader{
		PreviousHash: wire.BlockHash{},
		MerkleRoot:   merkleRoot,
		Timestamp:    p.GenesisBlock.Timestamp,
		Bits:         p.GenesisBlock.Bits,
		Nonce:        p.GenesisBlock.Nonce,
		Height:       0,
	}

	return &wire.Block{Header: header, Transactions: []*wire.Transaction{coinbase}}, nil
}

// GenesisTime returns the genesis block's timestamp as a time.Time.
func (p *Params) GenesisTime() time.Time {
	return time.Unix(p.GenesisBlock.Timestamp, 0)
}
