package mining

import (
	"context"
	"math/big"
	"math/rand"

	"github.com/xai-blockchain/xai-sub002/chaincfg"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// hashesPerCheck bounds how many nonces are tried between context
// cancellation checks, so a solve loop stops promptly when a competing
// block arrives and the template goes stale.
const hashesPerCheck = 50_000

// Solve repeatedly hashes template's header with increasing nonces,
// starting from a random offset, until one satisfies the header's
// proof-of-work target or ctx is canceled (because a new template
// superseded this one). It mutates template.Block.Header.Nonce in place.
func Solve(ctx context.Context, template *Template) (bool, error) {
	header := &template.Block.Header
	target := chaincfg.CompactToBig(header.Bits)

	nonce := rand.Uint64()
	for {
		select {
		case <-ctx.Done():
			return false, nil
		default:
		}

		for i := 0; i < hashesPerCheck; i++ {
			header.Nonce = nonce
			hash, err := header.Hash()
			if err != nil {
				return false, err
			}
			if hashToBig(hash).Cmp(target) <= 0 {
				return true, nil
			}
			nonce++
		}
	}
}

func hashToBig(hash wire.BlockHash) *big.Int {
	return new(big.Int).SetBytes(hash[:])
}
