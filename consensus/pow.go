// Package consensus implements the node's proof-of-work and difficulty
// rules: checking a block's claimed target against its configured bounds
// and its hash, computing the work a block contributes to a chain, and
// retargeting difficulty on the configured cadence.
package consensus

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/xai-blockchain/xai-sub002/chaincfg"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// oneLsh256 is 2^256, used as the numerator when converting a target into a
// work value: smaller targets (harder difficulty) are worth proportionally
// more work.
var oneLsh256 = new(big.Int).Lsh(big.NewInt(1), 256)

// CheckProofOfWork ensures header's claimed difficulty bits fall within the
// network's configured bounds and that the block's hash, interpreted as an
// unsigned integer, does not exceed the target those bits encode.
func CheckProofOfWork(header *wire.BlockHeader, params *chaincfg.Params) error {
	target := chaincfg.CompactToBig(header.Bits)

	if target.Sign() <= 0 {
		return errors.Errorf("block target difficulty of %064x is too low", target)
	}
	if target.Cmp(params.PowLimit) > 0 {
		return errors.Errorf("block target difficulty of %064x is higher than max of %064x", target, params.PowLimit)
	}

	hash, err := header.Hash()
	if err != nil {
		return err
	}
	hashNum := hashToBig(hash)
	if hashNum.Cmp(target) > 0 {
		return errors.Errorf("block hash %s is higher than expected target %064x", hash, target)
	}
	return nil
}

// hashToBig interprets a hash's bytes as a big-endian unsigned integer, the
// same convention the target comparison uses.
func hashToBig(hash wire.BlockHash) *big.Int {
	return new(big.Int).SetBytes(hash[:])
}

// BlockWork returns the amount of work represented by a block claiming the
// given difficulty bits: floor(2^256 / (target+1)). A block with a smaller
// (harder) target contributes more work.
func BlockWork(bits uint32) *big.Int {
	target := chaincfg.CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denominator := new(big.Int).Add(target, big.NewInt(1))
	return new(big.Int).Div(oneLsh256, denominator)
}

// CumulativeWork sums the work of a sequence of headers, most commonly a
// candidate chain being compared against the current tip for fork
// selection.
func CumulativeWork(headers []*wire.BlockHeader) *big.Int {
	total := big.NewInt(0)
	for _, h := range headers {
		total.Add(total, BlockWork(h.Bits))
	}
	return total
}
