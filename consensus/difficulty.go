package consensus

import (
	"math/big"
	"time"

	"github.com/xai-blockchain/xai-sub002/chaincfg"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// NextRequiredBits computes the difficulty bits the next block after tip
// must carry. On every height that is a multiple of params.RetargetInterval
// (and not height 0), it retargets based on how long the previous interval
// actually took versus the target; every other height keeps the tip's
// bits unchanged.
//
// firstBlockTime and lastBlockTime are the timestamps of the first and last
// blocks of the interval being measured (i.e. the RetargetInterval blocks
// immediately preceding the one being retargeted).
func NextRequiredBits(tip *wire.BlockHeader, firstBlockTime, lastBlockTime time.Time, params *chaincfg.Params) uint32 {
	nextHeight := tip.Height + 1
	if nextHeight%params.RetargetInterval != 0 {
		return tip.Bits
	}

	actualTimespan := lastBlockTime.Sub(firstBlockTime)
	targetTimespan := params.TargetTimePerBlock * time.Duration(params.RetargetInterval)

	minTimespan := targetTimespan / time.Duration(params.MaxRetargetFactor)
	maxTimespan := targetTimespan * time.Duration(params.MaxRetargetFactor)
	if actualTimespan < minTimespan {
		actualTimespan = minTimespan
	}
	if actualTimespan > maxTimespan {
		actualTimespan = maxTimespan
	}

	oldTarget := chaincfg.CompactToBig(tip.Bits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(int64(actualTimespan)))
	newTarget.Div(newTarget, big.NewInt(int64(targetTimespan)))

	if newTarget.Cmp(params.PowLimit) > 0 {
		newTarget.Set(params.PowLimit)
	}

	return chaincfg.BigToCompact(newTarget)
}

// CheckBlockTimestamp enforces the two timestamp rules a new block's header
// must satisfy: it may not be further in the future than MaxFutureBlockTime
// relative to now, and it may not be at or before the median time of the
// preceding MedianTimeBlocks ancestors.
func CheckBlockTimestamp(header *wire.BlockHeader, recentAncestorTimestamps []int64, now time.Time, params *chaincfg.Params) error {
	blockTime := time.Unix(header.Timestamp, 0)
	if blockTime.After(now.Add(params.MaxFutureBlockTime)) {
		return errTimeTooNew(blockTime, now, params.MaxFutureBlockTime)
	}

	if len(recentAncestorTimestamps) > 0 {
		median := wire.MedianTime(recentAncestorTimestamps)
		if !blockTime.After(median) {
			return errTimeTooOld(blockTime, median)
		}
	}
	return nil
}

func errTimeTooNew(blockTime, now time.Time, maxFuture time.Duration) error {
	return ruleErrorf("block timestamp %s is more than %s ahead of now (%s)", blockTime, maxFuture, now)
}

func errTimeTooOld(blockTime, median time.Time) error {
	return ruleErrorf("block timestamp %s is not after median time of last %s", blockTime, median)
}
