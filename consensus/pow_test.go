package consensus

import (
	"math/big"
	"testing"
	"time"

	"github.com/xai-blockchain/xai-sub002/chaincfg"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// TestCheckProofOfWorkAcceptsEasyTarget mines a handful of nonces against
// the network's easiest allowed target. At that difficulty each nonce
// satisfies the target with probability of about one half, so the chance
// that all 64 attempts fail is negligible.
func TestCheckProofOfWorkAcceptsEasyTarget(t *testing.T) {
	params := chaincfg.SimNetParams
	header := &wire.BlockHeader{
		PreviousHash: wire.BlockHash{},
		MerkleRoot:   wire.BlockHash{1},
		Timestamp:    time.Now().Unix(),
		Bits:         chaincfg.BigToCompact(params.PowLimit),
		Height:       1,
	}

	var lastErr error
	for nonce := uint64(0); nonce < 64; nonce++ {
		header.Nonce = nonce
		if err := CheckProofOfWork(header, &params); err == nil {
			return
		} else {
			lastErr = err
		}
	}
	t.Fatalf("CheckProofOfWork: no nonce in [0,64) satisfied the easiest allowed target: %v", lastErr)
}

func TestCheckProofOfWorkRejectsOverLimitTarget(t *testing.T) {
	params := chaincfg.MainNetParams
	overLimit := new(big.Int).Lsh(params.PowLimit, 8) // far above the configured pow limit
	header := &wire.BlockHeader{
		Bits:   chaincfg.BigToCompact(overLimit),
		Height: 1,
	}
	if err := CheckProofOfWork(header, &params); err == nil {
		t.Fatalf("CheckProofOfWork: expected error for target above pow limit, got nil")
	}
}

func TestBlockWorkMonotonicWithDifficulty(t *testing.T) {
	easy := chaincfg.BigToCompact(chaincfg.MainNetParams.PowLimit)
	harderTarget := new(big.Int).Rsh(chaincfg.MainNetParams.PowLimit, 1)
	harder := chaincfg.BigToCompact(harderTarget)

	easyWork := BlockWork(easy)
	harderWork := BlockWork(harder)
	if harderWork.Cmp(easyWork) <= 0 {
		t.Fatalf("BlockWork: harder target (%v) should be worth more work than easy target (%v)", harderWork, easyWork)
	}
}

func TestNextRequiredBitsHoldsBetweenRetargets(t *testing.T) {
	params := chaincfg.MainNetParams
	tip := &wire.BlockHeader{Height: params.RetargetInterval, Bits: chaincfg.BigToCompact(params.PowLimit)}
	got := NextRequiredBits(tip, time.Unix(0, 0), time.Unix(100, 0), &params)
	if got != tip.Bits {
		t.Fatalf("NextRequiredBits: height not a retarget boundary, got %x want unchanged %x", got, tip.Bits)
	}
}

func TestNextRequiredBitsClampsLargeSpeedup(t *testing.T) {
	params := chaincfg.MainNetParams
	halfTarget := new(big.Int).Rsh(params.PowLimit, 1)
	tip := &wire.BlockHeader{Height: params.RetargetInterval - 1, Bits: chaincfg.BigToCompact(halfTarget)}
	targetSpan := params.TargetTimePerBlock * time.Duration(params.RetargetInterval)
	first := time.Unix(0, 0)
	// Blocks arrived far faster than targeted: actual timespan is
	// targetSpan/100, which the clamp should widen to targetSpan/MaxRetargetFactor.
	last := first.Add(targetSpan / 100)

	got := NextRequiredBits(tip, first, last, &params)
	gotTarget := chaincfg.CompactToBig(got)
	oldTarget := chaincfg.CompactToBig(tip.Bits)

	// A faster-than-target interval should tighten (lower) the next target,
	// but the clamp caps the adjustment at 1/MaxRetargetFactor.
	if gotTarget.Cmp(oldTarget) >= 0 {
		t.Fatalf("NextRequiredBits: expected tightened target after fast interval, got %x from %x", got, tip.Bits)
	}
}
