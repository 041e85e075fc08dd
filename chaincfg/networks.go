package chaincfg

import (
	"math/big"
	"time"
)

// mainPowLimit is the target a freshly-bootstrapped mainnet
// network starts from: very easy, so a single CPU miner can produce blocks
// during early bring-up. Real deployments retarget upward quickly.
var mainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 224), big.NewInt(1))

// MainNetParams are the consensus parameters for the production network.
var MainNetParams = Params{
	Name:           "mainnet",
	AddressVersion: 0x00,
	GenesisBlock: &GenesisBlock{
		Timestamp: 1735689600, // 2025-01-01T00:00:00Z
		Bits:      BigToCompact(mainPowLimit),
		Nonce:     0,
		Allocations: []GenesisAllocation{
			{Address: "genesis-allocation-placeholder", Amount: 0},
		},
	},
	TargetTimePerBlock: 2 * time.Minute,
	RetargetInterval:   2016,
	MaxRetargetFactor:  4,
	PowLimit:           mainPowLimit,
	HalvingInterval:    210000,
	InitialSubsidy:     50 * 1e8,
	MaxSupply:          21000000 * 1e8,
	MinRelayFee:        1000,
	MaxBlockSize:       4 * 1024 * 1024,
	MaxTxSize:          256 * 1024,
	MaxFutureBlockTime: 2 * time.Hour,
	MedianTimeBlocks:   11,
	MaxReorgDepth:      100,
	CheckpointInterval: 1000,
	BackupCount:        5,
}

// TestNetParams relax timing so integration tests don't wait on real clocks.
var TestNetParams = Params{
	Name:           "testnet",
	AddressVersion: 0x6f,
	GenesisBlock: &GenesisBlock{
		Timestamp: 1735689600,
		Bits:      BigToCompact(mainPowLimit),
		Nonce:     0,
		Allocations: []GenesisAllocation{
			{Address: "genesis-allocation-placeholder", Amount: 0},
		},
	},
	TargetTimePerBlock: 10 * time.Second,
	RetargetInterval:   144,
	MaxRetargetFactor:  4,
	PowLimit:           mainPowLimit,
	HalvingInterval:    2100,
	InitialSubsidy:     50 * 1e8,
	MaxSupply:          21000000 * 1e8,
	MinRelayFee:        1,
	MaxBlockSize:       4 * 1024 * 1024,
	MaxTxSize:          256 * 1024,
	MaxFutureBlockTime: 2 * time.Hour,
	MedianTimeBlocks:   11,
	MaxReorgDepth:      100,
	CheckpointInterval: 100,
	BackupCount:        5,
}

// SimNetParams further relax difficulty for unit tests: the pow limit is
// 2^255-1, so about half of all hashes satisfy it and a short nonce search
// finds one almost always.
var simNetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))

var SimNetParams = Params{
	Name:           "simnet",
	AddressVersion: 0x3f,
	GenesisBlock: &GenesisBlock{
		Timestamp: 1735689600,
		Bits:      BigToCompact(simNetPowLimit),
		Nonce:     0,
		Allocations: []GenesisAllocation{
			{Address: "genesis-allocation-placeholder", Amount: 100 * 1e8},
		},
	},
	TargetTimePerBlock: time.Second,
	RetargetInterval:   8,
	MaxRetargetFactor:  4,
	PowLimit:           simNetPowLimit,
	HalvingInterval:    100,
	InitialSubsidy:     50 * 1e8,
	MaxSupply:          21000000 * 1e8,
	MinRelayFee:        0,
	MaxBlockSize:       4 * 1024 * 1024,
	MaxTxSize:          256 * 1024,
	MaxFutureBlockTime: 2 * time.Hour,
	MedianTimeBlocks:   11,
	MaxReorgDepth:      100,
	CheckpointInterval: 10,
	BackupCount:        3,
}

// BigToCompact converts a big.Int target to its compact ("bits")
// representation, the same packed mantissa+exponent encoding Bitcoin-family
// chains use.
func BigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}
	exponent := uint32((n.BitLen() + 7) / 8)
	var mantissa uint32
	if exponent <= 3 {
		mantissa = uint32(n.Int64() << (8 * (3 - exponent)))
	} else {
		shifted := new(big.Int).Rsh(n, 8*(exponent-3))
		mantissa = uint32(shifted.Int64())
	}
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}
	return exponent<<24 | mantissa
}

// CompactToBig expands a compact ("bits") target back into a big.Int.
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	exponent := compact >> 24

	var result *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		result = big.NewInt(int64(mantissa))
	} else {
		result = big.NewInt(int64(mantissa))
		result.Lsh(result, uint(8*(exponent-3)))
	}
	if compact&0x00800000 != 0 {
		result.Neg(result)
	}
	return result
}

// HalvingSchedule returns the block subsidy at the given height, halving
// every HalvingInterval blocks until it reaches zero.
func (p *Params) HalvingSchedule(height uint64) uint64 {
	halvings := height / p.HalvingInterval
	if halvings >= 64 {
		return 0
	}
	subsidy := p.InitialSubsidy >> halvings
	return subsidy
}
