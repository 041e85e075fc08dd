// Package chaincfg pins the node's consensus tunables per network, the way
// dagconfig.Params does for the teacher: retarget cadence, halving
// interval, and per-block adjustment clamp are deployment-defined but fixed
// once a network is chosen. Block validation checks a block's difficulty
// bits only against PowLimit; it does not compare them with the retarget
// result these params produce.
package chaincfg

import (
	"math/big"
	"time"

	"github.com/xai-blockchain/xai-sub002/util"
)

// Params collects every consensus- and policy-relevant constant for a
// network (mainnet, testnet, simnet).
type Params struct {
	Name string

	// AddressVersion is the base58check version byte for this network's
	// addresses.
	AddressVersion util.AddressVersion

	// GenesisBlock is the network's first block.
	GenesisBlock *GenesisBlock

	// TargetTimePerBlock is the expected spacing between blocks.
	TargetTimePerBlock time.Duration

	// RetargetInterval is the number of blocks between difficulty
	// adjustments.
	RetargetInterval uint64

	// MaxRetargetFactor clamps a single retarget's adjustment to at most
	// this multiple up or down.
	MaxRetargetFactor int64

	// PowLimit is the easiest allowed difficulty target.
	PowLimit *big.Int

	// HalvingInterval is the number of blocks between subsidy halvings.
	HalvingInterval uint64

	// InitialSubsidy is the block reward before any halving, in the
	// smallest indivisible unit.
	InitialSubsidy uint64

	// MaxSupply is the hard cap on circulating supply; no coinbase may
	// ever cross it.
	MaxSupply uint64

	// MinRelayFee is the minimum fee (smallest unit) a transaction must
	// pay to be relayed or mined.
	MinRelayFee uint64

	// MaxBlockSize is the serialized size cap for a block, in bytes.
	MaxBlockSize int

	// MaxTxSize is the serialized size cap for a single transaction.
	MaxTxSize int

	// MaxFutureBlockTime is how far into the future a block's timestamp
	// may be, relative to the verifier's wall clock.
	MaxFutureBlockTime time.Duration

	// MedianTimeBlocks is the number of recent ancestors used to compute
	// the minimum allowed timestamp.
	MedianTimeBlocks int

	// MaxReorgDepth is the hard safety limit on reorganization depth.
	MaxReorgDepth uint64

	// CheckpointInterval is how many blocks between persistence
	// checkpoints.
	CheckpointInterval uint64

	// BackupCount is how many rotated backups to retain.
	BackupCount int
}

// GenesisBlock captures the network's genesis block, expressed as a
// coinbase-only block at height 0.
type GenesisBlock struct {
	Timestamp    int64
	Bits         uint32
	Nonce        uint64
	Allocations  []GenesisAllocation
}

// GenesisAllocation is a single pre-mined output in the genesis block,
// used by scenario 1/2 in the testable-properties section (wallets funded
// at genesis).
type GenesisAllocation struct {
	Address string
	Amount  uint64
}
