// Package mempool holds not-yet-mined transactions, admitting, ordering,
// and evicting them per the node's relay policy.
package mempool

import "github.com/xai-blockchain/xai-sub002/chaincfg"

// Policy collects the tunables that govern admission and eviction,
// separate from the hard consensus rules the ledger package enforces.
type Policy struct {
	// MinRelayFee is the minimum fee (smallest unit) a transaction must pay
	// to be admitted.
	MinRelayFee uint64

	// MaxOrphans is not used by this mempool (orphan transactions, as
	// opposed to orphan blocks, are rejected outright rather than held);
	// kept here for parity with the teacher's policy struct shape.
	MaxOrphans int

	// MaxMempoolSize is the maximum total serialized size, in bytes, the
	// pool may hold before the lowest fee-rate entries are evicted.
	MaxMempoolSize int

	// MaxMempoolCount is the maximum number of transactions the pool may
	// hold before eviction.
	MaxMempoolCount int

	// RelayFeeBump is the minimum additional absolute fee, on top of the
	// fee(s) it displaces, a replacement transaction must pay to evict
	// conflicting pool entries. It guards against an attacker replacing a
	// transaction for a negligible fee increase purely to consume relay
	// bandwidth.
	RelayFeeBump uint64
}

// PolicyFromParams derives a default Policy from a network's consensus
// parameters.
func PolicyFromParams(params *chaincfg.Params) Policy {
	return Policy{
		MinRelayFee:     params.MinRelayFee,
		MaxMempoolSize:  300 * 1024 * 1024,
		MaxMempoolCount: 100000,
		RelayFeeBump:    params.MinRelayFee,
	}
}
