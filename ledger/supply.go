package ledger

// ExpectedSubsidy is the block reward a coinbase at height may mint, before
// fees, under a halving schedule that starts at initialSubsidy and halves
// every halvingInterval blocks.
func ExpectedSubsidy(height, halvingInterval, initialSubsidy uint64) uint64 {
	halvings := height / halvingInterval
	if halvings >= 64 {
		return 0
	}
	return initialSubsidy >> halvings
}

// RemainingSupply returns how much may still be minted before maxSupply is
// reached, given the current circulating supply.
func RemainingSupply(circulating, maxSupply uint64) uint64 {
	if circulating >= maxSupply {
		return 0
	}
	return maxSupply - circulating
}
