package mempool

import "fmt"

// RejectCode classifies why a transaction was refused admission, mirroring
// the reject-code taxonomy peers use to explain a rejection to each other.
type RejectCode int

const (
	// RejectInvalid means the transaction fails structural, signature, or
	// UTXO validation.
	RejectInvalid RejectCode = iota

	// RejectDuplicate means a transaction with the same TxID is already in
	// the pool.
	RejectDuplicate

	// RejectConflict means the transaction spends an outpoint already
	// claimed by a pool entry, and does not qualify as a fee-bumping
	// replacement for it.
	RejectConflict

	// RejectInsufficientFee means the transaction's absolute fee falls
	// below the policy's minimum relay fee.
	RejectInsufficientFee

	// RejectFull means the pool is at capacity and the transaction's fee
	// rate does not clear the eviction threshold required to make room.
	RejectFull

	// RejectNonStandard means the transaction otherwise violates local
	// relay policy (currently unused; reserved for future policy checks).
	RejectNonStandard
)

var rejectCodeStrings = map[RejectCode]string{
	RejectInvalid:         "RejectInvalid",
	RejectDuplicate:       "RejectDuplicate",
	RejectConflict:        "RejectConflict",
	RejectInsufficientFee: "RejectInsufficientFee",
	RejectFull:            "RejectFull",
	RejectNonStandard:     "RejectNonStandard",
}

// String returns the human-readable name of the reject code.
func (c RejectCode) String() string {
	if s, ok := rejectCodeStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("Unknown RejectCode (%d)", int(c))
}

// PolicyError reports a transaction's rejection from the mempool, tagged
// with a RejectCode so callers (the peer manager, in particular) can relay
// a specific reason to the sender.
type PolicyError struct {
	RejectCode  RejectCode
	Description string
}

// Error implements the error interface.
func (e PolicyError) Error() string {
	return e.Description
}

func policyError(code RejectCode, format string, args ...interface{}) PolicyError {
	return PolicyError{RejectCode: code, Description: fmt.Sprintf(format, args...)}
}
