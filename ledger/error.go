package ledger

import "fmt"

// ErrorCode identifies a kind of rule violation a transaction or block can
// commit against the ledger.
type ErrorCode int

const (
	// ErrDuplicateTx indicates a transaction with the same TxID already
	// exists in the UTXO set's accepted history.
	ErrDuplicateTx ErrorCode = iota

	// ErrMissingTxOut indicates a transaction references an outpoint that
	// does not exist in the UTXO set.
	ErrMissingTxOut

	// ErrDoubleSpend indicates two inputs in the same transaction, or two
	// transactions in the same block, spend the same outpoint.
	ErrDoubleSpend

	// ErrBadSignature indicates a transaction input's signature does not
	// verify against its claimed public key.
	ErrBadSignature

	// ErrUnownedOutput indicates a public key does not hash to the address
	// that owns the outpoint it is attempting to spend.
	ErrUnownedOutput

	// ErrSpendExceedsInputs indicates a transaction's outputs plus fee
	// exceed the sum of the value of the outpoints it spends.
	ErrSpendExceedsInputs

	// ErrNoInputsOrOutputs indicates a non-coinbase transaction has no
	// inputs, or any transaction has no outputs.
	ErrNoInputsOrOutputs

	// ErrBadCoinbaseAmount indicates a coinbase transaction mints more than
	// the block's subsidy plus the fees it collects.
	ErrBadCoinbaseAmount

	// ErrSupplyCapExceeded indicates applying a coinbase would push
	// circulating supply past the network's maximum.
	ErrSupplyCapExceeded

	// ErrFirstTxNotCoinbase indicates a block's first transaction is not a
	// coinbase, or a later transaction is.
	ErrFirstTxNotCoinbase

	// ErrBadMerkleRoot indicates a block's header Merkle root does not
	// match the root computed over its transactions.
	ErrBadMerkleRoot

	// ErrTxTooBig indicates a transaction exceeds the configured maximum
	// serialized size.
	ErrTxTooBig

	// ErrBlockTooBig indicates a block exceeds the configured maximum
	// serialized size.
	ErrBlockTooBig

	// ErrZeroAmount indicates an output pays zero, which is never useful
	// and only bloats the UTXO set.
	ErrZeroAmount
)

var errorCodeStrings = map[ErrorCode]string{
	ErrDuplicateTx:        "ErrDuplicateTx",
	ErrMissingTxOut:       "ErrMissingTxOut",
	ErrDoubleSpend:        "ErrDoubleSpend",
	ErrBadSignature:       "ErrBadSignature",
	ErrUnownedOutput:      "ErrUnownedOutput",
	ErrSpendExceedsInputs: "ErrSpendExceedsInputs",
	ErrNoInputsOrOutputs:  "ErrNoInputsOrOutputs",
	ErrBadCoinbaseAmount:  "ErrBadCoinbaseAmount",
	ErrSupplyCapExceeded:  "ErrSupplyCapExceeded",
	ErrFirstTxNotCoinbase: "ErrFirstTxNotCoinbase",
	ErrBadMerkleRoot:      "ErrBadMerkleRoot",
	ErrTxTooBig:           "ErrTxTooBig",
	ErrBlockTooBig:        "ErrBlockTooBig",
	ErrZeroAmount:         "ErrZeroAmount",
}

// String returns the human-readable name of the error code.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// ValidationError identifies a rule violation detected while applying a
// transaction or block to the ledger. Callers that need to distinguish rule
// violations from I/O or programming errors should type-assert to this.
type ValidationError struct {
	ErrorCode   ErrorCode
	Description string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return e.Description
}

func validationError(code ErrorCode, desc string) ValidationError {
	return ValidationError{ErrorCode: code, Description: desc}
}
