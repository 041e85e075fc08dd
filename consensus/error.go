package consensus

import "fmt"

// RuleError reports a consensus rule violation: a timestamp outside the
// allowed window, or (from the fork manager) a block height that does not
// follow its parent's. Proof-of-work failures are reported as plain errors.
type RuleError struct {
	Description string
}

// Error implements the error interface.
func (e RuleError) Error() string {
	return e.Description
}

func ruleErrorf(format string, args ...interface{}) error {
	return RuleError{Description: fmt.Sprintf(format, args...)}
}
