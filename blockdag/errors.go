package blockdag

import "fmt"

// ErrorCode identifies a kind of consensus rule violation (spec.md §7).
// Kept as a stable enum rather than bare error strings so callers -
// notably the RPC boundary, a non-goal of this module - can switch on
// the reason a block or transaction was rejected.
type ErrorCode int

const (
	ErrDuplicateBlock ErrorCode = iota
	ErrUnknownParent
	ErrTooManyParents
	ErrNoParents
	ErrInvalidTimestamp
	ErrTimestampTooOld
	ErrInvalidProposerSignature
	ErrInvalidTxRoot
	ErrInvalidStateRoot
	ErrFinalityViolation
	ErrKClusterViolation
	ErrPruningPointMismatch
	ErrOrphanBlock
	ErrReorgBudgetExceeded
)

var errorCodeStrings = map[ErrorCode]string{
	ErrDuplicateBlock:           "ErrDuplicateBlock",
	ErrUnknownParent:            "ErrUnknownParent",
	ErrTooManyParents:           "ErrTooManyParents",
	ErrNoParents:                "ErrNoParents",
	ErrInvalidTimestamp:         "ErrInvalidTimestamp",
	ErrTimestampTooOld:          "ErrTimestampTooOld",
	ErrInvalidProposerSignature: "ErrInvalidProposerSignature",
	ErrInvalidTxRoot:            "ErrInvalidTxRoot",
	ErrInvalidStateRoot:         "ErrInvalidStateRoot",
	ErrFinalityViolation:        "ErrFinalityViolation",
	ErrKClusterViolation:        "ErrKClusterViolation",
	ErrPruningPointMismatch:     "ErrPruningPointMismatch",
	ErrOrphanBlock:              "ErrOrphanBlock",
	ErrReorgBudgetExceeded:      "ErrReorgBudgetExceeded",
}

func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(e))
}

// RuleError identifies a rule violation encountered while validating a
// block or transaction against consensus rules.
type RuleError struct {
	ErrorCode   ErrorCode
	Description string
}

func (e RuleError) Error() string {
	return e.Description
}

func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// IsRuleError reports whether err is a RuleError carrying the given
// code, unwrapping every level of github.com/pkg/errors wrapping.
func IsRuleError(err error, code ErrorCode) bool {
	cause := errorsCause(err)
	re, ok := cause.(RuleError)
	return ok && re.ErrorCode == code
}

type causer interface {
	Cause() error
}

func errorsCause(err error) error {
	for {
		c, ok := err.(causer)
		if !ok {
			return err
		}
		cause := c.Cause()
		if cause == nil {
			return err
		}
		err = cause
	}
}
