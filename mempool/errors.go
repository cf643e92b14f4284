package mempool

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"
)

// ErrorCode identifies a kind of mempool admission rejection (spec.md
// §4.C9, §7 "Validation (bad signature, bad nonce, over-gas)"),
// mirroring package blockdag's RuleError/ErrorCode split so the same
// "typed code + human description" shape is used on both sides of
// block connection.
type ErrorCode int

const (
	ErrCodeInvalidSignature ErrorCode = iota
	ErrCodeInsufficientBalance
	ErrCodeInvalidNonce
	ErrCodeTooLarge
)

var errorCodeStrings = map[ErrorCode]string{
	ErrCodeInvalidSignature:    "ErrCodeInvalidSignature",
	ErrCodeInsufficientBalance: "ErrCodeInsufficientBalance",
	ErrCodeInvalidNonce:        "ErrCodeInvalidNonce",
	ErrCodeTooLarge:            "ErrCodeTooLarge",
}

func (c ErrorCode) String() string {
	if s, ok := errorCodeStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// ValidationError identifies a rejected transaction's rule violation.
type ValidationError struct {
	ErrorCode   ErrorCode
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("mempool rule error: %s: %s", e.ErrorCode, e.Description)
}

func validationError(c ErrorCode, desc string) ValidationError {
	return ValidationError{ErrorCode: c, Description: desc}
}

// IsValidationError reports whether err is a ValidationError carrying
// the given code.
func IsValidationError(err error, code ErrorCode) bool {
	cause := errors.Cause(err)
	ve, ok := cause.(ValidationError)
	return ok && ve.ErrorCode == code
}

// errInvalidSignature rejects a transaction whose signature does not
// verify against its own From key.
var errInvalidSignature = validationError(ErrCodeInvalidSignature, "signature does not verify")

// errInvalidNonce rejects a transaction whose nonce is behind the
// account's current nonce - it can never become valid by waiting, as
// opposed to a future nonce which is simply not yet ready.
var errInvalidNonce = validationError(ErrCodeInvalidNonce, "nonce is behind account nonce")

// errInsufficientBalance rejects a transaction the sender cannot
// possibly cover (spec.md S6: need = value + gas_limit*gas_price).
func errInsufficientBalance(need, have *big.Int) ValidationError {
	return validationError(ErrCodeInsufficientBalance, fmt.Sprintf("need=%s have=%s", need, have))
}

// errTooLarge rejects a transaction whose encoded size exceeds the
// pool's configured ceiling.
func errTooLarge(size, max int) ValidationError {
	return validationError(ErrCodeTooLarge, fmt.Sprintf("size=%d max=%d", size, max))
}
