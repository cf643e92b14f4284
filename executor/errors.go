package executor

import "github.com/pkg/errors"

// Error sentinels matching spec.md §4.C12's error enum.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidNonce        = errors.New("invalid nonce")
	ErrOutOfGas            = errors.New("out of gas")
)
