// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
var (
	ErrNotFound                 = errors.New("resource not found")
	ErrInvalidInput             = errors.New("invalid input provided")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrUnknownUser              = errors.New("unknown user")
	ErrDuplicateUser            = errors.New("user already registered")
	ErrStorageUnavailable       = errors.New("storage unavailable")
	ErrCorruptBalanceData       = errors.New("corrupt balance data")
	ErrConcurrentUpdateConflict = errors.New("concurrent update conflict")
)

// IsError checks whether err wraps the given sentinel error.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
