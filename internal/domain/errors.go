package domain

import "errors"

// Sentinel errors for the failure taxonomy. All are recoverable by the
// caller; handlers translate them to HTTP statuses with errors.Is.
var (
	// ErrInvalidInput reports malformed or out-of-range request data.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound reports a referenced entity that is absent or does not
	// belong to the referenced parent.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists reports a uniqueness conflict (duplicate username).
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidState reports an operation that is illegal for the entity's
	// current lifecycle state.
	ErrInvalidState = errors.New("invalid state")
	// ErrInsufficientFunds reports a debit larger than the account balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrForbidden reports a privileged operation attempted without the
	// admin capability.
	ErrForbidden = errors.New("forbidden")
	// ErrUnavailable reports an unexpected persistence or coordination
	// failure. It is safe to retry and must not be read as a business
	// rejection.
	ErrUnavailable = errors.New("unavailable")
	// ErrLockHeld reports a coordination lock already held by another party.
	ErrLockHeld = errors.New("lock already held")
)
