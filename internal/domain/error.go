package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrConflict         = errors.New("illegal state transition")
	ErrRateLimited      = errors.New("send quota exhausted")
	ErrCooldownExceeded = errors.New("account cooldown in effect")
	ErrLockNotAcquired  = errors.New("could not acquire session lock")

	// Delivery errors. ErrDeliveryFailed is transient and absorbed by the
	// queue worker's retry cycle; ErrDeliveryExhausted is terminal.
	ErrDeliveryFailed    = errors.New("delivery attempt failed")
	ErrDeliveryExhausted = errors.New("delivery retries exhausted")

	// Infrastructure errors
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
