package domain

import "errors"

// Storage-level sentinels classifying contention. Services map both to a
// retryable concurrency conflict.
var (
	// ErrLockNotAvailable is returned when a row lock cannot be acquired in time,
	// or the store aborted the unit because of a deadlock or serialization failure.
	ErrLockNotAvailable = errors.New("lock not available")
	// ErrStaleWallet is returned when a wallet write loses its version check.
	ErrStaleWallet = errors.New("wallet version is stale")
)

// IsContention reports whether err is a retryable contention failure.
func IsContention(err error) bool {
	return errors.Is(err, ErrLockNotAvailable) || errors.Is(err, ErrStaleWallet)
}
