package engine

import "errors"

var (
	// ErrNotReady means an operation requires a prior committed snapshot
	// (e.g. Refresh before any successful computation).
	ErrNotReady = errors.New("engine has no committed snapshot")

	// ErrTimeout means the bounded wait on exposure fetch or computation
	// was exceeded. Retryable.
	ErrTimeout = errors.New("operation timed out")

	// ErrPersistence means the store could not durably commit after the
	// engine's bounded retries.
	ErrPersistence = errors.New("persistence failure")

	// ErrOutOfOrder means an exposure sample predates the last committed
	// snapshot. The engine rejects such samples so trend analysis never
	// sees out-of-order data.
	ErrOutOfOrder = errors.New("exposure sample predates committed history")

	// ErrClosed means the engine was shut down.
	ErrClosed = errors.New("engine closed")
)
