package history

import "errors"

// Error taxonomy. Callers match with errors.Is; every returned error wraps
// one of these when it belongs to a known class.
var (
	// ErrInvalidInput marks a bad object name or timestamp. Fatal to the
	// request that carried it.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a missing record or snapshot.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied marks a failed capability check.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrHostOperationFailed marks a failure reported by the host while
	// creating an object.
	ErrHostOperationFailed = errors.New("host operation failed")

	// ErrRestoreFailed marks a restore that found no usable snapshot.
	ErrRestoreFailed = errors.New("restore failed")

	// ErrPartialFailure marks a multi-step operation that stopped halfway
	// and was left as-is.
	ErrPartialFailure = errors.New("partial failure")
)
