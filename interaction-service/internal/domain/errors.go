package domain

import "errors"

var (
	// ErrNotFound is returned when the target does not exist.
	ErrNotFound = errors.New("target not found")
	// ErrToggleConflict is returned when every retry attempt hit contention.
	ErrToggleConflict = errors.New("toggle conflict: retries exhausted")
	// ErrStorageUnavailable wraps non-conflict storage failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrBroadcastFailure is logged when fan-out could not be queued or
	// delivered. It never reaches toggle callers.
	ErrBroadcastFailure = errors.New("broadcast failure")

	ErrInvalidKind     = errors.New("invalid interaction kind")
	ErrInvalidAction   = errors.New("invalid toggle action")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrSelfInteraction = errors.New("cannot apply this interaction to yourself")
	ErrBatchTooLarge   = errors.New("batch too large")
)
