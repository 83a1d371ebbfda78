package kanban

import "errors"

var (
	// ErrConcurrencyViolation is returned when a promotion would produce a
	// second in_progress task.
	ErrConcurrencyViolation = errors.New("kanban: another task is in progress")

	// ErrInvalidTransition is returned for stage moves the state machine does
	// not allow.
	ErrInvalidTransition = errors.New("kanban: invalid stage transition")

	// ErrRetriesExhausted is returned by Requeue when the task was rejected
	// instead.
	ErrRetriesExhausted = errors.New("kanban: retries exhausted")

	// ErrStaleLockRecovered is recorded on tasks forcibly released by
	// RecoverStale.
	ErrStaleLockRecovered = errors.New("kanban: stale lock recovered")
)
