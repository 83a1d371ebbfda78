package investigator

import "errors"

var (
	// ErrProviderUnavailable marks a transient provider error worth retrying.
	// Providers wrap it; it never leaves this package unwrapped.
	ErrProviderUnavailable = errors.New("investigator: provider unavailable")

	// ErrInvestigatorFailure is returned when an investigator gives up, after
	// retries are exhausted or on a non-transient provider error.
	ErrInvestigatorFailure = errors.New("investigator: failure")

	// ErrInsufficientSources is returned by Pool.Run when the combined findings
	// fall below the minimum viable count.
	ErrInsufficientSources = errors.New("investigator: insufficient sources")
)
