package policy

import "errors"

// Policy client errors.
var (
	// ErrMissingURL indicates that no policy service URL was configured.
	ErrMissingURL = errors.New("policy service URL is required")

	// ErrUnavailable indicates that the access-check call failed.
	ErrUnavailable = errors.New("policy service unavailable")

	// ErrTimeout indicates that the access-check call exceeded its timeout.
	ErrTimeout = errors.New("policy service timeout")
)
