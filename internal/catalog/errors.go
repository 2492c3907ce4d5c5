package catalog

import "errors"

// Catalog client errors.
var (
	// ErrMissingURL indicates that no catalog URL was configured.
	ErrMissingURL = errors.New("catalog URL is required")

	// ErrUnavailable indicates that the catalog call failed.
	ErrUnavailable = errors.New("catalog unavailable")

	// ErrTimeout indicates that the catalog call exceeded its timeout.
	ErrTimeout = errors.New("catalog timeout")
)
