package access

import (
	"errors"
	"fmt"
)

// Orchestrator errors. Denial is not among them: an access decision of
// "no" is normal control flow and travels in the response, not as an
// error.
var (
	// ErrNotFound indicates the catalog has no record for the requested
	// dataset.
	ErrNotFound = errors.New("dataset not found")

	// ErrInvalidArgument indicates a malformed request, including a
	// signature that fails verification.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDownstreamTimeout indicates a catalog, policy or broker call that
	// exceeded its timeout.
	ErrDownstreamTimeout = errors.New("downstream call timed out")

	// ErrDownstreamFailure indicates a failed catalog, policy or broker
	// call.
	ErrDownstreamFailure = errors.New("downstream call failed")

	// ErrSigningFailure indicates unusable key material or a failed
	// signing operation.
	ErrSigningFailure = errors.New("metadata signing failed")
)

// AccessError carries the operation and dataset path alongside the
// underlying error.
type AccessError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *AccessError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *AccessError) Unwrap() error {
	return e.Err
}

func opErr(op, path string, err error) error {
	return &AccessError{Op: op, Path: path, Err: err}
}
