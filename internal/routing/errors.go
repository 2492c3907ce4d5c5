package routing

import "errors"

// Routing errors.
var (
	// ErrNoRouteFound indicates that no routing rule matched. Policy
	// authors are expected to place a catch-all rule last; hitting this
	// error in production is a routing policy misconfiguration, not a
	// client fault.
	ErrNoRouteFound = errors.New("no route found")

	// ErrEmptyPath indicates a locator without a dataset path.
	ErrEmptyPath = errors.New("dataset path is empty")

	// ErrUnknownEnumValue indicates a valuation or state outside the known sets.
	ErrUnknownEnumValue = errors.New("unknown enum value")

	// ErrEmptyTable indicates a routing table document without any rules.
	ErrEmptyTable = errors.New("routing table is empty")
)
