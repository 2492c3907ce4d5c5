package broker

import "errors"

// Broker errors.
var (
	// ErrUnknownProvider indicates an unrecognized broker provider string.
	ErrUnknownProvider = errors.New("unknown credential broker provider")

	// ErrInvalidParentURI indicates a parent URI that cannot be parsed.
	ErrInvalidParentURI = errors.New("invalid parent URI")

	// ErrMissingAuthRef indicates a matched route whose auth map has no
	// entry for the requested operation.
	ErrMissingAuthRef = errors.New("route has no auth reference for operation")

	// ErrMintFailure indicates that the credential provider failed to mint
	// a token.
	ErrMintFailure = errors.New("credential minting failed")
)
