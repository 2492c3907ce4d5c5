package metadata

import "errors"

// Metadata errors.
var (
	// ErrInvalidMetadata indicates malformed or incomplete submitted metadata.
	ErrInvalidMetadata = errors.New("invalid dataset metadata")

	// ErrKeyMaterial indicates unusable signing key material at load time.
	ErrKeyMaterial = errors.New("unusable key material")

	// ErrSigningFailure indicates a failure while producing a signature.
	ErrSigningFailure = errors.New("metadata signing failed")

	// ErrSignatureMismatch indicates a signature that does not verify
	// against the presented payload.
	ErrSignatureMismatch = errors.New("metadata signature mismatch")
)
