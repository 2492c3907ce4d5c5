package access

// ReadRequest asks where a dataset lives and for a read credential.
type ReadRequest struct {
	// UserID is the authenticated caller identity.
	UserID string

	// Bearer is the caller's raw bearer credential, forwarded to
	// downstream collaborators unmodified.
	Bearer string

	// Path is the logical dataset path.
	Path string

	// Version selects a dataset snapshot as epoch milliseconds, zero
	// meaning latest.
	Version int64
}

// ReadResponse is the outcome of a read-access request. Token fields are
// populated only when AccessAllowed is true.
type ReadResponse struct {
	AccessAllowed   bool
	ParentURI       string
	Version         int64
	Token           string
	ExpiresAtMillis int64
}

// WriteRequest asks for a write location, a signed metadata envelope and
// a write credential for caller-submitted, not-yet-trusted metadata.
type WriteRequest struct {
	UserID string
	Bearer string

	// MetadataJSON is the submitted dataset metadata, untrusted until the
	// policy check passes.
	MetadataJSON []byte
}

// WriteResponse is the outcome of a write-access request. On allow it
// carries two signed envelopes: the caller-shaped metadata with createdBy
// overwritten, and the extended form that adds the resolved parent URI
// and a random nonce.
type WriteResponse struct {
	AccessAllowed bool
	ParentURI     string

	ValidMetadataJSON []byte
	MetadataSignature []byte

	AllValidMetadataJSON []byte
	AllMetadataSignature []byte

	Token           string
	ExpiresAtMillis int64
}

// WriteAccessTokenRequest exchanges a previously issued signed envelope
// for a fresh write credential.
type WriteAccessTokenRequest struct {
	UserID string
	Bearer string

	MetadataJSON []byte
	Signature    []byte
}

// WriteAccessTokenResponse carries the minted write credential.
type WriteAccessTokenResponse struct {
	Token           string
	ExpiresAtMillis int64
	ParentURI       string
}

// DeleteRequest asks whether the caller may delete a dataset and for the
// credential to do so. The service itself never deletes anything.
type DeleteRequest struct {
	UserID  string
	Bearer  string
	Path    string
	Version int64
}

// DeleteResponse is the outcome of a delete-access request.
type DeleteResponse struct {
	AccessAllowed   bool
	ParentURI       string
	Version         int64
	Token           string
	ExpiresAtMillis int64
}
