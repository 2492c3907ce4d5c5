// Package metadata implements the metadata integrity subsystem: canonical
// serialization of dataset metadata and detached asymmetric signing.
//
// The service signs the canonical JSON of metadata it has vetted on the
// write path; downstream storage writers verify the signature with the
// corresponding public key and can then trust the metadata without
// re-querying authorization. The signature covers the exact byte sequence
// of the canonical serialization.
package metadata
