// Package access orchestrates dataset access decisions. It combines the
// catalog lookup, the policy check, route resolution, metadata signing
// and credential minting into sequential per-request flows. A denied
// decision is a normal response, not an error; everything else that can
// go wrong terminates the request.
package access
