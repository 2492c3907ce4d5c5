// Package auth recovers the caller identity from inbound bearer tokens.
// Signature verification happens at the upstream gateway; this package
// only decodes claims and extracts the user name.
package auth
