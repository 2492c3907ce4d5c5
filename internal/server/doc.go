// Package server exposes the DataAccessService HTTP API plus the health
// and metrics endpoints.
package server
