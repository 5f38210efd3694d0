// Package service provides application-level services orchestrating scans,
// suggestion sync, and platform webhooks.
package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// Callers check these with errors.Is(); the API layer maps them to HTTP
// status codes.
var (
	// ErrEmptyScan indicates a scan request with no products.
	// API layer should map this to HTTP 400 Bad Request.
	ErrEmptyScan = errors.New("scan request contains no products")

	// ErrNoFieldGroups indicates a sync request that selects nothing.
	// API layer should map this to HTTP 400 Bad Request.
	ErrNoFieldGroups = errors.New("sync request selects no field groups")

	// ErrUnknownFieldGroup indicates a sync request naming a field group
	// that does not exist.
	// API layer should map this to HTTP 400 Bad Request.
	ErrUnknownFieldGroup = errors.New("unknown field group")
)
