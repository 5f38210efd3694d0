package analysis

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy for analyzer failures. Classification happens once, at this
// boundary: callers branch only on IsTransient and never re-inspect the
// underlying cause.
var (
	// ErrTransient marks failures that may resolve on retry: timeouts,
	// rate limiting, analyzer unavailability. Specific transient errors
	// wrap it.
	ErrTransient = errors.New("transient analyzer failure")

	// ErrRateLimited is returned when the analyzer rejects the call for
	// quota or throughput reasons.
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrTransient)

	// ErrUnavailable is returned for analyzer-side 5xx-class failures.
	ErrUnavailable = fmt.Errorf("%w: service unavailable", ErrTransient)

	// ErrInvalidResponse is returned when the model output cannot be parsed
	// into a suggestion. Terminal: retrying the same input will not help.
	ErrInvalidResponse = errors.New("invalid response from analyzer")

	// ErrContentBlocked is returned when the model refuses the input, for
	// example due to safety filters. Terminal.
	ErrContentBlocked = errors.New("content blocked by analyzer safety filters")

	// ErrImageRejected is returned when the analyzer cannot use the image
	// reference (unreadable, unsupported, 4xx-class). Terminal.
	ErrImageRejected = errors.New("image rejected by analyzer")

	// ErrInvalidConfig is returned when the analyzer configuration is
	// invalid.
	ErrInvalidConfig = errors.New("invalid analyzer configuration")
)

// IsTransient reports whether the failure may resolve on retry.
// Timeouts count as transient even when they surface as context errors.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}
