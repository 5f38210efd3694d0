package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidTransition is returned when a status change would violate
	// the entity's lifecycle (e.g., moving an item back to pending).
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnknownPlan is returned when a plan tier identifier does not map
	// to any known plan definition.
	ErrUnknownPlan = errors.New("unknown plan tier")
)
