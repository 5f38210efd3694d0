package api

import (
	"errors"
	"net/http"

	"github.com/satpugnet/shopify-visiontags-ai/internal/api/shared"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/ledger"
	"github.com/satpugnet/shopify-visiontags-ai/internal/service"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
	"github.com/satpugnet/shopify-visiontags-ai/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Admission denials: the request is well-formed but the plan cannot
	// fund it.
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return http.StatusPaymentRequired

	// Feature not included in the tenant's plan
	case errors.Is(err, service.ErrAutoTagNotIncluded):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, ledger.ErrLedgerNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, ledger.ErrLedgerConflict):
		return http.StatusConflict

	// Backpressure: the queue cannot take more work right now
	case errors.Is(err, task.ErrQueueFull):
		return http.StatusTooManyRequests

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrUnknownPlan),
		errors.Is(err, service.ErrEmptyScan),
		errors.Is(err, service.ErrNoFieldGroups),
		errors.Is(err, service.ErrUnknownFieldGroup):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return "Not enough credits for this scan"

	case errors.Is(err, ledger.ErrLedgerConflict):
		return "Credits were modified concurrently, please retry"

	case errors.Is(err, service.ErrAutoTagNotIncluded):
		return "Your plan does not include auto-tagging"

	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, ledger.ErrLedgerNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.Is(err, task.ErrQueueFull):
		return "Too many scans in progress, please retry later"

	case errors.Is(err, service.ErrEmptyScan):
		return "Scan request contains no products"

	case errors.Is(err, service.ErrNoFieldGroups):
		return "Sync request selects no field groups"

	case errors.Is(err, service.ErrUnknownFieldGroup):
		return "Unknown field group"

	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError maps an error to a status code and safe message and writes
// the response. When overrideMessage is non-empty it replaces the derived
// message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, overrideMessage string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if overrideMessage != "" {
		message = overrideMessage
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
