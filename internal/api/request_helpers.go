package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/satpugnet/shopify-visiontags-ai/internal/api/shared"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
)

// getTenantIDFromContext extracts the resolved tenant's UUID from the
// request context. The tenant ID is placed in the context by
// middleware.TenantMiddleware.
func getTenantIDFromContext(r *http.Request) (uuid.UUID, bool) {
	tenantID, ok := r.Context().Value(shared.TenantIDContextKey).(uuid.UUID)
	if !ok || tenantID == uuid.Nil {
		return uuid.Nil, false
	}
	return tenantID, true
}

// requireTenantID extracts the tenant ID or writes a 401 response.
func requireTenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tenantID, ok := getTenantIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Shop not resolved")
		return uuid.Nil, false
	}
	return tenantID, true
}

// getPathUUID extracts a UUID from the URL path parameters.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrInvalidID, paramName)
	}

	return id, nil
}
