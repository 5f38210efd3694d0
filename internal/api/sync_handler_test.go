package api_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satpugnet/shopify-visiontags-ai/internal/api"
	"github.com/satpugnet/shopify-visiontags-ai/internal/service"
)

func syncRequestBody() map[string]any {
	return map[string]any{
		"item_ids":     []string{"gid://shopify/Product/1", "gid://shopify/Product/2"},
		"field_groups": []string{"fields", "labels"},
	}
}

func TestSyncEndpoint(t *testing.T) {
	t.Parallel()

	syncs := &fakeSyncService{result: &service.SyncResult{SyncedCount: 2}}
	handler := api.NewSyncHandler(syncs, newTestLogger())
	router := newTenantRouter(uuid.New(), func(r chi.Router) {
		r.Post("/api/sync", handler.Sync)
	})

	rec := doJSON(t, router, http.MethodPost, "/api/sync", syncRequestBody())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.SyncResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 2, resp.SyncedCount)
	assert.Zero(t, resp.FailedCount)
	assert.Empty(t, resp.ItemErrors)
}

func TestSyncEndpointPartialFailureIsOK(t *testing.T) {
	t.Parallel()

	// Per-item failures are reported in the body, not as an error status.
	syncs := &fakeSyncService{result: &service.SyncResult{
		SyncedCount: 1,
		FailedCount: 1,
		ItemErrors:  map[string]string{"gid://shopify/Product/2": "catalog write failed: fields"},
	}}
	handler := api.NewSyncHandler(syncs, newTestLogger())
	router := newTenantRouter(uuid.New(), func(r chi.Router) {
		r.Post("/api/sync", handler.Sync)
	})

	rec := doJSON(t, router, http.MethodPost, "/api/sync", syncRequestBody())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.SyncResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 1, resp.SyncedCount)
	assert.Equal(t, 1, resp.FailedCount)
	assert.Contains(t, resp.ItemErrors["gid://shopify/Product/2"], "fields")
}

func TestSyncEndpointValidation(t *testing.T) {
	t.Parallel()

	handler := api.NewSyncHandler(&fakeSyncService{}, newTestLogger())
	router := newTenantRouter(uuid.New(), func(r chi.Router) {
		r.Post("/api/sync", handler.Sync)
	})

	tests := []struct {
		name string
		body map[string]any
	}{
		{"no item ids", map[string]any{"item_ids": []string{}, "field_groups": []string{"fields"}}},
		{"no field groups", map[string]any{"item_ids": []string{"gid://shopify/Product/1"}, "field_groups": []string{}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := doJSON(t, router, http.MethodPost, "/api/sync", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSyncEndpointUnknownFieldGroup(t *testing.T) {
	t.Parallel()

	syncs := &fakeSyncService{err: service.ErrUnknownFieldGroup}
	handler := api.NewSyncHandler(syncs, newTestLogger())
	router := newTenantRouter(uuid.New(), func(r chi.Router) {
		r.Post("/api/sync", handler.Sync)
	})

	rec := doJSON(t, router, http.MethodPost, "/api/sync", syncRequestBody())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncEndpointWithoutTenant(t *testing.T) {
	t.Parallel()

	handler := api.NewSyncHandler(&fakeSyncService{}, newTestLogger())
	router := chi.NewRouter()
	router.Post("/api/sync", handler.Sync)

	rec := doJSON(t, router, http.MethodPost, "/api/sync", syncRequestBody())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
