package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satpugnet/shopify-visiontags-ai/internal/api/middleware"
	"github.com/satpugnet/shopify-visiontags-ai/internal/api/shared"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
)

// fakeResolver maps shop domains to tenants.
type fakeResolver struct {
	tenants map[string]*domain.Tenant
	err     error
}

func (f *fakeResolver) GetByShopDomain(ctx context.Context, shopDomain string) (*domain.Tenant, error) {
	if f.err != nil {
		return nil, f.err
	}
	tenant, ok := f.tenants[shopDomain]
	if !ok {
		return nil, store.ErrTenantNotFound
	}
	return tenant, nil
}

func TestTenantMiddleware(t *testing.T) {
	t.Parallel()

	tenant, err := domain.NewTenant("example.myshopify.com")
	require.NoError(t, err)
	resolver := &fakeResolver{tenants: map[string]*domain.Tenant{tenant.ShopDomain: tenant}}

	var seenTenantID uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTenantID, _ = r.Context().Value(shared.TenantIDContextKey).(uuid.UUID)
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware.TenantMiddleware(resolver)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set(middleware.ShopDomainHeader, tenant.ShopDomain)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tenant.ID, seenTenantID)
}

func TestTenantMiddlewareMissingHeader(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{}
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})
	handler := middleware.TenantMiddleware(resolver)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing shop domain")
	assert.False(t, reached)
}

func TestTenantMiddlewareUnknownShop(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{tenants: map[string]*domain.Tenant{}}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached for an unknown shop")
	})
	handler := middleware.TenantMiddleware(resolver)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set(middleware.ShopDomainHeader, "stranger.myshopify.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unknown shop")
}

func TestTenantMiddlewareResolverFailure(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{err: errors.New("connection refused")}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached when resolution fails")
	})
	handler := middleware.TenantMiddleware(resolver)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set(middleware.ShopDomainHeader, "example.myshopify.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
