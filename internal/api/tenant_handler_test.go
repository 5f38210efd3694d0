package api_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satpugnet/shopify-visiontags-ai/internal/api"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/ledger"
	"github.com/satpugnet/shopify-visiontags-ai/internal/service"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
)

func TestInstallEndpoint(t *testing.T) {
	t.Parallel()

	tenant, err := domain.NewTenant("example.myshopify.com")
	require.NoError(t, err)

	handler := api.NewTenantHandler(&fakeTenantService{tenant: tenant}, &fakeCreditService{}, newTestLogger())
	router := chi.NewRouter()
	router.Post("/api/install", handler.Install)

	rec := doJSON(t, router, http.MethodPost, "/api/install", map[string]any{
		"shop_domain": "example.myshopify.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp api.TenantResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, tenant.ID.String(), resp.ID)
	assert.Equal(t, "example.myshopify.com", resp.ShopDomain)
	assert.False(t, resp.AutoTagNewProducts)
}

func TestInstallEndpointValidation(t *testing.T) {
	t.Parallel()

	handler := api.NewTenantHandler(&fakeTenantService{}, &fakeCreditService{}, newTestLogger())
	router := chi.NewRouter()
	router.Post("/api/install", handler.Install)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing shop domain", map[string]any{}},
		{"not a hostname", map[string]any{"shop_domain": "not a hostname!"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := doJSON(t, router, http.MethodPost, "/api/install", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestInstallEndpointDuplicateShop(t *testing.T) {
	t.Parallel()

	handler := api.NewTenantHandler(&fakeTenantService{installErr: store.ErrDuplicate}, &fakeCreditService{}, newTestLogger())
	router := chi.NewRouter()
	router.Post("/api/install", handler.Install)

	rec := doJSON(t, router, http.MethodPost, "/api/install", map[string]any{
		"shop_domain": "example.myshopify.com",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetCreditsEndpoint(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	plan, err := domain.PlanByTier(domain.PlanPro)
	require.NoError(t, err)
	ledgerState, err := domain.NewCreditLedger(tenantID, plan)
	require.NoError(t, err)
	ledgerState.CreditsUsed = 2015

	handler := api.NewTenantHandler(&fakeTenantService{}, &fakeCreditService{ledger: ledgerState, recordedUnits: 2015}, newTestLogger())
	router := newTenantRouter(tenantID, func(r chi.Router) {
		r.Get("/api/credits", handler.GetCredits)
	})

	rec := doJSON(t, router, http.MethodGet, "/api/credits", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.LedgerResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, string(domain.PlanPro), resp.PlanTier)
	assert.Equal(t, 2015, resp.CreditsUsed)
	assert.Equal(t, 2000, resp.CreditLimit)
	assert.Equal(t, 0, resp.Remaining)
	assert.True(t, resp.OverageEnabled)
	assert.Equal(t, 15, resp.OverageUnitsUsed)
	assert.Equal(t, 5000, resp.OverageUnitsBudget)
	assert.Equal(t, 2015, resp.RecordedUnits)
}

func TestGetCreditsEndpointNotFound(t *testing.T) {
	t.Parallel()

	handler := api.NewTenantHandler(&fakeTenantService{}, &fakeCreditService{err: ledger.ErrLedgerNotFound}, newTestLogger())
	router := newTenantRouter(uuid.New(), func(r chi.Router) {
		r.Get("/api/credits", handler.GetCredits)
	})

	rec := doJSON(t, router, http.MethodGet, "/api/credits", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateSettingsEndpoint(t *testing.T) {
	t.Parallel()

	handler := api.NewTenantHandler(&fakeTenantService{}, &fakeCreditService{}, newTestLogger())
	router := newTenantRouter(uuid.New(), func(r chi.Router) {
		r.Put("/api/settings", handler.UpdateSettings)
	})

	rec := doJSON(t, router, http.MethodPut, "/api/settings", map[string]any{
		"auto_tag_new_products": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	decodeBody(t, rec, &resp)
	assert.True(t, resp["auto_tag_new_products"])
}

func TestUpdateSettingsEndpointPlanNotIncluded(t *testing.T) {
	t.Parallel()

	handler := api.NewTenantHandler(&fakeTenantService{settingErr: service.ErrAutoTagNotIncluded}, &fakeCreditService{}, newTestLogger())
	router := newTenantRouter(uuid.New(), func(r chi.Router) {
		r.Put("/api/settings", handler.UpdateSettings)
	})

	rec := doJSON(t, router, http.MethodPut, "/api/settings", map[string]any{
		"auto_tag_new_products": true,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	var resp struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "Your plan does not include auto-tagging", resp.Error)
}
