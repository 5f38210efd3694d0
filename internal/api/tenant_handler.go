package api

import (
	"log/slog"
	"net/http"

	"github.com/satpugnet/shopify-visiontags-ai/internal/api/shared"
	"github.com/satpugnet/shopify-visiontags-ai/internal/ledger"
	"github.com/satpugnet/shopify-visiontags-ai/internal/service"
)

// TenantHandler holds the dependencies for tenant install, settings, and
// credit endpoints.
type TenantHandler struct {
	tenantService service.TenantService
	creditService ledger.Service
	logger        *slog.Logger
}

// NewTenantHandler creates a new TenantHandler with the given dependencies.
func NewTenantHandler(
	tenantService service.TenantService,
	creditService ledger.Service,
	logger *slog.Logger,
) *TenantHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &TenantHandler{
		tenantService: tenantService,
		creditService: creditService,
		logger:        logger.With(slog.String("component", "tenant_handler")),
	}
}

// Install handles POST /api/install
// It provisions a tenant and its free-plan ledger for a new shop. This
// endpoint is outside the tenant middleware, since the tenant does not exist
// yet.
func (h *TenantHandler) Install(w http.ResponseWriter, r *http.Request) {
	var req InstallRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	tenant, err := h.tenantService.Install(r.Context(), req.ShopDomain)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, NewTenantResponse(tenant))
}

// GetCredits handles GET /api/credits
// It returns the tenant's credit ledger state for the plan usage screen.
func (h *TenantHandler) GetCredits(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	ledgerState, err := h.creditService.GetLedger(r.Context(), tenantID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	recorded, err := h.creditService.RecordedUsage(r.Context(), tenantID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewLedgerResponse(ledgerState, recorded))
}

// UpdateSettings handles PUT /api/settings
// It toggles auto-tagging of newly created products.
func (h *TenantHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	var req SettingsRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.tenantService.SetAutoTagging(r.Context(), tenantID, req.AutoTagNewProducts); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]bool{
		"auto_tag_new_products": req.AutoTagNewProducts,
	})
}
