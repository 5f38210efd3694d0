package api

import (
	"log/slog"
	"net/http"

	"github.com/satpugnet/shopify-visiontags-ai/internal/api/shared"
	"github.com/satpugnet/shopify-visiontags-ai/internal/service"
)

// SyncHandler holds the dependencies for the suggestion sync endpoint.
type SyncHandler struct {
	syncService service.SyncService
	logger      *slog.Logger
}

// NewSyncHandler creates a new SyncHandler with the given dependencies.
func NewSyncHandler(syncService service.SyncService, logger *slog.Logger) *SyncHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &SyncHandler{
		syncService: syncService,
		logger:      logger.With(slog.String("component", "sync_handler")),
	}
}

// Sync handles POST /api/sync
// It writes the selected field groups of the given items back to the
// catalog. The response always reports per-item outcomes; partial failure is
// a 200 with failed counts, not an error status.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	var req SyncRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	result, err := h.syncService.Sync(r.Context(), tenantID, req.ItemIDs, req.FieldGroups)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewSyncResponse(result))
}
