package api

import (
	"log/slog"
	"net/http"

	"github.com/satpugnet/shopify-visiontags-ai/internal/api/shared"
	"github.com/satpugnet/shopify-visiontags-ai/internal/service"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
)

// ScanHandler holds the dependencies for scan and job endpoints.
type ScanHandler struct {
	scanService service.ScanService
	itemStore   store.ItemStore
	logger      *slog.Logger
}

// NewScanHandler creates a new ScanHandler with the given dependencies.
func NewScanHandler(
	scanService service.ScanService,
	itemStore store.ItemStore,
	logger *slog.Logger,
) *ScanHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ScanHandler{
		scanService: scanService,
		itemStore:   itemStore,
		logger:      logger.With(slog.String("component", "scan_handler")),
	}
}

// StartScan handles POST /api/scans
// It admits the batch against the tenant's credits and schedules analysis.
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	var req ScanRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	products := make([]service.ProductInput, 0, len(req.Products))
	for _, p := range req.Products {
		products = append(products, service.ProductInput{
			ID:                p.ID,
			Title:             p.Title,
			ImageRef:          p.ImageRef,
			CurrentAttributes: p.Attributes,
		})
	}

	job, err := h.scanService.StartScan(r.Context(), tenantID, products)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, NewJobResponse(job))
}

// GetJob handles GET /api/jobs/{id}
func (h *ScanHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	jobID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	job, err := h.scanService.GetJob(r.Context(), tenantID, jobID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewJobResponse(job))
}

// ListJobs handles GET /api/jobs
func (h *ScanHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	jobs, err := h.scanService.ListJobs(r.Context(), tenantID, 50)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, NewJobResponse(job))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetJobItems handles GET /api/jobs/{id}/items
// It returns the job with every item's status and suggestions, which is what
// the review screen renders.
func (h *ScanHandler) GetJobItems(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	jobID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	job, err := h.scanService.GetJob(r.Context(), tenantID, jobID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	items, err := h.itemStore.ListByJob(r.Context(), jobID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := JobItemsResponse{
		Job:   NewJobResponse(job),
		Items: make([]ItemResponse, 0, len(items)),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, NewItemResponse(item))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
