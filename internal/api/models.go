package api

import (
	"time"

	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/service"
)

// ScanProduct is one product in a scan request.
type ScanProduct struct {
	ID         string            `json:"id"         validate:"required"`
	Title      string            `json:"title"`
	ImageRef   string            `json:"image_ref"  validate:"required,url"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ScanRequest is the request body for starting a scan.
type ScanRequest struct {
	Products []ScanProduct `json:"products" validate:"required,min=1,dive"`
}

// JobResponse is the API representation of a job.
type JobResponse struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	TotalItems int       `json:"total_items"`
	Processed  int       `json:"processed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewJobResponse converts a domain job to its API representation.
func NewJobResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:         job.ID.String(),
		Status:     string(job.Status),
		TotalItems: job.TotalItems,
		Processed:  job.Processed,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	}
}

// JobListResponse is the response body for listing jobs.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ItemResponse is the API representation of an item.
type ItemResponse struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Status          string            `json:"status"`
	SuggestedFields map[string]string `json:"suggested_fields,omitempty"`
	SuggestedLabels []string          `json:"suggested_labels,omitempty"`
	SyncedAt        *time.Time        `json:"synced_at,omitempty"`
	LastError       string            `json:"last_error,omitempty"`
}

// NewItemResponse converts a domain item to its API representation.
func NewItemResponse(item *domain.Item) ItemResponse {
	return ItemResponse{
		ID:              item.ID,
		Title:           item.Title,
		Status:          string(item.Status),
		SuggestedFields: item.SuggestedFields,
		SuggestedLabels: item.SuggestedLabels,
		SyncedAt:        item.SyncedAt,
		LastError:       item.LastError,
	}
}

// JobItemsResponse is the response body for listing a job's items.
type JobItemsResponse struct {
	Job   JobResponse    `json:"job"`
	Items []ItemResponse `json:"items"`
}

// SyncRequest is the request body for syncing suggestions.
type SyncRequest struct {
	ItemIDs     []string `json:"item_ids"     validate:"required,min=1"`
	FieldGroups []string `json:"field_groups" validate:"required,min=1"`
}

// SyncResponse is the response body for a sync run.
type SyncResponse struct {
	SyncedCount  int               `json:"synced_count"`
	FailedCount  int               `json:"failed_count"`
	SkippedCount int               `json:"skipped_count"`
	ItemErrors   map[string]string `json:"item_errors,omitempty"`
}

// NewSyncResponse converts a sync result to its API representation.
func NewSyncResponse(result *service.SyncResult) SyncResponse {
	return SyncResponse{
		SyncedCount:  result.SyncedCount,
		FailedCount:  result.FailedCount,
		SkippedCount: result.SkippedCount,
		ItemErrors:   result.ItemErrors,
	}
}

// LedgerResponse is the API representation of a tenant's credit state.
type LedgerResponse struct {
	PlanTier           string    `json:"plan_tier"`
	CreditsUsed        int       `json:"credits_used"`
	CreditLimit        int       `json:"credit_limit"`
	Remaining          int       `json:"remaining"`
	OverageEnabled     bool      `json:"overage_enabled"`
	OverageUnitsUsed   int       `json:"overage_units_used"`
	OverageUnitsBudget int       `json:"overage_units_budget"`
	RecordedUnits      int       `json:"recorded_units"`
	BillingPeriodStart time.Time `json:"billing_period_start"`
}

// NewLedgerResponse converts a domain ledger to its API representation.
// recordedUnits is the sum of the period's usage records, reported alongside
// the counter so drift between the two is visible to operators.
func NewLedgerResponse(ledger *domain.CreditLedger, recordedUnits int) LedgerResponse {
	return LedgerResponse{
		PlanTier:           string(ledger.PlanTier),
		CreditsUsed:        ledger.CreditsUsed,
		CreditLimit:        ledger.CreditLimit,
		Remaining:          ledger.Remaining(),
		OverageEnabled:     ledger.OverageEnabled,
		OverageUnitsUsed:   ledger.OverageUnitsUsed(),
		OverageUnitsBudget: ledger.OverageUnitsBudget(),
		RecordedUnits:      recordedUnits,
		BillingPeriodStart: ledger.BillingPeriodStart,
	}
}

// SettingsRequest is the request body for updating tenant settings.
type SettingsRequest struct {
	AutoTagNewProducts bool `json:"auto_tag_new_products"`
}

// TenantResponse is the API representation of a tenant.
type TenantResponse struct {
	ID                 string `json:"id"`
	ShopDomain         string `json:"shop_domain"`
	AutoTagNewProducts bool   `json:"auto_tag_new_products"`
}

// NewTenantResponse converts a domain tenant to its API representation.
func NewTenantResponse(tenant *domain.Tenant) TenantResponse {
	return TenantResponse{
		ID:                 tenant.ID.String(),
		ShopDomain:         tenant.ShopDomain,
		AutoTagNewProducts: tenant.AutoTagNewProducts,
	}
}

// InstallRequest is the request body for installing a shop.
type InstallRequest struct {
	ShopDomain string `json:"shop_domain" validate:"required,hostname"`
}

// ProductWebhookPayload is the body of a product created webhook.
type ProductWebhookPayload struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	ImageRef   string            `json:"image_ref"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SubscriptionWebhookPayload is the body of a subscription updated webhook.
type SubscriptionWebhookPayload struct {
	PlanTier string `json:"plan_tier" validate:"required"`
}
