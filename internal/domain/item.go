package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ItemStatus represents the lifecycle state of an item.
// It is deliberately a distinct type from JobStatus so the two cannot be
// cross-assigned.
type ItemStatus string

// Possible item status values.
//
// The only legal transitions are pending->analyzed, pending->error, and
// analyzed->synced. An item never goes back to pending.
const (
	ItemStatusPending  ItemStatus = "pending"
	ItemStatusAnalyzed ItemStatus = "analyzed"
	ItemStatusError    ItemStatus = "error"
	ItemStatusSynced   ItemStatus = "synced"
)

// Common validation errors for Item
var (
	ErrEmptyItemID        = errors.New("item ID cannot be empty")
	ErrEmptyItemJobID     = errors.New("item job ID cannot be empty")
	ErrEmptyItemImageRef  = errors.New("item source image ref cannot be empty")
	ErrInvalidItemStatus  = errors.New("invalid item status")
)

// Item represents one product image within a job, analyzed and synced
// independently of its siblings.
//
// ID is the product's identifier in the external catalog (a Shopify GID such
// as "gid://shopify/Product/123"). It is stable and globally unique but may
// contain characters that are illegal in queue task identifiers; see
// task.SanitizeID for how it is folded into task IDs.
type Item struct {
	ID                string            `json:"id"`
	JobID             uuid.UUID         `json:"job_id"`
	TenantID          uuid.UUID         `json:"tenant_id"`
	Title             string            `json:"title"`
	SourceImageRef    string            `json:"source_image_ref"`
	CurrentAttributes map[string]string `json:"current_attributes,omitempty"`

	Status          ItemStatus        `json:"status"`
	SuggestedFields map[string]string `json:"suggested_fields,omitempty"`
	SuggestedLabels []string          `json:"suggested_labels,omitempty"`

	SyncedAt  *time.Time `json:"synced_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewItem creates a pending Item belonging to the given job.
// Returns an error if validation fails.
func NewItem(id string, jobID, tenantID uuid.UUID, title, sourceImageRef string, currentAttributes map[string]string) (*Item, error) {
	now := time.Now().UTC()
	item := &Item{
		ID:                id,
		JobID:             jobID,
		TenantID:          tenantID,
		Title:             title,
		SourceImageRef:    sourceImageRef,
		CurrentAttributes: currentAttributes,
		Status:            ItemStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks if the Item has valid data.
func (i *Item) Validate() error {
	if i.ID == "" {
		return ErrEmptyItemID
	}

	if i.JobID == uuid.Nil {
		return ErrEmptyItemJobID
	}

	if i.SourceImageRef == "" {
		return ErrEmptyItemImageRef
	}

	if !isValidItemStatus(i.Status) {
		return ErrInvalidItemStatus
	}

	return nil
}

// MarkAnalyzed records the analyzer's suggestions and settles the item as
// analyzed. Only legal from pending.
func (i *Item) MarkAnalyzed(fields map[string]string, labels []string) error {
	if i.Status != ItemStatusPending {
		return ErrInvalidTransition
	}

	i.Status = ItemStatusAnalyzed
	i.SuggestedFields = fields
	i.SuggestedLabels = labels
	i.LastError = ""
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkError settles the item with a terminal failure reason.
// Only legal from pending.
func (i *Item) MarkError(reason string) error {
	if i.Status != ItemStatusPending {
		return ErrInvalidTransition
	}

	i.Status = ItemStatusError
	i.LastError = reason
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkSynced records that every selected suggestion was written back to the
// external catalog. Only legal from analyzed.
func (i *Item) MarkSynced() error {
	if i.Status != ItemStatusAnalyzed {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	i.Status = ItemStatusSynced
	i.SyncedAt = &now
	i.LastError = ""
	i.UpdatedAt = now
	return nil
}

// RecordSyncFailure keeps the item analyzed but notes why the last sync
// attempt failed, leaving it eligible for a future retry.
func (i *Item) RecordSyncFailure(reason string) error {
	if i.Status != ItemStatusAnalyzed {
		return ErrInvalidTransition
	}

	i.LastError = reason
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidItemStatus checks if the given status is a valid ItemStatus.
func isValidItemStatus(status ItemStatus) bool {
	switch status {
	case ItemStatusPending, ItemStatusAnalyzed, ItemStatusError, ItemStatusSynced:
		return true
	default:
		return false
	}
}
