package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/satpugnet/shopify-visiontags-ai/internal/catalog"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
)

// Field groups selectable in a sync request. Each group is written to the
// external catalog independently of the others.
const (
	// FieldGroupFields writes the suggested attribute fields.
	FieldGroupFields = "fields"

	// FieldGroupLabels writes the suggested labels.
	FieldGroupLabels = "labels"
)

// SyncResult summarizes one sync run. Every requested item is accounted for
// in exactly one of the three counts.
type SyncResult struct {
	// SyncedCount is the number of items whose selected groups all wrote
	// successfully.
	SyncedCount int `json:"synced_count"`

	// FailedCount is the number of items where at least one selected group
	// failed to write. Failed items stay analyzed and can be retried.
	FailedCount int `json:"failed_count"`

	// SkippedCount is the number of items that were not in the analyzed
	// state and were not touched.
	SkippedCount int `json:"skipped_count"`

	// ItemErrors maps a failed or skipped item's ID to the reason.
	ItemErrors map[string]string `json:"item_errors,omitempty"`
}

// SyncService writes approved suggestions back to the external catalog.
type SyncService interface {
	// Sync writes the selected field groups of the given items to the
	// external catalog. Items that are not analyzed are skipped. Each item
	// and each field group fails independently: one item's write failure
	// never aborts the run, and one group's failure never blocks another
	// group of the same item.
	//
	// An item transitions to synced only when every selected group wrote
	// successfully; otherwise it stays analyzed with the failure recorded,
	// eligible for a later retry.
	Sync(ctx context.Context, tenantID uuid.UUID, itemIDs []string, fieldGroups []string) (*SyncResult, error)
}

// syncServiceImpl implements the SyncService interface.
type syncServiceImpl struct {
	itemStore store.ItemStore
	catalog   catalog.Store
	logger    *slog.Logger
}

// NewSyncService creates a new SyncService.
// It returns an error if any of the required dependencies are nil.
func NewSyncService(
	itemStore store.ItemStore,
	catalogStore catalog.Store,
	logger *slog.Logger,
) (SyncService, error) {
	if itemStore == nil {
		return nil, errors.New("itemStore cannot be nil")
	}
	if catalogStore == nil {
		return nil, errors.New("catalogStore cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &syncServiceImpl{
		itemStore: itemStore,
		catalog:   catalogStore,
		logger:    logger.With(slog.String("component", "sync_service")),
	}, nil
}

// Sync implements SyncService.Sync
func (s *syncServiceImpl) Sync(ctx context.Context, tenantID uuid.UUID, itemIDs []string, fieldGroups []string) (*SyncResult, error) {
	if len(fieldGroups) == 0 {
		return nil, ErrNoFieldGroups
	}
	for _, group := range fieldGroups {
		if group != FieldGroupFields && group != FieldGroupLabels {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFieldGroup, group)
		}
	}

	result := &SyncResult{
		ItemErrors: map[string]string{},
	}

	for _, itemID := range itemIDs {
		s.syncItem(ctx, tenantID, itemID, fieldGroups, result)
	}

	s.logger.Info("sync run finished",
		slog.String("tenant_id", tenantID.String()),
		slog.Int("requested", len(itemIDs)),
		slog.Int("synced", result.SyncedCount),
		slog.Int("failed", result.FailedCount),
		slog.Int("skipped", result.SkippedCount))

	if len(result.ItemErrors) == 0 {
		result.ItemErrors = nil
	}
	return result, nil
}

// syncItem processes one item of a sync run, accounting for it in exactly
// one of the result's counts.
func (s *syncServiceImpl) syncItem(ctx context.Context, tenantID uuid.UUID, itemID string, fieldGroups []string, result *SyncResult) {
	item, err := s.itemStore.GetByID(ctx, itemID)
	if err != nil {
		result.SkippedCount++
		if errors.Is(err, store.ErrItemNotFound) {
			result.ItemErrors[itemID] = "item not found"
		} else {
			result.ItemErrors[itemID] = fmt.Sprintf("failed to load item: %v", err)
		}
		return
	}

	if item.TenantID != tenantID {
		result.SkippedCount++
		result.ItemErrors[itemID] = "item not found"
		return
	}

	if item.Status != domain.ItemStatusAnalyzed {
		result.SkippedCount++
		result.ItemErrors[itemID] = fmt.Sprintf("item is %s, not analyzed", item.Status)
		return
	}

	// Each selected group is attempted regardless of the others' outcomes,
	// so a tag write still lands when the field write failed.
	var failures []string
	for _, group := range fieldGroups {
		if err := s.writeGroup(ctx, item, group); err != nil {
			s.logger.Warn("field group write failed",
				slog.String("item_id", item.ID),
				slog.String("group", group),
				slog.String("error", err.Error()))
			failures = append(failures, fmt.Sprintf("%s: %v", group, err))
		}
	}

	if len(failures) == 0 {
		if err := s.itemStore.MarkSynced(ctx, item.ID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				// Another sync run settled the item between our read and
				// write. Its settlement stands.
				result.SyncedCount++
				return
			}
			result.FailedCount++
			result.ItemErrors[itemID] = fmt.Sprintf("catalog writes succeeded but item update failed: %v", err)
			return
		}
		result.SyncedCount++
		return
	}

	reason := strings.Join(failures, "; ")
	if err := s.itemStore.RecordSyncFailure(ctx, item.ID, reason); err != nil && !errors.Is(err, store.ErrConflict) {
		s.logger.Error("failed to record sync failure",
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()))
	}
	result.FailedCount++
	result.ItemErrors[itemID] = reason
}

// writeGroup writes one field group of one item to the external catalog.
func (s *syncServiceImpl) writeGroup(ctx context.Context, item *domain.Item, group string) error {
	switch group {
	case FieldGroupFields:
		return s.catalog.WriteFields(ctx, item.ID, item.SuggestedFields, item.SuggestedFields["category"])
	case FieldGroupLabels:
		return s.catalog.WriteLabels(ctx, item.ID, item.SuggestedLabels)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFieldGroup, group)
	}
}
