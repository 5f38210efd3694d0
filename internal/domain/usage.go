package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for UsageRecord
var (
	ErrEmptyUsageTenantID = errors.New("usage record tenant ID cannot be empty")
	ErrNonPositiveUnits   = errors.New("usage record units must be positive")
)

// UsageRecord is one append-only entry of consumed units for a tenant within
// a billing period. Usage records exist for audit and analytics; admission
// decisions read the ledger, never this table.
type UsageRecord struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	PeriodStart time.Time `json:"period_start"`
	Units       int       `json:"units"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// NewUsageRecord creates an entry of units consumed by the tenant in the
// billing period starting at periodStart.
func NewUsageRecord(tenantID uuid.UUID, periodStart time.Time, units int) (*UsageRecord, error) {
	record := &UsageRecord{
		ID:          uuid.New(),
		TenantID:    tenantID,
		PeriodStart: periodStart,
		Units:       units,
		RecordedAt:  time.Now().UTC(),
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

// Validate checks if the UsageRecord has valid data.
func (r *UsageRecord) Validate() error {
	if r.TenantID == uuid.Nil {
		return ErrEmptyUsageTenantID
	}

	if r.Units <= 0 {
		return ErrNonPositiveUnits
	}

	return nil
}
