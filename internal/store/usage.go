package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
)

// UsageStore defines the interface for append-only usage records.
// Records are written alongside ledger consumption for audit and analytics;
// nothing in the admission path ever reads them.
type UsageStore interface {
	// Append adds a usage record.
	Append(ctx context.Context, record *domain.UsageRecord) error

	// TotalForPeriod sums the units recorded for a tenant in the billing
	// period starting at periodStart.
	TotalForPeriod(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) (int, error)

	// WithTx returns a new store instance that uses the provided transaction.
	WithTx(tx *sql.Tx) UsageStore
}
