package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
)

// LedgerStore defines the interface for credit ledger persistence.
type LedgerStore interface {
	// Create saves a new ledger row for a tenant.
	// Returns ErrDuplicate if the tenant already has a ledger.
	Create(ctx context.Context, ledger *domain.CreditLedger) error

	// GetByTenant retrieves the ledger for the given tenant.
	// Returns ErrLedgerNotFound if the tenant has no ledger.
	GetByTenant(ctx context.Context, tenantID uuid.UUID) (*domain.CreditLedger, error)

	// ApplyConsumption adds units to credits_used using a compare-and-swap
	// on the previously observed credits_used value. If another writer got
	// there first the update matches no row and ErrConflict is returned;
	// the caller must fail closed, never retry blindly past the cap.
	ApplyConsumption(ctx context.Context, tenantID uuid.UUID, units, expectedUsed int) error

	// Reset overwrites the ledger with the given state. Used on plan change
	// and billing period rollover, where consumption is zeroed.
	Reset(ctx context.Context, ledger *domain.CreditLedger) error

	// WithTx returns a new store instance that uses the provided transaction.
	WithTx(tx *sql.Tx) LedgerStore
}
