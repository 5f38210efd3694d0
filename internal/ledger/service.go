package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/satpugnet/shopify-visiontags-ai/internal/domain"
	"github.com/satpugnet/shopify-visiontags-ai/internal/store"
)

// Common sentinel errors for the ledger service.
var (
	// ErrInsufficientCredits is returned when the requested unit count does
	// not fit in the remaining quota plus overage budget. Admission is
	// all-or-nothing: a batch is either admitted whole or denied whole.
	ErrInsufficientCredits = errors.New("insufficient credits for requested units")

	// ErrLedgerConflict is returned when the serialized check-then-consume
	// could not be applied atomically. The consume attempt fails closed;
	// the caller may re-run the whole admission.
	ErrLedgerConflict = errors.New("ledger was modified concurrently, consumption rejected")

	// ErrLedgerNotFound indicates the tenant has no ledger.
	ErrLedgerNotFound = errors.New("credit ledger not found")
)

// Availability is the result of an admission check.
type Availability struct {
	// Allowed reports whether the whole requested unit count fits.
	Allowed bool

	// UseOverage is true when admission relies on the overage budget.
	UseOverage bool

	// OverageUnits is how many of the requested units fall beyond the plan
	// quota. Zero unless UseOverage.
	OverageUnits int

	// Remaining is the quota left under the plan limit before this request.
	Remaining int
}

// Service provides credit admission operations.
type Service interface {
	// CheckAvailability evaluates whether requestedUnits can be consumed,
	// without consuming anything.
	CheckAvailability(ctx context.Context, tenantID uuid.UUID, requestedUnits int) (*Availability, error)

	// Authorize runs the check and, when allowed, consumes the units and
	// appends a usage record, all serialized per tenant so that two
	// concurrent requests can never jointly overshoot the cap.
	// Returns ErrInsufficientCredits when denied and ErrLedgerConflict when
	// the conditional consume lost a race (fail closed).
	Authorize(ctx context.Context, tenantID uuid.UUID, units int) (*Availability, error)

	// ChangePlan resets the tenant's ledger to the new plan's terms, zeroing
	// consumption. When the new plan does not include auto-tagging, the
	// tenant's auto-tag setting is switched off.
	ChangePlan(ctx context.Context, tenantID uuid.UUID, tier domain.PlanTier) error

	// GetLedger returns the tenant's current ledger state.
	GetLedger(ctx context.Context, tenantID uuid.UUID) (*domain.CreditLedger, error)

	// RecordedUsage sums the usage records appended during the tenant's
	// current billing period. It is an audit view over the append-only usage
	// log and should agree with the ledger's CreditsUsed counter.
	RecordedUsage(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// service implements Service.
type service struct {
	db          *sql.DB
	ledgerStore store.LedgerStore
	usageStore  store.UsageStore
	tenantStore store.TenantStore
	logger      *slog.Logger

	// mu guards locks. Each tenant gets its own mutex so that
	// check-then-consume is a single critical section per tenant without
	// serializing unrelated tenants against each other.
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewService creates a ledger Service.
// It returns an error if any of the required dependencies are nil.
func NewService(
	db *sql.DB,
	ledgerStore store.LedgerStore,
	usageStore store.UsageStore,
	tenantStore store.TenantStore,
	logger *slog.Logger,
) (Service, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if ledgerStore == nil {
		return nil, errors.New("ledgerStore cannot be nil")
	}
	if usageStore == nil {
		return nil, errors.New("usageStore cannot be nil")
	}
	if tenantStore == nil {
		return nil, errors.New("tenantStore cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &service{
		db:          db,
		ledgerStore: ledgerStore,
		usageStore:  usageStore,
		tenantStore: tenantStore,
		logger:      logger.With("component", "ledger_service"),
		locks:       map[uuid.UUID]*sync.Mutex{},
	}, nil
}

// tenantLock returns the mutex serializing ledger writes for one tenant.
func (s *service) tenantLock(tenantID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[tenantID] = lock
	}
	return lock
}

func (s *service) CheckAvailability(
	ctx context.Context,
	tenantID uuid.UUID,
	requestedUnits int,
) (*Availability, error) {
	if requestedUnits <= 0 {
		return nil, fmt.Errorf("requested units must be positive, got %d", requestedUnits)
	}

	ledger, err := s.getLedger(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return evaluate(ledger, requestedUnits), nil
}

func (s *service) Authorize(ctx context.Context, tenantID uuid.UUID, units int) (*Availability, error) {
	if units <= 0 {
		return nil, fmt.Errorf("requested units must be positive, got %d", units)
	}

	lock := s.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	ledger, err := s.getLedger(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	avail := evaluate(ledger, units)
	if !avail.Allowed {
		s.logger.Info("admission denied",
			"tenant_id", tenantID,
			"requested_units", units,
			"remaining", avail.Remaining,
			"overage_enabled", ledger.OverageEnabled)
		return avail, ErrInsufficientCredits
	}

	// The consume is still conditional on the observed credits_used so that
	// a writer outside this process (or a bug in lock discipline) rejects
	// rather than overshoots.
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.ledgerStore.WithTx(tx).ApplyConsumption(ctx, tenantID, units, ledger.CreditsUsed); err != nil {
			return err
		}

		record, err := domain.NewUsageRecord(tenantID, ledger.BillingPeriodStart, units)
		if err != nil {
			return err
		}

		return s.usageStore.WithTx(tx).Append(ctx, record)
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.logger.Warn("ledger consume lost a race, failing closed",
				"tenant_id", tenantID,
				"units", units)
			return nil, ErrLedgerConflict
		}
		return nil, fmt.Errorf("failed to consume credits: %w", err)
	}

	s.logger.Info("credits consumed",
		"tenant_id", tenantID,
		"units", units,
		"use_overage", avail.UseOverage,
		"overage_units", avail.OverageUnits)

	return avail, nil
}

func (s *service) ChangePlan(ctx context.Context, tenantID uuid.UUID, tier domain.PlanTier) error {
	plan, err := domain.PlanByTier(tier)
	if err != nil {
		return err
	}

	lock := s.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	ledger, err := s.getLedger(ctx, tenantID)
	if err != nil {
		return err
	}

	ledger.ResetForPlan(plan)

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.ledgerStore.WithTx(tx).Reset(ctx, ledger); err != nil {
			return err
		}

		if !plan.AutoTagging {
			if err := s.tenantStore.WithTx(tx).SetAutoTagNewProducts(ctx, tenantID, false); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply plan change: %w", err)
	}

	s.logger.Info("plan changed",
		"tenant_id", tenantID,
		"plan", plan.Tier,
		"credit_limit", plan.CreditLimit,
		"auto_tagging", plan.AutoTagging)

	return nil
}

func (s *service) GetLedger(ctx context.Context, tenantID uuid.UUID) (*domain.CreditLedger, error) {
	return s.getLedger(ctx, tenantID)
}

func (s *service) RecordedUsage(ctx context.Context, tenantID uuid.UUID) (int, error) {
	ledger, err := s.getLedger(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	total, err := s.usageStore.TotalForPeriod(ctx, tenantID, ledger.BillingPeriodStart)
	if err != nil {
		return 0, fmt.Errorf("failed to sum usage records: %w", err)
	}
	return total, nil
}

func (s *service) getLedger(ctx context.Context, tenantID uuid.UUID) (*domain.CreditLedger, error) {
	ledger, err := s.ledgerStore.GetByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrLedgerNotFound) {
			return nil, ErrLedgerNotFound
		}
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return ledger, nil
}

// evaluate runs the admission arithmetic against a ledger snapshot.
// Admission is all-or-nothing: either every requested unit fits (inside the
// quota, or spilling into an overage budget that can fund the whole
// shortfall) or the request is denied.
func evaluate(ledger *domain.CreditLedger, requestedUnits int) *Availability {
	remaining := ledger.Remaining()

	if remaining >= requestedUnits {
		return &Availability{
			Allowed:   true,
			Remaining: remaining,
		}
	}

	if !ledger.OverageEnabled {
		return &Availability{Remaining: remaining}
	}

	shortfall := requestedUnits - remaining
	overageAvailable := ledger.OverageUnitsBudget() - ledger.OverageUnitsUsed()
	if shortfall > overageAvailable {
		return &Availability{Remaining: remaining}
	}

	return &Availability{
		Allowed:      true,
		UseOverage:   true,
		OverageUnits: shortfall,
		Remaining:    remaining,
	}
}
