package domain

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for CreditLedger
var (
	ErrEmptyLedgerTenantID  = errors.New("ledger tenant ID cannot be empty")
	ErrNegativeCreditsUsed  = errors.New("credits used cannot be negative")
	ErrNegativeCreditLimit  = errors.New("credit limit cannot be negative")
	ErrInvalidOverageTerms  = errors.New("overage terms require a positive price per unit")
	ErrCreditCapExceeded    = errors.New("consumption would exceed the credit cap")
)

// CreditLedger tracks a tenant's credit consumption against its plan quota
// for the current billing period. It is the sole admission gate for
// scheduling analysis work.
//
// CreditsUsed is monotonically non-decreasing within a billing period; it is
// zeroed only by an explicit reset (plan change or period rollover).
type CreditLedger struct {
	TenantID           uuid.UUID `json:"tenant_id"`
	PlanTier           PlanTier  `json:"plan_tier"`
	CreditsUsed        int       `json:"credits_used"`
	CreditLimit        int       `json:"credit_limit"`
	BillingPeriodStart time.Time `json:"billing_period_start"`

	OverageEnabled      bool    `json:"overage_enabled"`
	OveragePricePerUnit float64 `json:"overage_price_per_unit"`
	OverageCapAmount    float64 `json:"overage_cap_amount"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewCreditLedger creates a ledger for a tenant on the given plan with zero
// consumption and a billing period starting now.
func NewCreditLedger(tenantID uuid.UUID, plan Plan) (*CreditLedger, error) {
	now := time.Now().UTC()
	ledger := &CreditLedger{
		TenantID:            tenantID,
		PlanTier:            plan.Tier,
		CreditsUsed:         0,
		CreditLimit:         plan.CreditLimit,
		BillingPeriodStart:  now,
		OverageEnabled:      plan.OverageEnabled,
		OveragePricePerUnit: plan.OveragePricePerUnit,
		OverageCapAmount:    plan.OverageCapAmount,
		UpdatedAt:           now,
	}

	if err := ledger.Validate(); err != nil {
		return nil, err
	}

	return ledger, nil
}

// Validate checks if the CreditLedger has valid data.
func (l *CreditLedger) Validate() error {
	if l.TenantID == uuid.Nil {
		return ErrEmptyLedgerTenantID
	}

	if l.CreditsUsed < 0 {
		return ErrNegativeCreditsUsed
	}

	if l.CreditLimit < 0 {
		return ErrNegativeCreditLimit
	}

	if l.OverageEnabled && l.OveragePricePerUnit <= 0 {
		return ErrInvalidOverageTerms
	}

	if l.CreditsUsed > l.MaxConsumable() {
		return ErrCreditCapExceeded
	}

	return nil
}

// Remaining returns the number of credits left under the plan quota,
// never negative.
func (l *CreditLedger) Remaining() int {
	remaining := l.CreditLimit - l.CreditsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// OverageUnitsBudget returns the total number of units the overage cap can
// fund at the current price. Zero when overage is disabled.
func (l *CreditLedger) OverageUnitsBudget() int {
	if !l.OverageEnabled || l.OveragePricePerUnit <= 0 {
		return 0
	}
	return int(math.Floor(l.OverageCapAmount / l.OveragePricePerUnit))
}

// OverageUnitsUsed returns how many already-consumed units fall beyond
// the plan quota.
func (l *CreditLedger) OverageUnitsUsed() int {
	over := l.CreditsUsed - l.CreditLimit
	if over < 0 {
		return 0
	}
	return over
}

// MaxConsumable returns the absolute ceiling on CreditsUsed: the plan quota
// plus whatever the overage cap can fund.
func (l *CreditLedger) MaxConsumable() int {
	return l.CreditLimit + l.OverageUnitsBudget()
}

// ResetForPlan zeroes consumption and applies the terms of the given plan,
// starting a fresh billing period. Used on plan change and period rollover.
func (l *CreditLedger) ResetForPlan(plan Plan) {
	now := time.Now().UTC()
	l.PlanTier = plan.Tier
	l.CreditsUsed = 0
	l.CreditLimit = plan.CreditLimit
	l.BillingPeriodStart = now
	l.OverageEnabled = plan.OverageEnabled
	l.OveragePricePerUnit = plan.OveragePricePerUnit
	l.OverageCapAmount = plan.OverageCapAmount
	l.UpdatedAt = now
}
