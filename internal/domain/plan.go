package domain

// PlanTier identifies a subscription plan offered by the app.
type PlanTier string

// Known plan tiers.
const (
	PlanFree   PlanTier = "free"
	PlanGrowth PlanTier = "growth"
	PlanPro    PlanTier = "pro"
)

// Plan describes the quota and overage terms of a subscription tier.
// Monetary amounts are expressed in US dollars.
type Plan struct {
	Tier        PlanTier
	CreditLimit int

	// OverageEnabled allows consumption past CreditLimit, charged at
	// OveragePricePerUnit up to a total of OverageCapAmount.
	OverageEnabled      bool
	OveragePricePerUnit float64
	OverageCapAmount    float64

	// AutoTagging indicates whether the plan includes automatic tagging of
	// newly created products.
	AutoTagging bool
}

// plans is the catalog of known subscription tiers.
var plans = map[PlanTier]Plan{
	PlanFree: {
		Tier:        PlanFree,
		CreditLimit: 50,
	},
	PlanGrowth: {
		Tier:        PlanGrowth,
		CreditLimit: 500,
		AutoTagging: true,
	},
	PlanPro: {
		Tier:                PlanPro,
		CreditLimit:         2000,
		OverageEnabled:      true,
		OveragePricePerUnit: 0.01,
		OverageCapAmount:    50,
		AutoTagging:         true,
	},
}

// PlanByTier returns the plan definition for the given tier.
// Returns ErrUnknownPlan if the tier is not in the catalog.
func PlanByTier(tier PlanTier) (Plan, error) {
	plan, ok := plans[tier]
	if !ok {
		return Plan{}, ErrUnknownPlan
	}
	return plan, nil
}

// IsValidPlanTier reports whether the given tier is a known plan.
func IsValidPlanTier(tier PlanTier) bool {
	_, ok := plans[tier]
	return ok
}
