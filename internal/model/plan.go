package model

import (
	"errors"
	"strings"
	"time"
)

// ErrUnknownTier is returned when a plan tier string does not name a known tier.
var ErrUnknownTier = errors.New("unknown_plan_tier")

// ErrUnknownBillingCycle is returned when a billing cycle string is not recognized.
var ErrUnknownBillingCycle = errors.New("unknown_billing_cycle")

// PlanTier identifies a subscription plan level.
type PlanTier string

const (
	TierFree    PlanTier = "free"
	TierPremium PlanTier = "premium"
	TierPro     PlanTier = "pro"
)

// ParseTier normalizes and validates a tier string at the system boundary.
func ParseTier(s string) (PlanTier, error) {
	switch PlanTier(strings.ToLower(strings.TrimSpace(s))) {
	case TierFree:
		return TierFree, nil
	case TierPremium:
		return TierPremium, nil
	case TierPro:
		return TierPro, nil
	default:
		return "", ErrUnknownTier
	}
}

// TierOrFree maps anything that is not a known tier to the free tier,
// so malformed stored values never grant extra privileges.
func TierOrFree(s string) PlanTier {
	t, err := ParseTier(s)
	if err != nil {
		return TierFree
	}
	return t
}

// BillingCycle is the recurring period of a subscription.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// ParseBillingCycle normalizes and validates a billing cycle string.
func ParseBillingCycle(s string) (BillingCycle, error) {
	switch BillingCycle(strings.ToLower(strings.TrimSpace(s))) {
	case CycleMonthly:
		return CycleMonthly, nil
	case CycleYearly:
		return CycleYearly, nil
	default:
		return "", ErrUnknownBillingCycle
	}
}

// Advance returns the end of the period that starts at from:
// one calendar month for monthly, one calendar year for yearly.
func (c BillingCycle) Advance(from time.Time) time.Time {
	if c == CycleYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// PlanDefinition is the immutable metadata of one subscription tier.
type PlanDefinition struct {
	Tier              PlanTier `json:"tier"`
	Name              string   `json:"name"`
	PriceMonthlyCents int64    `json:"price_monthly_cents"`
	PriceYearlyCents  int64    `json:"price_yearly_cents"`
	// MonthlyCredits is the AI credit allotment per monthly cycle. Zero for
	// tiers whose AI access is not credit-funded.
	MonthlyCredits  int      `json:"monthly_credits"`
	CustomThemes    bool     `json:"custom_themes"`
	UnlimitedEvents bool     `json:"unlimited_events"`
	UnlimitedNotes  bool     `json:"unlimited_notes"`
	Unlimited       bool     `json:"unlimited"`
	Themes          []string `json:"themes"`
}

// CreditAllotment returns the credits granted for one cycle of the given
// length. Yearly plans carry a 10x volume bonus over the monthly rate.
func (p PlanDefinition) CreditAllotment(c BillingCycle) int {
	if c == CycleYearly {
		return p.MonthlyCredits * 10
	}
	return p.MonthlyCredits
}

// PriceCents returns the charge for one cycle of the given length.
func (p PlanDefinition) PriceCents(c BillingCycle) int64 {
	if c == CycleYearly {
		return p.PriceYearlyCents
	}
	return p.PriceMonthlyCents
}

// Paid reports whether subscribing to this plan requires a payment step.
func (p PlanDefinition) Paid(c BillingCycle) bool {
	return p.PriceCents(c) > 0
}

// CreditPackage is a one-off credit top-up product, independent of tier.
type CreditPackage struct {
	ID            string `json:"id"`
	Credits       int    `json:"credits"`
	PriceEurCents int64  `json:"price_eur_cents"`
	Popular       bool   `json:"popular"`
	Description   string `json:"description"`
}
