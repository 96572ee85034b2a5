// Package plan holds the static plan catalog and the pure tier-gating
// predicates consumed by the entitlement service and the API layer.
package plan

import (
	"errors"

	"futuretask/internal/model"
)

// ErrUnknownPackage is returned when a credit package ID is not in the catalog.
var ErrUnknownPackage = errors.New("unknown_credit_package")

// Theme sets per tier. Higher tiers include every lower set.
var (
	baseThemes    = []string{"light", "dark", "system"}
	premiumThemes = []string{"ocean", "forest", "sunset"}
	proThemes     = []string{"midnight", "aurora", "custom"}
)

// Catalog supplies immutable tier and credit-package metadata. It is built
// once at process start and is safe for concurrent reads.
type Catalog struct {
	plans    map[model.PlanTier]model.PlanDefinition
	order    []model.PlanTier
	packages []model.CreditPackage
}

// Default returns the production FutureTask catalog.
func Default() *Catalog {
	c := &Catalog{
		plans: map[model.PlanTier]model.PlanDefinition{},
		order: []model.PlanTier{model.TierFree, model.TierPremium, model.TierPro},
	}
	c.plans[model.TierFree] = model.PlanDefinition{
		Tier:   model.TierFree,
		Name:   "Free",
		Themes: themesFor(model.TierFree),
	}
	c.plans[model.TierPremium] = model.PlanDefinition{
		Tier:              model.TierPremium,
		Name:              "Premium",
		PriceMonthlyCents: 499,
		PriceYearlyCents:  4999,
		UnlimitedEvents:   true,
		UnlimitedNotes:    true,
		Themes:            themesFor(model.TierPremium),
	}
	c.plans[model.TierPro] = model.PlanDefinition{
		Tier:              model.TierPro,
		Name:              "Pro",
		PriceMonthlyCents: 999,
		PriceYearlyCents:  9999,
		MonthlyCredits:    150,
		CustomThemes:      true,
		UnlimitedEvents:   true,
		UnlimitedNotes:    true,
		Themes:            themesFor(model.TierPro),
	}
	c.packages = []model.CreditPackage{
		{ID: "starter-100", Credits: 100, PriceEurCents: 499, Description: "100 AI credits"},
		{ID: "plus-250", Credits: 250, PriceEurCents: 999, Popular: true, Description: "250 AI credits"},
		{ID: "power-600", Credits: 600, PriceEurCents: 1999, Description: "600 AI credits"},
	}
	return c
}

// Plan returns the definition for a tier.
func (c *Catalog) Plan(tier model.PlanTier) (model.PlanDefinition, error) {
	p, ok := c.plans[tier]
	if !ok {
		return model.PlanDefinition{}, model.ErrUnknownTier
	}
	return p, nil
}

// Plans lists all tiers in ascending order.
func (c *Catalog) Plans() []model.PlanDefinition {
	out := make([]model.PlanDefinition, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.plans[t])
	}
	return out
}

// CreditPackages lists the one-off top-up products.
func (c *Catalog) CreditPackages() []model.CreditPackage {
	out := make([]model.CreditPackage, len(c.packages))
	copy(out, c.packages)
	return out
}

// PackageByID looks up a credit package.
func (c *Catalog) PackageByID(id string) (model.CreditPackage, error) {
	for _, p := range c.packages {
		if p.ID == id {
			return p, nil
		}
	}
	return model.CreditPackage{}, ErrUnknownPackage
}

// CanUseCustomTheme reports whether the tier may apply custom themes.
// Unknown tiers are treated as free.
func CanUseCustomTheme(tier model.PlanTier) bool {
	return tier == model.TierPro
}

// ThemesForTier returns the theme IDs visible to a tier: free sees the base
// set, premium adds the premium set, pro sees everything.
func ThemesForTier(tier model.PlanTier) []string {
	return themesFor(model.TierOrFree(string(tier)))
}

func themesFor(tier model.PlanTier) []string {
	out := append([]string{}, baseThemes...)
	if tier == model.TierPremium || tier == model.TierPro {
		out = append(out, premiumThemes...)
	}
	if tier == model.TierPro {
		out = append(out, proThemes...)
	}
	return out
}
