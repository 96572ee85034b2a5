package plan

import (
	"errors"
	"testing"

	"futuretask/internal/model"
)

func TestDefaultCatalogPlans(t *testing.T) {
	c := Default()

	plans := c.Plans()
	if len(plans) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(plans))
	}
	if plans[0].Tier != model.TierFree || plans[2].Tier != model.TierPro {
		t.Fatalf("expected ascending tier order, got %v", plans)
	}

	pro, err := c.Plan(model.TierPro)
	if err != nil {
		t.Fatalf("Plan(pro) returned error: %v", err)
	}
	if pro.MonthlyCredits != 150 {
		t.Fatalf("expected 150 monthly credits on pro, got %d", pro.MonthlyCredits)
	}
	if got := pro.CreditAllotment(model.CycleYearly); got != 1500 {
		t.Fatalf("expected the yearly allotment to be 10x monthly, got %d", got)
	}
	if !pro.Paid(model.CycleMonthly) {
		t.Fatal("pro must require payment")
	}

	free, err := c.Plan(model.TierFree)
	if err != nil {
		t.Fatalf("Plan(free) returned error: %v", err)
	}
	if free.Paid(model.CycleMonthly) || free.Paid(model.CycleYearly) {
		t.Fatal("free must never require payment")
	}
	if free.MonthlyCredits != 0 {
		t.Fatalf("free carries no AI credits, got %d", free.MonthlyCredits)
	}

	premium, _ := c.Plan(model.TierPremium)
	if premium.MonthlyCredits != 0 {
		t.Fatalf("premium AI access is not credit-funded, got %d credits", premium.MonthlyCredits)
	}

	if _, err := c.Plan(model.PlanTier("platinum")); !errors.Is(err, model.ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got: %v", err)
	}
}

func TestCreditPackages(t *testing.T) {
	c := Default()

	pkgs := c.CreditPackages()
	if len(pkgs) != 3 {
		t.Fatalf("expected 3 packages, got %d", len(pkgs))
	}

	pkg, err := c.PackageByID("plus-250")
	if err != nil {
		t.Fatalf("PackageByID returned error: %v", err)
	}
	if pkg.Credits != 250 || !pkg.Popular {
		t.Fatalf("unexpected package: %+v", pkg)
	}

	if _, err := c.PackageByID("mega-9000"); !errors.Is(err, ErrUnknownPackage) {
		t.Fatalf("expected ErrUnknownPackage, got: %v", err)
	}
}

func TestCanUseCustomTheme(t *testing.T) {
	if CanUseCustomTheme(model.TierFree) || CanUseCustomTheme(model.TierPremium) {
		t.Fatal("custom themes are pro-only")
	}
	if !CanUseCustomTheme(model.TierPro) {
		t.Fatal("pro must have custom themes")
	}
	if CanUseCustomTheme(model.PlanTier("platinum")) {
		t.Fatal("unknown tiers must not gain custom themes")
	}
}

func TestThemesForTier(t *testing.T) {
	free := ThemesForTier(model.TierFree)
	premium := ThemesForTier(model.TierPremium)
	pro := ThemesForTier(model.TierPro)

	if len(free) != 3 {
		t.Fatalf("expected the base theme set for free, got %v", free)
	}
	if len(premium) != 6 {
		t.Fatalf("expected base+premium themes, got %v", premium)
	}
	if len(pro) != 9 {
		t.Fatalf("expected all themes for pro, got %v", pro)
	}

	found := false
	for _, th := range pro {
		if th == "custom" {
			found = true
		}
	}
	if !found {
		t.Fatal("pro theme set must include custom")
	}

	// Unknown tiers see the free set.
	if got := ThemesForTier(model.PlanTier("platinum")); len(got) != 3 {
		t.Fatalf("unknown tier must see the base set, got %v", got)
	}
}
