package model

import "time"

// Request types accepted on usage events, mirroring the app surfaces that
// call the assistant.
const (
	RequestTypeChat     = "chat"
	RequestTypeTasks    = "tasks"
	RequestTypeWishlist = "wishlist"
	RequestTypeNotes    = "notes"
	RequestTypePomodoro = "pomodoro"
)

// CreditAccount is the computed entitlement snapshot for one user.
type CreditAccount struct {
	UserID string `json:"user_id"`
	// Credits granted for the current cycle: plan allotment plus any
	// top-up grants made within the cycle.
	Credits int `json:"credits"`
	// Used is the total consumed in the current cycle. It only grows while
	// the cycle is open and drops to zero on rollover.
	Used            int          `json:"used"`
	Remaining       int          `json:"remaining"`
	CycleStart      time.Time    `json:"cycle_start"`
	ResetDate       time.Time    `json:"reset_date"`
	TotalCostEur    float64      `json:"total_cost_eur"`
	TotalTokensUsed int64        `json:"total_tokens_used"`
	Tier            PlanTier     `json:"tier"`
	PlanType        BillingCycle `json:"plan_type"`
	// IsUnlimited exists for forward extension; no current tier sets it.
	IsUnlimited bool `json:"is_unlimited"`
}

// ComputeRemaining floors remaining at zero. Used can legitimately exceed
// credits after a downgrade mid-cycle.
func (a *CreditAccount) ComputeRemaining() {
	a.Remaining = a.Credits - a.Used
	if a.Remaining < 0 {
		a.Remaining = 0
	}
}

// CanUseAI reports whether another AI request may be attempted.
func (a *CreditAccount) CanUseAI() bool {
	return a.IsUnlimited || a.Remaining > 0
}

// UsageEvent is one immutable entry in the usage ledger.
type UsageEvent struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	RequestText     string    `db:"request_text" json:"request_text"`
	RequestType     string    `db:"request_type" json:"request_type"`
	InputTokens     int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens    int       `db:"output_tokens" json:"output_tokens"`
	CreditsConsumed int       `db:"credits_consumed" json:"credits_consumed"`
	CostEur         float64   `db:"cost_eur" json:"cost_eur"`
	ModelUsed       string    `db:"model_used" json:"model_used"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// CreditGrant is a one-off top-up applied on top of the cycle allotment.
type CreditGrant struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Credits   int       `db:"credits" json:"credits"`
	Source    string    `db:"source" json:"source"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreditCycle marks the open billing cycle of a user's credit account. The
// allotment is frozen when the cycle opens, so a mid-cycle downgrade never
// revokes credits already granted; they run out at the natural reset.
type CreditCycle struct {
	UserID     string    `db:"user_id" json:"user_id"`
	CycleStart time.Time `db:"cycle_start" json:"cycle_start"`
	ResetDate  time.Time `db:"reset_date" json:"reset_date"`
	Allotment  int       `db:"allotment" json:"allotment"`
}

// Subscription statuses.
const (
	SubscriptionActive   = "active"
	SubscriptionInactive = "inactive"
)

// UserSubscription is the stored subscription state of one user.
type UserSubscription struct {
	UserID       string       `db:"user_id" json:"user_id"`
	Tier         PlanTier     `db:"tier" json:"tier"`
	BillingCycle BillingCycle `db:"billing_cycle" json:"billing_cycle"`
	Status       string       `db:"status" json:"status"`
	ExpiresAt    *time.Time   `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// IsActive recomputes the effective status on read: a stored "active" flag
// does not survive a past expiry date.
func (s *UserSubscription) IsActive(now time.Time) bool {
	if s.Status != SubscriptionActive {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

// EffectiveTier is the tier entitlements are computed from. Expired or
// inactive subscriptions fall back to the free tier.
func (s *UserSubscription) EffectiveTier(now time.Time) PlanTier {
	if !s.IsActive(now) {
		return TierFree
	}
	return s.Tier
}

// ChangeState is the state of one plan-change request.
type ChangeState string

const (
	ChangeIdle            ChangeState = "idle"
	ChangePlanSelected    ChangeState = "plan_selected"
	ChangeAwaitingPayment ChangeState = "awaiting_payment"
	ChangePaymentCaptured ChangeState = "payment_captured"
	ChangeApplied         ChangeState = "applied"
	ChangePaymentFailed   ChangeState = "payment_failed"
	ChangeCancelled       ChangeState = "cancelled"
)
