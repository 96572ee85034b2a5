package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"futuretask/internal/model"
	"futuretask/internal/plan"
	"futuretask/internal/pubsub"
	"futuretask/internal/repository"

	"github.com/rs/zerolog"
)

// ErrPaymentFailed is returned when the billing provider declines, errors or
// times out. No subscription state is mutated in that case, and captures are
// never retried automatically.
var ErrPaymentFailed = errors.New("payment_failed")

// BillingOrder is a created, not-yet-captured order at the billing provider.
type BillingOrder struct {
	ID          string
	AmountCents int64
}

// CaptureResult reports the outcome of capturing an order.
type CaptureResult struct {
	Success     bool
	AmountCents int64
}

// BillingProvider abstracts the external payment processor.
type BillingProvider interface {
	CreateOrder(ctx context.Context, userID, description string, amountCents int64, currency, paymentMethod string) (*BillingOrder, error)
	CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error)
}

// ChangeResult is the terminal state of one plan-change request.
type ChangeResult struct {
	State        model.ChangeState       `json:"state"`
	Subscription *model.UserSubscription `json:"subscription"`
	Account      *model.CreditAccount    `json:"account,omitempty"`
}

// SubscriptionService orchestrates plan changes and credit package purchases.
type SubscriptionService interface {
	// GetState returns the subscription with its status recomputed against
	// the expiry date, creating the free subscription on first read.
	GetState(ctx context.Context, userID string) (*model.UserSubscription, error)
	// ChangePlan runs the change state machine end-to-end: free targets are
	// applied immediately, paid targets go through order creation and capture.
	ChangePlan(ctx context.Context, userID string, tier model.PlanTier, cycle model.BillingCycle, paymentMethod string) (*ChangeResult, error)
	// PurchaseCredits charges a credit package and grants its credits. The
	// reset date is unaffected.
	PurchaseCredits(ctx context.Context, userID, packageID, paymentMethod string) (*model.CreditAccount, error)
	// ApplyRenewal extends an active paid subscription to periodEnd and opens
	// a fresh credit cycle. Driven by billing provider webhooks.
	ApplyRenewal(ctx context.Context, userID string, periodEnd time.Time) error
	// CancelToFree downgrades a user whose provider-side subscription ended.
	CancelToFree(ctx context.Context, userID string) error
}

type subscriptionService struct {
	catalog      *plan.Catalog
	subRepo      repository.SubscriptionRepository
	entitlements EntitlementService
	billing      BillingProvider
	publisher    pubsub.Publisher
	topic        string
	timeout      time.Duration
	logger       zerolog.Logger
}

// NewSubscriptionService creates a SubscriptionService with a scoped logger.
func NewSubscriptionService(
	catalog *plan.Catalog,
	subRepo repository.SubscriptionRepository,
	entitlements EntitlementService,
	billing BillingProvider,
	publisher pubsub.Publisher,
	topic string,
	billingTimeout time.Duration,
	logger zerolog.Logger,
) SubscriptionService {
	return &subscriptionService{
		catalog:      catalog,
		subRepo:      subRepo,
		entitlements: entitlements,
		billing:      billing,
		publisher:    publisher,
		topic:        topic,
		timeout:      billingTimeout,
		logger:       logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

func (s *subscriptionService) GetState(ctx context.Context, userID string) (*model.UserSubscription, error) {
	sub, err := s.subRepo.GetSubscription(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription")
		return nil, err
	}
	if sub == nil {
		if err := s.subRepo.EnsureSubscription(ctx, userID); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create free subscription")
			return nil, err
		}
		sub = &model.UserSubscription{
			UserID:       userID,
			Tier:         model.TierFree,
			BillingCycle: model.CycleMonthly,
			Status:       model.SubscriptionActive,
		}
	}
	// Recompute on read: a stored active flag does not survive expiry.
	if !sub.IsActive(time.Now().UTC()) {
		sub.Status = model.SubscriptionInactive
	}
	return sub, nil
}

func (s *subscriptionService) ChangePlan(ctx context.Context, userID string, tier model.PlanTier, cycle model.BillingCycle, paymentMethod string) (*ChangeResult, error) {
	now := time.Now().UTC()

	current, err := s.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}
	planDef, err := s.catalog.Plan(tier)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("tier", string(tier)).Msg("Plan change for unknown tier")
		return nil, err
	}

	// Selecting the current plan is a no-op.
	if tier == current.Tier && current.Status == model.SubscriptionActive &&
		(tier == model.TierFree || cycle == current.BillingCycle) {
		return &ChangeResult{State: model.ChangeIdle, Subscription: current}, nil
	}

	if !planDef.Paid(cycle) {
		// Downgrade to free: applied immediately, no payment step. Credits
		// already granted for the open cycle are not revoked; they run out
		// at the natural reset.
		if err := s.subRepo.DowngradeToFree(ctx, userID); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to downgrade user to free plan")
			return nil, err
		}
		s.publish(ctx, "subscription.changed", userID, map[string]any{"tier": model.TierFree})
		return s.applied(ctx, userID)
	}

	// Paid target: create and capture an order under the billing timeout.
	bctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	description := fmt.Sprintf("FutureTask %s (%s)", planDef.Name, cycle)
	order, err := s.billing.CreateOrder(bctx, userID, description, planDef.PriceCents(cycle), "eur", paymentMethod)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("tier", string(tier)).Msg("Order creation failed")
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	capture, err := s.billing.CaptureOrder(bctx, order.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("order_id", order.ID).Msg("Order capture failed")
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	if !capture.Success {
		s.logger.Warn().Str("user_id", userID).Str("order_id", order.ID).Msg("Order capture declined")
		return nil, fmt.Errorf("%w: capture declined", ErrPaymentFailed)
	}

	// Payment captured: apply the new tier and open a fresh cycle with the
	// full allotment frozen on it, used reset to zero.
	expires := cycle.Advance(now)
	sub := &model.UserSubscription{
		UserID:       userID,
		Tier:         tier,
		BillingCycle: cycle,
		Status:       model.SubscriptionActive,
		ExpiresAt:    &expires,
	}
	if err := s.subRepo.UpsertSubscription(ctx, sub); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("order_id", order.ID).Msg("Payment captured but subscription update failed")
		return nil, err
	}
	if err := s.subRepo.UpsertCycle(ctx, userID, now, expires, planDef.CreditAllotment(cycle)); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to open credit cycle after plan change")
		return nil, err
	}

	s.publish(ctx, "subscription.changed", userID, map[string]any{
		"tier":          tier,
		"billing_cycle": cycle,
		"amount_cents":  capture.AmountCents,
	})
	return s.applied(ctx, userID)
}

func (s *subscriptionService) PurchaseCredits(ctx context.Context, userID, packageID, paymentMethod string) (*model.CreditAccount, error) {
	pkg, err := s.catalog.PackageByID(packageID)
	if err != nil {
		return nil, err
	}

	bctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	description := fmt.Sprintf("FutureTask credit package %s", pkg.ID)
	order, err := s.billing.CreateOrder(bctx, userID, description, pkg.PriceEurCents, "eur", paymentMethod)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("package_id", packageID).Msg("Package order creation failed")
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	capture, err := s.billing.CaptureOrder(bctx, order.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("order_id", order.ID).Msg("Package order capture failed")
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	if !capture.Success {
		return nil, fmt.Errorf("%w: capture declined", ErrPaymentFailed)
	}

	if err := s.entitlements.Grant(ctx, userID, pkg.Credits, "package:"+pkg.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("order_id", order.ID).Msg("Payment captured but credit grant failed")
		return nil, err
	}
	return s.entitlements.GetAccount(ctx, userID)
}

func (s *subscriptionService) ApplyRenewal(ctx context.Context, userID string, periodEnd time.Time) error {
	sub, err := s.GetState(ctx, userID)
	if err != nil {
		return err
	}
	if sub.Tier == model.TierFree {
		s.logger.Warn().Str("user_id", userID).Msg("Renewal received for a free-tier user, ignoring")
		return nil
	}
	planDef, err := s.catalog.Plan(sub.Tier)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("tier", string(sub.Tier)).Msg("Renewal for a tier not in the catalog")
		return err
	}
	now := time.Now().UTC()
	sub.Status = model.SubscriptionActive
	sub.ExpiresAt = &periodEnd
	if err := s.subRepo.UpsertSubscription(ctx, sub); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to apply renewal")
		return err
	}
	if err := s.subRepo.UpsertCycle(ctx, userID, now, periodEnd, planDef.CreditAllotment(sub.BillingCycle)); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to roll cycle on renewal")
		return err
	}
	s.publish(ctx, "subscription.renewed", userID, map[string]any{"expires_at": periodEnd})
	return nil
}

func (s *subscriptionService) CancelToFree(ctx context.Context, userID string) error {
	if err := s.subRepo.DowngradeToFree(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to downgrade user to free plan")
		return err
	}
	s.publish(ctx, "subscription.cancelled", userID, nil)
	return nil
}

// applied builds the terminal result after a successful change.
func (s *subscriptionService) applied(ctx context.Context, userID string) (*ChangeResult, error) {
	sub, err := s.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}
	account, err := s.entitlements.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ChangeResult{State: model.ChangeApplied, Subscription: sub, Account: account}, nil
}

func (s *subscriptionService) publish(ctx context.Context, eventType, userID string, data map[string]any) {
	event := pubsub.Event{
		Type:       eventType,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	if _, err := s.publisher.PublishEvent(ctx, s.topic, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Str("user_id", userID).Msg("Failed to publish event")
	}
}
