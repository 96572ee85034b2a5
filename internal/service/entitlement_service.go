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
	"futuretask/internal/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// requestTextLimit caps the stored prompt excerpt on usage events.
const requestTextLimit = 200

// ConsumeInput describes one completed AI request to be charged against the
// user's credit account. Credits and cost are derived server-side from the
// token counts and model.
type ConsumeInput struct {
	RequestText  string
	RequestType  string
	InputTokens  int
	OutputTokens int
	ModelUsed    string
}

// EntitlementService computes credit account snapshots and applies consumption.
type EntitlementService interface {
	// GetAccount returns the current entitlement snapshot, creating the free
	// subscription on first read and rolling the cycle when the reset date
	// has passed.
	GetAccount(ctx context.Context, userID string) (*model.CreditAccount, error)
	// Consume charges one AI request against the account and appends it to
	// the ledger. Returns repository.ErrInsufficientCredits when the account
	// cannot cover it; the ledger is untouched in that case.
	Consume(ctx context.Context, userID string, in ConsumeInput) (*model.CreditAccount, error)
	// Grant applies a one-off credit top-up on top of the cycle allotment.
	Grant(ctx context.Context, userID string, credits int, source string) error
	// RecentUsage returns the newest ledger entries first.
	RecentUsage(ctx context.Context, userID string, limit int) ([]model.UsageEvent, error)
}

type entitlementService struct {
	catalog    *plan.Catalog
	subRepo    repository.SubscriptionRepository
	usageRepo  repository.UsageRepository
	publisher  pubsub.Publisher
	usageTopic string
	logger     zerolog.Logger
}

// NewEntitlementService creates an EntitlementService with a scoped logger.
func NewEntitlementService(
	catalog *plan.Catalog,
	subRepo repository.SubscriptionRepository,
	usageRepo repository.UsageRepository,
	publisher pubsub.Publisher,
	usageTopic string,
	logger zerolog.Logger,
) EntitlementService {
	return &entitlementService{
		catalog:    catalog,
		subRepo:    subRepo,
		usageRepo:  usageRepo,
		publisher:  publisher,
		usageTopic: usageTopic,
		logger:     logger.With().Str("service", "EntitlementService").Logger(),
	}
}

func (s *entitlementService) GetAccount(ctx context.Context, userID string) (*model.CreditAccount, error) {
	now := time.Now().UTC()

	sub, err := s.subRepo.GetSubscription(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription")
		return nil, err
	}
	if sub == nil {
		// First read for this user: start them on the free plan.
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

	tier := sub.EffectiveTier(now)
	planDef, err := s.catalog.Plan(tier)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("tier", string(tier)).Msg("Stored tier is not in the catalog")
		return nil, err
	}

	cycle, err := s.subRepo.GetCycle(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch credit cycle")
		return nil, err
	}
	if cycle == nil || !now.Before(cycle.ResetDate) {
		// Rollover: used drops to zero and a fresh allotment is frozen onto
		// the cycle at the effective tier's rate. Freezing it here is what
		// lets a mid-cycle downgrade keep its credits until the reset.
		start := now
		reset := sub.BillingCycle.Advance(now)
		allotment := planDef.CreditAllotment(sub.BillingCycle)
		if err := s.subRepo.UpsertCycle(ctx, userID, start, reset, allotment); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to roll credit cycle")
			return nil, err
		}
		cycle = &model.CreditCycle{UserID: userID, CycleStart: start, ResetDate: reset, Allotment: allotment}
	}

	account := &model.CreditAccount{
		UserID:      userID,
		Credits:     cycle.Allotment,
		CycleStart:  cycle.CycleStart,
		ResetDate:   cycle.ResetDate,
		Tier:        tier,
		PlanType:    sub.BillingCycle,
		IsUnlimited: planDef.Unlimited,
	}

	// Ledger reads degrade to zero so a storage blip shows an empty account
	// instead of failing the request. Writes never degrade.
	grants, err := s.usageRepo.SumGrantsForCycle(ctx, userID, cycle.CycleStart)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Degrading grant sum to zero")
	} else {
		account.Credits += grants
	}
	totals, err := s.usageRepo.SumForCycle(ctx, userID, cycle.CycleStart)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Degrading cycle usage to zero")
	} else {
		account.Used = totals.Used
	}
	cost, tokens, err := s.usageRepo.SumAllTime(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Degrading all-time totals to zero")
	} else {
		account.TotalCostEur = cost
		account.TotalTokensUsed = tokens
	}

	account.ComputeRemaining()
	return account, nil
}

func (s *entitlementService) Consume(ctx context.Context, userID string, in ConsumeInput) (*model.CreditAccount, error) {
	account, err := s.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	totalTokens := in.InputTokens + in.OutputTokens
	event := &model.UsageEvent{
		ID:              uuid.NewString(),
		UserID:          userID,
		RequestText:     util.TruncateRunes(in.RequestText, requestTextLimit),
		RequestType:     in.RequestType,
		InputTokens:     in.InputTokens,
		OutputTokens:    in.OutputTokens,
		CreditsConsumed: CreditsForTokens(totalTokens),
		CostEur:         CostEur(in.ModelUsed, in.InputTokens, in.OutputTokens),
		ModelUsed:       in.ModelUsed,
		CreatedAt:       time.Now().UTC(),
	}

	if account.IsUnlimited {
		if err := s.usageRepo.RecordUsage(ctx, event); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record usage event")
			return nil, err
		}
	} else {
		// Grants are re-summed inside the ledger transaction, so only the
		// cycle's frozen allotment is passed here.
		cycle, err := s.subRepo.GetCycle(ctx, userID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch credit cycle")
			return nil, err
		}
		allotment := 0
		if cycle != nil {
			allotment = cycle.Allotment
		}
		err = s.usageRepo.CheckAndRecordUsage(ctx, account.CycleStart, allotment, event)
		if errors.Is(err, repository.ErrInsufficientCredits) {
			return nil, err
		}
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record usage event")
			return nil, fmt.Errorf("append usage event: %w", err)
		}
	}

	s.publish(ctx, "usage.recorded", userID, map[string]any{
		"event_id":         event.ID,
		"request_type":     event.RequestType,
		"credits_consumed": event.CreditsConsumed,
		"cost_eur":         event.CostEur,
	})

	return s.GetAccount(ctx, userID)
}

func (s *entitlementService) Grant(ctx context.Context, userID string, credits int, source string) error {
	if credits <= 0 {
		return fmt.Errorf("grant must be positive, got %d", credits)
	}
	if err := s.usageRepo.RecordGrant(ctx, userID, credits, source); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record credit grant")
		return err
	}
	s.publish(ctx, "credits.granted", userID, map[string]any{
		"credits": credits,
		"source":  source,
	})
	return nil
}

func (s *entitlementService) RecentUsage(ctx context.Context, userID string, limit int) ([]model.UsageEvent, error) {
	events, err := s.usageRepo.QueryRecent(ctx, userID, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to query usage events")
		return nil, err
	}
	return events, nil
}

// publish sends a domain event best-effort; a publish failure never fails the
// request that produced it.
func (s *entitlementService) publish(ctx context.Context, eventType, userID string, data map[string]any) {
	event := pubsub.Event{
		Type:       eventType,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	if _, err := s.publisher.PublishEvent(ctx, s.usageTopic, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Str("user_id", userID).Msg("Failed to publish event")
	}
}
