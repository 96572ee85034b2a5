package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"futuretask/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository defines methods for accessing subscription state and
// the per-user credit cycle markers.
type SubscriptionRepository interface {
	// GetSubscription returns the user's subscription, or nil if none exists yet.
	GetSubscription(ctx context.Context, userID string) (*model.UserSubscription, error)
	// EnsureSubscription creates a free active subscription for a new user if none exists.
	EnsureSubscription(ctx context.Context, userID string) error
	// UpsertSubscription writes the subscription state after a successful plan change.
	UpsertSubscription(ctx context.Context, sub *model.UserSubscription) error
	// DowngradeToFree moves a user to the free tier immediately. Credit cycle
	// markers are left untouched so already-granted credits survive until reset.
	DowngradeToFree(ctx context.Context, userID string) error
	// GetCycle returns the user's open credit cycle, or nil if none exists.
	GetCycle(ctx context.Context, userID string) (*model.CreditCycle, error)
	// UpsertCycle opens a fresh credit cycle for the user with the allotment
	// frozen at the plan's value for the cycle.
	UpsertCycle(ctx context.Context, userID string, cycleStart, resetDate time.Time, allotment int) error
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) GetSubscription(ctx context.Context, userID string) (*model.UserSubscription, error) {
	const q = `
        SELECT user_id, tier, billing_cycle, status, expires_at, created_at, updated_at
        FROM user_subscriptions
        WHERE user_id = $1
    `
	var us model.UserSubscription
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&us.UserID,
		&us.Tier,
		&us.BillingCycle,
		&us.Status,
		&us.ExpiresAt,
		&us.CreatedAt,
		&us.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, err)
	}
	return &us, nil
}

func (r *subscriptionRepo) EnsureSubscription(ctx context.Context, userID string) error {
	const q = `
        INSERT INTO user_subscriptions (user_id, tier, billing_cycle, status, created_at, updated_at)
        VALUES ($1, 'free', 'monthly', 'active', NOW(), NOW())
        ON CONFLICT (user_id) DO NOTHING
    `
	if _, err := r.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("ensure subscription for user %s: %w", userID, err)
	}
	return nil
}

func (r *subscriptionRepo) UpsertSubscription(ctx context.Context, sub *model.UserSubscription) error {
	const q = `
        INSERT INTO user_subscriptions (user_id, tier, billing_cycle, status, expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        ON CONFLICT (user_id) DO UPDATE
        SET tier = EXCLUDED.tier,
            billing_cycle = EXCLUDED.billing_cycle,
            status = EXCLUDED.status,
            expires_at = EXCLUDED.expires_at,
            updated_at = NOW()
    `
	_, err := r.pool.Exec(ctx, q, sub.UserID, sub.Tier, sub.BillingCycle, sub.Status, sub.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert subscription for user %s: %w", sub.UserID, err)
	}
	return nil
}

func (r *subscriptionRepo) DowngradeToFree(ctx context.Context, userID string) error {
	const q = `
        UPDATE user_subscriptions
        SET tier = 'free',
            status = 'active',
            expires_at = NULL,
            updated_at = NOW()
        WHERE user_id = $1
    `
	if _, err := r.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("downgrade user %s to free plan: %w", userID, err)
	}
	return nil
}

func (r *subscriptionRepo) GetCycle(ctx context.Context, userID string) (*model.CreditCycle, error) {
	const q = `
        SELECT user_id, cycle_start, reset_date, allotment
        FROM credit_cycles
        WHERE user_id = $1
    `
	var c model.CreditCycle
	err := r.pool.QueryRow(ctx, q, userID).Scan(&c.UserID, &c.CycleStart, &c.ResetDate, &c.Allotment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch credit cycle for user %s: %w", userID, err)
	}
	return &c, nil
}

func (r *subscriptionRepo) UpsertCycle(ctx context.Context, userID string, cycleStart, resetDate time.Time, allotment int) error {
	const q = `
        INSERT INTO credit_cycles (user_id, cycle_start, reset_date, allotment)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id) DO UPDATE
        SET cycle_start = EXCLUDED.cycle_start,
            reset_date = EXCLUDED.reset_date,
            allotment = EXCLUDED.allotment
    `
	if _, err := r.pool.Exec(ctx, q, userID, cycleStart, resetDate, allotment); err != nil {
		return fmt.Errorf("upsert credit cycle for user %s: %w", userID, err)
	}
	return nil
}
