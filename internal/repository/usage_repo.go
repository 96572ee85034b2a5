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

// ErrInsufficientCredits is returned when a user has no credits left for the
// requested consumption.
var ErrInsufficientCredits = errors.New("insufficient_credits")

// CycleTotals aggregates the ledger over one billing cycle.
type CycleTotals struct {
	Used    int
	CostEur float64
	Tokens  int64
}

// UsageRepository is the append-only ledger of AI usage and credit grants.
type UsageRepository interface {
	// CheckAndRecordUsage atomically checks the user's remaining credits for
	// the cycle and appends the event. allotment is the allotment frozen on
	// the open cycle; grants made within the cycle are added inside the same
	// transaction.
	// Returns ErrInsufficientCredits when the event does not fit.
	CheckAndRecordUsage(ctx context.Context, cycleStart time.Time, allotment int, event *model.UsageEvent) error
	// RecordUsage appends an event without a credit check (unlimited accounts).
	RecordUsage(ctx context.Context, event *model.UsageEvent) error
	// RecordGrant appends a one-off credit grant.
	RecordGrant(ctx context.Context, userID string, credits int, source string) error
	// SumForCycle aggregates consumption since cycleStart.
	SumForCycle(ctx context.Context, userID string, cycleStart time.Time) (*CycleTotals, error)
	// SumGrantsForCycle totals grants made since cycleStart.
	SumGrantsForCycle(ctx context.Context, userID string, cycleStart time.Time) (int, error)
	// SumAllTime aggregates cost and tokens over the full ledger.
	SumAllTime(ctx context.Context, userID string) (costEur float64, tokens int64, err error)
	// QueryRecent returns the newest events first.
	QueryRecent(ctx context.Context, userID string, limit int) ([]model.UsageEvent, error)
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

const insertEventQ = `
    INSERT INTO usage_events
        (id, user_id, request_text, request_type, input_tokens, output_tokens,
         credits_consumed, cost_eur, model_used, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// CheckAndRecordUsage runs the check and the append inside one Serializable
// transaction so concurrent requests for the same user can never consume past
// the allotment plus grants.
func (r *usageRepo) CheckAndRecordUsage(ctx context.Context, cycleStart time.Time, allotment int, event *model.UsageEvent) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("starting transaction for usage check: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var used int
	const usedQ = `
        SELECT COALESCE(SUM(credits_consumed), 0)
        FROM usage_events
        WHERE user_id = $1
          AND created_at >= $2
    `
	if err := tx.QueryRow(ctx, usedQ, event.UserID, cycleStart).Scan(&used); err != nil {
		return fmt.Errorf("summing cycle usage for user %s: %w", event.UserID, err)
	}

	var grants int
	const grantsQ = `
        SELECT COALESCE(SUM(credits), 0)
        FROM credit_grants
        WHERE user_id = $1
          AND created_at >= $2
    `
	if err := tx.QueryRow(ctx, grantsQ, event.UserID, cycleStart).Scan(&grants); err != nil {
		return fmt.Errorf("summing cycle grants for user %s: %w", event.UserID, err)
	}

	if allotment+grants-used < event.CreditsConsumed {
		return ErrInsufficientCredits
	}

	if _, err := tx.Exec(ctx, insertEventQ,
		event.ID, event.UserID, event.RequestText, event.RequestType,
		event.InputTokens, event.OutputTokens, event.CreditsConsumed,
		event.CostEur, event.ModelUsed, event.CreatedAt,
	); err != nil {
		return fmt.Errorf("recording usage event for user %s: %w", event.UserID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing usage event for user %s: %w", event.UserID, err)
	}
	return nil
}

func (r *usageRepo) RecordUsage(ctx context.Context, event *model.UsageEvent) error {
	if _, err := r.pool.Exec(ctx, insertEventQ,
		event.ID, event.UserID, event.RequestText, event.RequestType,
		event.InputTokens, event.OutputTokens, event.CreditsConsumed,
		event.CostEur, event.ModelUsed, event.CreatedAt,
	); err != nil {
		return fmt.Errorf("recording usage event for user %s: %w", event.UserID, err)
	}
	return nil
}

func (r *usageRepo) RecordGrant(ctx context.Context, userID string, credits int, source string) error {
	const q = `
        INSERT INTO credit_grants (user_id, credits, source, created_at)
        VALUES ($1, $2, $3, NOW())
    `
	if _, err := r.pool.Exec(ctx, q, userID, credits, source); err != nil {
		return fmt.Errorf("recording credit grant for user %s: %w", userID, err)
	}
	return nil
}

func (r *usageRepo) SumForCycle(ctx context.Context, userID string, cycleStart time.Time) (*CycleTotals, error) {
	const q = `
        SELECT COALESCE(SUM(credits_consumed), 0),
               COALESCE(SUM(cost_eur), 0),
               COALESCE(SUM(input_tokens + output_tokens), 0)
        FROM usage_events
        WHERE user_id = $1
          AND created_at >= $2
    `
	var t CycleTotals
	if err := r.pool.QueryRow(ctx, q, userID, cycleStart).Scan(&t.Used, &t.CostEur, &t.Tokens); err != nil {
		return nil, fmt.Errorf("summing cycle usage for user %s: %w", userID, err)
	}
	return &t, nil
}

func (r *usageRepo) SumGrantsForCycle(ctx context.Context, userID string, cycleStart time.Time) (int, error) {
	const q = `
        SELECT COALESCE(SUM(credits), 0)
        FROM credit_grants
        WHERE user_id = $1
          AND created_at >= $2
    `
	var grants int
	if err := r.pool.QueryRow(ctx, q, userID, cycleStart).Scan(&grants); err != nil {
		return 0, fmt.Errorf("summing cycle grants for user %s: %w", userID, err)
	}
	return grants, nil
}

func (r *usageRepo) SumAllTime(ctx context.Context, userID string) (float64, int64, error) {
	const q = `
        SELECT COALESCE(SUM(cost_eur), 0),
               COALESCE(SUM(input_tokens + output_tokens), 0)
        FROM usage_events
        WHERE user_id = $1
    `
	var cost float64
	var tokens int64
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&cost, &tokens); err != nil {
		return 0, 0, fmt.Errorf("summing all-time usage for user %s: %w", userID, err)
	}
	return cost, tokens, nil
}

func (r *usageRepo) QueryRecent(ctx context.Context, userID string, limit int) ([]model.UsageEvent, error) {
	const q = `
        SELECT id, user_id, request_text, request_type, input_tokens, output_tokens,
               credits_consumed, cost_eur, model_used, created_at
        FROM usage_events
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying usage events for user %s: %w", userID, err)
	}
	defer rows.Close()

	var events []model.UsageEvent
	for rows.Next() {
		var e model.UsageEvent
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.RequestText, &e.RequestType, &e.InputTokens,
			&e.OutputTokens, &e.CreditsConsumed, &e.CostEur, &e.ModelUsed, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning usage event for user %s: %w", userID, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage events for user %s: %w", userID, err)
	}
	return events, nil
}
