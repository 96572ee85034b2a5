package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"futuretask/internal/model"
	"futuretask/internal/pubsub"
	"futuretask/internal/repository"
)

// In-memory repositories used across the service tests. Both guard their
// state with a mutex so the concurrency tests exercise the same atomicity
// the Serializable transaction provides in production.

type fakeSubRepo struct {
	mu    sync.Mutex
	sub   *model.UserSubscription
	cycle *model.CreditCycle
}

func (r *fakeSubRepo) GetSubscription(_ context.Context, _ string) (*model.UserSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil {
		return nil, nil
	}
	cp := *r.sub
	return &cp, nil
}

func (r *fakeSubRepo) EnsureSubscription(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil {
		r.sub = &model.UserSubscription{
			UserID:       userID,
			Tier:         model.TierFree,
			BillingCycle: model.CycleMonthly,
			Status:       model.SubscriptionActive,
		}
	}
	return nil
}

func (r *fakeSubRepo) UpsertSubscription(_ context.Context, sub *model.UserSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	r.sub = &cp
	return nil
}

func (r *fakeSubRepo) DowngradeToFree(_ context.Context, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil {
		return errors.New("no subscription to downgrade")
	}
	r.sub.Tier = model.TierFree
	r.sub.Status = model.SubscriptionActive
	r.sub.ExpiresAt = nil
	return nil
}

func (r *fakeSubRepo) GetCycle(_ context.Context, _ string) (*model.CreditCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cycle == nil {
		return nil, nil
	}
	cp := *r.cycle
	return &cp, nil
}

func (r *fakeSubRepo) UpsertCycle(_ context.Context, userID string, cycleStart, resetDate time.Time, allotment int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycle = &model.CreditCycle{UserID: userID, CycleStart: cycleStart, ResetDate: resetDate, Allotment: allotment}
	return nil
}

type fakeUsageRepo struct {
	mu     sync.Mutex
	events []model.UsageEvent
	grants []model.CreditGrant
	// readErr fails the aggregate read paths only; writes stay healthy.
	readErr error
}

func (r *fakeUsageRepo) CheckAndRecordUsage(_ context.Context, cycleStart time.Time, allotment int, event *model.UsageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	used := 0
	for _, e := range r.events {
		if e.UserID == event.UserID && !e.CreatedAt.Before(cycleStart) {
			used += e.CreditsConsumed
		}
	}
	grants := 0
	for _, g := range r.grants {
		if g.UserID == event.UserID && !g.CreatedAt.Before(cycleStart) {
			grants += g.Credits
		}
	}
	if allotment+grants-used < event.CreditsConsumed {
		return repository.ErrInsufficientCredits
	}
	r.events = append(r.events, *event)
	return nil
}

func (r *fakeUsageRepo) RecordUsage(_ context.Context, event *model.UsageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *fakeUsageRepo) RecordGrant(_ context.Context, userID string, credits int, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants = append(r.grants, model.CreditGrant{
		UserID:    userID,
		Credits:   credits,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (r *fakeUsageRepo) SumForCycle(_ context.Context, userID string, cycleStart time.Time) (*repository.CycleTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	var t repository.CycleTotals
	for _, e := range r.events {
		if e.UserID == userID && !e.CreatedAt.Before(cycleStart) {
			t.Used += e.CreditsConsumed
			t.CostEur += e.CostEur
			t.Tokens += int64(e.InputTokens + e.OutputTokens)
		}
	}
	return &t, nil
}

func (r *fakeUsageRepo) SumGrantsForCycle(_ context.Context, userID string, cycleStart time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return 0, r.readErr
	}
	total := 0
	for _, g := range r.grants {
		if g.UserID == userID && !g.CreatedAt.Before(cycleStart) {
			total += g.Credits
		}
	}
	return total, nil
}

func (r *fakeUsageRepo) SumAllTime(_ context.Context, userID string) (float64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return 0, 0, r.readErr
	}
	var cost float64
	var tokens int64
	for _, e := range r.events {
		if e.UserID == userID {
			cost += e.CostEur
			tokens += int64(e.InputTokens + e.OutputTokens)
		}
	}
	return cost, tokens, nil
}

func (r *fakeUsageRepo) QueryRecent(_ context.Context, userID string, limit int) ([]model.UsageEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	var out []model.UsageEvent
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.events[i].UserID == userID {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}

func (r *fakeUsageRepo) usedCredits(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	used := 0
	for _, e := range r.events {
		if e.UserID == userID {
			used += e.CreditsConsumed
		}
	}
	return used
}

type fakePublisher struct {
	mu     sync.Mutex
	events []pubsub.Event
}

func (p *fakePublisher) PublishEvent(_ context.Context, _ string, event pubsub.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return fmt.Sprintf("msg-%d", len(p.events)), nil
}

type fakeBilling struct {
	mu         sync.Mutex
	createErr  error
	captureErr error
	declined   bool
	created    int
	captured   int
}

func (b *fakeBilling) CreateOrder(_ context.Context, _, _ string, amountCents int64, _, _ string) (*BillingOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return nil, b.createErr
	}
	b.created++
	return &BillingOrder{ID: fmt.Sprintf("order-%d", b.created), AmountCents: amountCents}, nil
}

func (b *fakeBilling) CaptureOrder(_ context.Context, _ string) (*CaptureResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.captureErr != nil {
		return nil, b.captureErr
	}
	b.captured++
	return &CaptureResult{Success: !b.declined, AmountCents: 0}, nil
}

type fakeCompletionProvider struct {
	mu         sync.Mutex
	failures   int
	completion Completion
	calls      int
}

func (p *fakeCompletionProvider) Complete(_ context.Context, _ string) (*Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		return nil, errors.New("provider unavailable")
	}
	cp := p.completion
	return &cp, nil
}
