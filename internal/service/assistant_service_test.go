package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"futuretask/internal/model"
	"futuretask/internal/repository"

	"github.com/rs/zerolog"
)

func newTestAssistant(subRepo *fakeSubRepo, usageRepo *fakeUsageRepo, provider *fakeCompletionProvider) AssistantService {
	entitlements := newTestEntitlement(subRepo, usageRepo)
	return NewAssistantService(provider, entitlements, time.Second, zerolog.Nop())
}

func TestChatChargesOnSuccess(t *testing.T) {
	subRepo := proFixture("user-1", time.Now().UTC().Add(-time.Hour))
	usageRepo := &fakeUsageRepo{}
	provider := &fakeCompletionProvider{
		completion: Completion{
			Text:         "Here is your week plan.",
			InputTokens:  1200,
			OutputTokens: 300,
			Model:        "gpt-4o-mini",
		},
	}
	svc := newTestAssistant(subRepo, usageRepo, provider)

	result, err := svc.Chat(context.Background(), "user-1", model.RequestTypeTasks, "plan my week")
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if result.Text != "Here is your week plan." {
		t.Fatalf("unexpected completion text: %q", result.Text)
	}
	if result.Account.Used != 2 {
		t.Fatalf("expected 1500 tokens to cost 2 credits, got %d used", result.Account.Used)
	}
	if provider.calls != 1 {
		t.Fatalf("expected a single provider call, got %d", provider.calls)
	}
}

func TestChatRetriesOnceOnProviderFailure(t *testing.T) {
	subRepo := proFixture("user-1", time.Now().UTC().Add(-time.Hour))
	usageRepo := &fakeUsageRepo{}
	provider := &fakeCompletionProvider{
		failures:   1,
		completion: Completion{Text: "ok", InputTokens: 100, OutputTokens: 50, Model: "gpt-4o-mini"},
	}
	svc := newTestAssistant(subRepo, usageRepo, provider)

	result, err := svc.Chat(context.Background(), "user-1", model.RequestTypeChat, "hello")
	if err != nil {
		t.Fatalf("expected the retry to recover: %v", err)
	}
	if provider.calls != 2 {
		t.Fatalf("expected two provider calls, got %d", provider.calls)
	}
	if result.Account.Used != 1 {
		t.Fatalf("expected a single charge after the retry, got %d", result.Account.Used)
	}
}

func TestChatNoChargeWhenProviderFails(t *testing.T) {
	subRepo := proFixture("user-1", time.Now().UTC().Add(-time.Hour))
	usageRepo := &fakeUsageRepo{}
	provider := &fakeCompletionProvider{failures: 2}
	svc := newTestAssistant(subRepo, usageRepo, provider)

	_, err := svc.Chat(context.Background(), "user-1", model.RequestTypeChat, "hello")
	if err == nil {
		t.Fatal("expected an error when both attempts fail")
	}
	if provider.calls != 2 {
		t.Fatalf("expected exactly two attempts, got %d", provider.calls)
	}
	if len(usageRepo.events) != 0 {
		t.Fatal("nothing may be charged when the completion never succeeds")
	}
}

func TestChatInsufficientCreditsSkipsProvider(t *testing.T) {
	provider := &fakeCompletionProvider{}
	svc := newTestAssistant(&fakeSubRepo{}, &fakeUsageRepo{}, provider)

	_, err := svc.Chat(context.Background(), "user-1", model.RequestTypeChat, "hello")
	if !errors.Is(err, repository.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits for a free user, got: %v", err)
	}
	if provider.calls != 0 {
		t.Fatal("the provider must not be called for an exhausted account")
	}
}
