package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"futuretask/internal/api/v1/dto"
	"futuretask/internal/middleware"
	"futuretask/internal/model"
	"futuretask/internal/repository"
	"futuretask/internal/service"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const testSecret = "test-secret"

type stubEntitlements struct {
	account    *model.CreditAccount
	consumeErr error
	events     []model.UsageEvent
}

func (s *stubEntitlements) GetAccount(_ context.Context, userID string) (*model.CreditAccount, error) {
	cp := *s.account
	cp.UserID = userID
	return &cp, nil
}

func (s *stubEntitlements) Consume(_ context.Context, userID string, _ service.ConsumeInput) (*model.CreditAccount, error) {
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	return s.GetAccount(context.Background(), userID)
}

func (s *stubEntitlements) Grant(_ context.Context, _ string, _ int, _ string) error {
	return nil
}

func (s *stubEntitlements) RecentUsage(_ context.Context, _ string, limit int) ([]model.UsageEvent, error) {
	if limit < len(s.events) {
		return s.events[:limit], nil
	}
	return s.events, nil
}

type stubStatements struct {
	key string
}

func (s *stubStatements) Export(_ context.Context, _ string) (string, error) {
	return s.key, nil
}

func newTestMux(entitlements service.EntitlementService) *http.ServeMux {
	h := NewEntitlementHandler(entitlements, &stubStatements{key: "statements/user-1/2026-09.csv"}, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, middleware.AuthMiddleware(testSecret))
	return mux
}

func bearerToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   subject,
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + signed
}

func proAccount() *model.CreditAccount {
	a := &model.CreditAccount{
		Credits:  150,
		Used:     30,
		Tier:     model.TierPro,
		PlanType: model.CycleMonthly,
	}
	a.ComputeRemaining()
	return a
}

func TestGetAccountRequiresAuth(t *testing.T) {
	mux := newTestMux(&stubEntitlements{account: proAccount()})

	req := httptest.NewRequest(http.MethodGet, "/entitlement/user-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
}

func TestGetAccountRejectsOtherUser(t *testing.T) {
	mux := newTestMux(&stubEntitlements{account: proAccount()})

	req := httptest.NewRequest(http.MethodGet, "/entitlement/user-1", nil)
	req.Header.Set("Authorization", bearerToken(t, "user-2"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a mismatched user, got %d", rec.Code)
	}
}

func TestGetAccountReturnsSnapshot(t *testing.T) {
	mux := newTestMux(&stubEntitlements{account: proAccount()})

	req := httptest.NewRequest(http.MethodGet, "/entitlement/user-1", nil)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.CreditAccountDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.UserID != "user-1" || resp.Remaining != 120 || resp.Tier != "pro" {
		t.Fatalf("unexpected snapshot: %+v", resp)
	}
}

func TestConsumeInsufficientCredits(t *testing.T) {
	mux := newTestMux(&stubEntitlements{
		account:    proAccount(),
		consumeErr: repository.ErrInsufficientCredits,
	})

	body := `{"request_text":"hi","request_type":"chat","input_tokens":100,"output_tokens":20,"model":"gpt-4o-mini"}`
	req := httptest.NewRequest(http.MethodPost, "/entitlement/user-1/consume", strings.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for insufficient credits, got %d", rec.Code)
	}
}

func TestConsumeValidatesPayload(t *testing.T) {
	mux := newTestMux(&stubEntitlements{account: proAccount()})

	// request_type outside the allowed set
	body := `{"request_text":"hi","request_type":"banana","input_tokens":100,"model":"gpt-4o-mini"}`
	req := httptest.NewRequest(http.MethodPost, "/entitlement/user-1/consume", strings.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown request type, got %d", rec.Code)
	}
}

func TestListThemesForTier(t *testing.T) {
	mux := newTestMux(&stubEntitlements{account: proAccount()})

	req := httptest.NewRequest(http.MethodGet, "/entitlement/user-1/themes", nil)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.ThemesResponseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.CustomThemes || len(resp.Themes) != 9 {
		t.Fatalf("expected the full pro theme set, got %+v", resp)
	}
}

func TestExportStatement(t *testing.T) {
	mux := newTestMux(&stubEntitlements{account: proAccount()})

	req := httptest.NewRequest(http.MethodPost, "/entitlement/user-1/statement", nil)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.StatementResponseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ObjectKey == "" {
		t.Fatal("expected a statement object key")
	}
}
