package handler

import (
	"net/http"

	"futuretask/internal/api/v1/dto"
	"futuretask/internal/middleware"
	"futuretask/internal/model"
)

// requireUser extracts the authenticated user from the context and checks it
// matches the user ID in the request path. Writes the error response itself.
func requireUser(w http.ResponseWriter, r *http.Request, pathUserID string) bool {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return false
	}
	if userID != pathUserID {
		http.Error(w, "Forbidden: path user does not match token", http.StatusForbidden)
		return false
	}
	return true
}

func accountDTO(a *model.CreditAccount) *dto.CreditAccountDTO {
	if a == nil {
		return nil
	}
	return &dto.CreditAccountDTO{
		UserID:          a.UserID,
		Credits:         a.Credits,
		Used:            a.Used,
		Remaining:       a.Remaining,
		CycleStart:      a.CycleStart,
		ResetDate:       a.ResetDate,
		TotalCostEur:    a.TotalCostEur,
		TotalTokensUsed: a.TotalTokensUsed,
		Tier:            string(a.Tier),
		PlanType:        string(a.PlanType),
		IsUnlimited:     a.IsUnlimited,
	}
}

func subscriptionDTO(s *model.UserSubscription) *dto.SubscriptionResponseDTO {
	if s == nil {
		return nil
	}
	return &dto.SubscriptionResponseDTO{
		UserID:       s.UserID,
		Tier:         string(s.Tier),
		BillingCycle: string(s.BillingCycle),
		Status:       s.Status,
		ExpiresAt:    s.ExpiresAt,
	}
}
