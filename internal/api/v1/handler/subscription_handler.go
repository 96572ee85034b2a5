package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"futuretask/internal/api/v1/dto"
	"futuretask/internal/model"
	"futuretask/internal/plan"
	"futuretask/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type SubscriptionHandler struct {
	subscriptions service.SubscriptionService
	catalog       *plan.Catalog
	validate      *validator.Validate
	logger        zerolog.Logger
}

func NewSubscriptionHandler(subscriptions service.SubscriptionService, catalog *plan.Catalog, validate *validator.Validate, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		catalog:       catalog,
		validate:      validate,
		logger:        logger,
	}
}

// RegisterRoutes mounts v1 subscription and credit routes. Catalog reads are
// public; everything else requires auth.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.HandleFunc("/plans", h.listPlans)
	mux.HandleFunc("/credits/packages", h.listPackages)
	mux.Handle("/subscription/", authMw(http.HandlerFunc(h.handleSubscription)))
	mux.Handle("/credits/", authMw(http.HandlerFunc(h.handleCredits)))
}

// listPlans godoc
// @Summary List all plan definitions
// @Tags plans
// @Produce json
// @Success 200 {array} model.PlanDefinition
// @Router /plans [get]
func (h *SubscriptionHandler) listPlans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.catalog.Plans()); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// listPackages godoc
// @Summary List credit top-up packages
// @Tags credits
// @Produce json
// @Success 200 {array} model.CreditPackage
// @Router /credits/packages [get]
func (h *SubscriptionHandler) listPackages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.catalog.CreditPackages()); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *SubscriptionHandler) handleSubscription(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/subscription/"), "/", 2)
	userID := parts[0]
	rest := ""
	if len(parts) == 2 {
		rest = parts[1]
	}
	if userID == "" {
		http.NotFound(w, r)
		return
	}
	if !requireUser(w, r, userID) {
		return
	}

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.getState(w, r, userID)
	case rest == "change" && r.Method == http.MethodPost:
		h.changePlan(w, r, userID)
	default:
		http.NotFound(w, r)
	}
}

func (h *SubscriptionHandler) handleCredits(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/credits/"), "/", 2)
	userID := parts[0]
	rest := ""
	if len(parts) == 2 {
		rest = parts[1]
	}
	if userID == "" {
		http.NotFound(w, r)
		return
	}
	if !requireUser(w, r, userID) {
		return
	}

	if rest == "purchase" && r.Method == http.MethodPost {
		h.purchase(w, r, userID)
		return
	}
	http.NotFound(w, r)
}

// getState godoc
// @Summary Get the subscription state
// @Tags subscription
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} dto.SubscriptionResponseDTO
// @Router /subscription/{userId} [get]
func (h *SubscriptionHandler) getState(w http.ResponseWriter, r *http.Request, userID string) {
	sub, err := h.subscriptions.GetState(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to load subscription: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(subscriptionDTO(sub)); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// changePlan godoc
// @Summary Change the subscription plan
// @Description Runs the plan change state machine. Free targets apply immediately; paid targets are charged through the billing provider.
// @Tags subscription
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param request body dto.ChangePlanDTO true "Target plan"
// @Success 200 {object} dto.ChangeResultDTO
// @Failure 400 {string} string "Unknown plan or billing cycle"
// @Failure 402 {string} string "Payment failed"
// @Router /subscription/{userId}/change [post]
func (h *SubscriptionHandler) changePlan(w http.ResponseWriter, r *http.Request, userID string) {
	var req dto.ChangePlanDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	tier, err := model.ParseTier(req.Plan)
	if err != nil {
		http.Error(w, "Unknown plan: "+req.Plan, http.StatusBadRequest)
		return
	}
	cycle, err := model.ParseBillingCycle(req.BillingCycle)
	if err != nil {
		http.Error(w, "Unknown billing cycle: "+req.BillingCycle, http.StatusBadRequest)
		return
	}

	result, err := h.subscriptions.ChangePlan(r.Context(), userID, tier, cycle, req.PaymentMethodID)
	if err != nil {
		if errors.Is(err, service.ErrPaymentFailed) {
			http.Error(w, "Payment failed: "+err.Error(), http.StatusPaymentRequired)
			return
		}
		http.Error(w, "Failed to change plan: "+err.Error(), http.StatusInternalServerError)
		return
	}
	resp := dto.ChangeResultDTO{
		State:        string(result.State),
		Subscription: subscriptionDTO(result.Subscription),
		Account:      accountDTO(result.Account),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// purchase godoc
// @Summary Purchase a credit package
// @Description Charges the package price and grants its credits. The reset date is unaffected.
// @Tags credits
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param request body dto.PurchaseDTO true "Package to purchase"
// @Success 200 {object} dto.CreditAccountDTO
// @Failure 400 {string} string "Unknown package"
// @Failure 402 {string} string "Payment failed"
// @Router /credits/{userId}/purchase [post]
func (h *SubscriptionHandler) purchase(w http.ResponseWriter, r *http.Request, userID string) {
	var req dto.PurchaseDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	account, err := h.subscriptions.PurchaseCredits(r.Context(), userID, req.PackageID, req.PaymentMethodID)
	if err != nil {
		if errors.Is(err, plan.ErrUnknownPackage) {
			http.Error(w, "Unknown package: "+req.PackageID, http.StatusBadRequest)
			return
		}
		if errors.Is(err, service.ErrPaymentFailed) {
			http.Error(w, "Payment failed: "+err.Error(), http.StatusPaymentRequired)
			return
		}
		http.Error(w, "Failed to purchase credits: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(accountDTO(account)); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
