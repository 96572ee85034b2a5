package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"futuretask/internal/api/v1/dto"
	"futuretask/internal/plan"
	"futuretask/internal/repository"
	"futuretask/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type EntitlementHandler struct {
	entitlements service.EntitlementService
	statements   service.StatementService
	validate     *validator.Validate
	logger       zerolog.Logger
}

func NewEntitlementHandler(entitlements service.EntitlementService, statements service.StatementService, validate *validator.Validate, logger zerolog.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		entitlements: entitlements,
		statements:   statements,
		validate:     validate,
		logger:       logger,
	}
}

// RegisterRoutes mounts v1 entitlement routes
func (h *EntitlementHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/entitlement/", authMw(http.HandlerFunc(h.handleEntitlement)))
}

func (h *EntitlementHandler) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/entitlement/"), "/", 2)
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
		h.getAccount(w, r, userID)
	case rest == "consume" && r.Method == http.MethodPost:
		h.consume(w, r, userID)
	case rest == "usage" && r.Method == http.MethodGet:
		h.listUsage(w, r, userID)
	case rest == "themes" && r.Method == http.MethodGet:
		h.listThemes(w, r, userID)
	case rest == "statement" && r.Method == http.MethodPost:
		h.exportStatement(w, r, userID)
	default:
		http.NotFound(w, r)
	}
}

// getAccount godoc
// @Summary Get the entitlement snapshot
// @Description Returns the user's credit account: credits, used, remaining, reset date and all-time totals.
// @Tags entitlement
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} dto.CreditAccountDTO
// @Failure 403 {string} string "Forbidden"
// @Failure 500 {string} string "Failed to load account"
// @Router /entitlement/{userId} [get]
func (h *EntitlementHandler) getAccount(w http.ResponseWriter, r *http.Request, userID string) {
	account, err := h.entitlements.GetAccount(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to load account: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(accountDTO(account)); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// consume godoc
// @Summary Charge one AI request against the account
// @Description Appends a usage event to the ledger after an atomic credit check.
// @Tags entitlement
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param request body dto.ConsumeDTO true "Completed AI request"
// @Success 200 {object} dto.CreditAccountDTO
// @Failure 400 {string} string "Invalid JSON payload"
// @Failure 403 {string} string "Insufficient credits"
// @Failure 500 {string} string "Failed to consume credits"
// @Router /entitlement/{userId}/consume [post]
func (h *EntitlementHandler) consume(w http.ResponseWriter, r *http.Request, userID string) {
	var req dto.ConsumeDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	account, err := h.entitlements.Consume(r.Context(), userID, service.ConsumeInput{
		RequestText:  req.RequestText,
		RequestType:  req.RequestType,
		InputTokens:  req.InputTokens,
		OutputTokens: req.OutputTokens,
		ModelUsed:    req.Model,
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			http.Error(w, "Insufficient credits", http.StatusForbidden)
			return
		}
		http.Error(w, "Failed to consume credits: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(accountDTO(account)); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// listUsage godoc
// @Summary List recent usage events
// @Tags entitlement
// @Produce json
// @Param userId path string true "User ID"
// @Param limit query int false "Maximum number of events to return" default(50)
// @Success 200 {array} dto.UsageEventDTO
// @Router /entitlement/{userId}/usage [get]
func (h *EntitlementHandler) listUsage(w http.ResponseWriter, r *http.Request, userID string) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	events, err := h.entitlements.RecentUsage(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, "Failed to list usage: "+err.Error(), http.StatusInternalServerError)
		return
	}
	resp := make([]dto.UsageEventDTO, len(events))
	for i, e := range events {
		resp[i] = dto.UsageEventDTO{
			ID:              e.ID,
			RequestText:     e.RequestText,
			RequestType:     e.RequestType,
			InputTokens:     e.InputTokens,
			OutputTokens:    e.OutputTokens,
			CreditsConsumed: e.CreditsConsumed,
			CostEur:         e.CostEur,
			ModelUsed:       e.ModelUsed,
			CreatedAt:       e.CreatedAt,
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// listThemes godoc
// @Summary List themes available to the user's tier
// @Tags entitlement
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} dto.ThemesResponseDTO
// @Router /entitlement/{userId}/themes [get]
func (h *EntitlementHandler) listThemes(w http.ResponseWriter, r *http.Request, userID string) {
	account, err := h.entitlements.GetAccount(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to load account: "+err.Error(), http.StatusInternalServerError)
		return
	}
	resp := dto.ThemesResponseDTO{
		Tier:         string(account.Tier),
		Themes:       plan.ThemesForTier(account.Tier),
		CustomThemes: plan.CanUseCustomTheme(account.Tier),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// exportStatement godoc
// @Summary Export a CSV usage statement for the open cycle
// @Tags entitlement
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} dto.StatementResponseDTO
// @Router /entitlement/{userId}/statement [post]
func (h *EntitlementHandler) exportStatement(w http.ResponseWriter, r *http.Request, userID string) {
	key, err := h.statements.Export(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to export statement: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(dto.StatementResponseDTO{ObjectKey: key}); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
