package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"futuretask/internal/api/v1/dto"
	"futuretask/internal/model"
	"futuretask/internal/repository"
	"futuretask/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type AssistantHandler struct {
	assistant service.AssistantService
	validate  *validator.Validate
	logger    zerolog.Logger
}

func NewAssistantHandler(assistant service.AssistantService, validate *validator.Validate, logger zerolog.Logger) *AssistantHandler {
	return &AssistantHandler{
		assistant: assistant,
		validate:  validate,
		logger:    logger,
	}
}

// RegisterRoutes mounts v1 assistant routes
func (h *AssistantHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/assistant/", authMw(http.HandlerFunc(h.handleAssistant)))
}

func (h *AssistantHandler) handleAssistant(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/assistant/"), "/", 2)
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

	if rest == "chat" && r.Method == http.MethodPost {
		h.chat(w, r, userID)
		return
	}
	http.NotFound(w, r)
}

// chat godoc
// @Summary Run a metered assistant request
// @Description Calls the AI completion provider and charges the token usage against the user's credits.
// @Tags assistant
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param request body dto.ChatDTO true "Assistant request"
// @Success 200 {object} dto.ChatResponseDTO
// @Failure 400 {string} string "Invalid JSON payload"
// @Failure 403 {string} string "Insufficient credits"
// @Failure 500 {string} string "Assistant request failed"
// @Router /assistant/{userId}/chat [post]
func (h *AssistantHandler) chat(w http.ResponseWriter, r *http.Request, userID string) {
	var req dto.ChatDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	requestType := req.RequestType
	if requestType == "" {
		requestType = model.RequestTypeChat
	}

	result, err := h.assistant.Chat(r.Context(), userID, requestType, req.Message)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			http.Error(w, "Insufficient credits", http.StatusForbidden)
			return
		}
		http.Error(w, "Assistant request failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	resp := dto.ChatResponseDTO{Text: result.Text, Account: accountDTO(result.Account)}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
