package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"futuretask/internal/service"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookHandler processes billing provider webhooks: renewals extend the
// subscription and roll the credit cycle, deletions downgrade to free.
type WebhookHandler struct {
	subscriptions service.SubscriptionService
	webhookSecret string
	logger        zerolog.Logger
}

func NewWebhookHandler(subscriptions service.SubscriptionService, webhookSecret string, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		subscriptions: subscriptions,
		webhookSecret: webhookSecret,
		logger:        logger.With().Str("handler", "WebhookHandler").Logger(),
	}
}

// RegisterRoutes mounts the webhook endpoint. It is unauthenticated; requests
// are verified by signature instead.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/webhooks/stripe", h.handleStripe)
}

func (h *WebhookHandler) handleStripe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sig, h.webhookSecret)
	if err != nil {
		h.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}
	h.logger.Info().Str("event_type", string(event.Type)).Msg("Stripe webhook received")

	ctx := r.Context()
	switch event.Type {
	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			h.logger.Error().Err(err).Msg("Invalid invoice.payment_succeeded payload")
			http.Error(w, "invalid invoice data", http.StatusBadRequest)
			return
		}
		userID := invoice.Metadata["user_id"]
		if userID == "" {
			h.logger.Error().Str("invoice_id", invoice.ID).Msg("Missing user_id in invoice metadata")
			http.Error(w, "missing user_id in metadata", http.StatusBadRequest)
			return
		}
		periodEnd := time.Unix(invoice.PeriodEnd, 0)
		if err := h.subscriptions.ApplyRenewal(ctx, userID, periodEnd); err != nil {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to apply renewal")
			http.Error(w, "failed to apply renewal", http.StatusInternalServerError)
			return
		}
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			h.logger.Error().Err(err).Msg("Invalid customer.subscription.deleted payload")
			http.Error(w, "invalid subscription data", http.StatusBadRequest)
			return
		}
		userID := sub.Metadata["user_id"]
		if userID == "" {
			h.logger.Error().Str("subscription_id", sub.ID).Msg("Missing user_id in subscription metadata")
			http.Error(w, "missing user_id in metadata", http.StatusBadRequest)
			return
		}
		if err := h.subscriptions.CancelToFree(ctx, userID); err != nil {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to downgrade after subscription deletion")
			http.Error(w, "failed to downgrade", http.StatusInternalServerError)
			return
		}
	default:
		h.logger.Debug().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
	}
	w.WriteHeader(http.StatusOK)
}
