package service

import (
	"context"
	"fmt"

	"futuretask/internal/config"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// StripeService implements BillingProvider on top of Stripe PaymentIntents
// with manual capture: CreateOrder confirms an intent, CaptureOrder captures
// the authorized amount.
type StripeService struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewStripeService initializes the Stripe key and returns the provider with a
// scoped logger.
func NewStripeService(cfg *config.Config, logger zerolog.Logger) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	return &StripeService{cfg: cfg, logger: logger.With().Str("service", "StripeService").Logger()}
}

func (s *StripeService) CreateOrder(ctx context.Context, userID, description string, amountCents int64, currency, paymentMethod string) (*BillingOrder, error) {
	if paymentMethod == "" {
		return nil, fmt.Errorf("missing payment method for user %s", userID)
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(currency),
		Description:   stripe.String(description),
		PaymentMethod: stripe.String(paymentMethod),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	pi, err := paymentintent.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create payment intent")
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &BillingOrder{ID: pi.ID, AmountCents: pi.Amount}, nil
}

func (s *StripeService) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx

	pi, err := paymentintent.Capture(orderID, params)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("Failed to capture payment intent")
		return nil, fmt.Errorf("capture payment intent: %w", err)
	}
	return &CaptureResult{
		Success:     pi.Status == stripe.PaymentIntentStatusSucceeded,
		AmountCents: pi.AmountReceived,
	}, nil
}
