package dto

import "time"

// SubscriptionResponseDTO is the subscription state in API responses.
type SubscriptionResponseDTO struct {
	UserID       string     `json:"user_id"`
	Tier         string     `json:"tier"`
	BillingCycle string     `json:"billing_cycle"`
	Status       string     `json:"status"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// ChangePlanDTO is used for incoming plan change requests.
type ChangePlanDTO struct {
	Plan            string `json:"plan" validate:"required"`
	BillingCycle    string `json:"billing_cycle" validate:"required"`
	PaymentMethodID string `json:"payment_method_id"`
}

// ChangeResultDTO is the terminal state of a plan change.
type ChangeResultDTO struct {
	State        string                   `json:"state"`
	Subscription *SubscriptionResponseDTO `json:"subscription"`
	Account      *CreditAccountDTO        `json:"account,omitempty"`
}

// PurchaseDTO is used for incoming credit package purchases.
type PurchaseDTO struct {
	PackageID       string `json:"package_id" validate:"required"`
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
}
