package dto

import "time"

// CreditAccountDTO is the entitlement snapshot returned in API responses.
type CreditAccountDTO struct {
	UserID          string    `json:"user_id"`
	Credits         int       `json:"credits"`
	Used            int       `json:"used"`
	Remaining       int       `json:"remaining"`
	CycleStart      time.Time `json:"cycle_start"`
	ResetDate       time.Time `json:"reset_date"`
	TotalCostEur    float64   `json:"total_cost_eur"`
	TotalTokensUsed int64     `json:"total_tokens_used"`
	Tier            string    `json:"tier"`
	PlanType        string    `json:"plan_type"`
	IsUnlimited     bool      `json:"is_unlimited"`
}

// ConsumeDTO is used for incoming consume requests.
type ConsumeDTO struct {
	RequestText  string `json:"request_text" validate:"required"`
	RequestType  string `json:"request_type" validate:"required,oneof=chat tasks wishlist notes pomodoro"`
	InputTokens  int    `json:"input_tokens" validate:"gte=0"`
	OutputTokens int    `json:"output_tokens" validate:"gte=0"`
	Model        string `json:"model"`
}

// UsageEventDTO is one ledger entry in API responses.
type UsageEventDTO struct {
	ID              string    `json:"id"`
	RequestText     string    `json:"request_text"`
	RequestType     string    `json:"request_type"`
	InputTokens     int       `json:"input_tokens"`
	OutputTokens    int       `json:"output_tokens"`
	CreditsConsumed int       `json:"credits_consumed"`
	CostEur         float64   `json:"cost_eur"`
	ModelUsed       string    `json:"model_used"`
	CreatedAt       time.Time `json:"created_at"`
}

// ThemesResponseDTO lists the theme IDs available to the user's tier.
type ThemesResponseDTO struct {
	Tier         string   `json:"tier"`
	Themes       []string `json:"themes"`
	CustomThemes bool     `json:"custom_themes"`
}

// StatementResponseDTO points at an exported usage statement.
type StatementResponseDTO struct {
	ObjectKey string `json:"object_key"`
}
