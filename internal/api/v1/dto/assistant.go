package dto

// ChatDTO is used for incoming assistant requests.
type ChatDTO struct {
	Message     string `json:"message" validate:"required"`
	RequestType string `json:"request_type" validate:"omitempty,oneof=chat tasks wishlist notes pomodoro"`
}

// ChatResponseDTO carries the completion text and the account after charging.
type ChatResponseDTO struct {
	Text    string            `json:"text"`
	Account *CreditAccountDTO `json:"account"`
}
