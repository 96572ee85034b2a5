package service

import (
	"context"
	"fmt"
	"time"

	"futuretask/internal/model"
	"futuretask/internal/repository"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const assistantSystemPrompt = "You are the FutureTask assistant. Help the user manage tasks, calendar events, notes, wishlist items and pomodoro sessions. Answer concisely."

// Completion is the provider-agnostic result of one AI request.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Model        string
}

// CompletionProvider abstracts the external AI completion service.
type CompletionProvider interface {
	Complete(ctx context.Context, prompt string) (*Completion, error)
}

type openAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider returns a CompletionProvider backed by the OpenAI API.
func NewOpenAIProvider(apiKey, model string) CompletionProvider {
	return &openAIProvider{client: openai.NewClient(apiKey), model: model}
}

func (p *openAIProvider) Complete(ctx context.Context, prompt string) (*Completion, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: assistantSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}
	return &Completion{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
	}, nil
}

// ChatResult carries the completion text and the account after charging.
type ChatResult struct {
	Text    string               `json:"text"`
	Account *model.CreditAccount `json:"account"`
}

// AssistantService runs metered AI requests end-to-end.
type AssistantService interface {
	Chat(ctx context.Context, userID, requestType, message string) (*ChatResult, error)
}

type assistantService struct {
	provider     CompletionProvider
	entitlements EntitlementService
	timeout      time.Duration
	logger       zerolog.Logger
}

// NewAssistantService creates an AssistantService with a scoped logger.
func NewAssistantService(provider CompletionProvider, entitlements EntitlementService, timeout time.Duration, logger zerolog.Logger) AssistantService {
	return &assistantService{
		provider:     provider,
		entitlements: entitlements,
		timeout:      timeout,
		logger:       logger.With().Str("service", "AssistantService").Logger(),
	}
}

func (s *assistantService) Chat(ctx context.Context, userID, requestType, message string) (*ChatResult, error) {
	// Fast pre-check so exhausted accounts skip the provider call entirely.
	// The authoritative check happens atomically inside Consume.
	account, err := s.entitlements.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !account.CanUseAI() {
		return nil, fmt.Errorf("%w: no credits remaining", repository.ErrInsufficientCredits)
	}

	// One retry on provider failure; nothing is charged until the
	// completion succeeds.
	var completion *Completion
	for attempt := 0; attempt < 2; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		completion, err = s.provider.Complete(cctx, message)
		cancel()
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		s.logger.Warn().Err(err).Str("user_id", userID).Int("attempt", attempt+1).Msg("Completion attempt failed")
	}
	if err != nil {
		return nil, fmt.Errorf("ai completion: %w", err)
	}

	updated, err := s.entitlements.Consume(ctx, userID, ConsumeInput{
		RequestText:  message,
		RequestType:  requestType,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		ModelUsed:    completion.Model,
	})
	if err != nil {
		return nil, err
	}
	return &ChatResult{Text: completion.Text, Account: updated}, nil
}
