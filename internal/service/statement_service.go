package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// statementEventLimit bounds how many ledger entries one statement covers.
const statementEventLimit = 1000

// StatementService exports a CSV usage statement for the open billing cycle
// to object storage.
type StatementService interface {
	// Export writes the statement and returns its object key.
	Export(ctx context.Context, userID string) (string, error)
}

type statementService struct {
	entitlements EntitlementService
	s3Client     *s3.Client
	bucket       string
	logger       zerolog.Logger
}

// NewStatementService creates a StatementService with a scoped logger.
func NewStatementService(entitlements EntitlementService, s3Client *s3.Client, bucket string, logger zerolog.Logger) StatementService {
	return &statementService{
		entitlements: entitlements,
		s3Client:     s3Client,
		bucket:       bucket,
		logger:       logger.With().Str("service", "StatementService").Logger(),
	}
}

func (s *statementService) Export(ctx context.Context, userID string) (string, error) {
	account, err := s.entitlements.GetAccount(ctx, userID)
	if err != nil {
		return "", err
	}
	events, err := s.entitlements.RecentUsage(ctx, userID, statementEventLimit)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"created_at", "request_type", "model", "input_tokens", "output_tokens", "credits", "cost_eur"})
	for _, e := range events {
		if e.CreatedAt.Before(account.CycleStart) {
			continue
		}
		_ = w.Write([]string{
			e.CreatedAt.Format(time.RFC3339),
			e.RequestType,
			e.ModelUsed,
			strconv.Itoa(e.InputTokens),
			strconv.Itoa(e.OutputTokens),
			strconv.Itoa(e.CreditsConsumed),
			strconv.FormatFloat(e.CostEur, 'f', 6, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write statement csv for user %s: %w", userID, err)
	}

	key := fmt.Sprintf("statements/%s/%s.csv", userID, account.CycleStart.Format("2006-01"))
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("key", key).Msg("Failed to upload usage statement")
		return "", fmt.Errorf("upload statement for user %s: %w", userID, err)
	}
	s.logger.Info().Str("user_id", userID).Str("key", key).Msg("Usage statement exported")
	return key, nil
}
