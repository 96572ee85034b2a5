package service

import (
	"context"
	"fmt"

	"futuretask/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// SecretResolver fetches provider credentials that are not passed by env,
// e.g. the Stripe and OpenAI keys in deployed environments.
type SecretResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

type secretManagerResolver struct {
	client    *secretmanager.Client
	projectID string
}

// NewSecretResolver creates a Secret Manager backed resolver.
func NewSecretResolver(ctx context.Context, cfg *config.Config) (SecretResolver, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP project ID is not set for the current environment")
	}

	var opts []option.ClientOption
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &secretManagerResolver{client: client, projectID: cfg.GCPProjectID}, nil
}

func (s *secretManagerResolver) Resolve(ctx context.Context, name string) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", name, err)
	}
	return string(result.Payload.Data), nil
}
