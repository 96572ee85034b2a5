package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string `envconfig:"PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"development"`
	DBConnectionString string `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret          string `envconfig:"JWT_SECRET" required:"true"`

	// Billing provider settings. The secret key may be left empty and
	// resolved through Secret Manager in deployed environments.
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeSecretName    string `envconfig:"STRIPE_SECRET_NAME" default:"futuretask-stripe-secret-key"`
	BillingTimeoutSec   int    `envconfig:"BILLING_TIMEOUT_SEC" default:"30"`

	// AI completion provider settings.
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAISecretName string `envconfig:"OPENAI_SECRET_NAME" default:"futuretask-openai-api-key"`
	OpenAIModel      string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	AITimeoutSec     int    `envconfig:"AI_TIMEOUT_SEC" default:"60"`

	// Event publishing settings.
	GCPProjectID      string `envconfig:"GCP_PROJECT_ID"`
	UsageTopic        string `envconfig:"USAGE_TOPIC" default:"entitlement-usage"`
	SubscriptionTopic string `envconfig:"SUBSCRIPTION_TOPIC" default:"subscription-events"`

	// Usage statement export settings (S3-compatible storage).
	S3URL       string `envconfig:"S3_URL"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"usage-statements"`
	S3Region    string `envconfig:"S3_REGION" default:"eu-central-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
