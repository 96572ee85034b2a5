package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"futuretask/internal/api/v1/handler"
	"futuretask/internal/config"
	"futuretask/internal/middleware"
	"futuretask/internal/plan"
	"futuretask/internal/pubsub"
	"futuretask/internal/repository"
	"futuretask/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Msg("Router initialized")
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	// 1. Open DB connection pool
	dsn := cfg.DBConnectionString
	// In a development environment, we want to ensure that SSL is disabled for
	// local testing. In production, the connection string should be provided
	// with the correct SSL settings.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := " "
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			if strings.Contains(dsn, "?") {
				separator = "&"
			} else {
				separator = "?"
			}
		}
		dsn += separator + "sslmode=disable"
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DB pool")
		return nil, nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// 2. Resolve provider secrets when they were not passed by env. Deployed
	// environments keep them in Secret Manager instead.
	if cfg.GCPProjectID != "" && (cfg.StripeSecretKey == "" || cfg.OpenAIAPIKey == "") {
		resolver, err := service.NewSecretResolver(context.Background(), cfg)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Secret Manager resolver")
			pool.Close()
			return nil, nil, err
		}
		if cfg.StripeSecretKey == "" {
			key, err := resolver.Resolve(context.Background(), cfg.StripeSecretName)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to resolve Stripe secret key")
				pool.Close()
				return nil, nil, err
			}
			cfg.StripeSecretKey = key
		}
		if cfg.OpenAIAPIKey == "" {
			key, err := resolver.Resolve(context.Background(), cfg.OpenAISecretName)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to resolve OpenAI API key")
				pool.Close()
				return nil, nil, err
			}
			cfg.OpenAIAPIKey = key
		}
	}

	// 3. Initialize S3 client for statement exports
	s3Config, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load S3 config")
		pool.Close()
		return nil, nil, err
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		if cfg.S3URL != "" {
			o.BaseEndpoint = aws.String(cfg.S3URL)
		}
		o.UsePathStyle = true
	})

	// 4. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 5. Initialize Pub/Sub publisher
	var publisher pubsub.Publisher
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(context.Background(), cfg)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Pub/Sub publisher")
			pool.Close()
			return nil, nil, err
		}
		publisher = p
	} else {
		logger.Warn().Msg("No GCP project configured, domain events will be discarded")
		publisher = pubsub.NopPublisher{}
	}

	// 6. Initialize repositories & services & handlers
	catalog := plan.Default()
	subRepo := repository.NewSubscriptionRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)

	entitlementSvc := service.NewEntitlementService(catalog, subRepo, usageRepo, publisher, cfg.UsageTopic, logger)
	billingSvc := service.NewStripeService(cfg, logger)
	subscriptionSvc := service.NewSubscriptionService(
		catalog,
		subRepo,
		entitlementSvc,
		billingSvc,
		publisher,
		cfg.SubscriptionTopic,
		time.Duration(cfg.BillingTimeoutSec)*time.Second,
		logger,
	)
	completionProvider := service.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	assistantSvc := service.NewAssistantService(completionProvider, entitlementSvc, time.Duration(cfg.AITimeoutSec)*time.Second, logger)
	statementSvc := service.NewStatementService(entitlementSvc, s3Client, cfg.S3Bucket, logger)

	entitlementHandler := handler.NewEntitlementHandler(entitlementSvc, statementSvc, validate, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionSvc, catalog, validate, logger)
	assistantHandler := handler.NewAssistantHandler(assistantSvc, validate, logger)
	webhookHandler := handler.NewWebhookHandler(subscriptionSvc, cfg.StripeWebhookSecret, logger)

	// 7. Initialize middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	// 8. Create ServeMux router
	mux := http.NewServeMux()

	// Create a subrouter for API v1 with the /v1 prefix
	apiV1Mux := http.NewServeMux()
	entitlementHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	subscriptionHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	assistantHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	webhookHandler.RegisterRoutes(apiV1Mux)

	// Mount the API v1 routes under /v1
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	// Add Swagger documentation
	mux.HandleFunc("/swagger/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger/swagger.json")
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// 9. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), pool, nil
}
