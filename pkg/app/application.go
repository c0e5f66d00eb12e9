package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/fleetfox/fleetfox/internal/metrics"
	"github.com/fleetfox/fleetfox/internal/middleware"
	"github.com/fleetfox/fleetfox/internal/probe"
	"github.com/fleetfox/fleetfox/internal/providers"
	"github.com/fleetfox/fleetfox/internal/ratelimit"
	"github.com/fleetfox/fleetfox/internal/realtime"
	"github.com/fleetfox/fleetfox/internal/repository"
	"github.com/fleetfox/fleetfox/internal/services"
	"github.com/fleetfox/fleetfox/pkg/auth"
	"github.com/fleetfox/fleetfox/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

type Application struct {
	Config  *config.Config
	Engine  *gin.Engine
	Handler http.Handler

	Sessions      services.SessionService
	Submitter     services.SubmissionService
	Reconciler    services.ReconcilerService
	Verdicts      services.VerdictService
	Subscriptions services.SubscriptionService
	Hub           *realtime.Hub
	Clients       repository.ClientRepository

	Logger      *slog.Logger
	TZ          *time.Location
	Validator   auth.Validator
	RateLimiter ratelimit.Limiter

	TracingShutdown func(context.Context) error
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithValidator sets a custom bearer-token validator
func WithValidator(validator auth.Validator) ApplicationOption {
	return func(app *Application) error {
		app.Validator = validator
		return nil
	}
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	redisClient := providers.NewRedisProvider(cfg.RedisAddr, cfg.RedisPassword)
	limiter := ratelimit.NewTokenBucketLimiter(redisClient)

	loc := time.UTC

	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler).With("service", "fleetfox", "env", cfg.Env)
	slog.SetDefault(logger)

	metrics.RegisterRedisCollector(redisClient, logger)

	sessionRepo := repository.NewSessionRepository(redisClient, loc)
	verdictRepo := repository.NewVerdictRepository(redisClient, loc)
	subRepo := repository.NewSubscriptionRepository(redisClient, loc)
	clientRepo := repository.NewClientRepository(redisClient)

	var uploader providers.Uploader
	if cfg.StorageBackend == "bucket" {
		uploader = providers.NewBucketUploader(cfg.StorageBaseURL, cfg.StorageBucket, cfg.StorageAnonKey)
	} else {
		baseURL := cfg.StorageBaseURL
		if baseURL == "" {
			baseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
		}
		uploader = providers.NewLocalUploader(cfg.StorageDir, baseURL)
	}
	prober := probe.New(time.Duration(cfg.ProbeTimeoutSeconds) * time.Second)

	hub := realtime.NewHub(logger)
	go hub.Run()

	sessions := services.NewSessionService(sessionRepo, uploader, prober, logger, time.Now)
	submitter := services.NewSubmissionService(cfg.WorkflowWebhookURL, cfg.Production(), cfg.SubmitTimeoutSeconds, logger, time.Now)
	notifier := services.NewNotifierService(
		subRepo,
		logger,
		cfg.WebhookHmacSecret,
		cfg.VerdictWebhookMaxAttempts,
		cfg.VerdictWebhookBaseBackoffSecs,
		cfg.VerdictWebhookMaxBackoffSecs,
		limiter,
		ratelimit.Bucket(cfg.RateLimit.Webhook),
	)
	verdicts := services.NewVerdictService(verdictRepo, hub, notifier, logger, time.Now)
	subs := services.NewSubscriptionService(subRepo, cfg.SubscriptionTTLSeconds, cfg.SubscriptionMinIntervalSeconds)
	reconciler := services.NewReconcilerService(sessions, submitter, sessionRepo, logger, time.Now)
	verdicts.AddListener(reconciler.OnVerdict)

	cleanup := services.NewSubscriptionCleanupService(subRepo, logger, 0)
	go cleanup.Start(context.Background())

	if len(cfg.Clients) > 0 {
		if err := clientRepo.Seed(context.Background(), cfg.Clients); err != nil {
			logger.Warn("client seed failed", "err", err)
		}
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestIDMiddleware(), middleware.LoggerMiddleware(logger))
	if cfg.TracingEnabled {
		engine.Use(middleware.TracingMiddleware("fleetfox"))
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-FleetFox-Timestamp", "X-FleetFox-Signature"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	app := &Application{
		Config:        cfg,
		Engine:        engine,
		Handler:       corsHandler.Handler(engine),
		Sessions:      sessions,
		Submitter:     submitter,
		Reconciler:    reconciler,
		Verdicts:      verdicts,
		Subscriptions: subs,
		Hub:           hub,
		Clients:       clientRepo,
		Logger:        logger,
		TZ:            loc,
		RateLimiter:   limiter,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	// Create default validator from config if not provided
	if app.Validator == nil && cfg.AuthProvider != "" {
		validator, err := auth.NewValidator(auth.ProviderConfig{
			Type:   cfg.AuthProvider,
			Config: cfg.AuthConfig,
		})
		if err != nil {
			return nil, err
		}
		app.Validator = validator
	}

	return app, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.AllowedOrigins) > 0 {
		return cfg.AllowedOrigins
	}
	return []string{"*"}
}
