// Package main provides the entrypoint for the DosePoint API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dosepoint/dosepoint/internal/activity"
	"github.com/dosepoint/dosepoint/internal/api"
	"github.com/dosepoint/dosepoint/internal/api/middleware"
	"github.com/dosepoint/dosepoint/internal/auth"
	"github.com/dosepoint/dosepoint/internal/database"
	"github.com/dosepoint/dosepoint/internal/device"
	"github.com/dosepoint/dosepoint/internal/dispense"
	"github.com/dosepoint/dosepoint/internal/notification"
	"github.com/dosepoint/dosepoint/internal/profile"
	"github.com/dosepoint/dosepoint/internal/push"
	syncpkg "github.com/dosepoint/dosepoint/internal/sync"
	"github.com/dosepoint/dosepoint/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "dosepoint-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting DosePoint API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Token verifier (issuance lives in the account service)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	verifier := auth.NewVerifier(auth.Config{
		SigningKey: jwtSigningKey,
		Issuer:     getEnvOrDefault("JWT_ISSUER", "https://accounts.dosepoint.io"),
		Audience:   getEnvOrDefault("JWT_AUDIENCE", "dosepoint-api"),
	})

	// Repositories
	deviceRepo := device.NewPostgresRepository(pool)
	activityRepo := activity.NewPostgresRepository(pool)
	notificationRepo := notification.NewPostgresRepository(pool)
	profileRepo := profile.NewPostgresRepository(pool)

	// Push dispatcher: notifications fan out through Pub/Sub when a project
	// is configured, and are logged and dropped otherwise.
	var dispatcher push.Dispatcher
	if projectID := os.Getenv("PUBSUB_PROJECT_ID"); projectID != "" {
		pubsubDispatcher, dispatchErr := push.NewPubSubDispatcher(ctx, push.PubSubConfig{
			ProjectID: projectID,
			TopicName: getEnvOrDefault("PUBSUB_PUSH_TOPIC", "push-notifications"),
			Logger:    log,
		})
		if dispatchErr != nil {
			log.Fatal().Err(dispatchErr).Msg("failed to initialize push dispatcher")
		}
		defer pubsubDispatcher.Close()
		dispatcher = pubsubDispatcher
		log.Info().Str("project", projectID).Msg("push dispatcher initialized")
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set - push notifications disabled")
	}

	// Services
	trigger := notification.NewTriggerEngine(notificationRepo, dispatcher, log)
	notificationService := notification.NewService(notificationRepo, log)
	deviceService := device.NewService(deviceRepo, activityRepo, trigger, log)
	log.Info().Msg("device and notification services initialized")

	// Dispense engine
	engine := dispense.NewEngine(dispense.NewPostgresStore(pool), trigger, dispense.DefaultConfig(), log)
	log.Info().Msg("dispense engine initialized")

	// Sync orchestrator
	tracker := syncpkg.NewTracker(profileRepo, deviceRepo, activityRepo, notificationRepo)
	applier := syncpkg.NewServiceApplier(deviceService, notificationService, deviceRepo, notificationRepo)
	orchestrator := syncpkg.NewOrchestrator(
		syncpkg.NewPostgresStore(pool), tracker, syncpkg.NewResolver(), applier, syncpkg.Config{}, log)
	log.Info().Msg("sync orchestrator initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:             Version,
		BuildTime:           BuildTime,
		Logger:              log,
		ServiceName:         serviceName,
		Metrics:             metrics,
		Pool:                pool,
		TokenVerifier:       verifier,
		DeviceService:       deviceService,
		NotificationService: notificationService,
		ActivityRepo:        activityRepo,
		DispenseEngine:      engine,
		SyncOrchestrator:    orchestrator,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
