// Package main provides the entrypoint for the DosePoint push delivery worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dosepoint/dosepoint/internal/push"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "dosepoint-push-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting DosePoint push worker")

	// Worker also exposes a health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	if projectID == "" {
		log.Fatal().Msg("PUBSUB_PROJECT_ID is required")
	}
	subscription := getEnvOrDefault("PUBSUB_PUSH_SUBSCRIPTION", "push-notifications-worker")

	gatewayURL := os.Getenv("PUSH_GATEWAY_URL")
	if gatewayURL == "" {
		log.Fatal().Msg("PUSH_GATEWAY_URL is required")
	}

	metrics, err := push.NewDeliveryMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize delivery metrics")
	}

	delivery := push.NewDeliveryClient(push.DeliveryConfig{
		GatewayURL: gatewayURL,
		APIKey:     os.Getenv("PUSH_GATEWAY_API_KEY"),
		Metrics:    metrics,
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker, err := push.NewWorker(ctx, push.WorkerConfig{
		ProjectID:        projectID,
		SubscriptionName: subscription,
		Delivery:         delivery,
		Logger:           log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize push worker")
	}
	defer worker.Close()

	// Create HTTP server for health checks
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":%q}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Receive blocks until the context is cancelled.
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- worker.Start(ctx)
	}()

	// Wait for interrupt signal or worker failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down worker")
	case err := <-workerDone:
		if err != nil {
			log.Error().Err(err).Msg("subscription receive failed")
		}
	}
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
