// Package api provides the HTTP API for DosePoint.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dosepoint/dosepoint/internal/activity"
	"github.com/dosepoint/dosepoint/internal/api/handler"
	"github.com/dosepoint/dosepoint/internal/api/middleware"
	"github.com/dosepoint/dosepoint/internal/auth"
	"github.com/dosepoint/dosepoint/internal/device"
	"github.com/dosepoint/dosepoint/internal/dispense"
	"github.com/dosepoint/dosepoint/internal/notification"
	syncpkg "github.com/dosepoint/dosepoint/internal/sync"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version             string
	BuildTime           string
	Logger              zerolog.Logger
	ServiceName         string
	Metrics             *middleware.Metrics
	Pool                *pgxpool.Pool
	TokenVerifier       *auth.Verifier
	DeviceService       *device.Service
	NotificationService *notification.Service
	ActivityRepo        activity.Repository
	DispenseEngine      *dispense.Engine
	SyncOrchestrator    *syncpkg.Orchestrator
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "dosepoint-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Pool)
	deviceHandler := handler.NewDeviceHandler(cfg.DeviceService, cfg.ActivityRepo)
	stateHandler := handler.NewStateHandler(cfg.DispenseEngine)
	syncHandler := handler.NewSyncHandler(cfg.SyncOrchestrator)
	notificationHandler := handler.NewNotificationHandler(cfg.NotificationService)

	authMiddleware := middleware.Auth(cfg.TokenVerifier)

	// Rate limit middleware for the endpoint categories
	deviceRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)      // 30 req/min
	standardRateLimit := middleware.RateLimitByOwner(middleware.StandardRateLimit) // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Device-facing endpoints. Dispensers call these with device tokens;
		// the app may call them with an owner token too.
		r.Route("/devices/{deviceId}", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(deviceRateLimit)
			r.Post("/state", stateHandler.ReportState)
			r.Patch("/telemetry", deviceHandler.ReportTelemetry)
		})

		// Sync endpoints (owner tokens only)
		r.Route("/sync", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireOwner)
			r.Use(standardRateLimit)
			r.Post("/full", syncHandler.FullSync)
			r.Post("/delta", syncHandler.DeltaSync)
			r.Get("/status", syncHandler.SyncStatus)
		})

		// Me endpoints (owner tokens only)
		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireOwner)
			r.Use(standardRateLimit)

			// Devices
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", deviceHandler.ListDevices)
				r.Post("/", deviceHandler.RegisterDevice)
				r.Route("/{deviceId}", func(r chi.Router) {
					r.Get("/", deviceHandler.GetDevice)
					r.Patch("/", deviceHandler.UpdateDevice)
					r.Delete("/", deviceHandler.DeactivateDevice)
					r.Get("/stats", deviceHandler.GetStats)
					r.Get("/activity", deviceHandler.ListActivity)
				})
			})

			// Notifications
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.ListNotifications)
				r.Get("/unread-count", notificationHandler.UnreadCount)
				r.Post("/read-all", notificationHandler.MarkAllRead)
				r.Route("/{notificationId}", func(r chi.Router) {
					r.Get("/", notificationHandler.GetNotification)
					r.Post("/read", notificationHandler.MarkRead)
				})
			})

			// Notification settings
			r.Get("/notification-settings", notificationHandler.GetSettings)
			r.Patch("/notification-settings", notificationHandler.UpdateSettings)
		})
	})

	return r
}
