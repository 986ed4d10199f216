package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"udisecli/internal/config"
	apperrors "udisecli/internal/errors"
	"udisecli/internal/infrastructure"
	customMiddleware "udisecli/internal/middleware"
	"udisecli/internal/services"
	handlers "udisecli/internal/transport/http"
	ws "udisecli/internal/websocket"
	"udisecli/pkg/contracts"
)

const (
	VERSION = contracts.Version
	AppName = config.AppName
)

// Application represents the main application container
type Application struct {
	Config           *config.Config
	Router           *chi.Mux
	Server           *http.Server
	WebSocketHub     *ws.Hub
	DashboardService *services.DashboardService
	HealthService    *services.HealthService
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
	Metrics          *infrastructure.BusinessMetrics

	otelMiddleware  *customMiddleware.OTelMiddleware
	systemCollector *infrastructure.SystemMetricsCollector
}

// NewApplication creates a new application instance with dependency injection
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", VERSION))

	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}

	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution()

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	// The OTel middleware carries the business metric instruments shared
	// by the hub, the services and the metrics middleware.
	otelMW, err := customMiddleware.NewOTelMiddleware(otelProviders)
	if err != nil {
		logger.Warn("Request instrumentation disabled",
			slog.String("error", err.Error()))
	} else {
		app.otelMiddleware = otelMW
		app.Metrics = otelMW.Metrics()
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	// WebSocket hub first; the dashboard service publishes events to it
	hub := ws.NewHub(&a.Config.WebSocket, a.Metrics, a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	dashboardService, err := services.NewDashboardService(a.Config, hub, a.Metrics, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dashboard service: %w", err)
	}
	a.DashboardService = dashboardService

	paths, err := config.GetPaths()
	if err != nil {
		return fmt.Errorf("failed to get paths: %w", err)
	}

	var collector *infrastructure.SystemMetricsCollector
	if a.OTelProviders != nil && a.OTelProviders.Meter != nil {
		collector, err = infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, 30*time.Second)
		if err != nil {
			return fmt.Errorf("failed to initialize system metrics collector: %w", err)
		}
		a.systemCollector = collector
	}

	a.HealthService = services.NewHealthService(VERSION, paths, dashboardService, hub, collector, a.Logger)

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Minimal middleware that won't interfere with the WebSocket upgrade.
	// These are safe because they don't wrap the ResponseWriter.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// WebSocket route with minimal middleware and tracing. Registered
	// before the group so the full chain never touches the upgrade.
	if config.FeatureWebSocketEnabled {
		r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc(config.WebSocketEndpoint, a.handleWebSocket)
	}

	r.Group(func(r chi.Router) {
		if a.otelMiddleware != nil {
			r.Use(a.otelMiddleware.Handler)
			r.Use(customMiddleware.BusinessMetricsMiddleware(a.Metrics))
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.getCORSConfig()))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	// Prometheus metrics endpoint, outside the middleware group
	if config.FeatureMetricsEnabled && a.OTelProviders != nil && a.OTelProviders.PrometheusHTTP != nil {
		r.Handle(config.MetricsEndpoint, a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
		r.Get("/stats", healthHandler.SystemStats)

		errorHandler := apperrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
		validation := customMiddleware.NewValidationMiddleware(a.Logger, errorHandler)
		dashboardHandler := handlers.NewDashboardHandler(a.DashboardService, validation, a.Logger, errorHandler)
		r.Mount("/", dashboardHandler.Routes())
	})
}

// getCORSConfig returns CORS configuration based on environment
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	corsConfig := customMiddleware.CORSConfig{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}

	sameOrigin := []string{
		fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
		fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port),
	}

	if a.isDevelopmentMode() {
		// Development: allow a UI dev server next to the API
		corsConfig.AllowedOrigins = append([]string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		}, sameOrigin...)
		a.Logger.Info("CORS configured for development mode",
			slog.Any("allowed_origins", corsConfig.AllowedOrigins))
	} else {
		corsConfig.AllowedOrigins = sameOrigin
		if a.Config.Security.EnableCORS && len(a.Config.Security.AllowedOrigins) > 0 {
			corsConfig.AllowedOrigins = append(corsConfig.AllowedOrigins, a.Config.Security.AllowedOrigins...)
		}
		a.Logger.Info("CORS configured for production mode",
			slog.Any("allowed_origins", corsConfig.AllowedOrigins))
	}

	return corsConfig
}

// isDevelopmentMode detects if we're running in development mode
func (a *Application) isDevelopmentMode() bool {
	if a.Config.Logging.Development {
		return true
	}
	if env := os.Getenv("GO_ENV"); env == "development" {
		return true
	}
	return false
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts the application
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	paths, _ := config.GetPaths()
	a.Logger.InfoContext(ctx, "Application paths",
		slog.String("executable_dir", paths.ExecutableDir),
		slog.String("sources_dir", paths.SourcesDir),
		slog.String("exports_dir", paths.ExportsDir),
		slog.String("cache_dir", paths.CacheDir),
		slog.String("logs_dir", paths.LogsDir))

	// Background collection; the hub loop is already running
	if a.systemCollector != nil {
		go a.systemCollector.Start(ctx)
	}

	// Start server
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			// Signal shutdown through context instead of os.Exit
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	// Load the dataset so the first request doesn't pay for it. A failed
	// load keeps the server up; readiness answers 503 until a reload
	// succeeds.
	loadCtx := infrastructure.WithTraceID(ctx, "startup-load")
	if summary, err := a.DashboardService.Reload(loadCtx, false); err != nil {
		a.Logger.WarnContext(loadCtx, "Initial dataset load failed",
			slog.String("error", err.Error()))
	} else {
		a.Logger.InfoContext(loadCtx, "Initial dataset loaded",
			slog.String("snapshot_id", summary.SnapshotID),
			slog.Int("rows", summary.Rows))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.WebSocketHub.Stop()

	if a.systemCollector != nil {
		a.systemCollector.Stop()
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	// Wait for interrupt or server failure
	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Shutdown requested")
	}

	return a.Stop(context.Background())
}

// handleWebSocket handles WebSocket connections
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}

	ctx := infrastructure.WithTraceID(r.Context(), reqID)
	a.Logger.InfoContext(ctx, "WebSocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")),
		slog.String("host", r.Host))

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// No origin means a non-browser client or same-origin request
			if origin == "" {
				return true
			}

			if a.isDevelopmentMode() {
				return true
			}

			corsConfig := a.getCORSConfig()
			for _, allowed := range corsConfig.AllowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}

			a.Logger.WarnContext(ctx, "WebSocket origin not allowed",
				slog.String("origin", origin),
				slog.Any("allowed_origins", corsConfig.AllowedOrigins))
			return false
		},
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			a.Logger.ErrorContext(ctx, "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.ErrorContext(ctx, "WebSocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	client := ws.NewClientWithTrace(a.WebSocketHub, conn, reqID, a.Logger)
	a.WebSocketHub.Register(client)

	a.Logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.ErrorContext(ctx, "WebSocket write pump panic",
					slog.Any("panic", rec),
					slog.String("request_id", reqID))
			}
		}()
		client.WritePump()
	}()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.ErrorContext(ctx, "WebSocket read pump panic",
					slog.Any("panic", rec),
					slog.String("request_id", reqID))
			}
		}()
		client.ReadPump()
	}()
}

// performStartupHealthCheck verifies the directories the dashboard writes to
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	paths, err := config.GetPaths()
	if err != nil {
		return fmt.Errorf("failed to get paths: %w", err)
	}

	var warnings []string

	directories := map[string]string{
		"Data":    paths.DataDir,
		"Exports": paths.ExportsDir,
		"Cache":   paths.CacheDir,
		"Logs":    paths.LogsDir,
	}

	for name, dir := range directories {
		testFile := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
		} else {
			os.Remove(testFile)
		}
	}

	// Sources are read-only; only their absence is worth flagging
	if !config.FileExists(paths.SourcesDir) {
		warnings = append(warnings, fmt.Sprintf("Sources directory not found: %s", paths.SourcesDir))
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
