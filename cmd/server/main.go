package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/annoview/annoview/internal/config"
	"github.com/annoview/annoview/internal/handlers"
	"github.com/annoview/annoview/internal/logger"
	"github.com/annoview/annoview/internal/middleware"
	"github.com/annoview/annoview/internal/session"
	"github.com/annoview/annoview/internal/storage"
	"github.com/annoview/annoview/internal/telemetry"
)

const version = "1.0.0"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	configFile := flag.String("config", "", "Optional YAML config file")
	flag.Parse()

	// .env is optional; ignore a missing file
	_ = godotenv.Load()

	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			// Ignore sync errors on shutdown
			_ = syncErr
		}
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "annoview-api", version, cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	store := storage.NewDisk()
	sess := session.New(store, zapLogger)

	sessionCtx, sessionCancel := context.WithCancel(context.Background())
	defer sessionCancel()

	if cfg.DefaultProject != "" {
		if err := sess.LoadDirectory(sessionCtx, cfg.DefaultProject); err != nil {
			zapLogger.Warn("default_project_load_failed",
				zap.String("dir", cfg.DefaultProject),
				zap.Error(err),
			)
		}
	}

	// Initialize handlers
	projectHandler := handlers.NewProjectHandler(sess, store, zapLogger)
	classHandler := handlers.NewClassHandler(sess, zapLogger)
	annotationHandler := handlers.NewAnnotationHandler(sess, zapLogger)
	statsHandler := handlers.NewStatsHandler(sess)

	// Setup router
	r := mux.NewRouter()

	// Note: In gorilla/mux, middleware executes in registration order for
	// r.Use; the stack below runs top-down for each request.
	zapLogger.Info("setting_up_middleware")

	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware("annoview-api"))
		zapLogger.Info("otel_middleware_enabled")
	}
	// 1. Security headers (set on all responses)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	// 2. CORS for the annotation frontend
	r.Use(middleware.CORS(cfg.FrontendURL))
	// 3. Request size limits
	r.Use(middleware.MaxRequestSize(cfg.MaxRequestBytes))
	// 4. Content-Type validation for POST/PATCH/PUT requests
	r.Use(middleware.ContentType)
	// 5. Request timeout
	r.Use(middleware.Timeout(30 * time.Second))
	// 6. Error handler (catches panics)
	r.Use(middleware.ErrorHandler(zapLogger))
	// 7. Logging (innermost, executes last before handler)
	r.Use(middleware.Logging(zapLogger))

	rateLimitMW, err := middleware.RateLimit(cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	// Public routes (no rate limiting for health checks)
	r.HandleFunc("/healthz", healthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")

	// API v1 routes
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rateLimitMW)

	projectRouter := apiRouter.PathPrefix("/project").Subrouter()
	projectHandler.RegisterRoutes(projectRouter)

	classRouter := apiRouter.PathPrefix("/classes").Subrouter()
	classHandler.RegisterRoutes(classRouter)

	annotationRouter := apiRouter.PathPrefix("/annotations").Subrouter()
	annotationHandler.RegisterRoutes(annotationRouter)

	statsHandler.RegisterRoutes(apiRouter)
	apiRouter.HandleFunc("/images/current/thumbnail", projectHandler.Thumbnail).Methods("GET")

	// Catch-all OPTIONS handler for preflight requests; the CORS middleware
	// sets the headers before this runs.
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutS)*time.Second)
	defer cancel()

	// Flush the active image before tearing the session down
	sess.Close(ctx)
	sessionCancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":%q,"timestamp":"%s"}`, version, time.Now().UTC().Format(time.RFC3339))
}
