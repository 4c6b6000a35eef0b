package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-index/internal/database"
	"media-index/internal/filesystem"
	"media-index/internal/handlers"
	"media-index/internal/logging"
	"media-index/internal/middleware"
	"media-index/internal/reconciler"
	"media-index/internal/startup"
	"media-index/internal/thumbs"
	"media-index/internal/watcher"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media":    config.MediaDir,
		"cache":    config.CacheDir,
		"database": config.DatabaseDir,
	}))

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Connection pool metrics
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		for range ticker.C {
			db.UpdateDBMetrics()
		}
	}()

	// Initialize reconciler
	rec := reconciler.New(db, config.MediaDir, reconciler.Config{
		HashBatchSize: config.HashBatchSize,
		Retry:         filesystem.DefaultRetryConfig(),
	})

	// Initialize change detection: event buffer feeding the cache tracking
	// store, watch supervisor feeding the buffer
	startup.LogWatcherInit(config.DebounceWindow, config.WatchRestartInterval)
	buffer := watcher.NewBuffer(config.MediaDir, config.DebounceWindow, db)
	supervisor := watcher.NewSupervisor(config.MediaDir, buffer, config.WatchRestartInterval)
	if err := supervisor.Start(); err != nil {
		startup.LogFatal("Failed to start watch supervisor: %v", err)
	}
	startup.LogWatcherStarted()

	// Scheduled full verification, with an initial pass at startup
	startup.LogVerifierInit(config.VerifyInterval)
	verifyCtx, cancelVerify := context.WithCancel(context.Background())
	go runVerifier(verifyCtx, rec, config.VerifyInterval)

	// Thumbnail store
	var thumbStore *thumbs.Store
	if config.ThumbnailsEnabled {
		thumbStore, err = thumbs.NewStore(config.ThumbnailDir, config.ThumbnailSize)
		if err != nil {
			logging.Warn("Thumbnail store unavailable: %v", err)
		}
	}

	// Initialize handlers
	h := handlers.New(db, rec, thumbStore, config)

	// Setup router
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply middleware: metrics innermost, then logging, then compression
	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(router)
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Separate metrics server so the scrape endpoint is never exposed on the
	// application port
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:        ":" + config.MetricsPort,
			Handler:     metricsMux,
			ReadTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, supervisor, buffer, cancelVerify)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/browse", h.Browse).Methods("GET")
	api.HandleFunc("/browse/{path:.*}", h.Browse).Methods("GET")
	api.HandleFunc("/rescan", h.Rescan).Methods("POST")
	api.HandleFunc("/rescan/{path:.*}", h.Rescan).Methods("POST")
	api.HandleFunc("/thumbnail/{hash}", h.Thumbnail).Methods("GET")
	api.HandleFunc("/stats", h.Stats).Methods("GET")

	return r
}

// runVerifier runs a full verification immediately, then on a fixed
// interval. The initial pass seeds the index on a fresh database.
func runVerifier(ctx context.Context, rec *reconciler.Reconciler, interval time.Duration) {
	if _, err := rec.Verify(ctx); err != nil && ctx.Err() == nil {
		logging.Error("Initial verification failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := rec.Verify(ctx); err != nil && ctx.Err() == nil {
				logging.Error("Scheduled verification failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func handleShutdown(srv, metricsSrv *http.Server, supervisor *watcher.Supervisor, buffer *watcher.Buffer, cancelVerify context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping watch supervisor")
	supervisor.Stop()
	startup.LogShutdownStepComplete("Watch supervisor stopped")

	startup.LogShutdownStep("Flushing event buffer")
	buffer.Close()
	startup.LogShutdownStepComplete("Event buffer flushed")

	startup.LogShutdownStep("Stopping verifier")
	cancelVerify()
	startup.LogShutdownStepComplete("Verifier stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownComplete()
}
