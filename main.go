package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"garmin-connect-sync/internal/cache"
	"garmin-connect-sync/internal/config"
	"garmin-connect-sync/internal/database"
	"garmin-connect-sync/internal/garmin"
	"garmin-connect-sync/internal/handlers"
	"garmin-connect-sync/internal/metrics"
	"garmin-connect-sync/internal/middleware"
	syncer "garmin-connect-sync/internal/sync"
)

func main() {
	// Define CLI flags
	runSync := flag.Bool("sync", false, "Run one sync invocation and exit")
	refreshCaches := flag.Bool("refresh-caches", false, "Rebuild the derived caches and exit")

	flag.Parse()

	// Check if any CLI command was requested
	if *runSync || *refreshCaches {
		runCLI(*runSync, *refreshCaches)
		return
	}

	// Otherwise, start the server
	runServer()
}

func runCLI(runSync, refreshCaches bool) {
	// Disable structured logging for CLI
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to initialize database: %v\n", err)
		os.Exit(1)
	}

	refresher := cache.NewRefresher(db, slog.Default())

	switch {
	case runSync:
		client := garmin.NewClient(cfg.Garmin.BaseURL, garmin.StaticCredential(cfg.Garmin.Token), slog.Default())
		orchestrator := syncer.NewOrchestrator(db, client, refresher, cfg, slog.Default())

		summary, err := orchestrator.Run(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Sync failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sync finished: processed=%d skipped=%d errors=%d initial=%v budgetExhausted=%v\n",
			summary.ActivitiesProcessed, summary.ActivitiesSkipped, summary.Errors,
			summary.IsInitialSync, summary.BudgetExhausted)
	case refreshCaches:
		if err := refresher.RefreshAll(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Cache refresh failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Caches refreshed.")
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set up logger
	logLevel := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting garmin-connect-sync server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"database", cfg.Database.Path,
		"log_level", cfg.Logging.Level)

	// Open database
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Init(); err != nil {
		logger.Error("Failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	logger.Info("Database opened successfully")

	// Create Garmin client and sync plumbing
	client := garmin.NewClient(cfg.Garmin.BaseURL, garmin.StaticCredential(cfg.Garmin.Token), logger)
	refresher := cache.NewRefresher(db, logger)
	orchestrator := syncer.NewOrchestrator(db, client, refresher, cfg, logger)

	// Create handlers
	syncHandler := handlers.NewSyncHandler(orchestrator, db, cfg)
	importHandler := handlers.NewImportHandler(db, refresher)

	// Set up HTTP routes
	r := chi.NewRouter()
	r.Method(http.MethodPost, "/sync", middleware.WrapHandler(metrics.EndpointSync, syncHandler.HandleSync))
	r.Method(http.MethodGet, "/status", middleware.WrapHandler(metrics.EndpointStatus, syncHandler.HandleStatus))
	r.Method(http.MethodGet, "/health", middleware.WrapHandler(metrics.EndpointHealth, syncHandler.HandleHealth))
	r.Method(http.MethodPost, "/ridewithgps-webhook", middleware.WrapHandler(metrics.EndpointRideWithGPSWebhook, syncHandler.HandleRideWithGPSWebhook))
	r.Method(http.MethodGet, "/activities-without-gps", middleware.WrapHandler(metrics.EndpointActivitiesNoGPS, importHandler.HandleActivitiesWithoutGPS))
	r.Method(http.MethodPost, "/update-gps-data", middleware.WrapHandler(metrics.EndpointUpdateGPSData, importHandler.HandleUpdateGPSData))
	r.Method(http.MethodPost, "/update-all-activities", middleware.WrapHandler(metrics.EndpointUpdateAll, importHandler.HandleUpdateAllActivities))
	r.Method(http.MethodPost, "/import-data", middleware.WrapHandler(metrics.EndpointImportData, importHandler.HandleImportData))

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  35 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Scheduled sync loop
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()

	go func() {
		logger.Info("Starting scheduled sync", "interval", cfg.Sync.Interval.String())
		ticker := time.NewTicker(cfg.Sync.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				summary, err := orchestrator.Run(schedCtx)
				if err != nil {
					if err != syncer.ErrSyncInProgress && schedCtx.Err() == nil {
						logger.Error("Scheduled sync failed", "error", err)
					}
					continue
				}
				logger.Info("Scheduled sync finished",
					"processed", summary.ActivitiesProcessed,
					"skipped", summary.ActivitiesSkipped,
					"errors", summary.Errors)
			case <-schedCtx.Done():
				return
			}
		}
	}()

	// Start cursor age collector if metrics are enabled
	if cfg.Metrics.Enabled {
		go func() {
			logger.Info("Starting cursor age collector")
			metrics.StartCursorAgeCollector(schedCtx, db, database.KeyLastSyncTime, 15*time.Second)
		}()
	}

	// Start metrics server if enabled
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())

		metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port)
		metricsServer = &http.Server{
			Addr:    metricsAddr,
			Handler: metricsMux,
		}

		go func() {
			logger.Info("Metrics server listening", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Start HTTP server in background
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")

	schedCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", "error", err)
		}
	}

	logger.Info("Server stopped")
}
