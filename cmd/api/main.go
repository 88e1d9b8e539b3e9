package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/bookkeeper/internal/api/handlers"
	"github.com/dvloznov/bookkeeper/internal/api/middleware"
	"github.com/dvloznov/bookkeeper/internal/books"
	"github.com/dvloznov/bookkeeper/internal/config"
	infraBQ "github.com/dvloznov/bookkeeper/internal/infra/bigquery"
	"github.com/dvloznov/bookkeeper/internal/jobs"
	"github.com/dvloznov/bookkeeper/internal/jobs/inmemory"
	"github.com/dvloznov/bookkeeper/internal/logger"
	"github.com/dvloznov/bookkeeper/internal/storage"
	"github.com/dvloznov/bookkeeper/internal/xmlcodec"
)

func main() {
	// Parse command-line flags
	var (
		envFile = flag.String("env", ".env", "Optional .env file")
		port    = flag.String("port", "", "HTTP server port (defaults to API_PORT)")
	)
	flag.Parse()

	log := logger.New()
	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *port != "" {
		cfg.APIPort = *port
	}

	// Initialize logger
	log = logger.NewConsole(os.Stderr, cfg.LogLevel)

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	// Open the book and its settings
	dataStore, closeData, err := storage.Open(ctx, cfg, cfg.DataFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open data store")
	}
	defer closeData()

	settingsBacking, closeSettings, err := storage.Open(ctx, cfg, cfg.SettingsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open settings store")
	}
	defer closeSettings()

	bookOpts := []books.Option{books.WithLogger(log)}
	if cfg.LenientDates {
		bookOpts = append(bookOpts, books.WithDecoderOptions(xmlcodec.WithBestEffortDates(time.Now)))
	}
	book, err := books.Open(ctx, dataStore, bookOpts...)
	if err != nil {
		log.Fatal().Err(err).Str("location", dataStore.Location()).Msg("Failed to load book")
	}
	if skipped := book.Skipped(); len(skipped) > 0 {
		log.Warn().Int("skipped", len(skipped)).Msg("Some transactions could not be read")
	}

	settings := books.NewSettingsStore(settingsBacking)
	if _, err := settings.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	runnerOpts := []books.RunnerOption{books.WithRunnerLogger(log)}

	if cfg.GCSBucket == "" {
		log.Warn().Msg("No GCS bucket configured - backups go to the local data directory")
	}
	backup, closeBackup, err := storage.OpenBackup(ctx, cfg, "")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open backup store")
	}
	defer closeBackup()
	runnerOpts = append(runnerOpts, books.WithBackupStore(backup))

	if cfg.BQProject != "" {
		exporter, err := infraBQ.NewExporter(ctx, cfg.BQProject, cfg.BQDataset, cfg.BQTable, cfg.ClientOptions()...)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery exporter")
		}
		defer exporter.Close()
		runnerOpts = append(runnerOpts, books.WithExporter(exporter))
	} else {
		log.Warn().Msg("No BigQuery project configured - exports will fail")
	}

	runner := books.NewRunner(book, jobStore, runnerOpts...)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Msg("Starting job worker")
		if err := runner.Start(workerCtx); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	autosaver := books.NewAutosaver(book, settings, runner, log)

	// Initialize handlers
	transactionsHandler := handlers.NewTransactionsHandler(book, log)
	statsHandler := handlers.NewStatsHandler(book, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, runner, log)

	// Create router
	mux := http.NewServeMux()

	// Transactions endpoints
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			transactionsHandler.ListTransactions(w, r)
		case http.MethodPost:
			transactionsHandler.CreateTransaction(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			transactionsHandler.GetTransaction(w, r, id)
		case http.MethodPatch:
			transactionsHandler.UpdateTransaction(w, r, id)
		case http.MethodDelete:
			transactionsHandler.DeleteTransaction(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Categories endpoints
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.ListCategories(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Statistics endpoints
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			statsHandler.GetStats(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/loans", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			statsHandler.ListLoans(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/work", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			statsHandler.GetWork(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Background job endpoints
	for path, typ := range map[string]jobs.JobType{
		"/api/save":   jobs.JobTypeSave,
		"/api/backup": jobs.JobTypeBackup,
		"/api/export": jobs.JobTypeExport,
	} {
		enqueue := jobsHandler.Enqueue(typ)
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				enqueue(w, r)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		})
	}

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract job ID from path
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		if !book.LoadSucceeded() {
			status = "degraded"
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status":   status,
			"location": dataStore.Location(),
			"time":     time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(cfg.APIToken)(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.APIPort).Str("location", dataStore.Location()).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Queued auto saves and save on close run before the worker stops
	if err := autosaver.Flush(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Auto save failed")
	}
	if err := autosaver.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Final save failed")
	}

	// Stop job queue and wait for in-flight jobs
	cancelWorker()
	if err := runner.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
