// Package main is the entry point for the hive-api server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/hivehq/hive-api/internal/config"
	"github.com/hivehq/hive-api/internal/database"
	"github.com/hivehq/hive-api/internal/http/handlers"
	"github.com/hivehq/hive-api/internal/http/mw"
	"github.com/hivehq/hive-api/internal/logging"
	"github.com/hivehq/hive-api/internal/recordstore"
	"github.com/hivehq/hive-api/internal/repository"
	"github.com/hivehq/hive-api/internal/service"
	"github.com/hivehq/hive-api/internal/shutdown"
	"github.com/hivehq/hive-api/internal/version"
	"github.com/hivehq/hive-api/internal/worker"
)

func main() {
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting hive-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	schemaVersion, err := database.GetLatestSchemaVersion(db)
	if err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		migrationCount, _ := database.GetMigrationCount(db)
		logger.Info("database schema ready", "schema_version", schemaVersion, "migrations_applied", migrationCount)
	}

	// Record store backend: hosted Airtable workspace or the local database
	var store recordstore.Client
	if cfg.UsesAirtable() {
		store = recordstore.NewAirtableClient(cfg.AirtableEndpoint, cfg.AirtableBaseID, cfg.AirtableAPIKey, logger)
		logger.Info("record store backend", "mode", "airtable", "base", cfg.AirtableBaseID)
	} else {
		store = recordstore.NewSQLiteStore(db)
		logger.Info("record store backend", "mode", "local")
	}

	repos := repository.New(store, db)

	services, err := service.NewServices(cfg, repos, store, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Background worker for queued diagnostic runs
	runWorker := worker.New(repos.Diagnostics, services.Diagnostic, worker.Config{
		PollInterval: cfg.WorkerPollInterval,
		Concurrency:  cfg.WorkerConcurrency,
	}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	runWorker.Start(ctx)

	// Idle monitoring for scale-to-zero deployments
	idleMonitor := shutdown.NewIdleMonitor(shutdown.Config{
		Timeout:      cfg.IdleTimeout,
		Logger:       logger,
		ExcludePaths: []string{"/healthz", "/readyz"},
		BusyCheck:    runWorker.Busy,
	})
	idleMonitor.Start()

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(idleMonitor.Middleware)

	// Request timeout middleware with different timeouts per endpoint type
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:  30 * time.Second,
		Extended: 5 * time.Minute,
		// LLM-backed operations get the extended timeout
		ExtendedPatterns: []string{"/plans", "/context/refresh", "/logo"},
		SkipPatterns:     []string{"/webhooks"},
	}))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit (1MB)
	router.Use(middleware.RequestSize(1 * 1024 * 1024))

	// Global rate limit by IP
	router.Use(httprate.LimitByIP(100, time.Minute))

	humaConfig := huma.DefaultConfig("Hive OS API", v.Version)
	humaConfig.Info.Description = "Marketing operations backend: company context graphs, LLM diagnostics, growth plans and purchase-intent tracking."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:        "http",
			Scheme:      "bearer",
			Description: "JWT issued by the identity platform.",
		},
	}

	api := humachi.New(router, humaConfig)

	// K8s probes get their own config without docs
	hiddenConfig := huma.DefaultConfig("Hive OS API", v.Version)
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	protectedConfig := huma.DefaultConfig("Hive OS API", v.Version)
	protectedConfig.Info.Description = humaConfig.Info.Description
	protectedConfig.Servers = humaConfig.Servers
	protectedConfig.DocsPath = ""
	protectedConfig.OpenAPIPath = ""
	protectedConfig.SchemasPath = ""

	// Health check (public, shown in docs)
	huma.Get(api, "/api/v1/health", handlers.HealthCheck)

	// Kubernetes probes (hidden from docs)
	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	readyzHandler := handlers.NewReadyzHandler(db)
	huma.Get(hiddenAPI, "/readyz", readyzHandler.Readyz)

	// Webhooks (signature verified by handler, not user auth)
	if cfg.StripeWebhookSecret != "" {
		stripeWebhook := handlers.NewStripeWebhookHandler(cfg, services.Billing, logger)
		router.Post("/api/v1/webhooks/stripe", stripeWebhook.HandleWebhook)
		logger.Info("stripe webhook endpoint enabled")
	}
	if cfg.PlatformWebhookSecret != "" {
		platformWebhook := handlers.NewPlatformWebhookHandler(cfg, repos, services.Diagnostic, logger)
		router.Post("/api/v1/webhooks/platform", platformWebhook.HandleWebhook)
		logger.Info("platform webhook endpoint enabled")
	}

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(cfg.JWTSecret))

		protectedAPI := humachi.New(r, protectedConfig)

		companiesHandler := handlers.NewCompaniesHandler(repos.Companies, services.Encryptor, services.Logo)
		huma.Get(protectedAPI, "/api/v1/companies", companiesHandler.ListCompanies)
		huma.Post(protectedAPI, "/api/v1/companies", companiesHandler.CreateCompany)
		huma.Get(protectedAPI, "/api/v1/companies/{id}", companiesHandler.GetCompany)
		huma.Put(protectedAPI, "/api/v1/companies/{id}", companiesHandler.UpdateCompany)
		huma.Delete(protectedAPI, "/api/v1/companies/{id}", companiesHandler.DeleteCompany)
		huma.Put(protectedAPI, "/api/v1/companies/{id}/google", companiesHandler.ConnectGoogle)
		huma.Post(protectedAPI, "/api/v1/companies/{id}/logo", companiesHandler.GrabLogo)

		contextHandler := handlers.NewContextHandler(repos.Companies, services.Context)
		huma.Get(protectedAPI, "/api/v1/companies/{id}/context", contextHandler.GetContext)
		huma.Post(protectedAPI, "/api/v1/companies/{id}/context/refresh", contextHandler.RefreshContext)

		diagnosticsHandler := handlers.NewDiagnosticsHandler(repos.Companies, services.Diagnostic)
		huma.Get(protectedAPI, "/api/v1/companies/{id}/runs", diagnosticsHandler.ListRuns)
		huma.Get(protectedAPI, "/api/v1/runs/{runID}", diagnosticsHandler.GetRun)
		huma.Get(protectedAPI, "/api/v1/runs/{runID}/findings", diagnosticsHandler.GetRunFindings)
		huma.Get(protectedAPI, "/api/v1/runs/{runID}/details", diagnosticsHandler.GetRunDetails)
		huma.Delete(protectedAPI, "/api/v1/runs/{runID}", diagnosticsHandler.DeleteRun)

		growthHandler := handlers.NewGrowthHandler(repos.Companies, services.Growth)
		huma.Get(protectedAPI, "/api/v1/companies/{id}/plans", growthHandler.ListPlans)
		huma.Get(protectedAPI, "/api/v1/plans/{planID}", growthHandler.GetPlan)
		huma.Get(protectedAPI, "/api/v1/plans/{planID}/items", growthHandler.GetPlanItems)
		huma.Patch(protectedAPI, "/api/v1/plans/{planID}/items/{itemID}", growthHandler.UpdateWorkItem)
	})

	// Plan-gated routes: run and plan generation need an active subscription
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(cfg.JWTSecret))
		r.Use(mw.RequirePlan(services.Billing))

		gatedAPI := humachi.New(r, protectedConfig)

		diagnosticsHandler := handlers.NewDiagnosticsHandler(repos.Companies, services.Diagnostic)
		huma.Post(gatedAPI, "/api/v1/companies/{id}/runs", diagnosticsHandler.CreateRun)

		growthHandler := handlers.NewGrowthHandler(repos.Companies, services.Growth)
		huma.Post(gatedAPI, "/api/v1/companies/{id}/plans", growthHandler.GeneratePlan)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on signal or idle timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			logger.Info("shutting down server", "signal", sig.String())
		case <-idleMonitor.ShutdownChan():
			logger.Info("shutting down server", "reason", "idle timeout")
		}

		cancel()
		idleMonitor.Stop()

		// Give in-flight runs the configured grace period
		workerDone := make(chan struct{})
		go func() {
			runWorker.Stop()
			close(workerDone)
		}()
		select {
		case <-workerDone:
		case <-time.After(cfg.WorkerShutdownGracePeriod):
			logger.Warn("worker shutdown grace period exceeded")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
