package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lcalzada-xor/zerotrace/internal/adapters/cve"
	"github.com/lcalzada-xor/zerotrace/internal/adapters/ollama"
	"github.com/lcalzada-xor/zerotrace/internal/adapters/reporting"
	"github.com/lcalzada-xor/zerotrace/internal/adapters/storage"
	webserver "github.com/lcalzada-xor/zerotrace/internal/adapters/web/server"
	"github.com/lcalzada-xor/zerotrace/internal/config"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/actionplan"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/audit"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/ingestion"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/scan"
	"github.com/lcalzada-xor/zerotrace/internal/telemetry"
)

// Application holds the core components of the application.
// It acts as the Facade for the entire system, orchestrating services and infrastructure.
type Application struct {
	Config *config.Config

	CVERepo      *cve.SQLiteRepository
	SystemStore  *storage.SQLiteAdapter
	AuditService *audit.AuditService
	Ingestion    *ingestion.Pipeline
	SeedLoader   *cve.SeedLoader
	Planner      *actionplan.Service
	ScanService  *scan.Service
	WebServer    *webserver.Server
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config: cfg,
	}

	if err := app.bootstrap(); err != nil {
		app.Close()
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	// 1. Foundation & Infrastructure
	telemetry.InitMetrics()

	if err := app.initStorage(); err != nil {
		return err
	}

	// 2. Domain Services
	app.AuditService = audit.NewAuditService(app.SystemStore)
	app.Ingestion = ingestion.NewPipeline(app.CVERepo, app.AuditService)
	app.SeedLoader = cve.NewSeedLoader(app.Ingestion)

	generator := ollama.NewClient(ollama.Config{
		BaseURL:         app.Config.OllamaURL,
		Model:           app.Config.OllamaModel,
		ProbeTimeout:    app.Config.ProbeTimeout,
		GenerateTimeout: app.Config.GenerateTimeout,
		Temperature:     app.Config.Temperature,
		MaxTokens:       app.Config.MaxTokens,
	})
	app.Planner = actionplan.NewService(generator, actionplan.Config{
		RetryDelay: app.Config.RetryDelay,
		ProbeTTL:   app.Config.ProbeTTL,
	})

	app.ScanService = scan.NewService(
		cve.NewCVEMatcher(app.CVERepo),
		app.CVERepo,
		app.Planner,
		app.SystemStore,
		app.AuditService,
	)

	// 3. Servers
	app.WebServer = webserver.NewServer(app.Config.Addr, webserver.Services{
		Ingester: app.Ingestion,
		Repo:     app.CVERepo,
		Scans:    app.ScanService,
		Runs:     app.SystemStore,
		Planner:  app.Planner,
		Audit:    app.AuditService,
		PDF:      reporting.NewPDFExporter(),
	})

	slog.Info("Components initialized",
		"db", app.Config.DBPath,
		"audit_db", app.Config.AuditDBPath,
		"ollama", app.Config.OllamaURL,
		"model", generator.Model())
	return nil
}

func (app *Application) initStorage() error {
	for _, path := range []string{app.Config.DBPath, app.Config.AuditDBPath} {
		if path == ":memory:" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	repo, err := cve.NewSQLiteRepository(app.Config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to init CVE storage: %w", err)
	}
	app.CVERepo = repo

	store, err := storage.NewSQLiteAdapter(app.Config.AuditDBPath)
	if err != nil {
		return fmt.Errorf("failed to init system storage: %w", err)
	}
	app.SystemStore = store
	return nil
}

// Run serves the HTTP API until ctx ends.
func (app *Application) Run(ctx context.Context) error {
	slog.Info("Starting ZeroTrace components...")

	count, err := app.CVERepo.GetTotalCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to read CVE store: %w", err)
	}
	if count == 0 {
		slog.Warn("CVE store is empty; load a feed with cve_loader or POST /api/cves")
	}

	if !app.Planner.Available(ctx) {
		slog.Warn("Ollama is not reachable; action plans will be placeholders", "url", app.Config.OllamaURL)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := app.WebServer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("web server error: %w", err)
		}
	}()

	slog.Info("ZeroTrace Ready. Press Ctrl+C to terminate.", "addr", app.Config.Addr, "cves", count)

	select {
	case <-ctx.Done():
		slog.Info("Termination signal received")
	case err := <-errChan:
		app.Close()
		return err
	}

	return app.Close()
}

// Close releases both databases.
func (app *Application) Close() error {
	var firstErr error
	if app.CVERepo != nil {
		if err := app.CVERepo.Close(); err != nil {
			firstErr = err
		}
		app.CVERepo = nil
	}
	if app.SystemStore != nil {
		if err := app.SystemStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		app.SystemStore = nil
	}
	if firstErr != nil {
		log.Printf("Error closing storage: %v", firstErr)
	}
	return firstErr
}
