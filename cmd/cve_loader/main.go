package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/lcalzada-xor/zerotrace/internal/adapters/cve"
	"github.com/lcalzada-xor/zerotrace/internal/adapters/storage"
	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/audit"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/ingestion"
)

func main() {
	seedFile := flag.String("seed-file", "./data/sample_cves.json", "Path to CVE feed JSON file (comma separated for several)")
	dbPath := flag.String("db-path", "./data/cve_database.db", "Path to CVE database")
	auditPath := flag.String("audit-db", "", "Path to audit database (empty disables auditing)")
	flag.Parse()

	log.Println("=== CVE Feed Loader ===")
	log.Printf("Feed file(s): %s", *seedFile)
	log.Printf("Database: %s", *dbPath)

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Create repository
	repo, err := cve.NewSQLiteRepository(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	var pipeline *ingestion.Pipeline
	if *auditPath != "" {
		store, err := storage.NewSQLiteAdapter(*auditPath)
		if err != nil {
			log.Fatalf("Failed to open audit database: %v", err)
		}
		defer store.Close()
		pipeline = ingestion.NewPipeline(repo, audit.NewAuditService(store))
		ctx = audit.WithActor(ctx, domain.ActorCLI, "")
	} else {
		pipeline = ingestion.NewPipeline(repo, nil)
	}

	// Load feed data
	loader := cve.NewSeedLoader(pipeline)
	report, err := loader.LoadFromMultipleFiles(ctx, strings.Split(*seedFile, ","))
	if err != nil {
		log.Fatalf("Failed to load feed: %v", err)
	}

	for _, e := range report.Errors {
		log.Printf("  ✗ %s", e)
	}
	log.Printf("Stored %d CVEs, %d failed", report.Stored, report.Failed())

	// Show stats
	stats, err := repo.Statistics(ctx)
	if err != nil {
		log.Fatalf("Failed to read statistics: %v", err)
	}
	log.Printf("✓ Database now contains %d CVEs (CRITICAL=%d HIGH=%d MEDIUM=%d LOW=%d)",
		stats.Total, stats.Critical, stats.High, stats.Medium, stats.Low)

	if report.Stored == 0 && report.Failed() > 0 {
		os.Exit(1)
	}
}
