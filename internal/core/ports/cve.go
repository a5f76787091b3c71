package ports

import (
	"context"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
)

// CVERepository defines the interface for CVE database operations.
type CVERepository interface {
	// Ingestion. Each record is written in its own transaction and replaces any
	// previous version of the same CVE, affected products included.
	InsertCVE(ctx context.Context, cve domain.CVERecord) error
	BulkInsert(ctx context.Context, cves []domain.CVERecord) (int, []domain.IngestError)

	// Queries
	GetByID(ctx context.Context, cveID string) (*domain.CVERecord, error)
	ListCVEs(ctx context.Context) ([]domain.CVERecord, error)
	ListBySeverity(ctx context.Context, severity domain.Severity) ([]domain.CVERecord, error)
	Statistics(ctx context.Context) (domain.Statistics, error)

	// MatchAssets joins the normalized assets against affected products.
	MatchAssets(ctx context.Context, assets []domain.Asset) ([]domain.MatchResult, error)

	// Scan archive
	SaveScanResults(ctx context.Context, results []domain.ScanResult) error
	ListScanResults(ctx context.Context, limit int) ([]domain.ScanResult, error)

	// Utility
	Clear(ctx context.Context) error
	GetTotalCount(ctx context.Context) (int, error)
	Close() error
}

// CVEMatcher defines the interface for matching an asset inventory against the CVE database.
type CVEMatcher interface {
	// FindMatches normalizes the table and returns every CVE affecting one of its assets.
	FindMatches(ctx context.Context, table domain.AssetTable) ([]domain.MatchResult, error)
}

// TextGenerator is a local text-generation backend.
type TextGenerator interface {
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Generate returns the raw completion for prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// ActionPlanner enriches matches with remediation plans.
type ActionPlanner interface {
	Available(ctx context.Context) bool
	GeneratePlan(ctx context.Context, match domain.MatchResult) string
	GenerateAll(ctx context.Context, matches []domain.MatchResult, progress func(done, total int)) ([]domain.MatchResult, bool)
}

// FeedIngester validates and stores a decoded feed document.
type FeedIngester interface {
	Ingest(ctx context.Context, doc map[string]interface{}) (domain.IngestReport, error)
}
