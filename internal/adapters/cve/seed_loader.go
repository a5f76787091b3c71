package cve

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/ports"
	"github.com/tidwall/gjson"
)

// DecodeFeed parses a raw feed document. Malformed JSON and non-object roots are
// reported as *domain.StructuralError; the shape of the "cves" member is left to
// the ingestion pipeline.
func DecodeFeed(data []byte) (map[string]interface{}, error) {
	if !gjson.ValidBytes(data) {
		return nil, domain.NewStructuralError("Invalid JSON format")
	}

	result := gjson.ParseBytes(data)
	if !result.IsObject() {
		return nil, domain.NewStructuralError("feed must have a 'cves' array at the root level")
	}

	doc, ok := result.Value().(map[string]interface{})
	if !ok {
		return nil, domain.NewStructuralError("Invalid JSON format")
	}
	return doc, nil
}

// SeedLoader loads CVE feeds from JSON files into the database.
type SeedLoader struct {
	ingester ports.FeedIngester
}

// NewSeedLoader creates a new seed loader.
func NewSeedLoader(ingester ports.FeedIngester) *SeedLoader {
	return &SeedLoader{ingester: ingester}
}

// LoadFromFile loads CVE records from a JSON feed file.
func (s *SeedLoader) LoadFromFile(ctx context.Context, filepath string) (domain.IngestReport, error) {
	log.Printf("[CVE-SEED] Loading CVEs from %s", filepath)

	data, err := os.ReadFile(filepath)
	if err != nil {
		return domain.IngestReport{}, fmt.Errorf("failed to read seed file: %w", err)
	}

	return s.LoadFromBytes(ctx, data)
}

// LoadFromBytes decodes and ingests an in-memory feed.
func (s *SeedLoader) LoadFromBytes(ctx context.Context, data []byte) (domain.IngestReport, error) {
	doc, err := DecodeFeed(data)
	if err != nil {
		return domain.IngestReport{}, err
	}

	report, err := s.ingester.Ingest(ctx, doc)
	if err != nil {
		return report, err
	}

	for _, e := range report.Errors {
		log.Printf("[CVE-SEED] Skipped %s", e)
	}
	log.Printf("[CVE-SEED] Loaded %d CVEs (%d failed)", report.Stored, report.Failed())

	return report, nil
}

// LoadFromMultipleFiles loads several feed files. A file that cannot be read or
// decoded is logged and skipped.
func (s *SeedLoader) LoadFromMultipleFiles(ctx context.Context, filepaths []string) (domain.IngestReport, error) {
	var total domain.IngestReport
	loadedFiles := 0

	for _, filepath := range filepaths {
		report, err := s.LoadFromFile(ctx, filepath)
		if err != nil {
			log.Printf("[CVE-SEED] Failed to load %s: %v", filepath, err)
			continue
		}
		total.Stored += report.Stored
		total.Errors = append(total.Errors, report.Errors...)
		loadedFiles++
	}

	log.Printf("[CVE-SEED] Loaded from %d/%d files", loadedFiles, len(filepaths))
	return total, nil
}
