// Package ingestion validates CVE feed documents and persists the valid records.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/ports"
	"github.com/lcalzada-xor/zerotrace/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Pipeline implements ports.FeedIngester.
type Pipeline struct {
	repo  ports.CVERepository
	audit ports.AuditService
}

// NewPipeline creates a pipeline writing to repo. audit may be nil.
func NewPipeline(repo ports.CVERepository, audit ports.AuditService) *Pipeline {
	return &Pipeline{repo: repo, audit: audit}
}

// Ingest validates every record of doc["cves"] and stores the valid ones. Problems with
// the document as a whole are returned as *domain.StructuralError and nothing is stored.
// Per-record validation and storage failures are collected in the report.
func (p *Pipeline) Ingest(ctx context.Context, doc map[string]interface{}) (domain.IngestReport, error) {
	ctx, span := otel.Tracer("ingestion").Start(ctx, "Ingest")
	defer span.End()

	report := domain.IngestReport{Errors: make([]domain.IngestError, 0)}

	records, err := feedRecords(doc)
	if err != nil {
		span.RecordError(err)
		return report, err
	}
	span.SetAttributes(attribute.Int("feed.records", len(records)))

	valid := make([]domain.CVERecord, 0, len(records))
	for i, item := range records {
		raw, ok := item.(map[string]interface{})
		if !ok {
			report.Errors = append(report.Errors, domain.IngestError{
				Index:  i + 1,
				CVEID:  domain.UnknownCVEID,
				Reason: "record must be an object",
				Kind:   domain.IngestErrorValidation,
			})
			continue
		}

		// RecordFromRaw validates before converting.
		rec, err := domain.RecordFromRaw(raw)
		if err != nil {
			report.Errors = append(report.Errors, domain.IngestError{
				Index:  i + 1,
				CVEID:  domain.RecordID(raw),
				Reason: err.Error(),
				Kind:   domain.IngestErrorValidation,
			})
			continue
		}
		valid = append(valid, rec)
	}

	validationFailures := len(report.Errors)

	if len(valid) > 0 {
		stored, storageErrs := p.repo.BulkInsert(ctx, valid)
		report.Stored = stored
		report.Errors = append(report.Errors, storageErrs...)
	}

	storageFailures := len(report.Errors) - validationFailures
	telemetry.CVEsIngested.Add(float64(report.Stored))
	telemetry.IngestErrors.WithLabelValues(string(domain.IngestErrorValidation)).Add(float64(validationFailures))
	telemetry.IngestErrors.WithLabelValues(string(domain.IngestErrorStorage)).Add(float64(storageFailures))

	span.SetAttributes(
		attribute.Int("ingest.stored", report.Stored),
		attribute.Int("ingest.errors", len(report.Errors)),
	)
	slog.Info("Feed ingested",
		"records", len(records),
		"stored", report.Stored,
		"validation_errors", validationFailures,
		"storage_errors", storageFailures)

	if p.audit != nil {
		details := fmt.Sprintf("stored=%d errors=%d", report.Stored, len(report.Errors))
		if err := p.audit.Log(ctx, domain.ActionIngest, fmt.Sprintf("%d records", len(records)), details); err != nil {
			slog.Warn("Failed to audit ingestion", "error", err)
		}
	}

	return report, nil
}

func feedRecords(doc map[string]interface{}) ([]interface{}, error) {
	value, ok := doc["cves"]
	if !ok {
		return nil, domain.NewStructuralError("feed must have a 'cves' array at the root level")
	}

	records, ok := value.([]interface{})
	if !ok {
		return nil, domain.NewStructuralError("'cves' must be an array")
	}

	if len(records) == 0 {
		return nil, domain.NewStructuralError("no CVEs found in feed")
	}

	return records, nil
}
