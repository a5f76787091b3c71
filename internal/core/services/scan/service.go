// Package scan runs asset inventories against the CVE store and keeps the last
// report for export.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/ports"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/reporting"
	"github.com/lcalzada-xor/zerotrace/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Options selects the optional stages of a scan.
type Options struct {
	GeneratePlans bool
	Archive       bool
	// Progress is called after each action plan when GeneratePlans is set.
	Progress func(scanID string, done, total int)
}

// Session holds the most recent scan report. It is the only state shared between
// a scan and later export requests.
type Session struct {
	mu   sync.RWMutex
	last *domain.ScanReport
}

// Last returns the most recent report.
func (s *Session) Last() (domain.ScanReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return domain.ScanReport{}, false
	}
	return *s.last, true
}

// Store replaces the most recent report.
func (s *Session) Store(report domain.ScanReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &report
}

// Reset forgets the most recent report.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = nil
}

// Service orchestrates matching, plan generation and archiving.
type Service struct {
	matcher ports.CVEMatcher
	repo    ports.CVERepository
	planner ports.ActionPlanner
	runs    ports.ScanRunRepository
	audit   ports.AuditService
	session *Session
	risk    *reporting.RiskCalculator

	newID func() string
	now   func() time.Time
}

// NewService wires a scan service. planner, runs and audit may be nil.
func NewService(matcher ports.CVEMatcher, repo ports.CVERepository, planner ports.ActionPlanner,
	runs ports.ScanRunRepository, audit ports.AuditService) *Service {
	return &Service{
		matcher: matcher,
		repo:    repo,
		planner: planner,
		runs:    runs,
		audit:   audit,
		session: &Session{},
		risk:    reporting.NewRiskCalculator(),
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Session returns the session holding the last report.
func (s *Service) Session() *Session { return s.session }

// Run matches table against the store. Malformed tables are reported as
// *domain.MatchInputError and leave the session untouched.
func (s *Service) Run(ctx context.Context, table domain.AssetTable, opts Options) (domain.ScanReport, error) {
	ctx, span := otel.Tracer("scan").Start(ctx, "Run")
	defer span.End()

	assets, err := domain.NormalizeAssets(table)
	if err != nil {
		telemetry.ScansTotal.WithLabelValues("invalid").Inc()
		return domain.ScanReport{}, err
	}

	report := domain.ScanReport{
		ScanID:         s.newID(),
		GeneratedAt:    s.now(),
		AssetCount:     len(assets),
		PlansRequested: opts.GeneratePlans,
	}
	span.SetAttributes(
		attribute.String("scan.id", report.ScanID),
		attribute.Int("assets.count", len(assets)),
	)

	matches, err := s.matcher.FindMatches(ctx, domain.NewAssetTable(assets))
	if err != nil {
		telemetry.ScansTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return domain.ScanReport{}, err
	}

	if opts.GeneratePlans && s.planner != nil && len(matches) > 0 {
		var progress func(done, total int)
		if opts.Progress != nil {
			progress = func(done, total int) { opts.Progress(report.ScanID, done, total) }
		}
		matches, report.PlansAvailable = s.planner.GenerateAll(ctx, matches, progress)
	}

	report.Matches = matches
	report.Summary = domain.Summarize(matches)
	report.Risk = s.risk.Assess(matches, report.AssetCount, reporting.DefaultTopRisks)
	for _, sev := range domain.Severities {
		if n := len(domain.FilterBySeverity(matches, sev)); n > 0 {
			telemetry.MatchesFound.WithLabelValues(string(sev)).Add(float64(n))
		}
	}

	if opts.Archive {
		if err := s.archive(ctx, report); err != nil {
			telemetry.ScansTotal.WithLabelValues("error").Inc()
			span.RecordError(err)
			return domain.ScanReport{}, err
		}
		report.Archived = true
	}

	telemetry.ScansTotal.WithLabelValues("ok").Inc()
	s.session.Store(report)
	s.recordRun(ctx, report)

	slog.Info("Scan completed",
		"scan_id", report.ScanID,
		"assets", report.AssetCount,
		"matches", report.Summary.Total,
		"critical", report.Summary.Critical,
		"risk", report.Risk.Score,
		"archived", report.Archived)

	s.auditLog(ctx, domain.ActionScan, report.ScanID,
		fmt.Sprintf("assets=%d matches=%d plans=%t", report.AssetCount, report.Summary.Total, report.PlansRequested))

	return report, nil
}

// Archive stores the session's last report as scan results. It is a no-op when
// that report was already archived.
func (s *Service) Archive(ctx context.Context) (domain.ScanReport, error) {
	report, ok := s.session.Last()
	if !ok {
		return domain.ScanReport{}, domain.ErrNotFound
	}
	if report.Archived {
		return report, nil
	}

	if err := s.archive(ctx, report); err != nil {
		return domain.ScanReport{}, err
	}
	report.Archived = true
	s.session.Store(report)
	s.recordRun(ctx, report)
	return report, nil
}

func (s *Service) archive(ctx context.Context, report domain.ScanReport) error {
	results := make([]domain.ScanResult, 0, len(report.Matches))
	for _, m := range report.Matches {
		results = append(results, domain.ScanResult{
			ScanID:        report.ScanID,
			AssetSoftware: m.Software,
			AssetVersion:  m.Version,
			CVEID:         m.CVEID,
			Severity:      m.Severity,
			ActionPlan:    m.ActionPlan,
			CreatedAt:     report.GeneratedAt,
		})
	}

	if err := s.repo.SaveScanResults(ctx, results); err != nil {
		return fmt.Errorf("archive scan %s: %w", report.ScanID, err)
	}

	s.auditLog(ctx, domain.ActionArchive, report.ScanID, fmt.Sprintf("results=%d", len(results)))
	return nil
}

func (s *Service) recordRun(ctx context.Context, report domain.ScanReport) {
	if s.runs == nil {
		return
	}
	run := domain.ScanRun{
		ScanID:         report.ScanID,
		StartedAt:      report.GeneratedAt,
		AssetCount:     report.AssetCount,
		Summary:        report.Summary,
		PlansAvailable: report.PlansAvailable,
		Archived:       report.Archived,
	}
	if err := s.runs.SaveScanRun(ctx, run); err != nil {
		slog.Warn("Failed to record scan run", "scan_id", report.ScanID, "error", err)
	}
}

func (s *Service) auditLog(ctx context.Context, action domain.AuditAction, target, details string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, action, target, details); err != nil {
		slog.Warn("Failed to write audit log", "action", action, "error", err)
	}
}
