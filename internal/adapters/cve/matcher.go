package cve

import (
	"context"
	"fmt"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// CVEMatcherEngine implements ports.CVEMatcher.
type CVEMatcherEngine struct {
	repo ports.CVERepository
}

// NewCVEMatcher creates a new CVE matcher engine.
func NewCVEMatcher(repo ports.CVERepository) *CVEMatcherEngine {
	return &CVEMatcherEngine{repo: repo}
}

// FindMatches normalizes the asset table and returns every CVE whose affected products
// equal an asset after case and whitespace folding. Table problems are reported as
// *domain.MatchInputError before the store is queried.
func (m *CVEMatcherEngine) FindMatches(ctx context.Context, table domain.AssetTable) ([]domain.MatchResult, error) {
	ctx, span := otel.Tracer("cve-matcher").Start(ctx, "FindMatches")
	defer span.End()

	assets, err := domain.NormalizeAssets(table)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("assets.count", len(assets)))

	matches, err := m.repo.MatchAssets(ctx, assets)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("match assets: %w", err)
	}

	matches = m.deduplicateAndSort(matches)
	span.SetAttributes(attribute.Int("matches.count", len(matches)))

	return matches, nil
}

// deduplicateAndSort collapses repeated (CVE, software, version) triples and orders by
// severity rank, then score descending.
func (m *CVEMatcherEngine) deduplicateAndSort(matches []domain.MatchResult) []domain.MatchResult {
	unique := domain.DeduplicateMatches(matches)
	domain.SortMatches(unique)
	return unique
}
