package cve

import (
	"context"
	"errors"
	"testing"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCVEMatcher(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	testCVEs := []domain.CVERecord{
		{
			ID:          "CVE-2014-0160",
			Description: "Heartbleed",
			Severity:    domain.SeverityHigh,
			CVSSScore:   scorePtr(7.5),
			AffectedProducts: []domain.AffectedProduct{
				{Software: "OpenSSL", Version: "1.0.1"},
			},
		},
		{
			ID:          "CVE-2016-2107",
			Description: "Padding oracle in AES-NI CBC MAC check",
			Severity:    domain.SeverityCritical,
			CVSSScore:   scorePtr(5.9),
			AffectedProducts: []domain.AffectedProduct{
				{Software: "OpenSSL", Version: "1.0.1"},
				{Software: "OpenSSL", Version: "1.0.2"},
			},
		},
		{
			ID:          "CVE-2021-23017",
			Description: "nginx resolver off-by-one",
			Severity:    domain.SeverityHigh,
			CVSSScore:   scorePtr(7.7),
			AffectedProducts: []domain.AffectedProduct{
				{Software: "nginx", Version: "1.20.0"},
			},
		},
	}

	for _, cve := range testCVEs {
		if err := repo.InsertCVE(ctx, cve); err != nil {
			t.Fatalf("Failed to seed CVE: %v", err)
		}
	}

	matcher := NewCVEMatcher(repo)

	t.Run("OrdersBySeverityThenScore", func(t *testing.T) {
		table := domain.NewAssetTable([]domain.Asset{{Software: "OpenSSL", Version: "1.0.1"}})

		matches, err := matcher.FindMatches(ctx, table)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "CVE-2016-2107", matches[0].CVEID)
		assert.Equal(t, "CVE-2014-0160", matches[1].CVEID)
	})

	t.Run("CaseAndWhitespaceInsensitiveSingleMatch", func(t *testing.T) {
		table := domain.AssetTable{
			Columns: []string{"software", "version"},
			Rows: []map[string]string{
				{"software": "  NGINX ", "version": "1.20.0"},
				{"software": "nginx", "version": " 1.20.0"},
			},
		}

		matches, err := matcher.FindMatches(ctx, table)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "CVE-2021-23017", matches[0].CVEID)
		assert.Equal(t, "nginx", matches[0].Software)
	})

	t.Run("NoMatchIsNotAnError", func(t *testing.T) {
		table := domain.NewAssetTable([]domain.Asset{{Software: "OpenSSL", Version: "3.0.0"}})

		matches, err := matcher.FindMatches(ctx, table)
		require.NoError(t, err)
		assert.NotNil(t, matches)
		assert.Empty(t, matches)
	})

	t.Run("VersionIsExactNotRange", func(t *testing.T) {
		table := domain.NewAssetTable([]domain.Asset{{Software: "OpenSSL", Version: "1.0.1g"}})

		matches, err := matcher.FindMatches(ctx, table)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("MissingVersionColumn", func(t *testing.T) {
		table := domain.AssetTable{
			Columns: []string{"software"},
			Rows:    []map[string]string{{"software": "nginx"}},
		}

		_, err := matcher.FindMatches(ctx, table)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "version")

		var mie *domain.MatchInputError
		assert.True(t, errors.As(err, &mie))
	})

	t.Run("AgreesWithInMemoryJoin", func(t *testing.T) {
		assets := []domain.Asset{
			{Software: "openssl", Version: "1.0.2"},
			{Software: "OpenSSL", Version: "1.0.1"},
			{Software: "nginx", Version: "1.20.0"},
		}

		matches, err := matcher.FindMatches(ctx, domain.NewAssetTable(assets))
		require.NoError(t, err)

		stored, err := repo.ListCVEs(ctx)
		require.NoError(t, err)
		expected := domain.JoinAssets(stored, assets)

		key := func(ms []domain.MatchResult) []string {
			var out []string
			for _, m := range ms {
				out = append(out, m.CVEID+"|"+m.Software+"|"+m.Version)
			}
			return out
		}
		assert.ElementsMatch(t, key(expected), key(matches))
		assert.Equal(t, domain.SeverityCritical, matches[0].Severity)
	})
}
