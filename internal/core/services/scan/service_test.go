package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lcalzada-xor/zerotrace/internal/adapters/cve"
	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPlanner is a mock implementation of ports.ActionPlanner
type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) Available(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockPlanner) GeneratePlan(ctx context.Context, match domain.MatchResult) string {
	return m.Called(ctx, match).String(0)
}

func (m *MockPlanner) GenerateAll(ctx context.Context, matches []domain.MatchResult, progress func(done, total int)) ([]domain.MatchResult, bool) {
	args := m.Called(ctx, matches)
	out := make([]domain.MatchResult, len(matches))
	for i, match := range matches {
		match.ActionPlan = "plan for " + match.CVEID
		out[i] = match
		if progress != nil {
			progress(i+1, len(matches))
		}
	}
	return out, args.Bool(0)
}

// MockRunRepository is a mock implementation of ports.ScanRunRepository
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) SaveScanRun(ctx context.Context, run domain.ScanRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockRunRepository) ListScanRuns(ctx context.Context, limit int) ([]domain.ScanRun, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.ScanRun), args.Error(1)
}

func seededRepo(t *testing.T) *cve.SQLiteRepository {
	t.Helper()
	repo, err := cve.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	high, critical := 7.5, 5.9
	_, failures := repo.BulkInsert(context.Background(), []domain.CVERecord{
		{ID: "CVE-2014-0160", Description: "Heartbleed", Severity: domain.SeverityHigh, CVSSScore: &high,
			AffectedProducts: []domain.AffectedProduct{{Software: "OpenSSL", Version: "1.0.1"}}},
		{ID: "CVE-2016-2107", Description: "Padding oracle", Severity: domain.SeverityCritical, CVSSScore: &critical,
			AffectedProducts: []domain.AffectedProduct{{Software: "OpenSSL", Version: "1.0.1"}}},
	})
	require.Empty(t, failures)
	return repo
}

func newTestService(repo *cve.SQLiteRepository, planner *MockPlanner, runs *MockRunRepository) *Service {
	var p ports.ActionPlanner
	if planner != nil {
		p = planner
	}
	var r ports.ScanRunRepository
	if runs != nil {
		r = runs
	}
	svc := NewService(cve.NewCVEMatcher(repo), repo, p, r, nil)
	svc.newID = func() string { return "scan-fixed" }
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

func opensslTable() domain.AssetTable {
	return domain.NewAssetTable([]domain.Asset{
		{Software: "openssl", Version: "1.0.1"},
		{Software: "nginx", Version: "1.20.0"},
	})
}

func TestRun_MatchesWithoutPlans(t *testing.T) {
	repo := seededRepo(t)
	runs := new(MockRunRepository)
	runs.On("SaveScanRun", mock.Anything, mock.MatchedBy(func(r domain.ScanRun) bool {
		return r.ScanID == "scan-fixed" && r.Summary.Total == 2 && !r.Archived
	})).Return(nil)

	svc := newTestService(repo, nil, runs)

	report, err := svc.Run(context.Background(), opensslTable(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "scan-fixed", report.ScanID)
	assert.Equal(t, 2, report.AssetCount)
	require.Len(t, report.Matches, 2)
	assert.Equal(t, "CVE-2016-2107", report.Matches[0].CVEID)
	assert.Empty(t, report.Matches[0].ActionPlan)
	assert.Equal(t, domain.Statistics{Critical: 1, High: 1, Total: 2}, report.Summary)
	assert.Equal(t, 8.4, report.Risk.Score)
	assert.Equal(t, "Critical", report.Risk.Level)
	require.Len(t, report.Risk.TopRisks, 2)
	assert.Equal(t, "CVE-2014-0160", report.Risk.TopRisks[0].CVEID)

	last, ok := svc.Session().Last()
	require.True(t, ok)
	assert.Equal(t, report.ScanID, last.ScanID)
	runs.AssertExpectations(t)
}

func TestRun_WithPlansAndArchive(t *testing.T) {
	repo := seededRepo(t)
	planner := new(MockPlanner)
	planner.On("GenerateAll", mock.Anything, mock.Anything).Return(true)

	svc := newTestService(repo, planner, nil)

	var progress []int
	var progressIDs []string
	report, err := svc.Run(context.Background(), opensslTable(), Options{
		GeneratePlans: true,
		Archive:       true,
		Progress: func(scanID string, done, total int) {
			progressIDs = append(progressIDs, scanID)
			progress = append(progress, done)
		},
	})
	require.NoError(t, err)

	assert.True(t, report.PlansAvailable)
	assert.True(t, report.Archived)
	assert.Equal(t, []int{1, 2}, progress)
	assert.Equal(t, []string{"scan-fixed", "scan-fixed"}, progressIDs)
	planner.AssertNotCalled(t, "Available", mock.Anything)
	assert.Equal(t, "plan for CVE-2016-2107", report.Matches[0].ActionPlan)

	archived, err := repo.ListScanResults(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, archived, 2)
	for _, r := range archived {
		assert.Equal(t, "scan-fixed", r.ScanID)
		assert.Contains(t, r.ActionPlan, "plan for ")
	}
}

func TestRun_NoMatchesSkipsPlanner(t *testing.T) {
	repo := seededRepo(t)
	planner := new(MockPlanner)

	svc := newTestService(repo, planner, nil)

	report, err := svc.Run(context.Background(),
		domain.NewAssetTable([]domain.Asset{{Software: "redis", Version: "7.0"}}),
		Options{GeneratePlans: true})
	require.NoError(t, err)

	assert.Empty(t, report.Matches)
	assert.Equal(t, 0, report.Summary.Total)
	planner.AssertNotCalled(t, "Available", mock.Anything)
}

func TestRun_InvalidTableKeepsSession(t *testing.T) {
	repo := seededRepo(t)
	svc := newTestService(repo, nil, nil)

	_, err := svc.Run(context.Background(), opensslTable(), Options{})
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), domain.AssetTable{Columns: []string{"software"}}, Options{})
	var mie *domain.MatchInputError
	require.True(t, errors.As(err, &mie))

	last, ok := svc.Session().Last()
	require.True(t, ok)
	assert.Equal(t, 2, last.AssetCount)
}

func TestArchive_LastReport(t *testing.T) {
	repo := seededRepo(t)
	svc := newTestService(repo, nil, nil)

	_, err := svc.Archive(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Run(context.Background(), opensslTable(), Options{})
	require.NoError(t, err)

	report, err := svc.Archive(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Archived)

	// Archiving twice does not duplicate rows.
	_, err = svc.Archive(context.Background())
	require.NoError(t, err)

	archived, err := repo.ListScanResults(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, archived, 2)
}

func TestRun_PlansAvailableFollowsBatchProbe(t *testing.T) {
	repo := seededRepo(t)
	planner := new(MockPlanner)
	planner.On("GenerateAll", mock.Anything, mock.Anything).Return(false)

	svc := newTestService(repo, planner, nil)

	report, err := svc.Run(context.Background(), opensslTable(), Options{GeneratePlans: true})
	require.NoError(t, err)

	assert.False(t, report.PlansAvailable)
	planner.AssertNumberOfCalls(t, "GenerateAll", 1)
	planner.AssertNotCalled(t, "Available", mock.Anything)
}
