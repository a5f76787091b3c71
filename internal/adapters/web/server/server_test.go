package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lcalzada-xor/zerotrace/internal/adapters/cve"
	"github.com/lcalzada-xor/zerotrace/internal/adapters/reporting"
	"github.com/lcalzada-xor/zerotrace/internal/adapters/storage"
	"github.com/lcalzada-xor/zerotrace/internal/adapters/web/server"
	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/audit"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/ingestion"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/scan"
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
		match.ActionPlan = "1. Patch " + match.Software
		out[i] = match
		if progress != nil {
			progress(i+1, len(matches))
		}
	}
	return out, args.Bool(0)
}

const opensslFeed = `{"cves": [
  {"cve_id": "CVE-2014-0160", "description": "Heartbleed", "severity": "HIGH", "cvss_score": 7.5,
   "published_date": "2014-04-07", "affected_products": [{"software": "OpenSSL", "version": "1.0.1"}]},
  {"cve_id": "CVE-2016-2107", "description": "Padding oracle", "severity": "CRITICAL", "cvss_score": 5.9,
   "affected_products": [{"software": "OpenSSL", "version": "1.0.1"}]},
  {"cve_id": "CVE-BAD", "severity": "HIGH", "affected_products": []}
]}`

const inventoryCSV = "software,version\nopenssl,1.0.1\nnginx,1.20.0\n"

// setupServer wires a server over in-memory stores
func setupServer(t *testing.T) (http.Handler, *MockPlanner) {
	repo, err := cve.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	store, err := storage.NewSQLiteAdapter(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	auditSvc := audit.NewAuditService(store)
	planner := new(MockPlanner)

	scans := scan.NewService(cve.NewCVEMatcher(repo), repo, planner, store, auditSvc)
	srv := server.NewServer(":0", server.Services{
		Ingester: ingestion.NewPipeline(repo, auditSvc),
		Repo:     repo,
		Scans:    scans,
		Runs:     store,
		Planner:  planner,
		Audit:    auditSvc,
		PDF:      reporting.NewPDFExporter(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return srv.Handler(ctx), planner
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func TestServer_IngestAndQuery(t *testing.T) {
	h, _ := setupServer(t)

	rr := do(t, h, http.MethodPost, "/api/cves", opensslFeed)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report domain.IngestReport
	decode(t, rr, &report)
	assert.Equal(t, 2, report.Stored)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 3, report.Errors[0].Index)

	rr = do(t, h, http.MethodGet, "/api/stats", "")
	var stats domain.Statistics
	decode(t, rr, &stats)
	assert.Equal(t, domain.Statistics{Critical: 1, High: 1, Total: 2}, stats)

	rr = do(t, h, http.MethodGet, "/api/cves?severity=high", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		CVEs  []domain.CVERecord `json:"cves"`
		Count int                `json:"count"`
	}
	decode(t, rr, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "CVE-2014-0160", list.CVEs[0].ID)

	rr = do(t, h, http.MethodGet, "/api/cves/CVE-2016-2107", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var record domain.CVERecord
	decode(t, rr, &record)
	require.Len(t, record.AffectedProducts, 1)
	assert.Equal(t, "OpenSSL", record.AffectedProducts[0].Software)

	rr = do(t, h, http.MethodGet, "/api/cves/CVE-0000-0000", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/cves?severity=SEVERE", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_IngestStructuralErrors(t *testing.T) {
	h, _ := setupServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"Invalid JSON", `{"cves": [`, "Invalid JSON format"},
		{"Missing cves", `{"items": []}`, "'cves'"},
		{"Empty cves", `{"cves": []}`, "no CVEs found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/cves", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.want)
		})
	}
}

func TestServer_ScanExportAndHistory(t *testing.T) {
	h, planner := setupServer(t)
	planner.On("GenerateAll", mock.Anything, mock.Anything).Return(true)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/cves", opensslFeed).Code)

	rr := do(t, h, http.MethodGet, "/api/scan/last", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/scan?plans=true&archive=true", inventoryCSV)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report domain.ScanReport
	decode(t, rr, &report)
	require.Len(t, report.Matches, 2)
	assert.Equal(t, "CVE-2016-2107", report.Matches[0].CVEID)
	assert.Equal(t, "OpenSSL", report.Matches[0].Software)
	assert.Equal(t, "1. Patch OpenSSL", report.Matches[0].ActionPlan)
	assert.True(t, report.Archived)

	rr = do(t, h, http.MethodGet, "/api/scan/last", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/export?format=csv", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "CVE ID,Software,Version"))

	rr = do(t, h, http.MethodGet, "/api/export?format=pdf", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF")))

	rr = do(t, h, http.MethodGet, "/api/export?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/scans?limit=10", "")
	var results struct {
		Results []domain.ScanResult `json:"results"`
	}
	decode(t, rr, &results)
	assert.Len(t, results.Results, 2)

	rr = do(t, h, http.MethodGet, "/api/scan-runs", "")
	var runs struct {
		Runs []domain.ScanRun `json:"runs"`
	}
	decode(t, rr, &runs)
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, report.ScanID, runs.Runs[0].ScanID)
	assert.Equal(t, 2, runs.Runs[0].Summary.Total)

	rr = do(t, h, http.MethodGet, "/api/audit-logs", "")
	var logs struct {
		Logs []domain.AuditLog `json:"logs"`
	}
	decode(t, rr, &logs)
	actions := make([]domain.AuditAction, 0, len(logs.Logs))
	for _, l := range logs.Logs {
		actions = append(actions, l.Action)
		assert.Equal(t, domain.ActorAPI, l.Actor)
	}
	assert.Contains(t, actions, domain.ActionIngest)
	assert.Contains(t, actions, domain.ActionScan)
	assert.Contains(t, actions, domain.ActionExport)
}

func TestServer_ScanInputErrors(t *testing.T) {
	h, _ := setupServer(t)

	rr := do(t, h, http.MethodPost, "/api/scan", "software\nopenssl\n")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing required column: 'version'")

	rr = do(t, h, http.MethodPost, "/api/scan", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_ClearAndHealth(t *testing.T) {
	h, planner := setupServer(t)
	planner.On("Available", mock.Anything).Return(false)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/cves", opensslFeed).Code)

	rr := do(t, h, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var health struct {
		GeneratorAvailable bool `json:"generator_available"`
		CVECount           int  `json:"cve_count"`
	}
	decode(t, rr, &health)
	assert.False(t, health.GeneratorAvailable)
	assert.Equal(t, 2, health.CVECount)

	rr = do(t, h, http.MethodDelete, "/api/cves", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/stats", "")
	var stats domain.Statistics
	decode(t, rr, &stats)
	assert.Equal(t, 0, stats.Total)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	h, _ := setupServer(t)

	rr := do(t, h, http.MethodPut, "/api/cves", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestServer_Metrics(t *testing.T) {
	h, _ := setupServer(t)

	rr := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}
