package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/lcalzada-xor/zerotrace/internal/adapters/inventory"
	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/ports"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/scan"
)

// maxInventoryBytes bounds an uploaded asset CSV.
const maxInventoryBytes = 8 << 20

// ScanHandler handles scans, scan history and service health
type ScanHandler struct {
	Scans   *scan.Service
	Repo    ports.CVERepository
	Runs    ports.ScanRunRepository
	Planner ports.ActionPlanner

	// Progress receives plan generation progress, e.g. the websocket hub.
	Progress func(scanID string, done, total int)
	// OnComplete is called after every successful scan.
	OnComplete func(report domain.ScanReport)
}

// NewScanHandler creates a new ScanHandler. runs and planner may be nil.
func NewScanHandler(scans *scan.Service, repo ports.CVERepository, runs ports.ScanRunRepository, planner ports.ActionPlanner) *ScanHandler {
	return &ScanHandler{
		Scans:   scans,
		Repo:    repo,
		Runs:    runs,
		Planner: planner,
	}
}

// HandleScan runs an asset CSV posted as the request body against the CVE store.
// ?plans=true generates action plans, ?archive=true stores the results.
func (h *ScanHandler) HandleScan(w http.ResponseWriter, r *http.Request) {
	table, err := inventory.ReadCSV(io.LimitReader(r.Body, maxInventoryBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid asset CSV: "+err.Error())
		return
	}

	opts := scan.Options{
		GeneratePlans: queryBool(r, "plans"),
		Archive:       queryBool(r, "archive"),
		Progress:      h.Progress,
	}

	report, err := h.Scans.Run(r.Context(), table, opts)
	if err != nil {
		var mie *domain.MatchInputError
		if errors.As(err, &mie) {
			writeError(w, http.StatusBadRequest, mie.Error())
			return
		}
		log.Printf("Scan failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Scan failed")
		return
	}

	if h.OnComplete != nil {
		h.OnComplete(report)
	}

	writeJSON(w, http.StatusOK, report)
}

// HandleLast returns the most recent scan report.
func (h *ScanHandler) HandleLast(w http.ResponseWriter, r *http.Request) {
	report, ok := h.Scans.Session().Last()
	if !ok {
		writeError(w, http.StatusNotFound, "No scan has been run yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleArchiveLast stores the most recent scan report as scan results.
func (h *ScanHandler) HandleArchiveLast(w http.ResponseWriter, r *http.Request) {
	report, err := h.Scans.Archive(r.Context())
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No scan has been run yet")
		return
	}
	if err != nil {
		log.Printf("Archive failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to archive scan results")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scan_id":  report.ScanID,
		"archived": report.Archived,
	})
}

// HandleListResults returns archived scan results, newest first.
func (h *ScanHandler) HandleListResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.Repo.ListScanResults(r.Context(), parseLimit(r, defaultListLimit))
	if err != nil {
		log.Printf("Failed to list scan results: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list scan results")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

// HandleListRuns returns the scan run history.
func (h *ScanHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"runs": []domain.ScanRun{}})
		return
	}

	runs, err := h.Runs.ListScanRuns(r.Context(), parseLimit(r, defaultListLimit))
	if err != nil {
		log.Printf("Failed to list scan runs: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list scan runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}

// HandleHealth reports store size and whether the text generator answers.
func (h *ScanHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	available := false
	if h.Planner != nil {
		available = h.Planner.Available(r.Context())
	}

	total, err := h.Repo.GetTotalCount(r.Context())
	if err != nil {
		log.Printf("Health check: failed to count CVEs: %v", err)
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":              "ok",
		"generator_available": available,
		"cve_count":           total,
	})
}
