package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/lcalzada-xor/zerotrace/internal/adapters/cve"
	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/ports"
)

// maxFeedBytes bounds an uploaded feed document.
const maxFeedBytes = 32 << 20

// CVEHandler handles feed ingestion and CVE store queries
type CVEHandler struct {
	Ingester ports.FeedIngester
	Repo     ports.CVERepository
	Audit    ports.AuditService
}

// NewCVEHandler creates a new CVEHandler
func NewCVEHandler(ingester ports.FeedIngester, repo ports.CVERepository, audit ports.AuditService) *CVEHandler {
	return &CVEHandler{
		Ingester: ingester,
		Repo:     repo,
		Audit:    audit,
	}
}

// HandleIngest validates and stores a feed document posted as JSON.
func (h *CVEHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxFeedBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	doc, err := cve.DecodeFeed(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.Ingester.Ingest(r.Context(), doc)
	if err != nil {
		var se *domain.StructuralError
		if errors.As(err, &se) {
			writeError(w, http.StatusBadRequest, se.Error())
			return
		}
		log.Printf("Ingestion failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Ingestion failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// HandleClear removes every CVE, affected product and archived result.
func (h *CVEHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.Clear(r.Context()); err != nil {
		log.Printf("Failed to clear CVE store: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to clear database")
		return
	}

	if h.Audit != nil {
		if err := h.Audit.Log(r.Context(), domain.ActionClear, "cves", "all records removed"); err != nil {
			log.Printf("Failed to write audit log: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// HandleList returns stored CVEs, optionally filtered with ?severity=.
func (h *CVEHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var (
		records []domain.CVERecord
		err     error
	)

	if raw := r.URL.Query().Get("severity"); raw != "" {
		severity := domain.Severity(strings.ToUpper(raw))
		if !severity.IsValid() {
			writeError(w, http.StatusBadRequest, "severity must be one of CRITICAL, HIGH, MEDIUM, LOW")
			return
		}
		records, err = h.Repo.ListBySeverity(r.Context(), severity)
	} else {
		records, err = h.Repo.ListCVEs(r.Context())
	}
	if err != nil {
		log.Printf("Failed to list CVEs: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list CVEs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cves":  records,
		"count": len(records),
	})
}

// HandleGet returns one CVE by ID.
func (h *CVEHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, err := h.Repo.GetByID(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "CVE not found: "+id)
		return
	}
	if err != nil {
		log.Printf("Failed to load %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to load CVE")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// HandleStats returns per-severity CVE counts.
func (h *CVEHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Repo.Statistics(r.Context())
	if err != nil {
		log.Printf("Failed to compute statistics: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute statistics")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
