package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lcalzada-xor/zerotrace/internal/adapters/reporting"
	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/ports"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/export"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/scan"
)

// ExportHandler handles export of the most recent scan
type ExportHandler struct {
	Session     *scan.Session
	PDFExporter *reporting.PDFExporter
	Audit       ports.AuditService
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(session *scan.Session, pdf *reporting.PDFExporter, audit ports.AuditService) *ExportHandler {
	return &ExportHandler{
		Session:     session,
		PDFExporter: pdf,
		Audit:       audit,
	}
}

// HandleExport writes the last scan as ?format=json (default), csv or pdf.
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	report, ok := h.Session.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "No scan has been run yet")
		return
	}

	filename := fmt.Sprintf("zerotrace_scan_%s", report.GeneratedAt.Format("20060102_150405"))

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename="+filename+".csv")
		if err := export.ExportCSV(w, report); err != nil {
			log.Printf("CSV export error: %v", err)
		}
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename="+filename+".json")
		if err := export.ExportJSON(w, report); err != nil {
			log.Printf("JSON export error: %v", err)
		}
	case "pdf":
		if h.PDFExporter == nil {
			writeError(w, http.StatusNotImplemented, "PDF export is not configured")
			return
		}
		data, err := h.PDFExporter.ExportScanReport(domain.ReportMetadata{
			ID:          uuid.NewString(),
			Title:       "ZeroTrace Vulnerability Report",
			GeneratedAt: time.Now(),
			GeneratedBy: "ZeroTrace",
		}, report)
		if err != nil {
			log.Printf("PDF export error: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to generate PDF")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename="+filename+".pdf")
		w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, "format must be one of csv, json, pdf")
		return
	}

	if h.Audit != nil {
		if err := h.Audit.Log(r.Context(), domain.ActionExport, report.ScanID, "format="+format); err != nil {
			log.Printf("Failed to write audit log: %v", err)
		}
	}
}
