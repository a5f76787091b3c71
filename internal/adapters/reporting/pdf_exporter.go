package reporting

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
)

// PDFExporter exports scan reports to PDF format
type PDFExporter struct{}

// NewPDFExporter creates a new PDF exporter instance
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ExportScanReport renders a scan report: header, severity summary, findings table
// and, when present, the action plan of every finding.
func (e *PDFExporter) ExportScanReport(meta domain.ReportMetadata, report domain.ScanReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string {
		return tr(strings.ReplaceAll(s, "⚠️", "[!]"))
	}

	pdf.AddPage()

	e.addHeader(pdf, meta, report)
	e.addSummary(pdf, report)
	e.addRisk(pdf, report)
	e.addFindings(pdf, report, text)
	e.addActionPlans(pdf, report, text)
	e.addFooter(pdf, meta)

	// Output to bytes
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return buf.Bytes(), nil
}

// addHeader adds the report header
func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, meta domain.ReportMetadata, report domain.ScanReport) {
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 51, 102) // Dark blue
	pdf.CellFormat(0, 15, meta.Title, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", meta.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Scan: %s (%s)", report.ScanID, report.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Assets scanned: %d", report.AssetCount), "", 1, "L", false, 0, "")

	pdf.Ln(8)
}

// addSummary adds the per-severity match counts
func (e *PDFExporter) addSummary(pdf *gofpdf.Fpdf, report domain.ScanReport) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Risk Summary", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	stats := []struct {
		label    string
		value    int
		severity domain.Severity
	}{
		{"Critical", report.Summary.Critical, domain.SeverityCritical},
		{"High", report.Summary.High, domain.SeverityHigh},
		{"Medium", report.Summary.Medium, domain.SeverityMedium},
		{"Low", report.Summary.Low, domain.SeverityLow},
		{"Total", report.Summary.Total, ""},
	}

	for _, stat := range stats {
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(40, 7, stat.label+":", "", 0, "L", false, 0, "")

		r, g, b := e.getSeverityColor(stat.severity)
		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", stat.value), "", 1, "R", false, 0, "")
	}

	pdf.Ln(8)
}

// addRisk adds the overall risk score and the ranked top risks
func (e *PDFExporter) addRisk(pdf *gofpdf.Fpdf, report domain.ScanReport) {
	if len(report.Risk.TopRisks) == 0 {
		return
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, fmt.Sprintf("Overall risk: %.1f / 10 (%s)", report.Risk.Score, report.Risk.Level), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	widths := []float64{10, 35, 25, 20, 30, 25}
	headers := []string{"#", "CVE", "Severity", "Assets", "Likelihood", "Risk"}
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, risk := range report.Risk.TopRisks {
		r, g, b := e.getSeverityColor(risk.Severity)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(widths[0], 6, fmt.Sprintf("%d", risk.Rank), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 6, risk.CVEID, "1", 0, "L", false, 0, "")
		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(widths[2], 6, string(risk.Severity), "1", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(widths[3], 6, fmt.Sprintf("%d", risk.AffectedAssets), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[4], 6, truncate(risk.Likelihood, 16), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[5], 6, fmt.Sprintf("%.1f", risk.RiskScore), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(8)
}

// addFindings adds the findings table
func (e *PDFExporter) addFindings(pdf *gofpdf.Fpdf, report domain.ScanReport, text func(string) string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Findings", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(report.Matches) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No vulnerable assets identified", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	// Table header
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)

	pdf.CellFormat(40, 8, "CVE", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Severity", "1", 0, "C", true, 0, "")
	pdf.CellFormat(15, 8, "CVSS", "1", 0, "C", true, 0, "")
	pdf.CellFormat(55, 8, "Software", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 8, "Version", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, m := range report.Matches {
		if pdf.GetY() > 270 {
			pdf.AddPage()
		}

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(40, 7, m.CVEID, "1", 0, "L", false, 0, "")

		r, g, b := e.getSeverityColor(m.Severity)
		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(25, 7, string(m.Severity), "1", 0, "C", false, 0, "")

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(15, 7, formatScore(m.CVSSScore), "1", 0, "C", false, 0, "")
		pdf.CellFormat(55, 7, truncate(text(m.Software), 32), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, truncate(text(m.Version), 20), "1", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
}

// addActionPlans adds one block per finding that carries a plan
func (e *PDFExporter) addActionPlans(pdf *gofpdf.Fpdf, report domain.ScanReport, text func(string) string) {
	if !report.PlansRequested {
		return
	}

	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Action Plans", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for _, m := range report.Matches {
		if m.ActionPlan == "" {
			continue
		}
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(0, 51, 102)
		pdf.CellFormat(0, 6, text(fmt.Sprintf("%s - %s %s", m.CVEID, m.Software, m.Version)), "", 1, "L", false, 0, "")

		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(60, 60, 60)
		pdf.MultiCell(0, 5, text(m.ActionPlan), "", "L", false)
		pdf.Ln(4)
	}
}

// getSeverityColor returns RGB color based on severity
func (e *PDFExporter) getSeverityColor(severity domain.Severity) (r, g, b int) {
	switch severity {
	case domain.SeverityCritical:
		return 220, 53, 69 // Red
	case domain.SeverityHigh:
		return 255, 149, 0 // Orange
	case domain.SeverityMedium:
		return 255, 204, 0 // Yellow
	case domain.SeverityLow:
		return 52, 199, 89 // Green
	default:
		return 0, 102, 204
	}
}

// addFooter adds the report footer
func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, meta domain.ReportMetadata) {
	pdf.SetY(-20)

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	id := meta.ID
	if len(id) > 8 {
		id = id[:8]
	}

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 5, fmt.Sprintf("Generated by %s | Report ID: %s", meta.GeneratedBy, id), "", 1, "C", false, 0, "")
}

func formatScore(score *float64) string {
	if score == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", *score)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
