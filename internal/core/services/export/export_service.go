package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
)

// ExportJSON writes a scan report as indented JSON
func ExportJSON(w io.Writer, report domain.ScanReport) error {
	if report.Matches == nil {
		report.Matches = []domain.MatchResult{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// ExportCSV writes the matches of a scan report as CSV with headers.
// The action plan column is only present when plans were requested.
func ExportCSV(w io.Writer, report domain.ScanReport) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	// Header row
	headers := []string{
		"CVE ID", "Software", "Version", "Severity", "CVSS Score",
		"Published", "Description",
	}
	if report.PlansRequested {
		headers = append(headers, "Action Plan")
	}
	if err := writer.Write(headers); err != nil {
		return err
	}

	// Data rows
	for _, m := range report.Matches {
		row := []string{
			m.CVEID,
			m.Software,
			m.Version,
			string(m.Severity),
			formatScore(m.CVSSScore),
			m.PublishedDate,
			m.Description,
		}
		if report.PlansRequested {
			row = append(row, m.ActionPlan)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportScanResultsJSON writes archived scan results as JSON array
func ExportScanResultsJSON(w io.Writer, results []domain.ScanResult) error {
	if results == nil {
		results = []domain.ScanResult{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

// ExportScanResultsCSV writes archived scan results as CSV
func ExportScanResultsCSV(w io.Writer, results []domain.ScanResult) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	// Header
	headers := []string{"ID", "ScanID", "Software", "Version", "CVE", "Severity", "ActionPlan", "CreatedAt"}
	if err := writer.Write(headers); err != nil {
		return err
	}

	// Data
	for _, r := range results {
		row := []string{
			fmt.Sprintf("%d", r.ID),
			r.ScanID,
			r.AssetSoftware,
			r.AssetVersion,
			r.CVEID,
			string(r.Severity),
			r.ActionPlan,
			r.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return fmt.Sprintf("%.1f", *score)
}
