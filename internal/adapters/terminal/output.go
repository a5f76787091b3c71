// Package terminal renders CVE data and scan reports as coloured text tables.
package terminal

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/olekukonko/tablewriter"
)

var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	Pink   = color.New(color.FgMagenta).SprintFunc()
)

const maxDescription = 120

// Severity returns the severity label coloured by rank.
func Severity(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return Red(string(s))
	case domain.SeverityHigh:
		return Pink(string(s))
	case domain.SeverityMedium:
		return Yellow(string(s))
	case domain.SeverityLow:
		return Green(string(s))
	}
	return string(s)
}

// RenderSummary prints the one-line per-severity count.
func RenderSummary(w io.Writer, label string, st domain.Statistics) {
	fmt.Fprintf(w, "\n%s %s | Critical: %s High: %s Medium: %s Low: %s\n\n",
		label,
		Yellow(st.Total),
		Red(st.Critical),
		Pink(st.High),
		Yellow(st.Medium),
		Green(st.Low))
}

// RenderScanReport prints the summary, the match table and, when requested, each action plan.
func RenderScanReport(w io.Writer, report domain.ScanReport) {
	RenderSummary(w, fmt.Sprintf("Scanned %d assets, detected", report.AssetCount), report.Summary)

	if len(report.Matches) == 0 {
		fmt.Fprintln(w, Green("No vulnerable assets identified."))
		return
	}

	fmt.Fprintf(w, "Overall risk: %s (%s)\n\n", Yellow(fmt.Sprintf("%.1f/10", report.Risk.Score)), report.Risk.Level)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "CVE ID", "Software", "Version", "Score", "Severity", "Description"})
	table.SetRowLine(true)

	for i, m := range report.Matches {
		table.Append([]string{
			strconv.Itoa(i + 1),
			m.CVEID,
			m.Software,
			m.Version,
			formatScore(m.CVSSScore),
			Severity(m.Severity),
			shorten(m.Description),
		})
	}
	table.Render()

	if !report.PlansRequested {
		return
	}

	fmt.Fprintln(w, "\nAction plans:")
	for _, m := range report.Matches {
		fmt.Fprintf(w, "\n%s  %s %s\n", Severity(m.Severity), m.CVEID, m.Software+" "+m.Version)
		fmt.Fprintln(w, indent(m.ActionPlan))
	}
}

// RenderCVEs prints stored CVE records.
func RenderCVEs(w io.Writer, records []domain.CVERecord) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"CVE ID", "Severity", "Score", "Published", "Affected Products", "Description"})
	table.SetRowLine(true)

	for _, r := range records {
		products := make([]string, 0, len(r.AffectedProducts))
		for _, p := range r.AffectedProducts {
			products = append(products, p.Software+" "+p.Version)
		}
		table.Append([]string{
			r.ID,
			Severity(r.Severity),
			formatScore(r.CVSSScore),
			r.PublishedDate,
			strings.Join(products, "\n"),
			shorten(r.Description),
		})
	}
	table.Render()
}

// RenderScanRuns prints the scan run history.
func RenderScanRuns(w io.Writer, runs []domain.ScanRun) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Scan ID", "Started", "Assets", "Critical", "High", "Medium", "Low", "Total", "Plans", "Archived"})

	for _, r := range runs {
		table.Append([]string{
			r.ScanID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.AssetCount),
			strconv.Itoa(r.Summary.Critical),
			strconv.Itoa(r.Summary.High),
			strconv.Itoa(r.Summary.Medium),
			strconv.Itoa(r.Summary.Low),
			strconv.Itoa(r.Summary.Total),
			yesNo(r.PlansAvailable),
			yesNo(r.Archived),
		})
	}
	table.Render()
}

// RenderScanResults prints archived scan results.
func RenderScanResults(w io.Writer, results []domain.ScanResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Scan ID", "Software", "Version", "CVE ID", "Severity", "Archived At"})

	for _, r := range results {
		table.Append([]string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.ScanID,
			r.AssetSoftware,
			r.AssetVersion,
			r.CVEID,
			Severity(r.Severity),
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
}

func formatScore(score *float64) string {
	if score == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", *score)
}

func shorten(s string) string {
	if len(s) > maxDescription {
		return s[:maxDescription] + " ..."
	}
	return s
}

func indent(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
