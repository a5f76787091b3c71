package domain

import "time"

// Severity is the qualitative rating carried by every CVE in a feed.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Severities lists the accepted values in rank order.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Rank returns 1 for CRITICAL through 4 for LOW. Unknown values rank last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 1
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 4
	}
	return 5
}

// IsValid reports whether s is one of the four canonical values (case-sensitive).
func (s Severity) IsValid() bool {
	return s.Rank() <= 4
}

// CVERecord is a vulnerability entry as ingested from a feed.
type CVERecord struct {
	ID            string   `json:"cve_id"` // e.g., "CVE-2021-3711"
	Description   string   `json:"description"`
	Severity      Severity `json:"severity"`
	CVSSScore     *float64 `json:"cvss_score,omitempty"`     // 0-10, optional
	PublishedDate string   `json:"published_date,omitempty"` // stored verbatim

	AffectedProducts []AffectedProduct `json:"affected_products"`
}

// AffectedProduct is a (software, version) pair vulnerable under one CVE.
type AffectedProduct struct {
	CVEID    string `json:"-"`
	Software string `json:"software"`
	Version  string `json:"version"`
}

// Statistics holds CVE counts per severity. Every severity is always present.
type Statistics struct {
	Critical int `json:"CRITICAL"`
	High     int `json:"HIGH"`
	Medium   int `json:"MEDIUM"`
	Low      int `json:"LOW"`
	Total    int `json:"TOTAL"`
}

// Add increments the counter for severity s by n and keeps Total in sync.
func (st *Statistics) Add(s Severity, n int) {
	switch s {
	case SeverityCritical:
		st.Critical += n
	case SeverityHigh:
		st.High += n
	case SeverityMedium:
		st.Medium += n
	case SeverityLow:
		st.Low += n
	default:
		return
	}
	st.Total += n
}

// ScanResult is an archived match. Rows are append-only.
type ScanResult struct {
	ID            uint      `json:"id"`
	ScanID        string    `json:"scan_id"`
	AssetSoftware string    `json:"asset_software"`
	AssetVersion  string    `json:"asset_version"`
	CVEID         string    `json:"cve_id"`
	Severity      Severity  `json:"severity"`
	ActionPlan    string    `json:"action_plan"`
	CreatedAt     time.Time `json:"created_at"`
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Stored int           `json:"stored"`
	Errors []IngestError `json:"errors"`
}

// Failed reports how many records were rejected or could not be stored.
func (r IngestReport) Failed() int { return len(r.Errors) }
