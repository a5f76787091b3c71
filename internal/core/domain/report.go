package domain

import "time"

// ScanReport is the outcome of one scan, kept by the session for export.
type ScanReport struct {
	ScanID         string         `json:"scan_id"`
	GeneratedAt    time.Time      `json:"generated_at"`
	AssetCount     int            `json:"asset_count"`
	Matches        []MatchResult  `json:"matches"`
	Summary        Statistics     `json:"summary"`
	Risk           RiskAssessment `json:"risk"`
	PlansRequested bool           `json:"plans_requested"`
	PlansAvailable bool           `json:"plans_available"`
	Archived       bool           `json:"archived"`
}

// ReportMetadata describes a rendered report document.
type ReportMetadata struct {
	ID          string
	Title       string
	GeneratedAt time.Time
	GeneratedBy string
}

// ScanRun is the summary of one scan kept in the run history.
type ScanRun struct {
	ScanID         string     `json:"scan_id"`
	StartedAt      time.Time  `json:"started_at"`
	AssetCount     int        `json:"asset_count"`
	Summary        Statistics `json:"summary"`
	PlansAvailable bool       `json:"plans_available"`
	Archived       bool       `json:"archived"`
}

// RiskItem ranks one CVE found in a scan.
type RiskItem struct {
	Rank           int      `json:"rank"`
	CVEID          string   `json:"cve_id"`
	Severity       Severity `json:"severity"`
	Score          float64  `json:"score"` // CVSS, or a severity default when absent
	AffectedAssets int      `json:"affected_assets"`
	Impact         string   `json:"impact"`
	Likelihood     string   `json:"likelihood"`
	RiskScore      float64  `json:"risk_score"`
}

// RiskAssessment is the overall exposure of one scan.
type RiskAssessment struct {
	Score    float64    `json:"score"` // 0-10
	Level    string     `json:"level"`
	TopRisks []RiskItem `json:"top_risks"`
}
