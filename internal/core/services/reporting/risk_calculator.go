package reporting

import (
	"math"
	"sort"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
)

// DefaultTopRisks is the number of ranked CVEs kept in an assessment.
const DefaultTopRisks = 5

// RiskCalculator provides methods for calculating scan risk scores
type RiskCalculator struct{}

// NewRiskCalculator creates a new risk calculator instance
func NewRiskCalculator() *RiskCalculator {
	return &RiskCalculator{}
}

// Assess scores matches found among assetCount scanned assets.
func (rc *RiskCalculator) Assess(matches []domain.MatchResult, assetCount, limit int) domain.RiskAssessment {
	score := rc.CalculateOverallRisk(matches, assetCount)
	return domain.RiskAssessment{
		Score:    score,
		Level:    rc.GetRiskLevel(score, len(matches)),
		TopRisks: rc.CalculateTopRisks(matches, limit),
	}
}

// CalculateOverallRisk returns a 0-10 score: the mean match score scaled by the share of
// scanned assets that are vulnerable.
func (rc *RiskCalculator) CalculateOverallRisk(matches []domain.MatchResult, assetCount int) float64 {
	if len(matches) == 0 {
		return 0.0
	}

	var total float64
	vulnerable := make(map[domain.MatchKey]bool)
	for _, m := range matches {
		total += baseScore(m)
		vulnerable[domain.KeyOf(m.Software, m.Version)] = true
	}
	avgRisk := total / float64(len(matches))

	// Exposure factor: 1.0 with one vulnerable asset among many, 1.5 when every asset is vulnerable
	exposure := 1.0
	if assetCount > 0 {
		exposure = math.Min(float64(len(vulnerable))/float64(assetCount), 1.0)
	}
	finalRisk := avgRisk * (1.0 + exposure*0.5)

	return math.Round(math.Min(finalRisk, 10.0)*10) / 10
}

// GetRiskLevel converts numeric score to human-readable level
func (rc *RiskCalculator) GetRiskLevel(score float64, matchCount int) string {
	switch {
	case matchCount == 0:
		return "None"
	case score >= 8.0:
		return "Critical"
	case score >= 6.0:
		return "High"
	case score >= 4.0:
		return "Medium"
	default:
		return "Low"
	}
}

// CalculateTopRisks ranks CVEs by score times the number of affected assets
func (rc *RiskCalculator) CalculateTopRisks(matches []domain.MatchResult, limit int) []domain.RiskItem {
	groups := make(map[string]*domain.RiskItem)
	assets := make(map[string]map[domain.MatchKey]bool)
	var order []string

	for _, m := range matches {
		item, ok := groups[m.CVEID]
		if !ok {
			item = &domain.RiskItem{
				CVEID:    m.CVEID,
				Severity: m.Severity,
				Score:    baseScore(m),
			}
			groups[m.CVEID] = item
			assets[m.CVEID] = make(map[domain.MatchKey]bool)
			order = append(order, m.CVEID)
		}
		assets[m.CVEID][domain.KeyOf(m.Software, m.Version)] = true
	}

	risks := make([]domain.RiskItem, 0, len(groups))
	for _, id := range order {
		item := groups[id]
		item.AffectedAssets = len(assets[id])
		item.RiskScore = item.Score * float64(item.AffectedAssets)
		item.Impact = rc.getImpactLevel(item.Score)
		item.Likelihood = rc.getLikelihoodLevel(item.AffectedAssets)
		risks = append(risks, *item)
	}

	// Sort by risk score descending, severity rank breaks ties
	sort.SliceStable(risks, func(i, j int) bool {
		if risks[i].RiskScore != risks[j].RiskScore {
			return risks[i].RiskScore > risks[j].RiskScore
		}
		return risks[i].Severity.Rank() < risks[j].Severity.Rank()
	})

	if limit > 0 && len(risks) > limit {
		risks = risks[:limit]
	}
	for i := range risks {
		risks[i].Rank = i + 1
	}

	return risks
}

// baseScore is the CVSS score, or a severity default for CVEs published without one.
func baseScore(m domain.MatchResult) float64 {
	if m.CVSSScore != nil {
		return *m.CVSSScore
	}
	switch m.Severity {
	case domain.SeverityCritical:
		return 9.0
	case domain.SeverityHigh:
		return 7.0
	case domain.SeverityMedium:
		return 5.0
	default:
		return 2.0
	}
}

// getImpactLevel returns a human-readable impact description based on score
func (rc *RiskCalculator) getImpactLevel(score float64) string {
	switch {
	case score >= 9:
		return "Severe - Complete compromise possible"
	case score >= 7:
		return "High - Significant data exposure"
	case score >= 4:
		return "Medium - Limited exposure"
	default:
		return "Low - Minimal impact"
	}
}

// getLikelihoodLevel returns a human-readable likelihood description based on affected asset count
func (rc *RiskCalculator) getLikelihoodLevel(affectedCount int) string {
	switch {
	case affectedCount >= 10:
		return "Very High - Widespread vulnerability"
	case affectedCount >= 5:
		return "High - Multiple targets"
	case affectedCount >= 2:
		return "Medium - Several targets"
	default:
		return "Low - Single target"
	}
}
