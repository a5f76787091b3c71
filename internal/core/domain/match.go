package domain

import "sort"

// MatchResult is one asset found vulnerable under one CVE.
type MatchResult struct {
	CVEID         string   `json:"cve_id"`
	Description   string   `json:"description"`
	Severity      Severity `json:"severity"`
	CVSSScore     *float64 `json:"cvss_score,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	Software      string   `json:"software"`
	Version       string   `json:"version"`
	ActionPlan    string   `json:"action_plan"`
}

// Score returns the CVSS score, or -1 when the CVE has none.
func (m MatchResult) Score() float64 {
	if m.CVSSScore == nil {
		return -1
	}
	return *m.CVSSScore
}

type matchIdentity struct {
	cveID    string
	software string
	version  string
}

// SortMatches orders matches by severity rank ascending, then CVSS score descending.
// Matches without a score sort after scored ones of the same severity.
func SortMatches(matches []MatchResult) {
	sort.SliceStable(matches, func(i, j int) bool {
		ri, rj := matches[i].Severity.Rank(), matches[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return matches[i].Score() > matches[j].Score()
	})
}

// DeduplicateMatches collapses repeated (CVE, software, version) triples, keeping the first.
func DeduplicateMatches(matches []MatchResult) []MatchResult {
	seen := make(map[matchIdentity]bool, len(matches))
	unique := make([]MatchResult, 0, len(matches))
	for _, m := range matches {
		id := matchIdentity{m.CVEID, m.Software, m.Version}
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, m)
	}
	return unique
}

// JoinAssets is an in-memory hash join of CVEs against assets on the normalized
// (software, version) key. The result is deduplicated and sorted.
func JoinAssets(cves []CVERecord, assets []Asset) []MatchResult {
	index := make(map[MatchKey]bool, len(assets))
	for _, a := range assets {
		index[KeyOf(a.Software, a.Version)] = true
	}

	matches := make([]MatchResult, 0)
	for _, c := range cves {
		for _, p := range c.AffectedProducts {
			if !index[KeyOf(p.Software, p.Version)] {
				continue
			}
			matches = append(matches, MatchResult{
				CVEID:         c.ID,
				Description:   c.Description,
				Severity:      c.Severity,
				CVSSScore:     c.CVSSScore,
				PublishedDate: c.PublishedDate,
				Software:      p.Software,
				Version:       p.Version,
			})
		}
	}

	matches = DeduplicateMatches(matches)
	SortMatches(matches)
	return matches
}

// Summarize counts matches per severity.
func Summarize(matches []MatchResult) Statistics {
	var st Statistics
	for _, m := range matches {
		st.Add(m.Severity, 1)
	}
	return st
}

// FilterBySeverity keeps the matches whose severity is in the given set.
func FilterBySeverity(matches []MatchResult, severities ...Severity) []MatchResult {
	if len(severities) == 0 {
		return matches
	}
	allowed := make(map[Severity]bool, len(severities))
	for _, s := range severities {
		allowed[s] = true
	}
	out := make([]MatchResult, 0, len(matches))
	for _, m := range matches {
		if allowed[m.Severity] {
			out = append(out, m)
		}
	}
	return out
}
