package domain

import (
	"fmt"
	"strings"
)

// Asset is one deployed (software, version) pair from an inventory.
type Asset struct {
	Software string `json:"software"`
	Version  string `json:"version"`
}

// AssetTable is a raw inventory as read from a tabular source.
type AssetTable struct {
	Columns []string
	Rows    []map[string]string
}

// HasColumn reports whether the table declares the named column.
func (t AssetTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// NewAssetTable builds a two-column table from assets.
func NewAssetTable(assets []Asset) AssetTable {
	t := AssetTable{Columns: []string{FieldSoftware, FieldVersion}}
	for _, a := range assets {
		t.Rows = append(t.Rows, map[string]string{FieldSoftware: a.Software, FieldVersion: a.Version})
	}
	return t
}

// NormalizeAssets validates an asset table, trims both fields and drops exact duplicates.
// Validation failures are returned as *MatchInputError.
func NormalizeAssets(table AssetTable) ([]Asset, error) {
	for _, col := range []string{FieldSoftware, FieldVersion} {
		if !table.HasColumn(col) {
			return nil, &MatchInputError{Reason: fmt.Sprintf(
				"missing required column: '%s'. Table must have columns: software, version", col)}
		}
	}

	if len(table.Rows) == 0 {
		return nil, &MatchInputError{Reason: "asset table is empty"}
	}

	seen := make(map[Asset]bool, len(table.Rows))
	assets := make([]Asset, 0, len(table.Rows))

	for _, row := range table.Rows {
		a := Asset{
			Software: strings.TrimSpace(row[FieldSoftware]),
			Version:  strings.TrimSpace(row[FieldVersion]),
		}
		if a.Software == "" || a.Version == "" {
			return nil, &MatchInputError{Reason: "asset table contains empty values in software or version columns"}
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		assets = append(assets, a)
	}

	return assets, nil
}

// MatchKey is the normalized composite key used to correlate assets with affected products.
type MatchKey struct {
	Software string
	Version  string
}

// KeyOf lowercases and trims a (software, version) pair.
func KeyOf(software, version string) MatchKey {
	return MatchKey{
		Software: strings.ToLower(strings.TrimSpace(software)),
		Version:  strings.ToLower(strings.TrimSpace(version)),
	}
}
