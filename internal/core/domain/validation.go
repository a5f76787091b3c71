package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Feed record field names.
const (
	FieldCVEID            = "cve_id"
	FieldDescription      = "description"
	FieldSeverity         = "severity"
	FieldCVSSScore        = "cvss_score"
	FieldPublishedDate    = "published_date"
	FieldAffectedProducts = "affected_products"
	FieldSoftware         = "software"
	FieldVersion          = "version"
)

// UnknownCVEID labels problems for records without a usable identifier.
const UnknownCVEID = "UNKNOWN"

var requiredFields = []string{FieldCVEID, FieldDescription, FieldSeverity}

// ValidateRecord checks a raw feed record and returns the first violation found,
// or nil. Checks run in order: required fields, severity, score, affected products.
func ValidateRecord(raw map[string]interface{}) error {
	for _, field := range requiredFields {
		if v, ok := raw[field]; !ok || v == nil {
			return &RecordValidationError{Reason: "missing required field: " + field}
		}
	}

	sev, _ := raw[FieldSeverity].(string)
	if !Severity(sev).IsValid() {
		return &RecordValidationError{Reason: fmt.Sprintf(
			"invalid severity: %v. Must be one of [CRITICAL HIGH MEDIUM LOW]", raw[FieldSeverity])}
	}

	if v, ok := raw[FieldCVSSScore]; ok && v != nil {
		score, err := toFloat(v)
		if err != nil {
			return &RecordValidationError{Reason: fmt.Sprintf("invalid CVSS score: %v", v)}
		}
		if math.IsNaN(score) || score < 0 || score > 10 {
			return &RecordValidationError{Reason: fmt.Sprintf("CVSS score must be between 0 and 10, got %v", score)}
		}
	}

	products, ok := raw[FieldAffectedProducts].([]interface{})
	if !ok || len(products) == 0 {
		return &RecordValidationError{Reason: "missing or empty affected_products"}
	}
	for _, p := range products {
		product, ok := p.(map[string]interface{})
		if !ok || product[FieldSoftware] == nil || product[FieldVersion] == nil {
			return &RecordValidationError{Reason: "each affected_product must have 'software' and 'version'"}
		}
	}

	return nil
}

// RecordID returns the record identifier, or UnknownCVEID when it is absent.
func RecordID(raw map[string]interface{}) string {
	if raw == nil {
		return UnknownCVEID
	}
	switch v := raw[FieldCVEID].(type) {
	case nil:
		return UnknownCVEID
	case string:
		return v
	default:
		return stringify(v)
	}
}

// RecordFromRaw converts a record that passed ValidateRecord into a CVERecord.
func RecordFromRaw(raw map[string]interface{}) (CVERecord, error) {
	if err := ValidateRecord(raw); err != nil {
		return CVERecord{}, err
	}

	rec := CVERecord{
		ID:          RecordID(raw),
		Description: stringify(raw[FieldDescription]),
		Severity:    Severity(raw[FieldSeverity].(string)),
	}

	if v, ok := raw[FieldCVSSScore]; ok && v != nil {
		score, _ := toFloat(v)
		rec.CVSSScore = &score
	}
	if v, ok := raw[FieldPublishedDate]; ok && v != nil {
		rec.PublishedDate = stringify(v)
	}

	for _, p := range raw[FieldAffectedProducts].([]interface{}) {
		product := p.(map[string]interface{})
		rec.AffectedProducts = append(rec.AffectedProducts, AffectedProduct{
			CVEID:    rec.ID,
			Software: stringify(product[FieldSoftware]),
			Version:  stringify(product[FieldVersion]),
		})
	}

	return rec, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
