package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw() map[string]interface{} {
	return map[string]interface{}{
		"cve_id":      "CVE-2021-3711",
		"description": "SM2 decryption buffer overflow",
		"severity":    "HIGH",
		"cvss_score":  9.8,
		"affected_products": []interface{}{
			map[string]interface{}{"software": "OpenSSL", "version": "1.1.1k"},
		},
	}
}

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]interface{})
		wantErr string
	}{
		{"valid", func(map[string]interface{}) {}, ""},
		{"missing id", func(r map[string]interface{}) { delete(r, "cve_id") }, "missing required field: cve_id"},
		{"missing description", func(r map[string]interface{}) { delete(r, "description") }, "missing required field: description"},
		{"missing severity", func(r map[string]interface{}) { delete(r, "severity") }, "missing required field: severity"},
		{"lowercase severity", func(r map[string]interface{}) { r["severity"] = "high" }, "invalid severity"},
		{"unknown severity", func(r map[string]interface{}) { r["severity"] = "SEVERE" }, "invalid severity"},
		{"score as string", func(r map[string]interface{}) { r["cvss_score"] = "7.5" }, ""},
		{"score as json number", func(r map[string]interface{}) { r["cvss_score"] = json.Number("4.3") }, ""},
		{"score null", func(r map[string]interface{}) { r["cvss_score"] = nil }, ""},
		{"score absent", func(r map[string]interface{}) { delete(r, "cvss_score") }, ""},
		{"score boundary zero", func(r map[string]interface{}) { r["cvss_score"] = 0.0 }, ""},
		{"score boundary ten", func(r map[string]interface{}) { r["cvss_score"] = 10.0 }, ""},
		{"score too high", func(r map[string]interface{}) { r["cvss_score"] = 10.1 }, "CVSS score must be between 0 and 10"},
		{"score negative", func(r map[string]interface{}) { r["cvss_score"] = -1.0 }, "CVSS score must be between 0 and 10"},
		{"score not numeric", func(r map[string]interface{}) { r["cvss_score"] = "high" }, "invalid CVSS score"},
		{"score bool", func(r map[string]interface{}) { r["cvss_score"] = true }, "invalid CVSS score"},
		{"no products", func(r map[string]interface{}) { delete(r, "affected_products") }, "affected_products"},
		{"empty products", func(r map[string]interface{}) { r["affected_products"] = []interface{}{} }, "affected_products"},
		{"product without version", func(r map[string]interface{}) {
			r["affected_products"] = []interface{}{map[string]interface{}{"software": "nginx"}}
		}, "each affected_product must have 'software' and 'version'"},
		{"product not an object", func(r map[string]interface{}) {
			r["affected_products"] = []interface{}{"nginx 1.18.0"}
		}, "each affected_product must have 'software' and 'version'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(raw)

			err := ValidateRecord(raw)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var rve *RecordValidationError
			assert.True(t, errors.As(err, &rve))
		})
	}
}

func TestValidateRecord_ShortCircuitsOnFirstFailure(t *testing.T) {
	raw := map[string]interface{}{
		"cve_id":      "CVE-1",
		"description": "d",
		"severity":    "bogus",
		"cvss_score":  42,
	}

	err := ValidateRecord(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid severity")
}

func TestRecordFromRaw(t *testing.T) {
	raw := validRaw()
	raw["published_date"] = "2021-08-24"
	raw["affected_products"] = []interface{}{
		map[string]interface{}{"software": "OpenSSL", "version": "1.1.1k"},
		map[string]interface{}{"software": "python", "version": 3.9},
	}

	rec, err := RecordFromRaw(raw)
	require.NoError(t, err)

	assert.Equal(t, "CVE-2021-3711", rec.ID)
	assert.Equal(t, SeverityHigh, rec.Severity)
	require.NotNil(t, rec.CVSSScore)
	assert.InDelta(t, 9.8, *rec.CVSSScore, 0.0001)
	assert.Equal(t, "2021-08-24", rec.PublishedDate)
	require.Len(t, rec.AffectedProducts, 2)
	assert.Equal(t, "3.9", rec.AffectedProducts[1].Version)
	assert.Equal(t, "CVE-2021-3711", rec.AffectedProducts[1].CVEID)
}

func TestRecordFromRaw_NoScore(t *testing.T) {
	raw := validRaw()
	delete(raw, "cvss_score")

	rec, err := RecordFromRaw(raw)
	require.NoError(t, err)
	assert.Nil(t, rec.CVSSScore)
}

func TestRecordFromRaw_RejectsInvalidRecord(t *testing.T) {
	_, err := RecordFromRaw(map[string]interface{}{
		"cve_id":            "CVE-2099-0001",
		"description":       "no products",
		"severity":          "LOW",
		"affected_products": []interface{}{},
	})

	var verr *RecordValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "affected_products")
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, "CVE-9", RecordID(map[string]interface{}{"cve_id": "CVE-9"}))
	assert.Equal(t, UnknownCVEID, RecordID(map[string]interface{}{}))
	assert.Equal(t, UnknownCVEID, RecordID(nil))
}

func TestSeverityRank(t *testing.T) {
	assert.Equal(t, 1, SeverityCritical.Rank())
	assert.Equal(t, 4, SeverityLow.Rank())
	assert.False(t, Severity("critical").IsValid())
	assert.True(t, SeverityMedium.IsValid())
}
