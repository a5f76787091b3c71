package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// StructuralError reports a whole-document shape violation. Nothing was processed.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string { return e.Reason }

// NewStructuralError formats a StructuralError.
func NewStructuralError(format string, args ...interface{}) *StructuralError {
	return &StructuralError{Reason: fmt.Sprintf(format, args...)}
}

// RecordValidationError reports why a single CVE record was rejected.
type RecordValidationError struct {
	Reason string
}

func (e *RecordValidationError) Error() string { return e.Reason }

// StorageError reports a failure persisting one CVE. Its transaction was rolled back.
type StorageError struct {
	CVEID string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to store %s: %v", e.CVEID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// MatchInputError reports a malformed asset table. The scan did not run.
type MatchInputError struct {
	Reason string
}

func (e *MatchInputError) Error() string { return e.Reason }

// IngestErrorKind tells record-level rejections apart from storage failures.
type IngestErrorKind string

const (
	IngestErrorValidation IngestErrorKind = "validation"
	IngestErrorStorage    IngestErrorKind = "storage"
)

// IngestError is one entry in the per-record problem list of an ingestion run.
type IngestError struct {
	Index  int             `json:"index,omitempty"` // 1-based feed position; 0 for storage errors
	CVEID  string          `json:"cve_id"`
	Reason string          `json:"reason"`
	Kind   IngestErrorKind `json:"kind"`
}

func (e IngestError) String() string {
	if e.Index > 0 {
		return fmt.Sprintf("CVE #%d (%s): %s", e.Index, e.CVEID, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.CVEID, e.Reason)
}

// ErrGenerationTimeout is returned by a text generator that did not answer in time.
var ErrGenerationTimeout = errors.New("generation timed out")

// GenerationStatusError reports a non-success HTTP status from the text generator.
type GenerationStatusError struct {
	StatusCode int
}

func (e *GenerationStatusError) Error() string {
	return fmt.Sprintf("generator returned HTTP %d", e.StatusCode)
}
