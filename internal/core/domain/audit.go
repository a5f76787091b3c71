package domain

import (
	"errors"
	"time"
)

// AuditAction represents a type-safe action identifier for the audit log.
type AuditAction string

// System Audit Actions
const (
	ActionIngest  AuditAction = "CVE_INGEST"
	ActionClear   AuditAction = "CVE_CLEAR"
	ActionScan    AuditAction = "SCAN_INITIATED"
	ActionArchive AuditAction = "SCAN_ARCHIVED"
	ActionExport  AuditAction = "EXPORT"
	ActionInfo    AuditAction = "INFO"
)

// Actors recorded when the caller does not name one.
const (
	ActorSystem = "system"
	ActorAPI    = "api"
	ActorCLI    = "cli"
)

// Domain Errors
var (
	ErrInvalidAction = errors.New("invalid audit action")
	ErrMissingActor  = errors.New("actor is required for auditing")
)

// AuditLog records an operation that changed the CVE store or produced results.
// Persistence concerns live in the storage adapter.
type AuditLog struct {
	ID         uint        `json:"id"`
	Actor      string      `json:"actor"`
	Action     AuditAction `json:"action"`
	Target     string      `json:"target"` // e.g. feed name, scan ID
	Details    string      `json:"details"`
	RemoteAddr string      `json:"remote_addr,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewAuditLog is the designated factory for creating valid AuditLog entities.
func NewAuditLog(actor string, action AuditAction, target, details, remoteAddr string) (*AuditLog, error) {
	if actor == "" {
		return nil, ErrMissingActor
	}

	if !isValidAction(action) {
		return nil, ErrInvalidAction
	}

	return &AuditLog{
		Actor:      actor,
		Action:     action,
		Target:     target,
		Details:    details,
		RemoteAddr: remoteAddr,
		Timestamp:  time.Now().UTC(),
	}, nil
}

func isValidAction(action AuditAction) bool {
	switch action {
	case ActionIngest, ActionClear, ActionScan, ActionArchive, ActionExport, ActionInfo:
		return true
	}
	return false
}
