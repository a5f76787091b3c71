package storage

import (
	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
)

// toAuditModel converts a domain entity to its database model.
func toAuditModel(l domain.AuditLog) AuditLogModel {
	return AuditLogModel{
		ID:         l.ID,
		Actor:      l.Actor,
		Action:     string(l.Action),
		Target:     l.Target,
		Details:    l.Details,
		RemoteAddr: l.RemoteAddr,
		Timestamp:  l.Timestamp,
	}
}

// toAuditDomain converts a database model to a domain entity.
func toAuditDomain(m AuditLogModel) domain.AuditLog {
	return domain.AuditLog{
		ID:         m.ID,
		Actor:      m.Actor,
		Action:     domain.AuditAction(m.Action),
		Target:     m.Target,
		Details:    m.Details,
		RemoteAddr: m.RemoteAddr,
		Timestamp:  m.Timestamp,
	}
}

func toScanRunModel(r domain.ScanRun) ScanRunModel {
	return ScanRunModel{
		ScanID:         r.ScanID,
		StartedAt:      r.StartedAt,
		AssetCount:     r.AssetCount,
		Critical:       r.Summary.Critical,
		High:           r.Summary.High,
		Medium:         r.Summary.Medium,
		Low:            r.Summary.Low,
		Total:          r.Summary.Total,
		PlansAvailable: r.PlansAvailable,
		Archived:       r.Archived,
	}
}

func toScanRunDomain(m ScanRunModel) domain.ScanRun {
	return domain.ScanRun{
		ScanID:     m.ScanID,
		StartedAt:  m.StartedAt,
		AssetCount: m.AssetCount,
		Summary: domain.Statistics{
			Critical: m.Critical,
			High:     m.High,
			Medium:   m.Medium,
			Low:      m.Low,
			Total:    m.Total,
		},
		PlansAvailable: m.PlansAvailable,
		Archived:       m.Archived,
	}
}
