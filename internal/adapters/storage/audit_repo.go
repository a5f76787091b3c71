package storage

import (
	"context"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/ports"
	"gorm.io/gorm/clause"
)

// Ensure compliance
var (
	_ ports.AuditRepository   = (*SQLiteAdapter)(nil)
	_ ports.ScanRunRepository = (*SQLiteAdapter)(nil)
)

func (a *SQLiteAdapter) SaveAuditLog(ctx context.Context, log domain.AuditLog) error {
	model := toAuditModel(log)
	return a.db.WithContext(ctx).Create(&model).Error
}

// ListAuditLogs returns the newest entries first. limit <= 0 returns every entry.
func (a *SQLiteAdapter) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	var models []AuditLogModel
	query := a.db.WithContext(ctx).Order("timestamp desc").Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	logs := make([]domain.AuditLog, len(models))
	for i, m := range models {
		logs[i] = toAuditDomain(m)
	}
	return logs, nil
}

// SaveScanRun upserts a run summary keyed by scan ID.
func (a *SQLiteAdapter) SaveScanRun(ctx context.Context, run domain.ScanRun) error {
	model := toScanRunModel(run)
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error
}

// ListScanRuns returns the most recent runs first.
func (a *SQLiteAdapter) ListScanRuns(ctx context.Context, limit int) ([]domain.ScanRun, error) {
	var models []ScanRunModel
	query := a.db.WithContext(ctx).Order("started_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	runs := make([]domain.ScanRun, len(models))
	for i, m := range models {
		runs[i] = toScanRunDomain(m)
	}
	return runs, nil
}
