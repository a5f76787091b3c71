package storage

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteAdapter implements ports.AuditRepository and ports.ScanRunRepository using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

// AuditLogModel is the GORM model for audit entries.
type AuditLogModel struct {
	ID         uint   `gorm:"primaryKey"`
	Actor      string `gorm:"index"`
	Action     string `gorm:"index"`
	Target     string
	Details    string
	RemoteAddr string
	Timestamp  time.Time `gorm:"index"`
}

// TableName keeps the table name stable across model renames.
func (AuditLogModel) TableName() string { return "audit_logs" }

// ScanRunModel is the GORM model for scan run summaries.
type ScanRunModel struct {
	ScanID         string `gorm:"primaryKey"`
	StartedAt      time.Time
	AssetCount     int
	Critical       int
	High           int
	Medium         int
	Low            int
	Total          int
	PlansAvailable bool
	Archived       bool
}

// TableName keeps the table name stable across model renames.
func (ScanRunModel) TableName() string { return "scan_runs" }

// NewSQLiteAdapter initializes the database and migrates schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; ":memory:" needs one shared connection.
	sqlDB.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &SQLiteAdapter{db: db}, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&AuditLogModel{}, &ScanRunModel{}); err != nil {
		return err
	}

	// Create Indices for Performance
	return db.Exec("CREATE INDEX IF NOT EXISTS idx_scan_runs_started ON scan_runs(started_at)").Error
}

func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
