package cve

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const severityOrder = `
	CASE c.severity
		WHEN 'CRITICAL' THEN 1
		WHEN 'HIGH' THEN 2
		WHEN 'MEDIUM' THEN 3
		WHEN 'LOW' THEN 4
	END`

// SQLiteRepository implements ports.CVERepository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-based CVE repository.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared between calls
	// and serializes writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// InsertCVE stores one CVE and replaces its affected products in a single transaction.
func (r *SQLiteRepository) InsertCVE(ctx context.Context, cve domain.CVERecord) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return &domain.StorageError{CVEID: cve.ID, Err: err}
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StorageError{CVEID: cve.ID, Err: err}
	}

	if err := upsertCVE(ctx, tx, cve); err != nil {
		tx.Rollback()
		return &domain.StorageError{CVEID: cve.ID, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &domain.StorageError{CVEID: cve.ID, Err: err}
	}
	return nil
}

func upsertCVE(ctx context.Context, tx *sql.Tx, cve domain.CVERecord) error {
	query := `
		INSERT INTO cves (cve_id, description, severity, cvss_score, published_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cve_id) DO UPDATE SET
			description = excluded.description,
			severity = excluded.severity,
			cvss_score = excluded.cvss_score,
			published_date = excluded.published_date,
			updated_at = CURRENT_TIMESTAMP
	`

	var score sql.NullFloat64
	if cve.CVSSScore != nil {
		score = sql.NullFloat64{Float64: *cve.CVSSScore, Valid: true}
	}
	var published sql.NullString
	if cve.PublishedDate != "" {
		published = sql.NullString{String: cve.PublishedDate, Valid: true}
	}

	if _, err := tx.ExecContext(ctx, query, cve.ID, cve.Description, string(cve.Severity), score, published); err != nil {
		return fmt.Errorf("upsert cve: %w", err)
	}

	// Re-ingest replaces the product list wholesale.
	if _, err := tx.ExecContext(ctx, "DELETE FROM affected_products WHERE cve_id = ?", cve.ID); err != nil {
		return fmt.Errorf("delete affected products: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO affected_products (cve_id, software, version) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare affected products: %w", err)
	}
	defer stmt.Close()

	for _, p := range cve.AffectedProducts {
		if _, err := stmt.ExecContext(ctx, cve.ID, p.Software, p.Version); err != nil {
			return fmt.Errorf("insert affected product %s %s: %w", p.Software, p.Version, err)
		}
	}
	return nil
}

// BulkInsert stores each CVE in its own transaction. A failing record is reported
// and skipped; the others are still written.
func (r *SQLiteRepository) BulkInsert(ctx context.Context, cves []domain.CVERecord) (int, []domain.IngestError) {
	stored := 0
	var failures []domain.IngestError

	for _, cve := range cves {
		if err := r.InsertCVE(ctx, cve); err != nil {
			id := cve.ID
			if id == "" {
				id = domain.UnknownCVEID
			}
			failures = append(failures, domain.IngestError{
				CVEID:  id,
				Reason: err.Error(),
				Kind:   domain.IngestErrorStorage,
			})
			continue
		}
		stored++
	}

	return stored, failures
}

// GetByID retrieves a specific CVE by its ID, affected products included.
func (r *SQLiteRepository) GetByID(ctx context.Context, cveID string) (*domain.CVERecord, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := `
		SELECT cve_id, description, severity, cvss_score, published_date
		FROM cves
		WHERE cve_id = ?
	`

	cve, err := scanCVERecord(conn.QueryRowContext(ctx, query, cveID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get CVE: %w", err)
	}

	products, err := loadProducts(ctx, conn, "WHERE cve_id = ?", cveID)
	if err != nil {
		return nil, err
	}
	cve.AffectedProducts = products[cve.ID]

	return &cve, nil
}

// ListCVEs returns every stored CVE ordered by severity rank, then score descending.
func (r *SQLiteRepository) ListCVEs(ctx context.Context) ([]domain.CVERecord, error) {
	return r.listCVEs(ctx, "", nil)
}

// ListBySeverity returns the CVEs with the given severity, highest score first.
func (r *SQLiteRepository) ListBySeverity(ctx context.Context, severity domain.Severity) ([]domain.CVERecord, error) {
	return r.listCVEs(ctx, "WHERE c.severity = ?", []interface{}{string(severity)})
}

func (r *SQLiteRepository) listCVEs(ctx context.Context, where string, args []interface{}) ([]domain.CVERecord, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := fmt.Sprintf(`
		SELECT c.cve_id, c.description, c.severity, c.cvss_score, c.published_date
		FROM cves c
		%s
		ORDER BY %s, c.cvss_score DESC
	`, where, severityOrder)

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	cves, err := scanCVERecords(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	products, err := loadProducts(ctx, conn, "")
	if err != nil {
		return nil, err
	}
	for i := range cves {
		cves[i].AffectedProducts = products[cves[i].ID]
	}

	return cves, nil
}

// MatchAssets joins assets against affected products on case- and whitespace-insensitive
// (software, version). The assets are staged in a temporary table that only lives on the
// connection used for the query.
func (r *SQLiteRepository) MatchAssets(ctx context.Context, assets []domain.Asset) ([]domain.MatchResult, error) {
	matches := make([]domain.MatchResult, 0)
	if len(assets) == 0 {
		return matches, nil
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS temp_assets (software TEXT NOT NULL, version TEXT NOT NULL)`); err != nil {
		return nil, fmt.Errorf("create temp assets: %w", err)
	}
	defer conn.ExecContext(context.Background(), "DROP TABLE IF EXISTS temp_assets")

	if err := stageAssets(ctx, conn, assets); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT c.cve_id, c.description, c.severity, c.cvss_score, c.published_date,
		       ap.software, ap.version
		FROM cves c
		INNER JOIN affected_products ap ON c.cve_id = ap.cve_id
		INNER JOIN temp_assets ta ON
			LOWER(TRIM(ap.software)) = LOWER(TRIM(ta.software))
			AND LOWER(TRIM(ap.version)) = LOWER(TRIM(ta.version))
		ORDER BY %s, c.cvss_score DESC
	`, severityOrder)

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("match query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.MatchResult
		var severity string
		var score sql.NullFloat64
		var published sql.NullString

		if err := rows.Scan(&m.CVEID, &m.Description, &severity, &score, &published, &m.Software, &m.Version); err != nil {
			return nil, err
		}
		m.Severity = domain.Severity(severity)
		m.CVSSScore = floatPtr(score)
		m.PublishedDate = published.String
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

func stageAssets(ctx context.Context, conn *sql.Conn, assets []domain.Asset) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM temp_assets"); err != nil {
		tx.Rollback()
		return fmt.Errorf("reset temp assets: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO temp_assets (software, version) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, a := range assets {
		if _, err := stmt.ExecContext(ctx, a.Software, a.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("stage asset %s %s: %w", a.Software, a.Version, err)
		}
	}

	return tx.Commit()
}

// Statistics returns CVE counts per severity plus a total.
func (r *SQLiteRepository) Statistics(ctx context.Context) (domain.Statistics, error) {
	var st domain.Statistics

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return st, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, "SELECT severity, COUNT(*) FROM cves GROUP BY severity")
	if err != nil {
		return st, fmt.Errorf("statistics query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return st, err
		}
		st.Add(domain.Severity(severity), count)
	}

	return st, rows.Err()
}

// Clear removes all CVEs, affected products and archived scan results.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, table := range []string{"scan_results", "affected_products", "cves"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			tx.Rollback()
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	return tx.Commit()
}

// SaveScanResults appends archived matches.
func (r *SQLiteRepository) SaveScanResults(ctx context.Context, results []domain.ScanResult) error {
	if len(results) == 0 {
		return nil
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scan_results (scan_id, asset_software, asset_version, cve_id, severity, action_plan, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, res := range results {
		createdAt := res.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, res.ScanID, res.AssetSoftware, res.AssetVersion,
			res.CVEID, string(res.Severity), res.ActionPlan, createdAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("save scan result %s: %w", res.CVEID, err)
		}
	}

	return tx.Commit()
}

// ListScanResults returns archived results, newest first. limit <= 0 returns all rows.
func (r *SQLiteRepository) ListScanResults(ctx context.Context, limit int) ([]domain.ScanResult, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := `
		SELECT id, scan_id, asset_software, asset_version, cve_id, severity, action_plan, created_at
		FROM scan_results
		ORDER BY id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var results []domain.ScanResult
	for rows.Next() {
		var res domain.ScanResult
		var severity string
		var plan sql.NullString
		if err := rows.Scan(&res.ID, &res.ScanID, &res.AssetSoftware, &res.AssetVersion,
			&res.CVEID, &severity, &plan, &res.CreatedAt); err != nil {
			return nil, err
		}
		res.Severity = domain.Severity(severity)
		res.ActionPlan = plan.String
		results = append(results, res)
	}

	return results, rows.Err()
}

// GetTotalCount returns the total number of CVE records.
func (r *SQLiteRepository) GetTotalCount(ctx context.Context) (int, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var count int
	err = conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM cves").Scan(&count)
	return count, err
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// Helper: Scan multiple CVE records from rows
func scanCVERecords(rows *sql.Rows) ([]domain.CVERecord, error) {
	cves := make([]domain.CVERecord, 0)

	for rows.Next() {
		cve, err := scanCVERecord(rows)
		if err != nil {
			return nil, err
		}
		cves = append(cves, cve)
	}

	return cves, rows.Err()
}

// Helper: Scan single CVE record from a row
func scanCVERecord(row rowScanner) (domain.CVERecord, error) {
	var cve domain.CVERecord
	var severity string
	var score sql.NullFloat64
	var published sql.NullString

	if err := row.Scan(&cve.ID, &cve.Description, &severity, &score, &published); err != nil {
		return cve, err
	}

	cve.Severity = domain.Severity(severity)
	cve.CVSSScore = floatPtr(score)
	cve.PublishedDate = published.String

	return cve, nil
}

// loadProducts groups affected products by CVE ID.
func loadProducts(ctx context.Context, conn *sql.Conn, where string, args ...interface{}) (map[string][]domain.AffectedProduct, error) {
	rows, err := conn.QueryContext(ctx, "SELECT cve_id, software, version FROM affected_products "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("affected products query failed: %w", err)
	}
	defer rows.Close()

	products := make(map[string][]domain.AffectedProduct)
	for rows.Next() {
		var p domain.AffectedProduct
		if err := rows.Scan(&p.CVEID, &p.Software, &p.Version); err != nil {
			return nil, err
		}
		products[p.CVEID] = append(products[p.CVEID], p)
	}

	return products, rows.Err()
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
