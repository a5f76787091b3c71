package ports

import (
	"context"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
)

// ScanRunRepository persists the scan run history.
type ScanRunRepository interface {
	SaveScanRun(ctx context.Context, run domain.ScanRun) error
	ListScanRuns(ctx context.Context, limit int) ([]domain.ScanRun, error)
}
