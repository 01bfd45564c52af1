package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/feescan/internal/core/domain"
	"github.com/vietddude/feescan/internal/infra/storage"
)

// ProgressRepo implements storage.ProgressRepository using PostgreSQL.
type ProgressRepo struct {
	db *DB
}

// NewProgressRepo creates a new PostgreSQL progress repository.
func NewProgressRepo(db *DB) *ProgressRepo {
	return &ProgressRepo{db: db}
}

type progressRow struct {
	SourceID          string    `db:"source_id"`
	LastScannedHeight int64     `db:"last_scanned_height"`
	KnownHeadHeight   int64     `db:"known_head_height"`
	Status            string    `db:"status"`
	LastError         string    `db:"last_error"`
	LastScanTime      time.Time `db:"last_scan_time"`
}

func (r *progressRow) toDomain() *domain.ScanProgress {
	return &domain.ScanProgress{
		SourceID:          r.SourceID,
		LastScannedHeight: uint64(r.LastScannedHeight),
		KnownHeadHeight:   uint64(r.KnownHeadHeight),
		Status:            domain.ScanStatus(r.Status),
		LastError:         r.LastError,
		LastScanTime:      r.LastScanTime,
	}
}

// Get retrieves the progress row for a source.
func (r *ProgressRepo) Get(ctx context.Context, sourceID string) (*domain.ScanProgress, error) {
	query := `
		SELECT source_id, last_scanned_height, known_head_height, status, last_error, last_scan_time
		FROM scan_progress
		WHERE source_id = $1
	`

	var row progressRow
	err := r.db.GetContext(ctx, &row, query, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan progress: %w", err)
	}

	return row.toDomain(), nil
}

// Save upserts the progress row. The unique index on source_id keeps
// exactly one row per source.
func (r *ProgressRepo) Save(ctx context.Context, p *domain.ScanProgress) error {
	query := `
		INSERT INTO scan_progress (
			source_id, last_scanned_height, known_head_height, status, last_error, last_scan_time
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_id) DO UPDATE SET
			last_scanned_height = EXCLUDED.last_scanned_height,
			known_head_height = EXCLUDED.known_head_height,
			status = EXCLUDED.status,
			last_error = EXCLUDED.last_error,
			last_scan_time = EXCLUDED.last_scan_time
	`

	_, err := r.db.ExecContext(ctx, query,
		p.SourceID, int64(p.LastScannedHeight), int64(p.KnownHeadHeight),
		string(p.Status), p.LastError, p.LastScanTime,
	)
	if err != nil {
		return fmt.Errorf("failed to save scan progress: %w", err)
	}
	return nil
}
