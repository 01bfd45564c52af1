package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/feescan/internal/core/domain"
)

// EventRepo implements storage.FeeEventRepository using PostgreSQL.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new PostgreSQL fee event repository.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

type eventRow struct {
	SourceID       string    `db:"source_id"`
	Token          string    `db:"token"`
	Integrator     string    `db:"integrator"`
	IntegratorFee  string    `db:"integrator_fee"`
	PlatformFee    string    `db:"platform_fee"`
	BlockHeight    int64     `db:"block_height"`
	TxHash         string    `db:"tx_hash"`
	LogIndex       int64     `db:"log_index"`
	BlockTimestamp time.Time `db:"block_timestamp"`
}

func (e *eventRow) toDomain() *domain.FeeEvent {
	return &domain.FeeEvent{
		SourceID:       e.SourceID,
		Token:          e.Token,
		Integrator:     e.Integrator,
		IntegratorFee:  e.IntegratorFee,
		PlatformFee:    e.PlatformFee,
		BlockHeight:    uint64(e.BlockHeight),
		TxHash:         e.TxHash,
		LogIndex:       uint64(e.LogIndex),
		BlockTimestamp: e.BlockTimestamp,
	}
}

// InsertBatch inserts events absent by identity key inside one
// transaction. ON CONFLICT DO NOTHING leaves existing rows untouched;
// the summed RowsAffected is exactly the newly created count, which
// makes overlapping or redelivered ranges safe.
func (r *EventRepo) InsertBatch(ctx context.Context, events []*domain.FeeEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO fee_events (
			source_id, token, integrator, integrator_fee, platform_fee,
			block_height, tx_hash, log_index, block_timestamp, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (source_id, tx_hash, log_index) DO NOTHING
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range events {
		res, err := stmt.ExecContext(ctx,
			e.SourceID, e.Token, e.Integrator, e.IntegratorFee, e.PlatformFee,
			int64(e.BlockHeight), e.TxHash, int64(e.LogIndex), e.BlockTimestamp,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert fee event %s:%d: %w", e.TxHash, e.LogIndex, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetByRange retrieves stored events for a source in [from, to].
func (r *EventRepo) GetByRange(ctx context.Context, sourceID string, from, to uint64) ([]*domain.FeeEvent, error) {
	query := `
		SELECT source_id, token, integrator, integrator_fee, platform_fee,
		       block_height, tx_hash, log_index, block_timestamp
		FROM fee_events
		WHERE source_id = $1 AND block_height BETWEEN $2 AND $3
		ORDER BY block_height, log_index
	`

	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, query, sourceID, int64(from), int64(to))
	if err != nil {
		return nil, fmt.Errorf("failed to get fee events: %w", err)
	}

	events := make([]*domain.FeeEvent, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].toDomain())
	}
	return events, nil
}

// Count returns the number of stored events for a source.
func (r *EventRepo) Count(ctx context.Context, sourceID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM fee_events WHERE source_id = $1`, sourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to count fee events: %w", err)
	}
	return count, nil
}
