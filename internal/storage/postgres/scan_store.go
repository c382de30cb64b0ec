package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"perp-crowd-scanner/internal/domain"
	"perp-crowd-scanner/internal/storage"
)

// ScanStore implements storage.ScanStore using PostgreSQL.
type ScanStore struct {
	pool *Pool
}

// NewScanStore creates a new ScanStore.
func NewScanStore(pool *Pool) *ScanStore {
	return &ScanStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ScanStore = (*ScanStore)(nil)

// Reset deletes every signal and run in one transaction.
// The run id sequence is not restarted.
func (s *ScanStore) Reset(ctx context.Context) (err error) {
	defer observe("reset", time.Now(), &err)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx, `DELETE FROM scan_hits`); err != nil {
		return fmt.Errorf("delete signals: %w", err)
	}
	if _, err = tx.Exec(ctx, `DELETE FROM scan_runs`); err != nil {
		return fmt.Errorf("delete runs: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

// CreateRun stores a new run; the id comes from the BIGSERIAL sequence.
func (s *ScanStore) CreateRun(ctx context.Context, r *domain.RunRecord) (_ int64, err error) {
	defer observe("create_run", time.Now(), &err)

	if r == nil || r.Period == "" {
		return 0, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO scan_runs (run_ts, period, min_oi_usdt)
		VALUES ($1, $2, $3)
		RETURNING run_id
	`

	var id int64
	if err = s.pool.QueryRow(ctx, query, r.StartedAt.UnixMilli(), r.Period, r.MinOpenInterestUSDT).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	r.RunID = id
	return id, nil
}

// LatestRun returns the run with the highest id.
func (s *ScanStore) LatestRun(ctx context.Context) (_ *domain.RunRecord, err error) {
	defer observe("latest_run", time.Now(), &err)

	query := `
		SELECT run_id, run_ts, period, min_oi_usdt
		FROM scan_runs
		ORDER BY run_id DESC
		LIMIT 1
	`

	var (
		r     domain.RunRecord
		runTS int64
	)
	err = s.pool.QueryRow(ctx, query).Scan(&r.RunID, &runTS, &r.Period, &r.MinOpenInterestUSDT)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest run: %w", err)
	}
	r.StartedAt = time.UnixMilli(runTS).UTC()
	return &r, nil
}

// Upsert inserts or replaces a signal keyed by (run_id, symbol, setup).
func (s *ScanStore) Upsert(ctx context.Context, rec *domain.SignalRecord) (err error) {
	defer observe("upsert", time.Now(), &err)

	if rec == nil || rec.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO scan_hits (
			run_id, symbol, setup, timestamp_ms, oi_usdt,
			top_acc_long, top_acc_short,
			glob_acc_long, glob_acc_short,
			top_pos_long, top_pos_short,
			funding_rate, current_price, volume_24h, volume_2h
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (run_id, symbol, setup) DO UPDATE SET
			timestamp_ms   = EXCLUDED.timestamp_ms,
			oi_usdt        = EXCLUDED.oi_usdt,
			top_acc_long   = EXCLUDED.top_acc_long,
			top_acc_short  = EXCLUDED.top_acc_short,
			glob_acc_long  = EXCLUDED.glob_acc_long,
			glob_acc_short = EXCLUDED.glob_acc_short,
			top_pos_long   = EXCLUDED.top_pos_long,
			top_pos_short  = EXCLUDED.top_pos_short,
			funding_rate   = EXCLUDED.funding_rate,
			current_price  = EXCLUDED.current_price,
			volume_24h     = EXCLUDED.volume_24h,
			volume_2h      = EXCLUDED.volume_2h
	`

	r := rec.Ratios
	_, err = s.pool.Exec(ctx, query,
		rec.RunID, rec.Symbol, string(rec.Setup), rec.TimestampMs, rec.OpenInterestUSDT,
		r.TopAccount.Long, r.TopAccount.Short,
		r.GlobalAccount.Long, r.GlobalAccount.Short,
		r.TopPosition.Long, r.TopPosition.Short,
		rec.FundingRate, rec.MarkPrice, rec.Volume24h, rec.Volume2h,
	)
	if err != nil {
		switch {
		case isForeignKeyError(err):
			return storage.ErrUnknownRun
		case isCheckError(err):
			return storage.ErrInvalidInput
		}
		return fmt.Errorf("upsert signal: %w", err)
	}
	return nil
}

// GetByRun retrieves all signals of a run, ordered by open interest DESC.
func (s *ScanStore) GetByRun(ctx context.Context, runID int64) (_ []*domain.SignalRecord, err error) {
	defer observe("get_by_run", time.Now(), &err)

	query := `
		SELECT
			run_id, symbol, setup, timestamp_ms, oi_usdt,
			top_acc_long, top_acc_short,
			glob_acc_long, glob_acc_short,
			top_pos_long, top_pos_short,
			funding_rate, current_price, volume_24h, volume_2h
		FROM scan_hits
		WHERE run_id = $1
		ORDER BY oi_usdt DESC, symbol ASC, setup ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	result, err := scanSignals(rows)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanSignals(rows pgx.Rows) ([]*domain.SignalRecord, error) {
	var result []*domain.SignalRecord
	for rows.Next() {
		var (
			rec   domain.SignalRecord
			setup string
		)
		err := rows.Scan(
			&rec.RunID, &rec.Symbol, &setup, &rec.TimestampMs, &rec.OpenInterestUSDT,
			&rec.Ratios.TopAccount.Long, &rec.Ratios.TopAccount.Short,
			&rec.Ratios.GlobalAccount.Long, &rec.Ratios.GlobalAccount.Short,
			&rec.Ratios.TopPosition.Long, &rec.Ratios.TopPosition.Short,
			&rec.FundingRate, &rec.MarkPrice, &rec.Volume24h, &rec.Volume2h,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		rec.Setup = domain.SetupKind(setup)
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return result, nil
}
