package clickhouse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"perp-crowd-scanner/internal/domain"
	"perp-crowd-scanner/internal/observability"
	"perp-crowd-scanner/internal/storage"
)

// ScanStore implements storage.ScanStore using ClickHouse.
// Upserts rely on ReplacingMergeTree; reads use FINAL.
type ScanStore struct {
	conn *Conn
	mu   sync.Mutex // serializes run id allocation
}

// NewScanStore creates a new ScanStore.
func NewScanStore(conn *Conn) *ScanStore {
	return &ScanStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ScanStore = (*ScanStore)(nil)

// Reset truncates both tables.
func (s *ScanStore) Reset(ctx context.Context) (err error) {
	defer observe("reset", time.Now(), &err)

	for _, table := range []string{"scan_hits", "scan_runs"} {
		if err = s.conn.Exec(ctx, "TRUNCATE TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// CreateRun stores a new run. ClickHouse has no sequences: the id is the start
// time in unix ms, bumped past the current maximum when needed.
func (s *ScanStore) CreateRun(ctx context.Context, r *domain.RunRecord) (_ int64, err error) {
	defer observe("create_run", time.Now(), &err)

	if r == nil || r.Period == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var maxID int64
	if err = s.conn.QueryRow(ctx, "SELECT max(run_id) FROM scan_runs").Scan(&maxID); err != nil {
		return 0, fmt.Errorf("max run id: %w", err)
	}

	id := r.StartedAt.UnixMilli()
	if id <= maxID {
		id = maxID + 1
	}

	query := `
		INSERT INTO scan_runs (run_id, run_ts, period, min_oi_usdt)
		VALUES (?, ?, ?, ?)
	`
	if err = s.conn.Exec(ctx, query, id, r.StartedAt.UnixMilli(), r.Period, r.MinOpenInterestUSDT); err != nil {
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
		FROM scan_runs FINAL
		ORDER BY run_id DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate runs: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	var (
		r     domain.RunRecord
		runTS int64
	)
	if err = rows.Scan(&r.RunID, &runTS, &r.Period, &r.MinOpenInterestUSDT); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = time.UnixMilli(runTS).UTC()
	return &r, nil
}

// Upsert inserts a signal row; the engine keeps the last written row per key.
func (s *ScanStore) Upsert(ctx context.Context, rec *domain.SignalRecord) (err error) {
	defer observe("upsert", time.Now(), &err)

	if rec == nil || rec.Symbol == "" || !rec.Setup.IsValid() {
		return storage.ErrInvalidInput
	}

	exists, err := s.runExists(ctx, rec.RunID)
	if err != nil {
		return fmt.Errorf("check run: %w", err)
	}
	if !exists {
		return storage.ErrUnknownRun
	}

	query := `
		INSERT INTO scan_hits (
			run_id, symbol, setup, timestamp_ms, oi_usdt,
			top_acc_long, top_acc_short,
			glob_acc_long, glob_acc_short,
			top_pos_long, top_pos_short,
			funding_rate, current_price, volume_24h, volume_2h
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	r := rec.Ratios
	err = s.conn.Exec(ctx, query,
		rec.RunID, rec.Symbol, string(rec.Setup), rec.TimestampMs, rec.OpenInterestUSDT,
		r.TopAccount.Long, r.TopAccount.Short,
		r.GlobalAccount.Long, r.GlobalAccount.Short,
		r.TopPosition.Long, r.TopPosition.Short,
		rec.FundingRate, rec.MarkPrice, rec.Volume24h, rec.Volume2h,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
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
		FROM scan_hits FINAL
		WHERE run_id = ?
		ORDER BY oi_usdt DESC, symbol ASC, setup ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var result []*domain.SignalRecord
	for rows.Next() {
		var (
			rec   domain.SignalRecord
			setup string
		)
		err = rows.Scan(
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
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return result, nil
}

func (s *ScanStore) runExists(ctx context.Context, runID int64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, "SELECT count() FROM scan_runs WHERE run_id = ?", runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func observe(op string, start time.Time, err *error) {
	observability.RecordDBQuery("clickhouse", op, time.Since(start).Seconds(), *err)
}
