package memory

import (
	"context"
	"sort"
	"sync"

	"perp-crowd-scanner/internal/domain"
	"perp-crowd-scanner/internal/storage"
)

// ScanStore is an in-memory implementation of storage.ScanStore.
type ScanStore struct {
	mu      sync.RWMutex
	runs    map[int64]*domain.RunRecord
	signals map[domain.SignalKey]*domain.SignalRecord
	lastID  int64
}

// NewScanStore creates a new in-memory scan store.
func NewScanStore() *ScanStore {
	return &ScanStore{
		runs:    make(map[int64]*domain.RunRecord),
		signals: make(map[domain.SignalKey]*domain.SignalRecord),
	}
}

// Reset removes every run and every signal. Run ids keep increasing.
func (s *ScanStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[int64]*domain.RunRecord)
	s.signals = make(map[domain.SignalKey]*domain.SignalRecord)
	return nil
}

// CreateRun stores a new run and returns its id.
func (s *ScanStore) CreateRun(_ context.Context, r *domain.RunRecord) (int64, error) {
	if r == nil || r.Period == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	r.RunID = s.lastID

	runCopy := *r
	s.runs[runCopy.RunID] = &runCopy
	return runCopy.RunID, nil
}

// LatestRun returns the run with the highest id.
func (s *ScanStore) LatestRun(_ context.Context) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.RunRecord
	for _, r := range s.runs {
		if latest == nil || r.RunID > latest.RunID {
			latest = r
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	runCopy := *latest
	return &runCopy, nil
}

// Upsert inserts or replaces a signal keyed by (run_id, symbol, setup).
func (s *ScanStore) Upsert(_ context.Context, rec *domain.SignalRecord) error {
	if rec == nil || rec.Symbol == "" || !rec.Setup.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[rec.RunID]; !ok {
		return storage.ErrUnknownRun
	}

	s.signals[rec.Key()] = cloneSignal(rec)
	return nil
}

// GetByRun retrieves all signals of a run, ordered by open interest DESC.
func (s *ScanStore) GetByRun(_ context.Context, runID int64) ([]*domain.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SignalRecord
	for key, rec := range s.signals {
		if key.RunID == runID {
			result = append(result, cloneSignal(rec))
		}
	}

	// Sort by oi_usdt DESC, then symbol and setup for stable output
	sort.Slice(result, func(i, j int) bool {
		if result[i].OpenInterestUSDT != result[j].OpenInterestUSDT {
			return result[i].OpenInterestUSDT > result[j].OpenInterestUSDT
		}
		if result[i].Symbol != result[j].Symbol {
			return result[i].Symbol < result[j].Symbol
		}
		return result[i].Setup < result[j].Setup
	})

	return result, nil
}

// Len returns the number of stored signals.
func (s *ScanStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.signals)
}

// cloneSignal copies a record including its optional fields.
func cloneSignal(rec *domain.SignalRecord) *domain.SignalRecord {
	c := *rec
	c.FundingRate = cloneFloat(rec.FundingRate)
	c.MarkPrice = cloneFloat(rec.MarkPrice)
	c.Volume24h = cloneFloat(rec.Volume24h)
	c.Volume2h = cloneFloat(rec.Volume2h)
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Verify interface compliance at compile time.
var _ storage.ScanStore = (*ScanStore)(nil)
