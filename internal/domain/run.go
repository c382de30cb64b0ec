package domain

import "time"

// RunRecord identifies one scan execution.
// Corresponds to scan_runs table.
type RunRecord struct {
	RunID               int64     // monotonic, assigned by storage
	StartedAt           time.Time // run start
	Period              string    // ratio/OI period, e.g. 5m
	MinOpenInterestUSDT float64   // OI gate in effect for the run
}
