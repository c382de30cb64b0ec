package scanner

import "sync/atomic"

// Counters are the running totals of one scan, safe for concurrent use.
type Counters struct {
	scanned atomic.Int64
	passed  atomic.Int64
	emitted atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// Stats is a point-in-time copy of Counters.
type Stats struct {
	Total             int64
	Scanned           int64 // evaluations returned, whatever the outcome
	PassedCheapFilter int64
	RecordsEmitted    int64 // records accepted by the sink queue
	Failed            int64 // evaluations aborted by unavailable data or a panic
	Dropped           int64 // records the sink refused
}

// Snapshot returns the current totals.
func (c *Counters) Snapshot() Stats {
	return Stats{
		Scanned:           c.scanned.Load(),
		PassedCheapFilter: c.passed.Load(),
		RecordsEmitted:    c.emitted.Load(),
		Failed:            c.failed.Load(),
		Dropped:           c.dropped.Load(),
	}
}
