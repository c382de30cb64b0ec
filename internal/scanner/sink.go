package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"perp-crowd-scanner/internal/domain"
	"perp-crowd-scanner/internal/observability"
	"perp-crowd-scanner/internal/storage"
)

// ErrSinkClosed is returned by Enqueue after Close.
var ErrSinkClosed = errors.New("sink closed")

// Sink defaults.
const (
	DefaultQueueSize     = 256
	DefaultWriteAttempts = 3
	DefaultWriteBackoff  = 200 * time.Millisecond
	DefaultWriteTimeout  = 10 * time.Second
)

// SinkOptions configures Sink.
type SinkOptions struct {
	Store         storage.SignalStore
	QueueSize     int
	WriteAttempts int
	WriteBackoff  time.Duration // delay before the second attempt, doubled afterwards
	WriteTimeout  time.Duration // per attempt
	Logger        *log.Logger
}

// Sink is the single writer between evaluators and storage.
type Sink struct {
	store        storage.SignalStore
	queue        chan domain.SignalRecord
	attempts     int
	backoff      time.Duration
	writeTimeout time.Duration
	logger       *log.Logger

	mu      sync.RWMutex
	closed  bool
	written atomic.Int64
}

// NewSink creates a new sink with a bounded queue.
func NewSink(opts SinkOptions) *Sink {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	attempts := opts.WriteAttempts
	if attempts <= 0 {
		attempts = DefaultWriteAttempts
	}
	backoff := opts.WriteBackoff
	if backoff <= 0 {
		backoff = DefaultWriteBackoff
	}
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Sink{
		store:        opts.Store,
		queue:        make(chan domain.SignalRecord, size),
		attempts:     attempts,
		backoff:      backoff,
		writeTimeout: timeout,
		logger:       logger,
	}
}

// Enqueue adds a record, suspending while the queue is full.
// Returns ErrSinkClosed after Close, or ctx.Err() if ctx ends first.
func (s *Sink) Enqueue(ctx context.Context, rec domain.SignalRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.queue <- rec:
		observability.UpdateQueueDepth(len(s.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the record stream. Call it once every producer has returned.
// Safe to call more than once.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.queue)
	}
}

// Run persists records until the queue is closed and drained. Writes are not
// cancelled by ctx so records already queued survive a run deadline.
// A write that fails every attempt ends Run with an error.
func (s *Sink) Run(ctx context.Context) error {
	writeCtx := context.WithoutCancel(ctx)

	for rec := range s.queue {
		observability.UpdateQueueDepth(len(s.queue))
		if err := s.write(writeCtx, &rec); err != nil {
			return fmt.Errorf("persist %s %s: %w", rec.Symbol, rec.Setup, err)
		}
		s.written.Add(1)
		observability.RecordSignalWritten()
	}
	return nil
}

// Written returns the number of records persisted.
func (s *Sink) Written() int64 {
	return s.written.Load()
}

func (s *Sink) write(ctx context.Context, rec *domain.SignalRecord) error {
	delay := s.backoff
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if attempt > 1 {
			time.Sleep(delay)
			delay *= 2
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		err = s.store.Upsert(attemptCtx, rec)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, storage.ErrUnknownRun) || errors.Is(err, storage.ErrInvalidInput) {
			return err
		}
		s.logger.Printf("Write of %s %s failed (attempt %d/%d): %v", rec.Symbol, rec.Setup, attempt, s.attempts, err)
	}
	return fmt.Errorf("after %d attempts: %w", s.attempts, err)
}
