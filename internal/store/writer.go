package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/jmoiron/sqlx"
)

// WriteFunc is one queued database write.
type WriteFunc func(*sqlx.DB) error

// Writer serializes SQLite writes through a single goroutine. A bounded
// channel provides backpressure; Drain flushes pending writes on shutdown.
type Writer struct {
	db      *sqlx.DB
	ch      chan WriteFunc
	wg      sync.WaitGroup
	dropped atomic.Uint64
	failed  atomic.Uint64
	log     logr.Logger

	mu     sync.RWMutex
	closed bool
}

// NewWriter creates an async writer with the given buffer size.
// Call Run() to start processing and Drain() before closing the DB.
func NewWriter(db *DB, bufSize int) *Writer {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Writer{
		db:  db.X(),
		ch:  make(chan WriteFunc, bufSize),
		log: logr.Discard(),
	}
}

// WithLogger sets the logger used for failed and dropped writes.
func (w *Writer) WithLogger(log logr.Logger) *Writer {
	w.log = log
	return w
}

// Run processes queued writes until ctx is cancelled or Drain is called.
// After cancellation it drains what is already queued before returning.
func (w *Writer) Run(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case fn, ok := <-w.ch:
				if !ok {
					return
				}
				w.apply(fn)
			case <-ctx.Done():
				for {
					select {
					case fn, ok := <-w.ch:
						if !ok {
							return
						}
						w.apply(fn)
					default:
						return
					}
				}
			}
		}
	}()
}

func (w *Writer) apply(fn WriteFunc) {
	if err := fn(w.db); err != nil {
		w.failed.Add(1)
		w.log.Error(err, "Async write failed")
	}
}

// Enqueue adds a write to the queue. It never blocks: when the queue is
// full or the writer is drained the write is dropped and false returned.
func (w *Writer) Enqueue(fn WriteFunc) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return false
	}
	select {
	case w.ch <- fn:
		return true
	default:
		count := w.dropped.Add(1)
		// Warn at powers of 2 to avoid log spam.
		if count&(count-1) == 0 {
			w.log.Info("Dropping writes due to backpressure",
				"totalDropped", count, "queueCap", cap(w.ch))
		}
		return false
	}
}

// DroppedCount returns the number of writes dropped due to backpressure.
func (w *Writer) DroppedCount() uint64 {
	return w.dropped.Load()
}

// FailedCount returns the number of writes that returned an error.
func (w *Writer) FailedCount() uint64 {
	return w.failed.Load()
}

// Drain stops accepting writes and waits for queued ones to finish. Call
// this before closing the database. Safe to call more than once.
func (w *Writer) Drain() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
