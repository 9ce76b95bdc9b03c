package lstorage

import (
	"sync"
	"time"
)

// --------------------------------------------------------------------------
// Write-Back Buffer
// --------------------------------------------------------------------------

// writeBuffer tracks whether in-memory state has diverged from durable
// storage and schedules delayed snapshot flushes. State machine:
//
//	Clean -> (MarkDirty) -> Dirty(timer armed) -> (timer fires or
//	Flush) -> Flushing -> Clean
//
// A mutation arriving mid-flush bumps the generation counter: if the
// in-progress snapshot did not capture it, the buffer stays dirty and a
// follow-up flush is armed, so no mutation is ever lost. At most one
// flush is in flight at any time.
type writeBuffer struct {
	delay   time.Duration
	flushFn func() error // captures a snapshot and persists it
	onError func(error)  // invoked for timer-initiated flush failures

	flushMu sync.Mutex // serializes flushes: at most one in flight

	mu         sync.Mutex
	dirty      bool
	gen        uint64 // bumped by every MarkDirty
	timer      *time.Timer
	stopped    bool
	lastFlush  time.Time
	flushCount uint64
	failures   uint64
}

func newWriteBuffer(delay time.Duration, flushFn func() error, onError func(error)) *writeBuffer {
	return &writeBuffer{
		delay:   delay,
		flushFn: flushFn,
		onError: onError,
	}
}

// MarkDirty records a mutation and arms a delayed flush if none is
// pending. Mutations inside the delay window batch into one flush.
//
// Thread-safety: safe for concurrent use; never blocks on I/O.
func (w *writeBuffer) MarkDirty() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.dirty = true
	w.gen++
	if w.timer == nil && !w.stopped {
		w.timer = time.AfterFunc(w.delay, w.timerFired)
	}
}

// Flush synchronously persists the current state, cancelling any pending
// timer. A no-op when clean. On failure the buffer stays dirty and the
// error is returned; it is never retried beyond flushFn's own bounded
// retries and never swallowed.
func (w *writeBuffer) Flush() error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if !w.dirty {
		w.mu.Unlock()
		return nil
	}
	gen := w.gen
	w.mu.Unlock()

	// The snapshot capture happens inside flushFn under the store's
	// read lock; the durable write runs outside any store lock.
	err := w.flushFn()

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.failures++
		return err
	}

	w.flushCount++
	w.lastFlush = time.Now()
	if w.gen == gen {
		w.dirty = false
	} else if w.timer == nil && !w.stopped {
		// A mutation landed after the snapshot was captured; it must
		// not be lost, so arm a follow-up flush.
		w.timer = time.AfterFunc(w.delay, w.timerFired)
	}
	return nil
}

// IsDirty reports whether unpersisted state exists. Observability hook.
func (w *writeBuffer) IsDirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

// LastFlush returns the time of the last successful flush.
func (w *writeBuffer) LastFlush() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastFlush
}

// Counters returns the number of successful and failed flushes.
func (w *writeBuffer) Counters() (flushes, failures uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushCount, w.failures
}

// Stop cancels any pending timer and prevents re-arming. Flush remains
// callable for the final shutdown flush.
func (w *writeBuffer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// timerFired runs the delayed flush in the timer goroutine. Failures
// cannot be returned to a caller here, so they are reported through the
// onError hook (which logs and counts them).
func (w *writeBuffer) timerFired() {
	if err := w.Flush(); err != nil && w.onError != nil {
		w.onError(err)
	}
}
