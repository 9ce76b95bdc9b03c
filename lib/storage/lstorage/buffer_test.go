package lstorage

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/taskvault/taskvault/lib/entity"
	"github.com/taskvault/taskvault/lib/snapshot"
	"github.com/taskvault/taskvault/lib/storage"
)

// --------------------------------------------------------------------------
// Fake Backends
// --------------------------------------------------------------------------

// fakeBackend records saved documents in memory. An injectable failure
// count makes the first n saves fail; an injectable delay makes saves
// slow so mutations can land mid-flush.
type fakeBackend struct {
	mu        sync.Mutex
	saved     *snapshot.Document
	saveCalls int
	failures  int           // fail the first n saves
	delay     time.Duration // sleep inside every save
}

func (b *fakeBackend) Save(doc *snapshot.Document) error {
	b.mu.Lock()
	b.saveCalls++
	fail := b.saveCalls <= b.failures
	delay := b.delay
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return errors.New("disk on fire")
	}

	b.mu.Lock()
	b.saved = doc
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) Load() (*snapshot.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saved == nil {
		return snapshot.NewDocument(nil), nil
	}
	return b.saved, nil
}

func (b *fakeBackend) Close() error { return nil }

func (b *fakeBackend) savedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saved == nil {
		return nil
	}
	ids := make([]string, 0, len(b.saved.Entities))
	for _, e := range b.saved.Entities {
		ids = append(ids, e.ID)
	}
	return ids
}

func newBufferTestStore(t *testing.T, backend snapshot.IBackend, flushDelay time.Duration) storage.IStorage {
	t.Helper()
	opts := DefaultOptions()
	opts.FlushDelay = flushDelay
	opts.FlushRetries = 1 // backend failure injection controls retries here
	s, err := NewWithBackend(opts, backend)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// --------------------------------------------------------------------------
// Write Buffer Unit Tests
// --------------------------------------------------------------------------

func TestBufferBatchesMutationsIntoOneFlush(t *testing.T) {
	var flushes atomic.Int64
	buf := newWriteBuffer(50*time.Millisecond, func() error {
		flushes.Add(1)
		return nil
	}, nil)
	defer buf.Stop()

	// several mutations inside the delay window
	buf.MarkDirty()
	buf.MarkDirty()
	buf.MarkDirty()
	if !buf.IsDirty() {
		t.Fatalf("expected the buffer to be dirty after MarkDirty")
	}

	deadline := time.Now().Add(2 * time.Second)
	for buf.IsDirty() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if buf.IsDirty() {
		t.Fatalf("delayed flush did not run")
	}
	if got := flushes.Load(); got != 1 {
		t.Errorf("expected the mutations to batch into 1 flush, got %d", got)
	}
}

func TestBufferFlushCancelsTimer(t *testing.T) {
	var flushes atomic.Int64
	buf := newWriteBuffer(50*time.Millisecond, func() error {
		flushes.Add(1)
		return nil
	}, nil)
	defer buf.Stop()

	buf.MarkDirty()
	if err := buf.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if buf.IsDirty() {
		t.Errorf("expected the buffer to be clean after an explicit flush")
	}

	// the cancelled timer must not fire a second flush
	time.Sleep(120 * time.Millisecond)
	if got := flushes.Load(); got != 1 {
		t.Errorf("expected exactly 1 flush, got %d", got)
	}
}

func TestBufferFlushWhenCleanIsNoop(t *testing.T) {
	var flushes atomic.Int64
	buf := newWriteBuffer(time.Hour, func() error {
		flushes.Add(1)
		return nil
	}, nil)
	defer buf.Stop()

	if err := buf.Flush(); err != nil {
		t.Fatalf("flush of a clean buffer failed: %v", err)
	}
	if got := flushes.Load(); got != 0 {
		t.Errorf("expected no flush for a clean buffer, got %d", got)
	}
}

func TestBufferStaysDirtyOnFlushFailure(t *testing.T) {
	buf := newWriteBuffer(time.Hour, func() error {
		return errors.New("disk on fire")
	}, nil)
	defer buf.Stop()

	buf.MarkDirty()
	if err := buf.Flush(); err == nil {
		t.Fatalf("expected the flush error to surface")
	}
	if !buf.IsDirty() {
		t.Errorf("expected the buffer to stay dirty after a failed flush")
	}
	if _, failures := buf.Counters(); failures != 1 {
		t.Errorf("expected 1 recorded failure, got %d", failures)
	}
}

func TestBufferMutationDuringFlushNotLost(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	buf := newWriteBuffer(20*time.Millisecond, func() error {
		close(started)
		<-release
		return nil
	}, nil)
	defer buf.Stop()

	buf.MarkDirty()
	done := make(chan error, 1)
	go func() {
		done <- buf.Flush()
	}()

	<-started
	// this mutation lands after the snapshot was captured
	buf.MarkDirty()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if !buf.IsDirty() {
		t.Errorf("a mutation landing mid-flush must leave the buffer dirty")
	}
}

// --------------------------------------------------------------------------
// Store-Level Flush Tests
// --------------------------------------------------------------------------

func TestStoreStaysDirtyOnBackendFailure(t *testing.T) {
	backend := &fakeBackend{failures: 1000}
	s := newBufferTestStore(t, backend, time.Hour)

	if _, err := s.Create(&entity.Entity{ID: "a"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err := s.ForceFlush()
	if !storage.IsDurability(err) {
		t.Fatalf("expected a DurabilityFailure, got %v", err)
	}
	if !s.IsDirty() {
		t.Errorf("expected the store to stay dirty after a failed flush")
	}
	if got := s.Statistics().FlushFailures; got != 1 {
		t.Errorf("expected 1 recorded flush failure, got %d", got)
	}

	// the entity is still fully served from memory
	if _, err := s.Get("a"); err != nil {
		t.Errorf("a failed flush must not affect reads: %v", err)
	}
}

func TestStoreRecoversAfterBackendFailure(t *testing.T) {
	backend := &fakeBackend{failures: 1}
	s := newBufferTestStore(t, backend, time.Hour)

	if _, err := s.Create(&entity.Entity{ID: "a"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := s.ForceFlush(); !storage.IsDurability(err) {
		t.Fatalf("expected the first flush to fail, got %v", err)
	}

	// the backend recovered; the retry must persist everything
	if err := s.ForceFlush(); err != nil {
		t.Fatalf("expected the second flush to succeed, got %v", err)
	}
	if s.IsDirty() {
		t.Errorf("expected the store to be clean after the successful flush")
	}
	if ids := backend.savedIDs(); len(ids) != 1 || ids[0] != "a" {
		t.Errorf("expected the snapshot to hold a, got %v", ids)
	}
}

func TestStoreMutationDuringSlowFlushNotLost(t *testing.T) {
	backend := &fakeBackend{delay: 100 * time.Millisecond}
	s := newBufferTestStore(t, backend, time.Hour)

	if _, err := s.Create(&entity.Entity{ID: "a"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.ForceFlush()
	}()

	// land a mutation while the slow backend write is in flight
	time.Sleep(30 * time.Millisecond)
	if _, err := s.Create(&entity.Entity{ID: "b"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	// b may have missed the first snapshot, so the store must still be
	// dirty; the follow-up flush must capture it
	if err := s.ForceFlush(); err != nil {
		t.Fatalf("follow-up flush failed: %v", err)
	}
	ids := backend.savedIDs()
	if len(ids) != 2 {
		t.Errorf("expected both entities in the final snapshot, got %v", ids)
	}
}

func TestFlushRetriesWithBackoff(t *testing.T) {
	backend := &fakeBackend{failures: 2}

	opts := DefaultOptions()
	opts.FlushDelay = time.Hour
	opts.FlushRetries = 3
	opts.FlushBackoff = time.Millisecond
	s, err := NewWithBackend(opts, backend)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	if _, err := s.Create(&entity.Entity{ID: "a"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// two transient failures are absorbed by the bounded retry loop
	if err := s.ForceFlush(); err != nil {
		t.Fatalf("expected the retry loop to absorb the transient failures, got %v", err)
	}
	if s.IsDirty() {
		t.Errorf("expected the store to be clean after the retried flush")
	}
}
