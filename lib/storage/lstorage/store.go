package lstorage

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskvault/taskvault/lib/cache"
	"github.com/taskvault/taskvault/lib/entity"
	"github.com/taskvault/taskvault/lib/index"
	"github.com/taskvault/taskvault/lib/logging"
	"github.com/taskvault/taskvault/lib/snapshot"
	"github.com/taskvault/taskvault/lib/storage"
)

var logger = logging.GetLogger("lstorage")

// --------------------------------------------------------------------------
// Store Type and Construction
// --------------------------------------------------------------------------

// storeImpl is the local, single-process storage engine. It owns the
// entity map exclusively; the secondary indexes and the query cache are
// derived state kept in sync under the same mutation lock.
type storeImpl struct {
	mu       sync.RWMutex // mutation lock: writers exclusive, readers shared
	entities map[string]*entity.Entity
	idx      *index.Manager
	qcache   *cache.QueryCache
	backend  snapshot.IBackend
	buf      *writeBuffer
	stats    *storeStats
	opts     Options

	closeOnce sync.Once
	closeErr  error
}

// New creates a local store with the snapshot backend selected by the
// options, loads the durable snapshot, and rebuilds all secondary
// indexes from it. Index state is never persisted, only derived.
func New(opts *Options) (storage.IStorage, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	backend, err := newBackend(opts)
	if err != nil {
		return nil, storage.Errorf(storage.RetCValidationFailure, "invalid storage options: %v", err)
	}
	return NewWithBackend(opts, backend)
}

// NewWithBackend creates a local store on an explicit snapshot backend.
// Used by New and by tests that inject failing or slow backends.
func NewWithBackend(opts *Options, backend snapshot.IBackend) (storage.IStorage, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	doc, err := backend.Load()
	if err != nil {
		backend.Close()
		return nil, storage.Errorf(storage.RetCDurabilityFailure, "loading snapshot: %v", err)
	}

	s := &storeImpl{
		entities: make(map[string]*entity.Entity, len(doc.Entities)),
		idx:      index.NewManager(),
		qcache:   cache.New(opts.Cache),
		backend:  backend,
		opts:     *opts,
	}

	for _, e := range doc.Entities {
		if _, exists := s.entities[e.ID]; exists {
			backend.Close()
			return nil, storage.Errorf(storage.RetCInvariantViolation,
				"snapshot contains duplicate entity id %s", e.ID)
		}
		s.entities[e.ID] = e.Clone()
	}
	s.idx.Rebuild(s.scanLocked)

	s.buf = newWriteBuffer(opts.FlushDelay, s.persist, func(err error) {
		logger.Errorf("delayed flush failed, store stays dirty: %v", err)
	})
	s.stats = newStoreStats(s)

	logger.Infof("loaded %d entities from snapshot (%s)", len(s.entities), opts.Backend)
	return s, nil
}

// scanLocked yields all entities. Callers must hold at least the read
// lock for the duration of the scan.
func (s *storeImpl) scanLocked(yield func(e *entity.Entity) bool) {
	for _, e := range s.entities {
		if !yield(e) {
			return
		}
	}
}

// afterMutationLocked performs the per-mutation bookkeeping: the query
// cache is fully invalidated and the write-back buffer marked dirty.
// Called exactly once per single mutation and once per bulk batch.
// Callers must hold the write lock.
func (s *storeImpl) afterMutationLocked() {
	s.qcache.InvalidateAll()
	s.buf.MarkDirty()
	s.stats.mutations.Inc()
}

// --------------------------------------------------------------------------
// Single Mutations (docu see storage.IStorage)
// --------------------------------------------------------------------------

func (s *storeImpl) Create(e *entity.Entity) (*entity.Entity, error) {
	if e == nil {
		return nil, storage.NewError(storage.RetCValidationFailure, "entity must not be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.createLocked(e)
	if err != nil {
		return nil, err
	}
	s.afterMutationLocked()
	return stored.Clone(), nil
}

func (s *storeImpl) Get(id string) (*entity.Entity, error) {
	if id == "" {
		return nil, storage.NewError(storage.RetCValidationFailure, "id must not be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, storage.Errorf(storage.RetCNotFound, "entity %s not found", id)
	}
	return e.Clone(), nil
}

func (s *storeImpl) Update(id string, patch entity.Patch) (*entity.Entity, error) {
	if id == "" {
		return nil, storage.NewError(storage.RetCValidationFailure, "id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.updateLocked(id, patch)
	if err != nil {
		return nil, err
	}
	s.afterMutationLocked()
	return updated.Clone(), nil
}

func (s *storeImpl) Delete(id string) error {
	if id == "" {
		return storage.NewError(storage.RetCValidationFailure, "id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteLocked(id); err != nil {
		return err
	}
	s.afterMutationLocked()
	return nil
}

// --------------------------------------------------------------------------
// Bulk Mutations (docu see storage.IStorage)
// --------------------------------------------------------------------------

// Bulk operations apply the same per-item store/index effects as their
// single counterparts but perform exactly one dirty-mark and one cache
// invalidation for the whole batch. Per-item failures are reported
// without aborting the rest of the batch.

func (s *storeImpl) BulkCreate(list []*entity.Entity) []storage.BulkResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]storage.BulkResult, 0, len(list))
	mutated := false
	for _, e := range list {
		if e == nil {
			results = append(results, storage.BulkResult{
				Err: storage.NewError(storage.RetCValidationFailure, "entity must not be nil"),
			})
			continue
		}
		stored, err := s.createLocked(e)
		if err != nil {
			results = append(results, storage.BulkResult{ID: e.ID, Err: asStorageError(err)})
			continue
		}
		mutated = true
		results = append(results, storage.BulkResult{ID: stored.ID, Entity: stored.Clone()})
	}

	if mutated {
		s.afterMutationLocked()
	}
	return results
}

func (s *storeImpl) BulkUpdate(patches []storage.BulkPatch) []storage.BulkResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]storage.BulkResult, 0, len(patches))
	mutated := false
	for _, p := range patches {
		updated, err := s.updateLocked(p.ID, p.Patch)
		if err != nil {
			results = append(results, storage.BulkResult{ID: p.ID, Err: asStorageError(err)})
			continue
		}
		mutated = true
		results = append(results, storage.BulkResult{ID: p.ID, Entity: updated.Clone()})
	}

	if mutated {
		s.afterMutationLocked()
	}
	return results
}

func (s *storeImpl) BulkDelete(ids []string) []storage.BulkResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]storage.BulkResult, 0, len(ids))
	mutated := false
	for _, id := range ids {
		if err := s.deleteLocked(id); err != nil {
			results = append(results, storage.BulkResult{ID: id, Err: asStorageError(err)})
			continue
		}
		mutated = true
		results = append(results, storage.BulkResult{ID: id})
	}

	if mutated {
		s.afterMutationLocked()
	}
	return results
}

// --------------------------------------------------------------------------
// Locked Mutation Primitives
// --------------------------------------------------------------------------

func (s *storeImpl) createLocked(e *entity.Entity) (*entity.Entity, error) {
	stored := e.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	} else if _, exists := s.entities[stored.ID]; exists {
		return nil, storage.Errorf(storage.RetCAlreadyExists, "entity %s already exists", stored.ID)
	}

	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	s.entities[stored.ID] = stored
	s.idx.OnCreate(stored)
	return stored, nil
}

func (s *storeImpl) updateLocked(id string, patch entity.Patch) (*entity.Entity, error) {
	if id == "" {
		return nil, storage.NewError(storage.RetCValidationFailure, "id must not be empty")
	}
	old, ok := s.entities[id]
	if !ok {
		return nil, storage.Errorf(storage.RetCNotFound, "entity %s not found", id)
	}

	updated := patch.Apply(old)
	updated.ID = old.ID // the id is immutable
	updated.CreatedAt = old.CreatedAt
	updated.UpdatedAt = time.Now()

	s.entities[id] = updated
	s.idx.OnUpdate(old, updated)
	return updated, nil
}

func (s *storeImpl) deleteLocked(id string) error {
	if id == "" {
		return storage.NewError(storage.RetCValidationFailure, "id must not be empty")
	}
	old, ok := s.entities[id]
	if !ok {
		return storage.Errorf(storage.RetCNotFound, "entity %s not found", id)
	}

	delete(s.entities, id)
	s.idx.OnDelete(old)
	return nil
}

func asStorageError(err error) *storage.Error {
	if se, ok := err.(*storage.Error); ok {
		return se
	}
	return storage.NewError(storage.RetCInternalError, err.Error())
}

// --------------------------------------------------------------------------
// Search (docu see storage.IStorage)
// --------------------------------------------------------------------------

func (s *storeImpl) Search(q entity.Query) (*storage.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, storage.Errorf(storage.RetCValidationFailure, "invalid query: %v", err)
	}

	fingerprint := q.Fingerprint()

	if res := s.searchCached(fingerprint); res != nil {
		return res, nil
	}
	return s.searchEval(q, fingerprint, true)
}

// searchCached resolves a cached result or returns nil on miss. A cached
// id no longer present in the store means an invalidation was missed
// somewhere; the whole cache is dropped and the query recomputed.
func (s *storeImpl) searchCached(fingerprint string) *storage.SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.qcache.Get(fingerprint)
	if !ok {
		return nil
	}

	res := &storage.SearchResult{IDs: ids, Entities: make([]*entity.Entity, 0, len(ids))}
	for _, id := range ids {
		e, present := s.entities[id]
		if !present {
			logger.Errorf("cache coherency violation: cached result references missing entity %s", id)
			s.qcache.InvalidateAll()
			return nil
		}
		res.Entities = append(res.Entities, e.Clone())
	}
	return res
}

// searchEval computes a query result and caches it. When the index
// yields an id the store does not hold, the divergence is answered with
// a full index rebuild and a single retry; it is never surfaced to the
// caller as an opaque failure.
func (s *storeImpl) searchEval(q entity.Query, fingerprint string, allowHeal bool) (*storage.SearchResult, error) {
	s.mu.RLock()

	preds, indexable := index.QueryPredicates(q)
	var matched []*entity.Entity

	if indexable {
		for id := range s.idx.LookupIntersection(preds) {
			e, ok := s.entities[id]
			if !ok {
				s.mu.RUnlock()
				if !allowHeal {
					return nil, storage.Errorf(storage.RetCInvariantViolation,
						"index references missing entity %s after rebuild", id)
				}
				s.selfHeal(id)
				return s.searchEval(q, fingerprint, false)
			}
			matched = append(matched, e.Clone())
		}
		s.stats.indexed.Inc()
	} else {
		for _, e := range s.entities {
			if q.Matches(e) {
				matched = append(matched, e.Clone())
			}
		}
		s.stats.scanned.Inc()
	}

	entity.SortEntities(matched, q.SortBy, q.SortDesc)
	matched = paginate(matched, q.Offset, q.Limit)

	res := &storage.SearchResult{
		IDs:      make([]string, len(matched)),
		Entities: matched,
	}
	for i, e := range matched {
		res.IDs[i] = e.ID
	}

	// Cache while still holding the read lock: a mutation cannot
	// interleave between result computation and cache insert, so the
	// cache can never hold a result from before an invalidation.
	s.qcache.Put(fingerprint, res.IDs)
	s.mu.RUnlock()

	return res, nil
}

// selfHeal answers a detected index/store divergence with a full rescan
// rebuild of all secondary indexes. Logged as severe; counted.
func (s *storeImpl) selfHeal(missingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Errorf("index divergence: bucket references missing entity %s, rebuilding all indexes", missingID)
	s.idx.Rebuild(s.scanLocked)
	s.qcache.InvalidateAll()
	s.stats.rebuilds.Inc()
}

func paginate(list []*entity.Entity, offset, limit int) []*entity.Entity {
	if offset >= len(list) {
		return nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

// --------------------------------------------------------------------------
// Durability (docu see storage.IStorage)
// --------------------------------------------------------------------------

func (s *storeImpl) ForceFlush() error {
	return s.buf.Flush()
}

func (s *storeImpl) IsDirty() bool {
	return s.buf.IsDirty()
}

// persist captures a snapshot of the entity store and writes it to the
// durable backend. The capture holds the read lock only for the in-memory
// copy; the (potentially slow) backend write runs without any store lock
// so flush latency never blocks foreground writers.
func (s *storeImpl) persist() error {
	s.mu.RLock()
	entities := make([]*entity.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		entities = append(entities, e.Clone())
	}
	s.mu.RUnlock()

	doc := snapshot.NewDocument(entities)

	var err error
	backoff := s.opts.FlushBackoff
	retries := s.opts.FlushRetries
	if retries < 1 {
		retries = 1
	}
	for attempt := 1; attempt <= retries; attempt++ {
		if err = s.backend.Save(doc); err == nil {
			return nil
		}
		if attempt < retries {
			logger.Warningf("snapshot write failed (attempt %d/%d): %v", attempt, retries, err)
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return storage.Errorf(storage.RetCDurabilityFailure,
		"snapshot write failed after %d attempts: %v", retries, err)
}

// Close shuts the store down: the flush timer is cancelled, a final
// synchronous flush runs if the store is dirty, and the backend is
// released. Safe to call more than once.
func (s *storeImpl) Close() error {
	s.closeOnce.Do(func() {
		s.buf.Stop()

		var flushErr error
		if s.buf.IsDirty() {
			flushErr = s.buf.Flush()
		}

		closeErr := s.backend.Close()
		if flushErr != nil {
			s.closeErr = flushErr
		} else if closeErr != nil {
			s.closeErr = storage.Errorf(storage.RetCDurabilityFailure, "closing backend: %v", closeErr)
		}
	})
	return s.closeErr
}
