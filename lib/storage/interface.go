package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/taskvault/taskvault/lib/entity"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStorage is the capability interface for a task entity store. Callers
// (CLI, REST handlers, web dashboards, plugins) depend only on this
// interface, never on a concrete backend, and supply already-validated
// entity payloads and query objects.
//
// All mutating operations are mutually exclusive with each other; a
// reader never observes a partially-applied mutation. Every mutation
// synchronously updates the secondary indexes, invalidates the query
// cache, and marks the write-back buffer dirty.
type IStorage interface {
	// Create stores a new entity. An empty ID is filled with a generated
	// one; a supplied ID that already exists is rejected with
	// RetCAlreadyExists. Returns a copy of the stored entity.
	Create(e *entity.Entity) (*entity.Entity, error)
	// Get returns a copy of the entity with the given id, or a
	// RetCNotFound error. Get has no side effects.
	Get(id string) (*entity.Entity, error)
	// Update applies a patch to the entity with the given id and returns
	// a copy of the updated entity, or a RetCNotFound error.
	Update(id string, patch entity.Patch) (*entity.Entity, error)
	// Delete removes the entity with the given id, or returns a
	// RetCNotFound error. A failed delete leaves all state unchanged.
	Delete(id string) error
	// BulkCreate applies Create for every entity with a single dirty-mark
	// and a single cache invalidation for the whole batch. Per-item
	// failures are reported in the results without aborting the batch.
	BulkCreate(list []*entity.Entity) []BulkResult
	// BulkUpdate applies Update for every listed item with a single
	// dirty-mark and a single cache invalidation for the whole batch.
	BulkUpdate(patches []BulkPatch) []BulkResult
	// BulkDelete applies Delete for every id with a single dirty-mark and
	// a single cache invalidation for the whole batch.
	BulkDelete(ids []string) []BulkResult
	// Search evaluates a query: cache lookup by fingerprint first, index
	// intersection when the predicates are fully indexable, full scan
	// otherwise; the sorted, paginated result is cached before return.
	Search(q entity.Query) (*SearchResult, error)
	// ForceFlush synchronously persists the full entity store now,
	// cancelling any pending delayed flush. An I/O failure is returned
	// (RetCDurabilityFailure) and leaves the store dirty.
	ForceFlush() error
	// IsDirty reports whether in-memory state has diverged from durable
	// storage. Observability hook only.
	IsDirty() bool
	// Statistics returns read-only monitoring counters. The values never
	// influence behavior.
	Statistics() Statistics
	// Close shuts the store down: pending flush timers are cancelled and
	// a final synchronous flush runs if the store is dirty.
	Close() error
}

// --------------------------------------------------------------------------
// Result Types
// --------------------------------------------------------------------------

// BulkPatch pairs an entity id with the patch to apply to it.
type BulkPatch struct {
	ID    string       `json:"id"`
	Patch entity.Patch `json:"patch"`
}

// BulkResult reports the outcome of one member of a bulk operation.
type BulkResult struct {
	ID     string         `json:"id"`
	Entity *entity.Entity `json:"entity,omitempty"`
	Err    *Error         `json:"error,omitempty"`
}

// SearchResult holds the outcome of a Search call. IDs and Entities are
// parallel: Entities[i] is the entity with id IDs[i].
type SearchResult struct {
	IDs      []string         `json:"ids"`
	Entities []*entity.Entity `json:"entities"`
}

// Statistics exposes the store's monitoring counters: cache
// effectiveness, index coverage, flush health, and the dirty flag.
type Statistics struct {
	EntityCount   int       `json:"entity_count"`
	Dirty         bool      `json:"dirty"`
	LastFlush     time.Time `json:"last_flush"`
	FlushCount    uint64    `json:"flush_count"`
	FlushFailures uint64    `json:"flush_failures"`

	CacheHits          uint64  `json:"cache_hits"`
	CacheMisses        uint64  `json:"cache_misses"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
	CacheEvictions     uint64  `json:"cache_evictions"`
	CacheDemotions     uint64  `json:"cache_demotions"`
	CacheInvalidations uint64  `json:"cache_invalidations"`

	IndexedSearches uint64  `json:"indexed_searches"`
	ScannedSearches uint64  `json:"scanned_searches"`
	IndexCoverage   float64 `json:"index_coverage"`
	IndexRebuilds   uint64  `json:"index_rebuilds"`
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StorageError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new storage Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new storage Error with a formatted message.
func Errorf(code RetCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// codeOf extracts the RetCode of an error, or RetCSuccess for nil.
func codeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return RetCInternalError
}

// IsNotFound reports whether err is a RetCNotFound storage error.
func IsNotFound(err error) bool { return codeOf(err) == RetCNotFound }

// IsAlreadyExists reports whether err is a RetCAlreadyExists storage error.
func IsAlreadyExists(err error) bool { return codeOf(err) == RetCAlreadyExists }

// IsValidation reports whether err is a RetCValidationFailure storage error.
func IsValidation(err error) bool { return codeOf(err) == RetCValidationFailure }

// IsDurability reports whether err is a RetCDurabilityFailure storage error.
func IsDurability(err error) bool { return codeOf(err) == RetCDurabilityFailure }

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess            RetCode = iota // 0: Operation executed successfully.
	RetCNotFound                          // 1: Referenced id absent - an ordinary outcome.
	RetCAlreadyExists                     // 2: Create with an id that already exists.
	RetCValidationFailure                 // 3: Malformed entity or query, rejected immediately.
	RetCDurabilityFailure                 // 4: Flush I/O error - dirty state persists.
	RetCInvariantViolation                // 5: Index/store divergence - triggers self-heal rescan.
	RetCInternalError                     // 6: Operation failed due to an internal error.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCNotFound:
		return "NotFound"
	case RetCAlreadyExists:
		return "AlreadyExists"
	case RetCValidationFailure:
		return "ValidationFailure"
	case RetCDurabilityFailure:
		return "DurabilityFailure"
	case RetCInvariantViolation:
		return "InvariantViolation"
	case RetCInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}
