// Package storage defines the capability interface for task entity
// stores along with the shared error taxonomy and monitoring types.
// It contains no implementation; concrete backends live in
// sub-packages (currently lstorage, the local single-process engine).
//
// The package focuses on:
//   - A unified interface for entity CRUD, bulk, and search operations
//   - Explicit bulk semantics: per-item effects, batch-level buffering
//   - A return-code error taxonomy matching the failure model
//   - Standardized, read-only statistics for health endpoints
//
// Key Components:
//
//   - IStorage Interface: the contract all backends must satisfy. It
//     covers single mutations (Create, Update, Delete), their bulk forms
//     (which apply the same per-item store/index effects but buffer and
//     invalidate exactly once per batch), Search, and the durability
//     surface (ForceFlush, IsDirty, Close).
//
//   - Error and RetCode: every failure is an *Error carrying one code.
//     NotFound is an ordinary outcome of referencing an absent id.
//     ValidationFailure rejects malformed input immediately and is never
//     retried. DurabilityFailure means a flush could not reach durable
//     storage; the dirty flag stays set and the error is surfaced, never
//     swallowed. InvariantViolation means index/store divergence; the
//     defined recovery is a full index rebuild, and the condition is
//     never exposed to end users as an opaque failure.
//
//   - Statistics: cache hit rate, index coverage, flush health and the
//     dirty flag, exposed to monitoring collaborators. Statistics are
//     outputs only and must not influence store behavior.
//
// This interface-driven approach allows applications to swap storage
// backends without code changes and to keep thin adapters (CLI, REST,
// web) fully decoupled from storage internals.
package storage
