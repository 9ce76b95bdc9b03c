// Package index implements the secondary index manager: per-field
// value→id-set indexes (status, priority, project, assignee, tag) kept
// incrementally in sync with the entity store.
//
// Key Features:
//   - O(1) amortized lookup of all entity ids holding a field value
//   - Incremental maintenance via OnCreate/OnUpdate/OnDelete hooks
//   - Symmetric-difference updates: untouched fields cost nothing
//   - Lazy bucket creation and empty-bucket pruning
//   - Smallest-first intersection with empty short-circuit
//   - Full rebuild from an entity scan for startup and self-healing
//
// Implementation Details:
//
//   - Update Diffing: OnUpdate compares the indexed value sets of the old
//     and new entity per field and touches only buckets in the symmetric
//     difference. A patch that changes no indexed field therefore performs
//     no bucket mutation at all.
//
//   - Query Coverage: QueryPredicates converts a query's filters into
//     indexable predicates and reports whether they fully cover the query.
//     Free-text filters are never indexable; such queries must degrade to
//     a full scan with in-memory predicate evaluation.
//
//   - Divergence Handling: Verify compares the live index against a fresh
//     rebuild from the store. A divergence is an invariant violation, not
//     a soft failure; the defined recovery is Rebuild. Index state is
//     never persisted, only derived.
//
// Thread Safety:
//
//	The manager carries no lock of its own. It is exclusively owned by a
//	storage instance and mutated only under that instance's mutation
//	lock, which already serializes it with the entity map it mirrors.
package index
