// Package entity defines the data model shared by all storage components:
// the Entity record itself, the Patch type for partial updates, and the
// Query type describing filtered searches.
//
// Key Components:
//
//   - Entity: a task record with a unique, immutable ID and mutable fields
//     (status, priority, project and assignee references, a tag set, and
//     free-text title/description). Entities are value-like: components
//     exchange deep copies via Clone so no two components ever alias the
//     same mutable state.
//
//   - Patch: a pointer-field struct describing a partial update. Nil fields
//     leave the entity untouched, which lets callers express "change only
//     the status" without round-tripping the whole record.
//
//   - Query: predicates (OR within a field, AND across fields), an optional
//     free-text filter, sort order, and pagination. Query.Fingerprint
//     produces the deterministic cache key used by the query cache:
//     multi-value fields are sorted and all values length-prefixed, so
//     structurally equal queries always encode identically and crafted
//     values cannot collide.
//
// The package has no dependencies on the storage machinery; it is imported
// by the index manager, the query cache, the snapshot layer, and the
// storage implementations alike.
package entity
