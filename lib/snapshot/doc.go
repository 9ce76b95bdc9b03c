// Package snapshot implements the durable backing store: one serialized
// document containing all entities plus a version marker, read once at
// startup and fully replaced on each flush.
//
// Key Components:
//
//   - Document: the snapshot payload (format version, save timestamp,
//     entity list). There is no incremental format and no persisted index
//     state; secondary indexes are always re-derived from the entities.
//
//   - ICodec: pluggable document encoding with JSON (human-inspectable,
//     the default) and gob (compact binary) implementations.
//
//   - IBackend: where the encoded snapshot lives. The file backend writes
//     the codec output through an atomic replace (temp file + rename), so
//     an interrupted flush can never corrupt the previous snapshot. The
//     SQLite backend stores one row per entity and replaces the whole
//     table inside a single transaction, giving the same all-or-nothing
//     flush semantics with queryable on-disk state.
//
// Both backends answer "nothing persisted yet" with an empty document of
// the current format version rather than an error, so a fresh store
// starts without special-casing. Documents carrying an unknown format
// version are rejected at load time.
package snapshot
