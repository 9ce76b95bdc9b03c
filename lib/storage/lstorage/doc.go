// Package lstorage implements the local, single-process storage engine
// behind the storage.IStorage interface: an in-memory entity store with
// incrementally maintained secondary indexes, a write-back buffer
// batching mutations into delayed full-snapshot flushes, and a two-tier
// query result cache.
//
// Key Features:
//   - Authoritative in-memory entity map loaded from a durable snapshot
//   - Per-field secondary indexes rebuilt from scratch at startup
//   - Delayed full-snapshot persistence with forced synchronous flush
//   - Query caching by fingerprint, fully invalidated on every mutation
//   - Bulk operations with one dirty-mark and one invalidation per batch
//   - Read-only statistics with Prometheus exposition
//
// Implementation Details:
//
//   - Locking: one RWMutex per store instance serializes all mutations
//     (single and bulk) with each other and with index/cache mutation. A
//     reader observes either the pre- or post-state of a mutation,
//     never a partial application. Searches cache their result while
//     still holding the read lock, so an invalidation can never be
//     outrun by a stale cache insert.
//
//   - Write-back buffering: the first mutation arms a delayed flush;
//     every further mutation inside the window batches into the same
//     snapshot write. The flush captures the snapshot under the read
//     lock and performs the durable write outside any lock, so flush
//     latency never blocks foreground writers. A failed flush leaves the
//     store dirty and surfaces the error; retries are bounded.
//
//   - Self-healing: an index bucket referencing an id the store does not
//     hold is an invariant violation, not a soft failure. The engine
//     logs it as severe, rebuilds all indexes from a full rescan, drops
//     the query cache, and retries the search once.
//
//   - Lifecycle: construct (New) -> initialize (load snapshot, rebuild
//     indexes) -> operate -> shutdown (Close cancels timers and force
//     flushes when dirty). Instances are explicitly constructed and
//     owned; there is no shared global store.
//
// Usage Example:
//
//	opts := lstorage.DefaultOptions()
//	opts.Path = "tasks.json"
//	st, err := lstorage.New(opts)
//	if err != nil {
//		panic(err)
//	}
//	defer st.Close()
//
//	created, err := st.Create(&entity.Entity{Title: "write the docs", Status: "todo"})
//	res, err := st.Search(entity.Query{Statuses: []string{"todo"}})
package lstorage
