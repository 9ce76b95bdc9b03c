// Package testing provides a standardised conformance test suite for
// storage implementations that satisfy the storage.IStorage interface.
//
// The suite exercises the full interface contract: single and bulk
// mutations, query evaluation, cache invalidation on writes, the
// write-back flush behavior, and durability across a close/reopen
// cycle.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(t testing.TB) StoreOpener {
//		path := filepath.Join(t.TempDir(), "store.json")
//		return func(flushDelay time.Duration) (storage.IStorage, error) {
//			opts := lstorage.DefaultOptions()
//			opts.Path = path
//			opts.FlushDelay = flushDelay
//			return lstorage.New(opts)
//		}
//	}
//
//	// Running the standard test suite
//	storagetest.RunStorageTests(t, "MyStore", factory)
package testing
