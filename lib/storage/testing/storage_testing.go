package testing

import (
	"testing"
	"time"

	"github.com/taskvault/taskvault/lib/entity"
	"github.com/taskvault/taskvault/lib/storage"
)

// StoreOpener opens (or reopens) the store at one fixed durable
// location. Calling it again after Close simulates a process restart.
type StoreOpener func(flushDelay time.Duration) (storage.IStorage, error)

// StoreFactory creates a fresh durable location and returns an opener
// bound to it.
type StoreFactory func(t testing.TB) StoreOpener

// longDelay keeps the background flush timer out of the way for tests
// that are not about flushing.
const longDelay = time.Hour

// RunStorageTests runs a comprehensive test suite for an IStorage
// implementation.
func RunStorageTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Create&Get", func(t *testing.T) {
			testCreateGet(t, factory)
		})

		t.Run("DuplicateCreate", func(t *testing.T) {
			testDuplicateCreate(t, factory)
		})

		t.Run("Update", func(t *testing.T) {
			testUpdate(t, factory)
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory)
		})

		t.Run("BulkCreate", func(t *testing.T) {
			testBulkCreate(t, factory)
		})

		t.Run("BulkUpdate", func(t *testing.T) {
			testBulkUpdate(t, factory)
		})

		t.Run("BulkDelete", func(t *testing.T) {
			testBulkDelete(t, factory)
		})

		t.Run("Search", func(t *testing.T) {
			testSearch(t, factory)
		})

		t.Run("SearchCaching", func(t *testing.T) {
			testSearchCaching(t, factory)
		})

		t.Run("CacheInvalidation", func(t *testing.T) {
			testCacheInvalidation(t, factory)
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("TimerFlush", func(t *testing.T) {
			testTimerFlush(t, factory)
		})

		t.Run("CloseFlushes", func(t *testing.T) {
			testCloseFlushes(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func openStore(t *testing.T, opener StoreOpener, delay time.Duration) storage.IStorage {
	t.Helper()
	s, err := opener(delay)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func mustCreate(t *testing.T, s storage.IStorage, e *entity.Entity) *entity.Entity {
	t.Helper()
	stored, err := s.Create(e)
	if err != nil {
		t.Fatalf("creating entity %q: %v", e.ID, err)
	}
	return stored
}

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }

func searchIDs(t *testing.T, s storage.IStorage, q entity.Query) []string {
	t.Helper()
	res, err := s.Search(q)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	return res.IDs
}

func expectIDs(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected ids %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected ids %v, got %v", want, got)
			return
		}
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testCreateGet(t *testing.T, factory StoreFactory) {
	s := openStore(t, factory(t), longDelay)

	stored := mustCreate(t, s, &entity.Entity{
		ID: "a", Title: "write report", Status: "todo", Priority: 2,
		Project: "infra", Tags: []string{"urgent"},
	})
	if stored.ID != "a" {
		t.Errorf("expected the supplied id to be kept, got %q", stored.ID)
	}
	if stored.CreatedAt.IsZero() || stored.UpdatedAt.IsZero() {
		t.Errorf("expected timestamps to be set on create")
	}

	// an empty id must be filled with a generated one
	generated := mustCreate(t, s, &entity.Entity{Title: "no id"})
	if generated.ID == "" {
		t.Errorf("expected an id to be generated for an empty-id entity")
	}

	got, err := s.Get("a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Title != "write report" || got.Status != "todo" || got.Priority != 2 {
		t.Errorf("stored entity does not match: %+v", got)
	}

	// the returned copy must not alias store state
	got.Title = "mutated by caller"
	got.Tags[0] = "mutated"
	again, err := s.Get("a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if again.Title != "write report" || again.Tags[0] != "urgent" {
		t.Errorf("caller mutation of a returned copy leaked into the store: %+v", again)
	}

	if _, err := s.Get("missing"); !storage.IsNotFound(err) {
		t.Errorf("expected a NotFound error for a missing id, got %v", err)
	}
}

func testDuplicateCreate(t *testing.T, factory StoreFactory) {
	s := openStore(t, factory(t), longDelay)

	mustCreate(t, s, &entity.Entity{ID: "a", Title: "original"})

	if _, err := s.Create(&entity.Entity{ID: "a", Title: "imposter"}); !storage.IsAlreadyExists(err) {
		t.Errorf("expected an AlreadyExists error for a duplicate id, got %v", err)
	}

	got, err := s.Get("a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Title != "original" {
		t.Errorf("a rejected duplicate create must not modify the stored entity, got %+v", got)
	}
}

func testUpdate(t *testing.T, factory StoreFactory) {
	s := openStore(t, factory(t), longDelay)

	stored := mustCreate(t, s, &entity.Entity{ID: "a", Title: "original", Status: "todo", Priority: 1})

	updated, err := s.Update("a", entity.Patch{
		Status:   strPtr("done"),
		Priority: intPtr(5),
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Status != "done" || updated.Priority != 5 {
		t.Errorf("patch was not applied: %+v", updated)
	}
	if updated.Title != "original" {
		t.Errorf("fields not named in the patch must be untouched, got title %q", updated.Title)
	}
	if !updated.CreatedAt.Equal(stored.CreatedAt) {
		t.Errorf("CreatedAt must be carried over unchanged")
	}
	if updated.UpdatedAt.Before(stored.UpdatedAt) {
		t.Errorf("UpdatedAt must move forward on update")
	}

	got, err := s.Get("a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != "done" || got.Priority != 5 {
		t.Errorf("update was not persisted in memory: %+v", got)
	}

	if _, err := s.Update("missing", entity.Patch{Status: strPtr("done")}); !storage.IsNotFound(err) {
		t.Errorf("expected a NotFound error for updating a missing id, got %v", err)
	}
}

func testDelete(t *testing.T, factory StoreFactory) {
	s := openStore(t, factory(t), longDelay)

	mustCreate(t, s, &entity.Entity{ID: "a", Status: "todo"})

	if err := s.Delete("a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.Get("a"); !storage.IsNotFound(err) {
		t.Errorf("expected the deleted entity to be gone, got %v", err)
	}

	// a failed delete must leave all state unchanged
	mustCreate(t, s, &entity.Entity{ID: "b", Status: "todo"})
	before := s.Statistics().EntityCount
	if err := s.Delete("missing"); !storage.IsNotFound(err) {
		t.Errorf("expected a NotFound error for deleting a missing id, got %v", err)
	}
	if got := s.Statistics().EntityCount; got != before {
		t.Errorf("a failed delete changed the entity count: %d -> %d", before, got)
	}
	expectIDs(t, searchIDs(t, s, entity.Query{Statuses: []string{"todo"}}), "b")
}

func testBulkCreate(t *testing.T, factory StoreFactory) {
	s := openStore(t, factory(t), longDelay)

	mustCreate(t, s, &entity.Entity{ID: "existing"})
	before := s.Statistics().CacheInvalidations

	results := s.BulkCreate([]*entity.Entity{
		{ID: "a", Status: "todo"},
		{ID: "existing"}, // duplicate, must fail without aborting the batch
		{ID: "b", Status: "done"},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("expected a and b to succeed: %+v", results)
	}
	if results[1].Err == nil || results[1].Err.Code != storage.RetCAlreadyExists {
		t.Errorf("expected the duplicate to fail with AlreadyExists, got %+v", results[1].Err)
	}

	for _, id := range []string{"a", "b"} {
		if _, err := s.Get(id); err != nil {
			t.Errorf("bulk-created entity %s is missing: %v", id, err)
		}
	}

	// the whole batch performs exactly one cache invalidation
	if got := s.Statistics().CacheInvalidations - before; got != 1 {
		t.Errorf("expected exactly 1 cache invalidation for the batch, got %d", got)
	}
}

func testBulkUpdate(t *testing.T, factory StoreFactory) {
	s := openStore(t, factory(t), longDelay)

	mustCreate(t, s, &entity.Entity{ID: "a", Status: "todo"})
	before := s.Statistics().CacheInvalidations

	results := s.BulkUpdate([]storage.BulkPatch{
		{ID: "a", Patch: entity.Patch{Status: strPtr("done")}},
		{ID: "missing", Patch: entity.Patch{Status: strPtr("done")}},
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("expected the update of a to succeed, got %v", results[0].Err)
	}
	if results[1].Err == nil || results[1].Err.Code != storage.RetCNotFound {
		t.Errorf("expected the missing id to fail with NotFound, got %+v", results[1].Err)
	}

	got, err := s.Get("a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != "done" {
		t.Errorf("bulk update was not applied: %+v", got)
	}

	if got := s.Statistics().CacheInvalidations - before; got != 1 {
		t.Errorf("expected exactly 1 cache invalidation for the batch, got %d", got)
	}
}

func testBulkDelete(t *testing.T, factory StoreFactory) {
	s := openStore(t, factory(t), longDelay)

	mustCreate(t, s, &entity.Entity{ID: "a", Status: "todo"})

	// [a, b] with only a present: a is removed, b reports NotFound
	results := s.BulkDelete([]string{"a", "b"})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("expected the delete of a to succeed, got %v", results[0].Err)
	}
	if results[1].Err == nil || results[1].Err.Code != storage.RetCNotFound {
		t.Errorf("expected b to fail with NotFound, got %+v", results[1].Err)
	}
	if _, err := s.Get("a"); !storage.IsNotFound(err) {
		t.Errorf("expected a to be removed, got %v", err)
	}
}

func testSearch(t *testing.T, factory StoreFactory) {
	s := openStore(t, factory(t), longDelay)

	s.BulkCreate([]*entity.Entity{
		{ID: "a", Title: "fix login bug", Status: "todo", Priority: 3, Project: "web", Assignee: "alice", Tags: []string{"bug"}},
		{ID: "b", Title: "ship release", Status: "doing", Priority: 5, Project: "web", Assignee: "bob"},
		{ID: "c", Title: "write docs", Status: "todo", Priority: 1, Project: "infra", Assignee: "alice", Tags: []string{"docs"}},
		{ID: "d", Title: "triage bugs", Status: "done", Priority: 3, Project: "infra", Assignee: "bob", Tags: []string{"bug"}},
	})

	// single-field filter
	expectIDs(t, searchIDs(t, s, entity.Query{Statuses: []string{"todo"}}), "a", "c")

	// values within one field combine with OR
	expectIDs(t, searchIDs(t, s, entity.Query{Statuses: []string{"doing", "done"}}), "b", "d")

	// fields combine with AND
	expectIDs(t, searchIDs(t, s, entity.Query{
		Statuses: []string{"todo"},
		Projects: []string{"web"},
	}), "a")

	// tag filter
	expectIDs(t, searchIDs(t, s, entity.Query{Tags: []string{"bug"}}), "a", "d")

	// text filter is a case-insensitive substring match
	expectIDs(t, searchIDs(t, s, entity.Query{Text: "BUG"}), "a", "d")

	// sorting
	expectIDs(t, searchIDs(t, s, entity.Query{
		SortBy: entity.SortByPriority, SortDesc: true,
	}), "b", "a", "d", "c")

	// pagination
	expectIDs(t, searchIDs(t, s, entity.Query{
		SortBy: entity.SortByPriority, SortDesc: true, Offset: 1, Limit: 2,
	}), "a", "d")

	// offset past the end yields an empty result, not an error
	expectIDs(t, searchIDs(t, s, entity.Query{Offset: 100}))

	// no matches yields an empty result, not an error
	expectIDs(t, searchIDs(t, s, entity.Query{Statuses: []string{"archived"}}))

	// malformed queries are rejected up front
	if _, err := s.Search(entity.Query{SortBy: "bogus"}); !storage.IsValidation(err) {
		t.Errorf("expected a ValidationFailure for an unknown sort field, got %v", err)
	}
	if _, err := s.Search(entity.Query{Offset: -1}); !storage.IsValidation(err) {
		t.Errorf("expected a ValidationFailure for a negative offset, got %v", err)
	}
}

func testSearchCaching(t *testing.T, factory StoreFactory) {
	s := openStore(t, factory(t), longDelay)

	mustCreate(t, s, &entity.Entity{ID: "a", Status: "todo"})

	q := entity.Query{Statuses: []string{"todo"}}

	expectIDs(t, searchIDs(t, s, q), "a")
	before := s.Statistics()

	// the repeated query must be answered from the cache
	expectIDs(t, searchIDs(t, s, q), "a")
	after := s.Statistics()
	if after.CacheHits != before.CacheHits+1 {
		t.Errorf("expected a cache hit for the repeated query, hits %d -> %d",
			before.CacheHits, after.CacheHits)
	}

	// cached or not, the result carries full entity copies
	res, err := s.Search(q)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(res.Entities) != 1 || res.Entities[0].ID != "a" || res.Entities[0].Status != "todo" {
		t.Errorf("cached result lost its entities: %+v", res.Entities)
	}
}

// A mutation between two identical searches must never let the second
// one serve stale data: entity a moves from todo to done, and the
// previously cached todo result must not resurface.
func testCacheInvalidation(t *testing.T, factory StoreFactory) {
	s := openStore(t, factory(t), longDelay)

	mustCreate(t, s, &entity.Entity{ID: "a", Status: "todo"})

	todo := entity.Query{Statuses: []string{"todo"}}
	done := entity.Query{Statuses: []string{"done"}}

	expectIDs(t, searchIDs(t, s, todo), "a") // now cached

	if _, err := s.Update("a", entity.Patch{Status: strPtr("done")}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	expectIDs(t, searchIDs(t, s, todo))
	expectIDs(t, searchIDs(t, s, done), "a")

	// same again for deletes
	if err := s.Delete("a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	expectIDs(t, searchIDs(t, s, done))
}

func testSaveLoad(t *testing.T, factory StoreFactory) {
	opener := factory(t)

	s := openStore(t, opener, longDelay)
	mustCreate(t, s, &entity.Entity{
		ID: "a", Title: "persisted", Status: "todo", Priority: 4,
		Project: "infra", Assignee: "alice", Tags: []string{"x", "y"},
	})
	mustCreate(t, s, &entity.Entity{ID: "b", Status: "done"})

	if !s.IsDirty() {
		t.Errorf("expected the store to be dirty after mutations")
	}
	if err := s.ForceFlush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if s.IsDirty() {
		t.Errorf("expected the store to be clean after a successful flush")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened := openStore(t, opener, longDelay)
	if got := reopened.Statistics().EntityCount; got != 2 {
		t.Fatalf("expected 2 entities after reopen, got %d", got)
	}
	got, err := reopened.Get("a")
	if err != nil {
		t.Fatalf("get after reopen failed: %v", err)
	}
	if got.Title != "persisted" || got.Priority != 4 || got.Assignee != "alice" ||
		len(got.Tags) != 2 || got.Tags[0] != "x" {
		t.Errorf("entity did not survive the restart intact: %+v", got)
	}

	// the rebuilt indexes must serve searches on the reopened store
	expectIDs(t, searchIDs(t, reopened, entity.Query{Statuses: []string{"todo"}}), "a")
}

// A mutation leaves the store dirty immediately; the delayed flush
// persists it without any ForceFlush call.
func testTimerFlush(t *testing.T, factory StoreFactory) {
	opener := factory(t)

	s := openStore(t, opener, 100*time.Millisecond)
	mustCreate(t, s, &entity.Entity{ID: "a", Status: "todo"})

	if !s.IsDirty() {
		t.Fatalf("expected the store to be dirty right after the mutation")
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.IsDirty() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsDirty() {
		t.Fatalf("delayed flush did not run within the deadline")
	}
	if got := s.Statistics().FlushCount; got < 1 {
		t.Errorf("expected at least one recorded flush, got %d", got)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// the timer flush, not the close, must have written the snapshot:
	// the store was already clean when Close ran
	reopened := openStore(t, opener, longDelay)
	if _, err := reopened.Get("a"); err != nil {
		t.Errorf("entity written by the delayed flush is missing after reopen: %v", err)
	}
}

func testCloseFlushes(t *testing.T, factory StoreFactory) {
	opener := factory(t)

	s := openStore(t, opener, longDelay)
	mustCreate(t, s, &entity.Entity{ID: "a"})
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened := openStore(t, opener, longDelay)
	if _, err := reopened.Get("a"); err != nil {
		t.Errorf("expected the final shutdown flush to persist the entity: %v", err)
	}
}
