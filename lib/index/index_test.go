package index

import (
	"fmt"
	"testing"

	"github.com/taskvault/taskvault/lib/entity"
)

func task(id, status, project string, priority int, tags ...string) *entity.Entity {
	return &entity.Entity{ID: id, Status: status, Project: project, Priority: priority, Tags: tags}
}

func scanOf(entities ...*entity.Entity) Scan {
	return func(yield func(e *entity.Entity) bool) {
		for _, e := range entities {
			if !yield(e) {
				return
			}
		}
	}
}

func expectIDs(t *testing.T, got IDSet, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("expected %d ids %v, got %v", len(want), want, got)
		return
	}
	for _, id := range want {
		if _, ok := got[id]; !ok {
			t.Errorf("expected id %s in %v", id, got)
		}
	}
}

func TestOnCreateLookup(t *testing.T) {
	m := NewManager()
	m.OnCreate(task("a", "todo", "infra", 1, "ci", "build"))
	m.OnCreate(task("b", "todo", "web", 2, "ci"))

	expectIDs(t, m.Lookup(FieldStatus, "todo"), "a", "b")
	expectIDs(t, m.Lookup(FieldProject, "infra"), "a")
	expectIDs(t, m.Lookup(FieldPriority, "2"), "b")
	expectIDs(t, m.Lookup(FieldTag, "ci"), "a", "b")
	expectIDs(t, m.Lookup(FieldTag, "build"), "a")
	expectIDs(t, m.Lookup(FieldStatus, "done"))
}

func TestLookupReturnsCopy(t *testing.T) {
	m := NewManager()
	m.OnCreate(task("a", "todo", "", 0))

	ids := m.Lookup(FieldStatus, "todo")
	delete(ids, "a")

	expectIDs(t, m.Lookup(FieldStatus, "todo"), "a")
}

func TestOnUpdateSymmetricDifference(t *testing.T) {
	m := NewManager()
	old := task("a", "todo", "infra", 1, "ci")
	m.OnCreate(old)

	updated := task("a", "done", "infra", 1, "ci", "urgent")
	m.OnUpdate(old, updated)

	expectIDs(t, m.Lookup(FieldStatus, "todo"))
	expectIDs(t, m.Lookup(FieldStatus, "done"), "a")
	expectIDs(t, m.Lookup(FieldProject, "infra"), "a")
	expectIDs(t, m.Lookup(FieldTag, "ci"), "a")
	expectIDs(t, m.Lookup(FieldTag, "urgent"), "a")
}

func TestOnUpdateNoIndexedChange(t *testing.T) {
	m := NewManager()
	old := task("a", "todo", "infra", 1, "ci")
	m.OnCreate(old)

	// only the title changed; every bucket must be untouched
	updated := old.Clone()
	updated.Title = "new title"
	m.OnUpdate(old, updated)

	if err := m.Verify(scanOf(updated)); err != nil {
		t.Errorf("no-op index update left a divergence: %v", err)
	}
	expectIDs(t, m.Lookup(FieldStatus, "todo"), "a")
}

func TestOnDeletePrunesEmptyBuckets(t *testing.T) {
	m := NewManager()
	e := task("a", "todo", "infra", 1, "ci")
	m.OnCreate(e)
	m.OnDelete(e)

	for f, n := range m.Buckets() {
		if n != 0 {
			t.Errorf("expected all buckets of %s pruned, still %d", f, n)
		}
	}
}

func TestLookupIntersection(t *testing.T) {
	m := NewManager()
	m.OnCreate(task("a", "todo", "infra", 1, "ci"))
	m.OnCreate(task("b", "todo", "web", 1))
	m.OnCreate(task("c", "done", "infra", 1, "ci"))

	got := m.LookupIntersection([]Predicate{
		{FieldStatus, []string{"todo"}},
		{FieldProject, []string{"infra"}},
	})
	expectIDs(t, got, "a")

	// OR within a field unions the value buckets
	got = m.LookupIntersection([]Predicate{
		{FieldStatus, []string{"todo", "done"}},
		{FieldTag, []string{"ci"}},
	})
	expectIDs(t, got, "a", "c")

	// empty bucket short-circuits to the empty set
	got = m.LookupIntersection([]Predicate{
		{FieldStatus, []string{"blocked"}},
		{FieldProject, []string{"infra"}},
	})
	expectIDs(t, got)

	if got := m.LookupIntersection(nil); len(got) != 0 {
		t.Errorf("no predicates must intersect to the empty set, got %v", got)
	}
}

func TestRebuild(t *testing.T) {
	m := NewManager()
	m.OnCreate(task("stale", "todo", "", 0))

	a := task("a", "todo", "infra", 2, "ci")
	b := task("b", "done", "", 1)
	m.Rebuild(scanOf(a, b))

	expectIDs(t, m.Lookup(FieldStatus, "todo"), "a")
	expectIDs(t, m.Lookup(FieldStatus, "done"), "b")
	expectIDs(t, m.Lookup(FieldPriority, "2"), "a")
	if err := m.Verify(scanOf(a, b)); err != nil {
		t.Errorf("rebuild left a divergence: %v", err)
	}
}

func TestVerifyDetectsDivergence(t *testing.T) {
	a := task("a", "todo", "", 0)
	b := task("b", "todo", "", 0)

	m := NewManager()
	m.OnCreate(a)
	if err := m.Verify(scanOf(a)); err != nil {
		t.Errorf("expected consistent index, got: %v", err)
	}

	// missing id
	if err := m.Verify(scanOf(a, b)); err == nil {
		t.Errorf("expected divergence for missing id")
	}

	// stale id
	m.OnCreate(b)
	if err := m.Verify(scanOf(a)); err == nil {
		t.Errorf("expected divergence for stale id")
	}
}

func TestIndexMembershipAfterMutationSequence(t *testing.T) {
	m := NewManager()
	live := map[string]*entity.Entity{}

	scan := func(yield func(e *entity.Entity) bool) {
		for _, e := range live {
			if !yield(e) {
				return
			}
		}
	}

	statuses := []string{"todo", "doing", "done"}
	projects := []string{"infra", "web", ""}

	// interleaved creates, updates, and deletes
	for i := 0; i < 60; i++ {
		id := fmt.Sprintf("t-%d", i%20)
		switch {
		case live[id] == nil:
			e := task(id, statuses[i%3], projects[i%3], i%4, fmt.Sprintf("tag%d", i%5))
			live[id] = e
			m.OnCreate(e)
		case i%7 == 0:
			m.OnDelete(live[id])
			delete(live, id)
		default:
			old := live[id]
			updated := task(id, statuses[(i+1)%3], projects[(i+2)%3], (i+1)%4, fmt.Sprintf("tag%d", (i+1)%5))
			live[id] = updated
			m.OnUpdate(old, updated)
		}

		if err := m.Verify(scan); err != nil {
			t.Fatalf("divergence after step %d: %v", i, err)
		}
	}
}

func TestQueryPredicates(t *testing.T) {
	preds, indexable := QueryPredicates(entity.Query{
		Statuses:   []string{"todo"},
		Priorities: []int{1, 2},
	})
	if !indexable {
		t.Errorf("status+priority query must be fully indexable")
	}
	if len(preds) != 2 {
		t.Errorf("expected 2 predicates, got %d", len(preds))
	}

	// free text is never indexable
	_, indexable = QueryPredicates(entity.Query{Statuses: []string{"todo"}, Text: "x"})
	if indexable {
		t.Errorf("free-text query must not be indexable")
	}

	// a query without predicates requires a full scan
	_, indexable = QueryPredicates(entity.Query{})
	if indexable {
		t.Errorf("empty query must not be indexable")
	}
}
