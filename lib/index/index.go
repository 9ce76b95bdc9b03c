package index

import (
	"fmt"
	"strconv"

	"github.com/taskvault/taskvault/lib/entity"
)

// --------------------------------------------------------------------------
// Indexed Fields
// --------------------------------------------------------------------------

// Field identifies an indexed entity field.
type Field string

const (
	FieldStatus   Field = "status"
	FieldPriority Field = "priority"
	FieldProject  Field = "project"
	FieldAssignee Field = "assignee"
	FieldTag      Field = "tag"
)

// Fields lists all indexed fields.
var Fields = []Field{FieldStatus, FieldPriority, FieldProject, FieldAssignee, FieldTag}

// valuesOf returns the index values an entity contributes to a field.
// String fields with an empty value contribute nothing; the tag field
// contributes one value per tag.
func valuesOf(e *entity.Entity, f Field) []string {
	switch f {
	case FieldStatus:
		if e.Status == "" {
			return nil
		}
		return []string{e.Status}
	case FieldPriority:
		return []string{strconv.Itoa(e.Priority)}
	case FieldProject:
		if e.Project == "" {
			return nil
		}
		return []string{e.Project}
	case FieldAssignee:
		if e.Assignee == "" {
			return nil
		}
		return []string{e.Assignee}
	case FieldTag:
		return e.Tags
	default:
		return nil
	}
}

// --------------------------------------------------------------------------
// Predicates
// --------------------------------------------------------------------------

// Predicate is a single indexable constraint: the entity must hold any of
// the listed values for the field.
type Predicate struct {
	Field  Field
	Values []string
}

// QueryPredicates extracts the indexable predicates of a query. The
// second return value reports whether the predicates fully cover the
// query: false when the query carries a free-text filter (never
// indexable) or no predicate at all, in which case the caller must fall
// back to a full scan.
func QueryPredicates(q entity.Query) ([]Predicate, bool) {
	var preds []Predicate

	if len(q.Statuses) > 0 {
		preds = append(preds, Predicate{FieldStatus, q.Statuses})
	}
	if len(q.Priorities) > 0 {
		values := make([]string, len(q.Priorities))
		for i, p := range q.Priorities {
			values[i] = strconv.Itoa(p)
		}
		preds = append(preds, Predicate{FieldPriority, values})
	}
	if len(q.Projects) > 0 {
		preds = append(preds, Predicate{FieldProject, q.Projects})
	}
	if len(q.Assignees) > 0 {
		preds = append(preds, Predicate{FieldAssignee, q.Assignees})
	}
	if len(q.Tags) > 0 {
		preds = append(preds, Predicate{FieldTag, q.Tags})
	}

	if q.Text != "" || len(preds) == 0 {
		return preds, false
	}
	return preds, true
}

// --------------------------------------------------------------------------
// Index Manager
// --------------------------------------------------------------------------

// IDSet is a set of entity ids.
type IDSet map[string]struct{}

// Manager maintains per-field value→id-set indexes kept incrementally in
// sync with the entity store. Buckets are created lazily on the first
// occurrence of a value and pruned as soon as they become empty, so the
// bucket maps never accumulate dead keys.
//
// Thread-safety: the manager is NOT internally synchronized. It is owned
// by a storage instance and must only be touched under that instance's
// mutation lock, exactly like the entity map it mirrors.
type Manager struct {
	buckets map[Field]map[string]IDSet
}

// NewManager creates an empty index manager.
func NewManager() *Manager {
	m := &Manager{buckets: make(map[Field]map[string]IDSet, len(Fields))}
	for _, f := range Fields {
		m.buckets[f] = make(map[string]IDSet)
	}
	return m
}

// OnCreate adds the entity's id to every bucket for every indexed
// field/value the entity holds.
func (m *Manager) OnCreate(e *entity.Entity) {
	for _, f := range Fields {
		for _, v := range valuesOf(e, f) {
			m.add(f, v, e.ID)
		}
	}
}

// OnUpdate reconciles the index after an entity changed from old to new.
// Only the symmetric difference of indexed values is touched: the id is
// removed from buckets present in old but not new, and added to buckets
// present in new but not old. Untouched fields cost a map comparison only.
func (m *Manager) OnUpdate(old, new *entity.Entity) {
	for _, f := range Fields {
		oldValues := toSet(valuesOf(old, f))
		newValues := toSet(valuesOf(new, f))

		for v := range oldValues {
			if _, still := newValues[v]; !still {
				m.remove(f, v, old.ID)
			}
		}
		for v := range newValues {
			if _, had := oldValues[v]; !had {
				m.add(f, v, new.ID)
			}
		}
	}
}

// OnDelete removes the entity's id from every bucket it was indexed under.
func (m *Manager) OnDelete(e *entity.Entity) {
	for _, f := range Fields {
		for _, v := range valuesOf(e, f) {
			m.remove(f, v, e.ID)
		}
	}
}

// Lookup returns the id set for a single field value. The returned set is
// a copy; mutating it does not affect the index.
func (m *Manager) Lookup(f Field, value string) IDSet {
	return copySet(m.buckets[f][value])
}

// LookupIntersection intersects the id sets of all predicates. Within a
// predicate the value buckets union; across predicates the results
// intersect, starting from the smallest union and short-circuiting as
// soon as the intersection is empty.
func (m *Manager) LookupIntersection(preds []Predicate) IDSet {
	if len(preds) == 0 {
		return IDSet{}
	}

	unions := make([]IDSet, len(preds))
	smallest := 0
	for i, p := range preds {
		union := make(IDSet)
		for _, v := range p.Values {
			for id := range m.buckets[p.Field][v] {
				union[id] = struct{}{}
			}
		}
		if len(union) == 0 {
			return IDSet{}
		}
		unions[i] = union
		if len(union) < len(unions[smallest]) {
			smallest = i
		}
	}

	result := copySet(unions[smallest])
	for i, union := range unions {
		if i == smallest {
			continue
		}
		for id := range result {
			if _, ok := union[id]; !ok {
				delete(result, id)
			}
		}
		if len(result) == 0 {
			return result
		}
	}
	return result
}

// --------------------------------------------------------------------------
// Rebuild and Verification
// --------------------------------------------------------------------------

// Scan yields all entities of the store. It must be finite and restartable.
type Scan func(yield func(e *entity.Entity) bool)

// Rebuild discards all buckets and re-derives them from a full scan of
// the entity store. Used at startup (index state is never persisted) and
// as the self-heal path after a detected divergence.
func (m *Manager) Rebuild(scan Scan) {
	for _, f := range Fields {
		m.buckets[f] = make(map[string]IDSet)
	}
	scan(func(e *entity.Entity) bool {
		m.OnCreate(e)
		return true
	})
}

// Verify checks the index against a full scan of the entity store and
// returns a descriptive error on the first divergence found. A nil return
// means every bucket membership exactly matches current field values.
func (m *Manager) Verify(scan Scan) error {
	want := NewManager()
	want.Rebuild(scan)

	for _, f := range Fields {
		for v, ids := range want.buckets[f] {
			for id := range ids {
				if _, ok := m.buckets[f][v][id]; !ok {
					return fmt.Errorf("index divergence: %s=%q missing id %s", f, v, id)
				}
			}
		}
		for v, ids := range m.buckets[f] {
			if len(ids) == 0 {
				return fmt.Errorf("index divergence: %s=%q holds an empty bucket", f, v)
			}
			for id := range ids {
				if _, ok := want.buckets[f][v][id]; !ok {
					return fmt.Errorf("index divergence: %s=%q holds stale id %s", f, v, id)
				}
			}
		}
	}
	return nil
}

// Buckets returns the number of non-empty buckets per field. Monitoring
// output only.
func (m *Manager) Buckets() map[Field]int {
	counts := make(map[Field]int, len(Fields))
	for _, f := range Fields {
		counts[f] = len(m.buckets[f])
	}
	return counts
}

// --------------------------------------------------------------------------
// Internal Helpers
// --------------------------------------------------------------------------

func (m *Manager) add(f Field, value, id string) {
	bucket, ok := m.buckets[f][value]
	if !ok {
		bucket = make(IDSet)
		m.buckets[f][value] = bucket
	}
	bucket[id] = struct{}{}
}

func (m *Manager) remove(f Field, value, id string) {
	bucket, ok := m.buckets[f][value]
	if !ok {
		return
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(m.buckets[f], value)
	}
}

func toSet(values []string) IDSet {
	set := make(IDSet, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func copySet(set IDSet) IDSet {
	result := make(IDSet, len(set))
	for id := range set {
		result[id] = struct{}{}
	}
	return result
}
