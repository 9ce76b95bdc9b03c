package entity

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Query Type
// --------------------------------------------------------------------------

// Query describes a filtered, sorted, paginated search over the store.
// Multi-value fields combine with OR within the field and AND across
// fields; zero-value fields mean "no filter" for that dimension.
type Query struct {
	// Statuses matches entities whose status equals any listed value.
	Statuses []string `json:"statuses,omitempty"`
	// Priorities matches entities whose priority equals any listed value.
	Priorities []int `json:"priorities,omitempty"`
	// Projects matches entities referencing any listed project.
	Projects []string `json:"projects,omitempty"`
	// Assignees matches entities assigned to any listed assignee.
	Assignees []string `json:"assignees,omitempty"`
	// Tags matches entities carrying any listed tag.
	Tags []string `json:"tags,omitempty"`

	// Text matches entities whose title or description contains the
	// string (case-insensitive). Text predicates are never indexable.
	Text string `json:"text,omitempty"`

	// SortBy is one of the SortBy* constants; empty means sort by id.
	SortBy   string `json:"sort_by,omitempty"`
	SortDesc bool   `json:"sort_desc,omitempty"`

	// Offset/Limit paginate the sorted result. Limit 0 means no limit.
	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`

	// Principal is the acting principal when results are access-scoped
	// by the caller. It participates in the fingerprint so scoped
	// callers never share cache entries.
	Principal string `json:"principal,omitempty"`
}

// Matches reports whether the entity satisfies every predicate of the
// query. Pagination and sorting are not considered.
func (q Query) Matches(e *Entity) bool {
	if len(q.Statuses) > 0 && !containsString(q.Statuses, e.Status) {
		return false
	}
	if len(q.Priorities) > 0 && !containsInt(q.Priorities, e.Priority) {
		return false
	}
	if len(q.Projects) > 0 && !containsString(q.Projects, e.Project) {
		return false
	}
	if len(q.Assignees) > 0 && !containsString(q.Assignees, e.Assignee) {
		return false
	}
	if len(q.Tags) > 0 {
		found := false
		for _, tag := range q.Tags {
			if e.HasTag(tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Text != "" {
		needle := strings.ToLower(q.Text)
		if !strings.Contains(strings.ToLower(e.Title), needle) &&
			!strings.Contains(strings.ToLower(e.Description), needle) {
			return false
		}
	}
	return true
}

// Validate checks the non-predicate parts of the query.
func (q Query) Validate() error {
	if !ValidSortField(q.SortBy) {
		return fmt.Errorf("unknown sort field %q", q.SortBy)
	}
	if q.Offset < 0 {
		return fmt.Errorf("negative offset %d", q.Offset)
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return nil
}

// --------------------------------------------------------------------------
// Fingerprint
// --------------------------------------------------------------------------

// Fingerprint returns a deterministic cache key for the query.
// Structurally equal queries yield byte-identical fingerprints: every
// multi-value field is sorted before encoding, and all values are
// length-prefixed so values containing separator characters cannot
// produce colliding keys.
func (q Query) Fingerprint() string {
	var b strings.Builder

	writeValues := func(tag string, values []string) {
		sorted := make([]string, len(values))
		copy(sorted, values)
		sort.Strings(sorted)

		b.WriteString(tag)
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(len(sorted)))
		for _, v := range sorted {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(len(v)))
			b.WriteByte(':')
			b.WriteString(v)
		}
		b.WriteByte(';')
	}

	prios := make([]string, len(q.Priorities))
	for i, p := range q.Priorities {
		prios[i] = strconv.Itoa(p)
	}

	writeValues("s", q.Statuses)
	writeValues("p", prios)
	writeValues("j", q.Projects)
	writeValues("a", q.Assignees)
	writeValues("t", q.Tags)
	writeValues("x", textValues(q.Text))
	writeValues("u", textValues(q.Principal))

	b.WriteString("o=")
	b.WriteString(q.SortBy)
	if q.SortDesc {
		b.WriteString(":desc")
	}
	b.WriteByte(';')
	b.WriteString("w=")
	b.WriteString(strconv.Itoa(q.Offset))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(q.Limit))

	return b.String()
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

func textValues(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
