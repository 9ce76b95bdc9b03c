package entity

import (
	"sort"
	"time"
)

// --------------------------------------------------------------------------
// Entity Type
// --------------------------------------------------------------------------

// Entity is a stored task record. The ID is unique across the store and
// immutable once assigned; all other fields are mutable through a Patch.
type Entity struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    int       `json:"priority"`
	Project     string    `json:"project"`
	Assignee    string    `json:"assignee"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the entity. The returned value shares no
// mutable state with the receiver.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}

	clone := *e
	if e.Tags != nil {
		clone.Tags = make([]string, len(e.Tags))
		copy(clone.Tags, e.Tags)
	}
	return &clone
}

// HasTag reports whether the entity carries the given tag.
func (e *Entity) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// Patch Type
// --------------------------------------------------------------------------

// Patch describes a partial update of an entity. A nil field leaves the
// corresponding entity field untouched.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Priority    *int      `json:"priority,omitempty"`
	Project     *string   `json:"project,omitempty"`
	Assignee    *string   `json:"assignee,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

// Apply returns a new entity with the patch applied to old. The old entity
// is not modified; ID and CreatedAt are always carried over unchanged.
func (p Patch) Apply(old *Entity) *Entity {
	updated := old.Clone()

	if p.Title != nil {
		updated.Title = *p.Title
	}
	if p.Description != nil {
		updated.Description = *p.Description
	}
	if p.Status != nil {
		updated.Status = *p.Status
	}
	if p.Priority != nil {
		updated.Priority = *p.Priority
	}
	if p.Project != nil {
		updated.Project = *p.Project
	}
	if p.Assignee != nil {
		updated.Assignee = *p.Assignee
	}
	if p.Tags != nil {
		updated.Tags = make([]string, len(*p.Tags))
		copy(updated.Tags, *p.Tags)
	}

	return updated
}

// IsZero reports whether the patch modifies nothing.
func (p Patch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.Project == nil && p.Assignee == nil && p.Tags == nil
}

// --------------------------------------------------------------------------
// Sorting
// --------------------------------------------------------------------------

// Sort fields accepted by SortEntities and Query.SortBy.
const (
	SortByID        = "id"
	SortByTitle     = "title"
	SortByStatus    = "status"
	SortByPriority  = "priority"
	SortByCreatedAt = "created_at"
	SortByUpdatedAt = "updated_at"
)

// ValidSortField reports whether field is an accepted sort field.
// The empty string is valid and means "sort by id".
func ValidSortField(field string) bool {
	switch field {
	case "", SortByID, SortByTitle, SortByStatus, SortByPriority, SortByCreatedAt, SortByUpdatedAt:
		return true
	default:
		return false
	}
}

// SortEntities sorts the slice in place by the given field. Ties are broken
// by ID so that equal inputs always produce the same order.
func SortEntities(list []*Entity, field string, desc bool) {
	less := func(a, b *Entity) bool {
		switch field {
		case SortByTitle:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case SortByStatus:
			if a.Status != b.Status {
				return a.Status < b.Status
			}
		case SortByPriority:
			if a.Priority != b.Priority {
				return a.Priority < b.Priority
			}
		case SortByCreatedAt:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case SortByUpdatedAt:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		}
		return a.ID < b.ID
	}

	sort.SliceStable(list, func(i, j int) bool {
		if desc {
			return less(list[j], list[i])
		}
		return less(list[i], list[j])
	})
}
