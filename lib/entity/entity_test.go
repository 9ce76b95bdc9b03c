package entity

import (
	"testing"
	"time"
)

func TestCloneIndependence(t *testing.T) {
	original := &Entity{
		ID:     "t-1",
		Title:  "original",
		Status: "todo",
		Tags:   []string{"a", "b"},
	}

	clone := original.Clone()
	clone.Title = "changed"
	clone.Tags[0] = "x"
	clone.Tags = append(clone.Tags, "c")

	if original.Title != "original" {
		t.Errorf("mutating clone changed original title: %s", original.Title)
	}
	if original.Tags[0] != "a" || len(original.Tags) != 2 {
		t.Errorf("mutating clone changed original tags: %v", original.Tags)
	}
}

func TestCloneNil(t *testing.T) {
	var e *Entity
	if e.Clone() != nil {
		t.Errorf("cloning nil should return nil")
	}
}

func TestPatchApply(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	old := &Entity{
		ID:        "t-1",
		Title:     "old title",
		Status:    "todo",
		Priority:  2,
		Tags:      []string{"a"},
		CreatedAt: created,
	}

	status := "done"
	tags := []string{"b", "c"}
	patch := Patch{Status: &status, Tags: &tags}

	updated := patch.Apply(old)

	if updated.Status != "done" {
		t.Errorf("expected patched status done, got %s", updated.Status)
	}
	if updated.Title != "old title" || updated.Priority != 2 {
		t.Errorf("patch touched fields it should not have: %+v", updated)
	}
	if len(updated.Tags) != 2 || updated.Tags[0] != "b" {
		t.Errorf("expected patched tags [b c], got %v", updated.Tags)
	}
	if updated.ID != "t-1" || !updated.CreatedAt.Equal(created) {
		t.Errorf("patch must carry over id and creation time unchanged")
	}
	if old.Status != "todo" || len(old.Tags) != 1 {
		t.Errorf("patch modified the old entity: %+v", old)
	}

	// the patched tag slice must not alias the caller's slice
	tags[0] = "z"
	if updated.Tags[0] != "b" {
		t.Errorf("patched entity aliases the caller's tag slice")
	}
}

func TestPatchIsZero(t *testing.T) {
	if !(Patch{}).IsZero() {
		t.Errorf("empty patch should be zero")
	}
	s := "x"
	if (Patch{Status: &s}).IsZero() {
		t.Errorf("patch with a status should not be zero")
	}
}

func TestSortEntities(t *testing.T) {
	list := []*Entity{
		{ID: "c", Priority: 1},
		{ID: "a", Priority: 3},
		{ID: "b", Priority: 1},
	}

	SortEntities(list, SortByPriority, false)
	if list[0].ID != "b" || list[1].ID != "c" || list[2].ID != "a" {
		t.Errorf("expected [b c a] (priority asc, id tiebreak), got [%s %s %s]",
			list[0].ID, list[1].ID, list[2].ID)
	}

	SortEntities(list, SortByPriority, true)
	if list[0].ID != "a" || list[1].ID != "c" || list[2].ID != "b" {
		t.Errorf("expected [a c b] (priority desc), got [%s %s %s]",
			list[0].ID, list[1].ID, list[2].ID)
	}

	// empty sort field falls back to id
	SortEntities(list, "", false)
	if list[0].ID != "a" || list[2].ID != "c" {
		t.Errorf("expected id order, got [%s %s %s]", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestValidSortField(t *testing.T) {
	for _, field := range []string{"", SortByID, SortByTitle, SortByStatus, SortByPriority, SortByCreatedAt, SortByUpdatedAt} {
		if !ValidSortField(field) {
			t.Errorf("expected %q to be a valid sort field", field)
		}
	}
	if ValidSortField("nope") {
		t.Errorf("expected unknown sort field to be rejected")
	}
}
