package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskvault/taskvault/lib/entity"
)

func sampleEntities() []*entity.Entity {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return []*entity.Entity{
		{ID: "t-1", Title: "first", Status: "todo", Priority: 1, Tags: []string{"a", "b"}, CreatedAt: created, UpdatedAt: created},
		{ID: "t-2", Title: "second", Status: "done", Project: "infra", Assignee: "alice", CreatedAt: created, UpdatedAt: created.Add(time.Hour)},
	}
}

func expectDocEqual(t *testing.T, got *Document, want []*entity.Entity) {
	t.Helper()
	if got.Version != FormatVersion {
		t.Errorf("expected version %d, got %d", FormatVersion, got.Version)
	}
	if len(got.Entities) != len(want) {
		t.Fatalf("expected %d entities, got %d", len(want), len(got.Entities))
	}
	byID := map[string]*entity.Entity{}
	for _, e := range got.Entities {
		byID[e.ID] = e
	}
	for _, w := range want {
		g, ok := byID[w.ID]
		if !ok {
			t.Errorf("entity %s missing from loaded document", w.ID)
			continue
		}
		if g.Title != w.Title || g.Status != w.Status || g.Priority != w.Priority ||
			g.Project != w.Project || g.Assignee != w.Assignee || len(g.Tags) != len(w.Tags) {
			t.Errorf("entity %s did not round-trip: got %+v want %+v", w.ID, g, w)
		}
		if !g.CreatedAt.Equal(w.CreatedAt) || !g.UpdatedAt.Equal(w.UpdatedAt) {
			t.Errorf("entity %s timestamps did not round-trip", w.ID)
		}
	}
}

// --------------------------------------------------------------------------
// Codec Tests
// --------------------------------------------------------------------------

func TestCodecRoundTrip(t *testing.T) {
	codecs := map[string]ICodec{
		"json": NewJSONCodec(),
		"gob":  NewGOBCodec(),
	}

	for name, codec := range codecs {
		t.Run(name, func(t *testing.T) {
			doc := NewDocument(sampleEntities())

			b, err := codec.Encode(doc)
			if err != nil {
				t.Fatalf("encoding failed: %v", err)
			}

			var decoded Document
			if err := codec.Decode(b, &decoded); err != nil {
				t.Fatalf("decoding failed: %v", err)
			}
			expectDocEqual(t, &decoded, sampleEntities())
		})
	}
}

// --------------------------------------------------------------------------
// File Backend Tests
// --------------------------------------------------------------------------

func TestFileBackendRoundTrip(t *testing.T) {
	for _, codec := range []struct {
		name  string
		codec ICodec
	}{{"json", NewJSONCodec()}, {"gob", NewGOBCodec()}} {
		t.Run(codec.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "snap")
			backend, err := NewFileBackend(path, codec.codec)
			if err != nil {
				t.Fatalf("creating backend: %v", err)
			}
			defer backend.Close()

			if err := backend.Save(NewDocument(sampleEntities())); err != nil {
				t.Fatalf("save failed: %v", err)
			}

			doc, err := backend.Load()
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			expectDocEqual(t, doc, sampleEntities())
		})
	}
}

func TestFileBackendMissingFile(t *testing.T) {
	backend, err := NewFileBackend(filepath.Join(t.TempDir(), "never-written"), NewJSONCodec())
	if err != nil {
		t.Fatalf("creating backend: %v", err)
	}
	defer backend.Close()

	doc, err := backend.Load()
	if err != nil {
		t.Fatalf("loading a missing snapshot must not fail: %v", err)
	}
	if len(doc.Entities) != 0 || doc.Version != FormatVersion {
		t.Errorf("expected an empty current-version document, got %+v", doc)
	}
}

func TestFileBackendReplacesWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap")
	backend, err := NewFileBackend(path, NewJSONCodec())
	if err != nil {
		t.Fatalf("creating backend: %v", err)
	}
	defer backend.Close()

	if err := backend.Save(NewDocument(sampleEntities())); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := backend.Save(NewDocument([]*entity.Entity{{ID: "only"}})); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	doc, err := backend.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(doc.Entities) != 1 || doc.Entities[0].ID != "only" {
		t.Errorf("expected the second snapshot to fully replace the first, got %+v", doc.Entities)
	}
}

func TestFileBackendRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap")
	codec := NewJSONCodec()

	future := &Document{Version: FormatVersion + 1}
	b, err := codec.Encode(future)
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("writing snapshot: %v", err)
	}

	backend, err := NewFileBackend(path, codec)
	if err != nil {
		t.Fatalf("creating backend: %v", err)
	}
	defer backend.Close()

	if _, err := backend.Load(); err == nil {
		t.Errorf("expected an unknown snapshot version to be rejected")
	}
}

// --------------------------------------------------------------------------
// SQLite Backend Tests
// --------------------------------------------------------------------------

func TestSQLiteBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.db")
	backend, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("creating backend: %v", err)
	}
	defer backend.Close()

	if err := backend.Save(NewDocument(sampleEntities())); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	doc, err := backend.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	expectDocEqual(t, doc, sampleEntities())
}

func TestSQLiteBackendEmptyDatabase(t *testing.T) {
	backend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "snap.db"))
	if err != nil {
		t.Fatalf("creating backend: %v", err)
	}
	defer backend.Close()

	doc, err := backend.Load()
	if err != nil {
		t.Fatalf("loading an empty database must not fail: %v", err)
	}
	if len(doc.Entities) != 0 || doc.Version != FormatVersion {
		t.Errorf("expected an empty current-version document, got %+v", doc)
	}
}

func TestSQLiteBackendReplacesWholeSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.db")
	backend, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("creating backend: %v", err)
	}
	defer backend.Close()

	if err := backend.Save(NewDocument(sampleEntities())); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := backend.Save(NewDocument([]*entity.Entity{{ID: "only"}})); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	doc, err := backend.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(doc.Entities) != 1 || doc.Entities[0].ID != "only" {
		t.Errorf("expected the second snapshot to fully replace the first, got %+v", doc.Entities)
	}
}
