package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskvault/taskvault/lib/entity"
	_ "modernc.org/sqlite"
)

// NewSQLiteBackend creates a backend persisting the snapshot in a SQLite
// database at path. The snapshot semantics are identical to the file
// backend: each Save replaces the whole stored snapshot inside one
// transaction, never incrementally.
func NewSQLiteBackend(path string) (IBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot database path must not be empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating snapshot schema: %w", err)
	}

	return &sqliteBackendImpl{db: db}, nil
}

// createSchema creates the snapshot schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS snapshot_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS entities (
			id   TEXT PRIMARY KEY,
			data BLOB NOT NULL
		);`
	_, err := db.Exec(schema)
	return err
}

// sqliteBackendImpl implements the IBackend interface on a SQLite
// database. Entities are stored one row each as JSON blobs; the version
// marker and save timestamp live in snapshot_meta.
type sqliteBackendImpl struct {
	db *sql.DB
}

// --------------------------------------------------------------------------
// Interface Methods (docu see snapshot.IBackend)
// --------------------------------------------------------------------------

func (s *sqliteBackendImpl) Save(doc *Document) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	// Whole-snapshot replacement: drop everything, reinsert everything
	if _, err := tx.Exec(`DELETE FROM entities`); err != nil {
		return fmt.Errorf("clearing previous snapshot: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO entities (id, data) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range doc.Entities {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding entity %s: %w", e.ID, err)
		}
		if _, err := stmt.Exec(e.ID, data); err != nil {
			return fmt.Errorf("inserting entity %s: %w", e.ID, err)
		}
	}

	meta := `INSERT INTO snapshot_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	if _, err := tx.Exec(meta, "version", fmt.Sprintf("%d", doc.Version)); err != nil {
		return fmt.Errorf("writing snapshot version: %w", err)
	}
	if _, err := tx.Exec(meta, "saved_at", doc.SavedAt.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("writing snapshot timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

func (s *sqliteBackendImpl) Load() (*Document, error) {
	doc := NewDocument(nil)

	var version string
	err := s.db.QueryRow(`SELECT value FROM snapshot_meta WHERE key = 'version'`).Scan(&version)
	if err == sql.ErrNoRows {
		// Fresh store, nothing persisted yet
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot version: %w", err)
	}
	if _, err := fmt.Sscanf(version, "%d", &doc.Version); err != nil {
		return nil, fmt.Errorf("parsing snapshot version %q: %w", version, err)
	}
	if err := checkVersion(doc); err != nil {
		return nil, err
	}

	var savedAt string
	if err := s.db.QueryRow(`SELECT value FROM snapshot_meta WHERE key = 'saved_at'`).Scan(&savedAt); err == nil {
		if t, parseErr := time.Parse(time.RFC3339Nano, savedAt); parseErr == nil {
			doc.SavedAt = t
		}
	}

	rows, err := s.db.Query(`SELECT data FROM entities`)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var e entity.Entity
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding snapshot entity: %w", err)
		}
		doc.Entities = append(doc.Entities, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}

	return doc, nil
}

func (s *sqliteBackendImpl) Close() error {
	return s.db.Close()
}
