package snapshot

import (
	"fmt"
	"time"

	"github.com/taskvault/taskvault/lib/entity"
)

// --------------------------------------------------------------------------
// Snapshot Document
// --------------------------------------------------------------------------

// FormatVersion is the current snapshot document version. Load rejects
// documents carrying any other version.
const FormatVersion = 1

// Document is the serialized form of the whole entity store: every
// entity plus a version marker. It is fully replaced on each flush;
// there is no incremental format. Secondary index state is never part
// of the document, it is re-derived at startup.
type Document struct {
	Version  int              `json:"version"`
	SavedAt  time.Time        `json:"saved_at"`
	Entities []*entity.Entity `json:"entities"`
}

// NewDocument creates a document of the current format version holding
// the given entities.
func NewDocument(entities []*entity.Entity) *Document {
	return &Document{
		Version:  FormatVersion,
		SavedAt:  time.Now(),
		Entities: entities,
	}
}

// checkVersion validates a loaded document's version marker.
func checkVersion(doc *Document) error {
	if doc.Version != FormatVersion {
		return fmt.Errorf("unsupported snapshot version %d (want %d)", doc.Version, FormatVersion)
	}
	return nil
}

// --------------------------------------------------------------------------
// Codec Interface
// --------------------------------------------------------------------------

// ICodec is the interface for all snapshot document codecs
type ICodec interface {
	// Encode serializes a Document into a byte array
	// It returns the serialized byte array and an error if any
	Encode(doc *Document) ([]byte, error)
	// Decode deserializes a byte array into a Document
	// It takes a byte array and a pointer to a Document as parameters
	// It returns an error if any
	Decode(b []byte, doc *Document) error
}

// --------------------------------------------------------------------------
// Backend Interface
// --------------------------------------------------------------------------

// IBackend is the interface for all durable snapshot backends. A backend
// stores exactly one document: Save replaces the previous snapshot in
// full, Load returns the latest saved document.
type IBackend interface {
	// Save durably replaces the stored snapshot with doc.
	Save(doc *Document) error
	// Load returns the stored snapshot. A backend that holds no snapshot
	// yet returns an empty document of the current format version.
	Load() (*Document, error)
	// Close releases backend resources.
	Close() error
}
