package snapshot

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// NewFileBackend creates a backend persisting the snapshot as a single
// codec-encoded file at path. The parent directory is created if needed.
func NewFileBackend(path string, codec ICodec) (IBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot file path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating snapshot directory: %w", err)
		}
	}
	return &fileBackendImpl{path: path, codec: codec}, nil
}

// fileBackendImpl implements the IBackend interface on a local file.
// Each Save replaces the file atomically (write to a temp file, fsync,
// rename), so a crash mid-flush leaves the previous snapshot intact.
type fileBackendImpl struct {
	path  string
	codec ICodec
}

// --------------------------------------------------------------------------
// Interface Methods (docu see snapshot.IBackend)
// --------------------------------------------------------------------------

func (f *fileBackendImpl) Save(doc *Document) error {
	b, err := f.codec.Encode(doc)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", f.path, err)
	}
	return nil
}

func (f *fileBackendImpl) Load() (*Document, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			// Fresh store, nothing persisted yet
			return NewDocument(nil), nil
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", f.path, err)
	}

	var doc Document
	if err := f.codec.Decode(b, &doc); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", f.path, err)
	}
	if err := checkVersion(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (f *fileBackendImpl) Close() error {
	return nil
}
