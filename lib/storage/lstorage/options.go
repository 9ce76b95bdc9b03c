package lstorage

import (
	"fmt"
	"time"

	"github.com/taskvault/taskvault/lib/cache"
	"github.com/taskvault/taskvault/lib/snapshot"
)

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Snapshot backend and codec identifiers accepted by Options.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"

	CodecJSON = "json"
	CodecGOB  = "gob"
)

// Options configures the local storage behavior during initialization
type Options struct {
	// Path is the snapshot location: a file path for the file backend,
	// a database path for the sqlite backend.
	Path string

	// Backend selects the durable snapshot backend (file, sqlite).
	Backend string

	// Codec selects the snapshot document encoding for the file
	// backend (json, gob). Ignored by the sqlite backend.
	Codec string

	// FlushDelay is how long the write-back buffer waits after the
	// first mutation before persisting a snapshot. Every mutation
	// inside the window is batched into the same flush.
	FlushDelay time.Duration

	// FlushRetries bounds how often a single flush retries a failing
	// backend write before surfacing the error.
	FlushRetries int

	// FlushBackoff is the initial retry delay; it doubles per attempt.
	FlushBackoff time.Duration

	// Cache holds the query cache tier capacities and TTLs.
	Cache cache.Config
}

// DefaultOptions returns the default local storage options. The flush
// delay and cache tier sizes are tunables, not part of the contract.
func DefaultOptions() *Options {
	return &Options{
		Backend:      BackendFile,
		Codec:        CodecJSON,
		FlushDelay:   500 * time.Millisecond,
		FlushRetries: 3,
		FlushBackoff: 50 * time.Millisecond,
		Cache:        cache.DefaultConfig(),
	}
}

// newBackend builds the snapshot backend selected by the options.
func newBackend(opts *Options) (snapshot.IBackend, error) {
	switch opts.Backend {
	case BackendFile:
		codec, err := newCodec(opts.Codec)
		if err != nil {
			return nil, err
		}
		return snapshot.NewFileBackend(opts.Path, codec)
	case BackendSQLite:
		return snapshot.NewSQLiteBackend(opts.Path)
	default:
		return nil, fmt.Errorf("invalid snapshot backend %q", opts.Backend)
	}
}

// newCodec builds the snapshot codec selected by the options.
func newCodec(name string) (snapshot.ICodec, error) {
	switch name {
	case CodecJSON, "":
		return snapshot.NewJSONCodec(), nil
	case CodecGOB:
		return snapshot.NewGOBCodec(), nil
	default:
		return nil, fmt.Errorf("invalid snapshot codec %q", name)
	}
}
