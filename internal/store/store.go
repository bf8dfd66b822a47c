// Package store persists the index snapshot: vectors, product ids and texts in slot order.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrPersistence is returned (wrapped) when a snapshot cannot be read or written.
var ErrPersistence = errors.New("persistence failed")

// Backend names accepted by New.
const (
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// Entry is one indexed product at its slot.
type Entry struct {
	ID     string
	Text   string
	Vector []float32
}

// Snapshot is the single persisted unit. Entries are in slot order.
// Dimensions is 0 for a store that has never been written.
type Snapshot struct {
	Dimensions int
	BatchID    string
	Entries    []Entry
}

// Validate checks that every entry has an id, a unique id and a vector of Dimensions length.
func (s *Snapshot) Validate() error {
	seen := make(map[string]struct{}, len(s.Entries))
	for i, e := range s.Entries {
		if e.ID == "" {
			return fmt.Errorf("%w: entry %d has an empty id", ErrPersistence, i)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: id %q appears more than once", ErrPersistence, e.ID)
		}
		seen[e.ID] = struct{}{}
		if len(e.Vector) != s.Dimensions {
			return fmt.Errorf("%w: entry %d has %d dimensions, snapshot has %d", ErrPersistence, i, len(e.Vector), s.Dimensions)
		}
	}
	return nil
}

// Store loads and commits snapshots atomically.
type Store interface {
	// Load returns the last committed snapshot, or an empty one if nothing was committed.
	Load(ctx context.Context) (*Snapshot, error)
	// Commit makes snap the persisted state. The first `from` entries are already persisted
	// by the previous commit; stores that write incrementally only add snap.Entries[from:].
	// Either everything is written or nothing is.
	Commit(ctx context.Context, snap *Snapshot, from int) error
	Type() string
	Path() string
	Close() error
}

// New opens the store for backend at path.
func New(backend, path string) (Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: storage path is required", ErrPersistence)
	}
	switch backend {
	case BackendFile, "":
		return NewFileStore(path)
	case BackendBolt:
		return NewBoltStore(path)
	case BackendSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", ErrPersistence, backend)
	}
}
