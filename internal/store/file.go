package store

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
)

const (
	fileMagic   = "ISNP"
	fileVersion = uint32(1)
	// upper bound for a single id or text, guards against reading garbage lengths
	maxStringLen = 64 << 20
)

// FileStore keeps the snapshot in one little-endian binary file:
// magic, version, dimensions, batch id, count, then id, text and vector per entry.
// Commits write path.tmp, sync it and rename it over path.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store at path, creating the parent directory.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create snapshot directory: %w", ErrPersistence, err)
		}
	}
	return &FileStore{path: path}, nil
}

// Load reads the snapshot file. A missing file is an empty snapshot.
func (s *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Snapshot{}, nil
		}
		return nil, fmt.Errorf("%w: open snapshot: %w", ErrPersistence, err)
	}
	defer f.Close()

	snap, err := readSnapshot(ctx, bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrPersistence, s.path, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Commit rewrites the whole snapshot; from is ignored.
func (s *FileStore) Commit(ctx context.Context, snap *Snapshot, from int) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: create temp snapshot: %w", ErrPersistence, err)
	}
	fail := func(err error) error {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: write snapshot: %w", ErrPersistence, err)
	}

	w := bufio.NewWriter(f)
	if err := writeSnapshot(ctx, w, snap); err != nil {
		return fail(err)
	}
	if err := w.Flush(); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: close temp snapshot: %w", ErrPersistence, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: replace snapshot: %w", ErrPersistence, err)
	}
	return nil
}

func (s *FileStore) Type() string { return BackendFile }

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Close() error { return nil }

func writeSnapshot(ctx context.Context, w io.Writer, snap *Snapshot) error {
	le := binary.LittleEndian
	if _, err := io.WriteString(w, fileMagic); err != nil {
		return err
	}
	if err := binary.Write(w, le, fileVersion); err != nil {
		return err
	}
	if err := binary.Write(w, le, uint32(snap.Dimensions)); err != nil {
		return err
	}
	if err := writeString(w, snap.BatchID); err != nil {
		return err
	}
	if err := binary.Write(w, le, uint64(len(snap.Entries))); err != nil {
		return err
	}
	vec := make([]byte, 4*snap.Dimensions)
	for i, e := range snap.Entries {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := writeString(w, e.ID); err != nil {
			return err
		}
		if err := writeString(w, e.Text); err != nil {
			return err
		}
		for j, f := range e.Vector {
			le.PutUint32(vec[4*j:], math.Float32bits(f))
		}
		if _, err := w.Write(vec); err != nil {
			return err
		}
	}
	return nil
}

func readSnapshot(ctx context.Context, r io.Reader) (*Snapshot, error) {
	le := binary.LittleEndian
	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(magic) != fileMagic {
		return nil, fmt.Errorf("not a snapshot file (magic %q)", magic)
	}
	var version, dims uint32
	if err := binary.Read(r, le, &version); err != nil {
		return nil, err
	}
	if version != fileVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", version)
	}
	if err := binary.Read(r, le, &dims); err != nil {
		return nil, err
	}
	batchID, err := readString(r)
	if err != nil {
		return nil, err
	}
	var count uint64
	if err := binary.Read(r, le, &count); err != nil {
		return nil, err
	}

	snap := &Snapshot{Dimensions: int(dims), BatchID: batchID}
	if count > 0 {
		snap.Entries = make([]Entry, 0, min(count, 1<<20))
	}
	vec := make([]byte, 4*int(dims))
	for i := uint64(0); i < count; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		id, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d id: %w", i, err)
		}
		text, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d text: %w", i, err)
		}
		if _, err := io.ReadFull(r, vec); err != nil {
			return nil, fmt.Errorf("entry %d vector: %w", i, err)
		}
		v, err := decodeVector(vec, int(dims))
		if err != nil {
			return nil, err
		}
		snap.Entries = append(snap.Entries, Entry{ID: id, Text: text, Vector: v})
	}
	return snap, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
