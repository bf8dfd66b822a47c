package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketMeta    = []byte("meta")
	bucketEntries = []byte("entries")

	keyDimensions = []byte("dimensions")
	keyCount      = []byte("count")
	keyBatchID    = []byte("batch_id")
)

// BoltStore keeps the snapshot in a bbolt file. Entries are keyed by big-endian slot
// and every commit is one transaction.
type BoltStore struct {
	db   *bbolt.DB
	path string
}

type storedEntry struct {
	ID     string    `json:"id"`
	Text   string    `json:"t"`
	Vector []float32 `json:"v"`
}

// NewBoltStore opens or creates the bbolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %w", ErrPersistence, err)
		}
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt db: %w", ErrPersistence, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketEntries} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return &BoltStore{db: db, path: path}, nil
}

// Load reads every entry in slot order.
func (s *BoltStore) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		dims, err := metaInt(meta, keyDimensions)
		if err != nil {
			return err
		}
		count, err := metaInt(meta, keyCount)
		if err != nil {
			return err
		}
		snap.Dimensions = dims
		snap.BatchID = string(meta.Get(keyBatchID))

		entries := tx.Bucket(bucketEntries)
		snap.Entries = make([]Entry, 0, count)
		c := entries.Cursor()
		slot := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if slot%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if string(k) != string(slotKey(slot)) {
				return fmt.Errorf("missing slot %d", slot)
			}
			var se storedEntry
			if err := json.Unmarshal(v, &se); err != nil {
				return fmt.Errorf("decode slot %d: %w", slot, err)
			}
			snap.Entries = append(snap.Entries, Entry{ID: se.ID, Text: se.Text, Vector: se.Vector})
			slot++
		}
		if slot != count {
			return fmt.Errorf("meta count %d but %d entries", count, slot)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", ErrPersistence, s.path, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Commit writes snap.Entries[from:] in one transaction. If the stored count is not `from`
// the entries bucket is rebuilt from the whole snapshot.
func (s *BoltStore) Commit(ctx context.Context, snap *Snapshot, from int) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		count, err := metaInt(meta, keyCount)
		if err != nil {
			return err
		}
		if count != from || from > len(snap.Entries) {
			if err := tx.DeleteBucket(bucketEntries); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(bucketEntries); err != nil {
				return err
			}
			from = 0
		}
		entries := tx.Bucket(bucketEntries)
		for i := from; i < len(snap.Entries); i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := snap.Entries[i]
			data, err := json.Marshal(storedEntry{ID: e.ID, Text: e.Text, Vector: e.Vector})
			if err != nil {
				return err
			}
			if err := entries.Put(slotKey(i), data); err != nil {
				return err
			}
		}
		if err := meta.Put(keyDimensions, []byte(strconv.Itoa(snap.Dimensions))); err != nil {
			return err
		}
		if err := meta.Put(keyCount, []byte(strconv.Itoa(len(snap.Entries)))); err != nil {
			return err
		}
		return meta.Put(keyBatchID, []byte(snap.BatchID))
	})
	if err != nil {
		return fmt.Errorf("%w: commit: %w", ErrPersistence, err)
	}
	return nil
}

func metaInt(b *bbolt.Bucket, key []byte) (int, error) {
	v := b.Get(key)
	if v == nil {
		return 0, nil
	}
	n, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, fmt.Errorf("bad meta %s: %w", key, err)
	}
	return n, nil
}

func (s *BoltStore) Type() string { return BackendBolt }

func (s *BoltStore) Path() string { return s.path }

func (s *BoltStore) Close() error {
	return s.db.Close()
}
